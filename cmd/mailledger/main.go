// Command mailledger keeps account ledgers in step with bank alert mail.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nhle/mailledger/internal/app"
	"github.com/nhle/mailledger/internal/credential"
	"github.com/nhle/mailledger/internal/logger"
	"github.com/nhle/mailledger/internal/model"
	"github.com/nhle/mailledger/internal/store"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the YAML config file")
	initConfig := flag.Bool("init-config", false, "write the default config to -config and exit")
	storePassword := flag.Bool("store-password", false, "read the mail password from stdin into the keyring and exit")
	flag.Parse()

	if *initConfig {
		if err := model.SaveConfig(*configPath, model.DefaultAppConfig()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("wrote", *configPath)
		return
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level)
	creds := credential.NewKeyring()

	if *storePassword {
		if err := savePassword(creds, cfg.Mail.Username); err != nil {
			log.Fatal().Err(err).Msg("storing mail password")
		}
		log.Info().Str("username", cfg.Mail.Username).Msg("mail password stored in keyring")
		return
	}

	if cfg.Database.Driver == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			log.Fatal().Err(err).Msg("creating database directory")
		}
	}

	a, err := app.New(cfg, creds, log)
	if err != nil {
		log.Fatal().Err(err).Msg("starting mailledger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	runErr := a.Run(ctx)
	stop()

	if err := a.Close(); err != nil {
		log.Error().Err(err).Msg("closing")
	}
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("mailledger stopped")
	}
	log.Info().Msg("mailledger stopped")
}

func savePassword(creds credential.Store, username string) error {
	if username == "" {
		return fmt.Errorf("mail.username is not configured")
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return fmt.Errorf("empty password")
	}
	return creds.Set(credential.MailPasswordKey(username), password)
}
