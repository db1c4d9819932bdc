// Package app wires the mailbox watcher, sync paths, storage and the
// HTTP surface into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailledger/internal/api"
	"github.com/nhle/mailledger/internal/credential"
	"github.com/nhle/mailledger/internal/events"
	"github.com/nhle/mailledger/internal/extract"
	"github.com/nhle/mailledger/internal/ledger"
	"github.com/nhle/mailledger/internal/logger"
	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
	"github.com/nhle/mailledger/internal/store"
	appsync "github.com/nhle/mailledger/internal/sync"
)

// shutdownTimeout bounds how long the HTTP server drains on exit.
const shutdownTimeout = 10 * time.Second

// App is the assembled process.
type App struct {
	cfg          *model.AppConfig
	log          zerolog.Logger
	store        store.Store
	publisher    events.Publisher
	watcher      *mail.Watcher
	listener     *appsync.Listener
	orchestrator *appsync.Orchestrator
	scheduler    *appsync.Scheduler
	server       *http.Server
}

// New builds every component from cfg. The mail password falls back to
// creds when the config leaves it empty.
func New(cfg *model.AppConfig, creds credential.Store, log zerolog.Logger) (*App, error) {
	password, err := credential.ResolveMailPassword(creds, cfg.Mail.Username, cfg.Mail.Password)
	if err != nil {
		return nil, fmt.Errorf("resolving mail password: %w", err)
	}

	registry, err := extract.DefaultRegistry(cfg.Institutions)
	if err != nil {
		return nil, fmt.Errorf("building strategy registry: %w", err)
	}

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	publisher := events.New(cfg.Events.AMQPURL, cfg.Events.Exchange, log)

	client := mail.NewIMAPClient(
		cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, password, cfg.Mail.TLS,
		mail.WithMailbox(cfg.Mail.Mailbox),
		mail.WithFetchTimeout(seconds(cfg.Mail.FetchTimeoutSec)),
	)
	watcher := mail.NewWatcher(client, mail.WatcherConfig{
		Mailbox:        cfg.Mail.Mailbox,
		RetryDelay:     seconds(cfg.Mail.RetryDelaySec),
		HealthInterval: seconds(cfg.Mail.HealthIntervalSec),
		IdleRestart:    seconds(cfg.Mail.IdleRestartSec),
	}, log)

	reconciler := ledger.NewReconciler(st, publisher, log)
	orchestrator := appsync.NewOrchestrator(client, st, registry, reconciler, appsync.OrchestratorConfig{
		HistoryYears: cfg.Sync.HistoryYears,
		Concurrency:  cfg.Sync.Concurrency,
	}, log)

	a := &App{
		cfg:          cfg,
		log:          logger.Component(log, "app"),
		store:        st,
		publisher:    publisher,
		watcher:      watcher,
		listener:     appsync.NewListener(client, st, registry, reconciler, publisher, log),
		orchestrator: orchestrator,
		scheduler:    appsync.NewScheduler(orchestrator, cfg.Sync.Schedule, log),
	}

	if cfg.API.Addr != "" {
		a.server = &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           api.NewRouter(api.NewHandler(orchestrator, watcher, log), log),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	a.log.Info().
		Str("imap", client.Addr()).
		Str("mailbox", client.Mailbox()).
		Str("database", st.Driver()).
		Int("strategies", registry.Len()).
		Msg("application assembled")

	return a, nil
}

// Run starts every component and blocks until ctx is done or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx, a.cfg.Sync.OnStart); err != nil {
		return err
	}
	defer func() { <-a.scheduler.Stop().Done() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.watcher.Run(gctx) })
	g.Go(func() error { return a.listener.Run(gctx, a.watcher.Events()) })

	if a.server != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Close releases the broker connection and the database.
func (a *App) Close() error {
	a.publisher.Close()
	return a.store.Close()
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
