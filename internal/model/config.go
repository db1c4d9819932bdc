package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment override
// (e.g., MAILLEDGER_MAIL_HOST overrides mail.host).
const envPrefix = "MAILLEDGER"

// MailConfig holds the IMAP server settings and watcher timings.
type MailConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Password may be left empty, in which case it is read from the
	// system keyring.
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`

	RetryDelaySec     int `mapstructure:"retry_delay_sec" yaml:"retry_delay_sec"`
	HealthIntervalSec int `mapstructure:"health_interval_sec" yaml:"health_interval_sec"`
	FetchTimeoutSec   int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	IdleRestartSec    int `mapstructure:"idle_restart_sec" yaml:"idle_restart_sec"`
}

// DatabaseConfig selects the SQL driver and data source.
type DatabaseConfig struct {
	// Driver is "sqlite" or "pgx".
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// SyncConfig controls scheduled account syncs.
type SyncConfig struct {
	Schedule     string `mapstructure:"schedule" yaml:"schedule"`
	HistoryYears int    `mapstructure:"history_years" yaml:"history_years"`
	Concurrency  int    `mapstructure:"concurrency" yaml:"concurrency"`
	OnStart      bool   `mapstructure:"on_start" yaml:"on_start"`
}

// EventsConfig configures the optional RabbitMQ publisher.
type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqp_url" yaml:"amqp_url"`
	Exchange string `mapstructure:"exchange" yaml:"exchange"`
}

// APIConfig configures the trigger HTTP surface. An empty Addr disables it.
type APIConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// InstitutionConfig registers an extraction strategy for a sender
// address on top of the built-in ones.
type InstitutionConfig struct {
	Address string `mapstructure:"address" yaml:"address"`

	// Subject, when set, must match the mail subject exactly.
	Subject string `mapstructure:"subject" yaml:"subject,omitempty"`

	// Kind is "alert", "loan_repayment" or "delegate".
	Kind string `mapstructure:"kind" yaml:"kind"`

	// Profile names the alert pattern set (e.g., "pnb", "axis").
	Profile string `mapstructure:"profile" yaml:"profile,omitempty"`

	// Marker is the payee phrase a loan repayment alert must contain.
	Marker string `mapstructure:"marker" yaml:"marker,omitempty"`

	// Via is the sender whose debit alerts carry loan repayments.
	Via string `mapstructure:"via" yaml:"via,omitempty"`

	// Name labels transactions produced by loan repayment strategies.
	Name string `mapstructure:"name" yaml:"name,omitempty"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mail         MailConfig          `mapstructure:"mail" yaml:"mail"`
	Database     DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Sync         SyncConfig          `mapstructure:"sync" yaml:"sync"`
	Events       EventsConfig        `mapstructure:"events" yaml:"events"`
	API          APIConfig           `mapstructure:"api" yaml:"api"`
	Log          LogConfig           `mapstructure:"log" yaml:"log"`
	Institutions []InstitutionConfig `mapstructure:"institutions" yaml:"institutions"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailledger/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailledger", "config.yaml")
}

// DefaultDatabasePath returns the default sqlite database location.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "ledger.db")
	}
	return filepath.Join(home, ".local", "share", "mailledger", "ledger.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Mail: MailConfig{
			Port:              "993",
			TLS:               true,
			Mailbox:           "INBOX",
			RetryDelaySec:     30,
			HealthIntervalSec: 60,
			FetchTimeoutSec:   30,
			IdleRestartSec:    1500,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    DefaultDatabasePath(),
		},
		Sync: SyncConfig{
			Schedule:     "@every 24h",
			HistoryYears: 3,
			Concurrency:  4,
			OnStart:      true,
		},
		Events: EventsConfig{
			Exchange: "ledger_events",
		},
		API: APIConfig{
			Addr: ":8089",
		},
		Log: LogConfig{
			Level: "info",
		},
		Institutions: []InstitutionConfig{},
	}
}

// setDefaults mirrors defaultAppConfig into v so env overrides of
// nested keys resolve even without a config file.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("mail.host", d.Mail.Host)
	v.SetDefault("mail.port", d.Mail.Port)
	v.SetDefault("mail.username", d.Mail.Username)
	v.SetDefault("mail.password", d.Mail.Password)
	v.SetDefault("mail.tls", d.Mail.TLS)
	v.SetDefault("mail.mailbox", d.Mail.Mailbox)
	v.SetDefault("mail.retry_delay_sec", d.Mail.RetryDelaySec)
	v.SetDefault("mail.health_interval_sec", d.Mail.HealthIntervalSec)
	v.SetDefault("mail.fetch_timeout_sec", d.Mail.FetchTimeoutSec)
	v.SetDefault("mail.idle_restart_sec", d.Mail.IdleRestartSec)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("sync.schedule", d.Sync.Schedule)
	v.SetDefault("sync.history_years", d.Sync.HistoryYears)
	v.SetDefault("sync.concurrency", d.Sync.Concurrency)
	v.SetDefault("sync.on_start", d.Sync.OnStart)
	v.SetDefault("events.amqp_url", d.Events.AMQPURL)
	v.SetDefault("events.exchange", d.Events.Exchange)
	v.SetDefault("api.addr", d.API.Addr)
	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first so its values act
// as environment overrides. A missing config file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	for i, inst := range c.Institutions {
		if inst.Address == "" {
			return fmt.Errorf("institutions[%d]: address is required", i)
		}
		switch inst.Kind {
		case "alert", "delegate":
		case "loan_repayment":
			if inst.Marker == "" || inst.Via == "" {
				return fmt.Errorf("institutions[%d]: marker and via are required for loan_repayment", i)
			}
		default:
			return fmt.Errorf("institutions[%d]: unknown kind %q", i, inst.Kind)
		}
	}

	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The mail password is never
// written; it belongs in the keyring.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	mailCfg := cfg.Mail
	mailCfg.Password = ""

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mail", mailCfg)
	v.Set("database", cfg.Database)
	v.Set("sync", cfg.Sync)
	v.Set("events", cfg.Events)
	v.Set("api", cfg.API)
	v.Set("log", cfg.Log)
	v.Set("institutions", cfg.Institutions)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// DefaultAppConfig returns the built-in configuration.
func DefaultAppConfig() *AppConfig {
	return defaultAppConfig()
}
