// Package config loads harness configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// ExecutionConfig tunes how plan steps run.
type ExecutionConfig struct {
	// DefaultStepTimeout bounds instruction confirmation and wait polling
	// when a step does not carry its own timeout.
	DefaultStepTimeout time.Duration `mapstructure:"default_step_timeout" yaml:"default_step_timeout"`
	// WaitPollInterval is the default re-poll interval for conditional waits.
	WaitPollInterval time.Duration `mapstructure:"wait_poll_interval" yaml:"wait_poll_interval"`
}

// StoreConfig tunes the account state store.
type StoreConfig struct {
	// HistoryRetention caps the per-account history depth. Zero keeps
	// everything.
	HistoryRetention int `mapstructure:"history_retention" yaml:"history_retention"`
}

// LedgerConfig tunes ledger submission behavior.
type LedgerConfig struct {
	// RPCURL is the endpoint of a real Solana node, used when the
	// environment is not simulated.
	RPCURL string `mapstructure:"rpc_url" yaml:"rpc_url"`
	// RetryEnabled turns on retries for transient submission failures.
	RetryEnabled bool `mapstructure:"retry_enabled" yaml:"retry_enabled"`
	// RetryAttempts is the maximum number of submission attempts.
	RetryAttempts uint `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	// RetryDelay is the fixed delay between attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// DatabaseConfig configures the optional SQL persistence layer.
type DatabaseConfig struct {
	// DSN is the Postgres connection string. Empty disables SQL persistence.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// Config is the root harness configuration.
type Config struct {
	// LogLevel is a zap level name such as "debug" or "info".
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	Execution ExecutionConfig `mapstructure:"execution" yaml:"execution"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Ledger    LedgerConfig    `mapstructure:"ledger" yaml:"ledger"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Execution: ExecutionConfig{
			DefaultStepTimeout: 30 * time.Second,
			WaitPollInterval:   500 * time.Millisecond,
		},
		Store: StoreConfig{
			HistoryRetention: 0,
		},
		Ledger: LedgerConfig{
			RetryEnabled:  false,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
	}
}

// envBindings defines how environment variables map to configuration keys
// used by Viper. Each entry maps a config key to the environment variable
// names that can provide its value, checked in order.
var envBindings = map[string][]string{
	"log_level":                      {"SOLHARNESS_LOG_LEVEL"},
	"execution.default_step_timeout": {"SOLHARNESS_EXECUTION_DEFAULT_STEP_TIMEOUT"},
	"execution.wait_poll_interval":   {"SOLHARNESS_EXECUTION_WAIT_POLL_INTERVAL"},
	"store.history_retention":        {"SOLHARNESS_STORE_HISTORY_RETENTION"},
	"ledger.rpc_url":                 {"SOLHARNESS_LEDGER_RPC_URL"},
	"ledger.retry_enabled":           {"SOLHARNESS_LEDGER_RETRY_ENABLED"},
	"ledger.retry_attempts":          {"SOLHARNESS_LEDGER_RETRY_ATTEMPTS"},
	"ledger.retry_delay":             {"SOLHARNESS_LEDGER_RETRY_DELAY"},
	"database.dsn":                   {"SOLHARNESS_DATABASE_DSN"},
}

// Load loads the config from the file at filePath, with environment
// variables taking precedence. A missing file falls back to defaults plus
// environment overrides.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	setDefaults(v)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	// If the config file exists, we continue to read it, otherwise we
	// fall back to defaults and environment variables.
	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadEnv loads the config from defaults and environment variables only.
func LoadEnv() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("execution.default_step_timeout", def.Execution.DefaultStepTimeout)
	v.SetDefault("execution.wait_poll_interval", def.Execution.WaitPollInterval)
	v.SetDefault("store.history_retention", def.Store.HistoryRetention)
	v.SetDefault("ledger.rpc_url", def.Ledger.RPCURL)
	v.SetDefault("ledger.retry_enabled", def.Ledger.RetryEnabled)
	v.SetDefault("ledger.retry_attempts", def.Ledger.RetryAttempts)
	v.SetDefault("ledger.retry_delay", def.Ledger.RetryDelay)
	v.SetDefault("database.dsn", def.Database.DSN)
}

func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(envs, 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
