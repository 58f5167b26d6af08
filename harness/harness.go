// Package harness wires the harness components together behind a single
// entrypoint. It builds the environment, state store, executor and
// orchestrator from one configuration and exposes plan execution.
package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sollib "github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solharness/solharness/config"
	"github.com/solharness/solharness/datastore"
	"github.com/solharness/solharness/datastore/sqlstore"
	"github.com/solharness/solharness/diff"
	"github.com/solharness/solharness/execution"
	"github.com/solharness/solharness/executor"
	"github.com/solharness/solharness/ledger"
	"github.com/solharness/solharness/ledger/rpc"
	"github.com/solharness/solharness/ledger/sim"
	"github.com/solharness/solharness/pkg/logger"
	"github.com/solharness/solharness/plan"
	"github.com/solharness/solharness/statestore"
)

// Config assembles a Harness.
type Config struct {
	// Project is the owning project name.
	Project string
	// Environment is the environment name inside the project.
	Environment string
	Kind        ledger.Kind
	// ForkSlot is the origin slot for fork environments.
	ForkSlot *uint64

	// Settings carries tunables loaded via the config package. Nil uses
	// config.Default().
	Settings *config.Config

	// Client is the ledger implementation. Nil picks one from Kind: local
	// and fork environments get a simulated ledger, remote kinds get an RPC
	// client built from Settings.Ledger.RPCURL and PayerKey.
	Client ledger.Client
	// PayerKey signs submitted transactions when an RPC client is built.
	PayerKey sollib.PrivateKey

	// Schema optionally resolves per-account data layouts for field-level
	// assertions and waits.
	Schema diff.SchemaProvider
	// Datastore optionally receives execution and step records. Nil
	// disables persistence.
	Datastore datastore.MutableDataStore
	// Durable is the SQL persistence layer. Nil opens one from
	// Settings.Database.DSN when that is set; an empty DSN disables durable
	// persistence.
	Durable *sqlstore.Store

	Logger logger.Logger
}

// Harness owns one environment and executes plans against it.
type Harness struct {
	env   *ledger.Environment
	store *statestore.MemoryStore
	exec  *executor.Executor
	orch  *execution.Orchestrator
	lggr  logger.Logger
}

// New builds a Harness from cfg. The environment is not started; call
// Start before running plans.
func New(cfg Config) (*Harness, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	lggr := cfg.Logger
	if lggr == nil {
		var err error
		lggr, err = newLogger(settings.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = newClient(cfg, settings)
		if err != nil {
			return nil, err
		}
	}

	env, err := ledger.New(ledger.Config{
		Project:  cfg.Project,
		Name:     cfg.Environment,
		Kind:     cfg.Kind,
		ForkSlot: cfg.ForkSlot,
		Client:   client,
		Logger:   lggr,
		SubmitRetry: ledger.RetrySettings{
			Enabled:  settings.Ledger.RetryEnabled,
			Attempts: settings.Ledger.RetryAttempts,
			Delay:    settings.Ledger.RetryDelay,
		},
	})
	if err != nil {
		return nil, err
	}

	durable := cfg.Durable
	if durable == nil && settings.Database.DSN != "" {
		durable, err = sqlstore.Open("postgres", settings.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening durable store: %w", err)
		}
		if err := durable.Migrate(); err != nil {
			return nil, fmt.Errorf("migrating durable store: %w", err)
		}
	}

	storeOpts := []statestore.MemoryStoreOption{}
	if settings.Store.HistoryRetention > 0 {
		storeOpts = append(storeOpts, statestore.WithRetention(settings.Store.HistoryRetention))
	}
	if cfg.Schema != nil {
		storeOpts = append(storeOpts, statestore.WithSchemaProvider(cfg.Schema))
	}
	if durable != nil {
		storeOpts = append(storeOpts, statestore.WithJournal(durable))
	}
	store := statestore.NewMemoryStore(storeOpts...)

	var transactions datastore.MutableTransactionStore
	if cfg.Datastore != nil {
		transactions = cfg.Datastore.Transactions()
	}

	exec, err := executor.New(executor.Config{
		Store:              store,
		Env:                env,
		Schema:             cfg.Schema,
		Transactions:       transactions,
		Logger:             lggr,
		DefaultStepTimeout: settings.Execution.DefaultStepTimeout,
		WaitPollInterval:   settings.Execution.WaitPollInterval,
	})
	if err != nil {
		return nil, err
	}

	orchCfg := execution.Config{
		Executor:  exec,
		Datastore: cfg.Datastore,
		Logger:    lggr,
	}
	if durable != nil {
		orchCfg.Durable = durable
	}
	orch, err := execution.New(orchCfg)
	if err != nil {
		return nil, err
	}

	if cfg.Datastore != nil {
		if err := registerEnvironment(cfg.Datastore, cfg); err != nil {
			lggr.Warnw("Failed to register environment records",
				"project", cfg.Project, "environment", cfg.Environment, "err", err)
		}
	}
	if durable != nil {
		if err := registerEnvironmentDurable(durable, cfg); err != nil {
			lggr.Warnw("Failed to register environment records durably",
				"project", cfg.Project, "environment", cfg.Environment, "err", err)
		}
	}

	return &Harness{
		env:   env,
		store: store,
		exec:  exec,
		orch:  orch,
		lggr:  logger.Named(lggr, "Harness"),
	}, nil
}

// registerEnvironment records the project and environment in the datastore so
// executions can be traced back to where they ran. Existing records are kept.
func registerEnvironment(ds datastore.MutableDataStore, cfg Config) error {
	now := time.Now().UTC()

	err := ds.Projects().Add(datastore.ProjectRecord{
		Name:      cfg.Project,
		CreatedAt: now,
	})
	if err != nil && !errors.Is(err, datastore.ErrProjectExists) {
		return err
	}

	var forkSlot *uint64
	if cfg.ForkSlot != nil {
		slot := *cfg.ForkSlot
		forkSlot = &slot
	}

	return ds.Environments().Upsert(datastore.EnvironmentRecord{
		Project:   cfg.Project,
		Name:      cfg.Environment,
		Kind:      string(cfg.Kind),
		ForkSlot:  forkSlot,
		CreatedAt: now,
	})
}

// registerEnvironmentDurable mirrors the project and environment records into
// the SQL store.
func registerEnvironmentDurable(durable *sqlstore.Store, cfg Config) error {
	now := time.Now().UTC()

	err := durable.SaveProject(datastore.ProjectRecord{
		Name:      cfg.Project,
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	var forkSlot *uint64
	if cfg.ForkSlot != nil {
		slot := *cfg.ForkSlot
		forkSlot = &slot
	}

	return durable.SaveEnvironment(datastore.EnvironmentRecord{
		Project:   cfg.Project,
		Name:      cfg.Environment,
		Kind:      string(cfg.Kind),
		ForkSlot:  forkSlot,
		CreatedAt: now,
	})
}

func newClient(cfg Config, settings *config.Config) (ledger.Client, error) {
	switch cfg.Kind {
	case ledger.KindLocal:
		return sim.New(), nil
	case ledger.KindFork:
		if cfg.ForkSlot == nil {
			return nil, errors.New("fork environments require a fork slot")
		}

		return sim.New(sim.WithInitialSlot(*cfg.ForkSlot)), nil
	case ledger.KindTestnet, ledger.KindDevnet:
		if settings.Ledger.RPCURL == "" {
			return nil, errors.New("remote environments require ledger.rpc_url")
		}
		if cfg.PayerKey == nil {
			return nil, errors.New("remote environments require a payer key")
		}

		opts := []rpc.Opt{}
		if settings.Ledger.RetryEnabled {
			opts = append(opts, rpc.WithRetry(settings.Ledger.RetryAttempts, settings.Ledger.RetryDelay))
		}

		return rpc.New(solrpc.New(settings.Ledger.RPCURL), cfg.PayerKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown environment kind %q", cfg.Kind)
	}
}

func newLogger(level string) (logger.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return logger.NewWith(func(c *zap.Config) {
		c.Level.SetLevel(lvl)
	})
}

// Start brings the environment up.
func (h *Harness) Start(ctx context.Context) error {
	return h.env.Start(ctx)
}

// Stop tears the environment down.
func (h *Harness) Stop(ctx context.Context) error {
	return h.env.Stop(ctx)
}

// Run parses a plan document, JSON or YAML, and executes it end to end.
func (h *Harness) Run(ctx context.Context, document []byte) (*execution.Execution, error) {
	parse := plan.Parse
	if !json.Valid(document) {
		parse = plan.ParseYAML
	}

	p, err := parse(document)
	if err != nil {
		return nil, err
	}
	if err := p.Ready(); err != nil {
		return nil, err
	}

	return h.orch.Run(ctx, &p)
}

// RunPlan executes an already validated plan.
func (h *Harness) RunPlan(ctx context.Context, p plan.Plan) (*execution.Execution, error) {
	return h.orch.Run(ctx, &p)
}

// Env returns the underlying environment.
func (h *Harness) Env() *ledger.Environment { return h.env }

// Store returns the versioned account state store.
func (h *Harness) Store() *statestore.MemoryStore { return h.store }

// Executor returns the step executor for single-step use.
func (h *Harness) Executor() *executor.Executor { return h.exec }
