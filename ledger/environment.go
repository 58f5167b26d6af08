package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gagliardetto/solana-go"

	"github.com/solharness/solharness/account"
	"github.com/solharness/solharness/pkg/logger"
)

// Kind is the flavor of ledger environment.
type Kind string

const (
	KindLocal   Kind = "local"
	KindFork    Kind = "fork"
	KindTestnet Kind = "testnet"
	KindDevnet  Kind = "devnet"
)

// Status is the environment lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// legalTransitions is the environment state machine. The error state is
// reachable from any transitional state and leaves only via Reset.
var legalTransitions = map[Status][]Status{
	StatusStopped:  {StatusStarting},
	StatusStarting: {StatusRunning, StatusError},
	StatusRunning:  {StatusStopping, StatusError},
	StatusStopping: {StatusStopped, StatusError},
	StatusError:    {StatusStopped},
}

// RetrySettings controls submit retries at the environment boundary. Retries
// never happen unless explicitly enabled here.
type RetrySettings struct {
	Enabled  bool
	Attempts uint
	Delay    time.Duration
}

// Config holds the dependencies and identity of an Environment.
type Config struct {
	// Project is the owning project; an environment belongs to exactly one.
	Project string
	// Name identifies the environment inside the project.
	Name string
	Kind Kind
	// ForkSlot is the origin slot for fork environments.
	ForkSlot *uint64
	// Client is the external ledger/validator implementation.
	Client Client
	Logger logger.Logger
	// SubmitRetry optionally retries failed submissions. Rejected
	// transactions are never retried: a rejection is a deterministic outcome,
	// not a transport failure.
	SubmitRetry RetrySettings
}

func (c Config) validate() error {
	if c.Project == "" {
		return errors.New("project is required")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	switch c.Kind {
	case KindLocal, KindFork, KindTestnet, KindDevnet:
	default:
		return fmt.Errorf("unknown environment kind %q", c.Kind)
	}
	if c.Kind == KindFork && c.ForkSlot == nil {
		return errors.New("fork environments require a fork slot")
	}
	if c.Client == nil {
		return errors.New("client is required")
	}

	return nil
}

// Environment is the lifecycle wrapper around one ledger environment. It is
// shared by all executions targeting it: mutating operations (Submit,
// Advance, Rewind) are serialized behind one mutex, so concurrent callers
// queue rather than fail.
type Environment struct {
	project  string
	name     string
	kind     Kind
	forkSlot *uint64
	client   Client
	lggr     logger.Logger
	retryCfg RetrySettings

	statusMu sync.RWMutex
	status   Status

	// mutateMu serializes Submit, Advance and Rewind. At most one mutating
	// operation is in flight per environment.
	mutateMu sync.Mutex
}

// New creates a stopped Environment from the config.
func New(cfg Config) (*Environment, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid environment config: %w", err)
	}
	lggr := cfg.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Environment{
		project:  cfg.Project,
		name:     cfg.Name,
		kind:     cfg.Kind,
		forkSlot: cfg.ForkSlot,
		client:   cfg.Client,
		lggr:     logger.Named(lggr, "Environment"),
		retryCfg: cfg.SubmitRetry,
		status:   StatusStopped,
	}, nil
}

// Project returns the owning project name.
func (e *Environment) Project() string { return e.project }

// Name returns the environment name.
func (e *Environment) Name() string { return e.name }

// Kind returns the environment kind.
func (e *Environment) Kind() Kind { return e.kind }

// ForkSlot returns the origin slot for fork environments, nil otherwise.
func (e *Environment) ForkSlot() *uint64 { return e.forkSlot }

// Status returns the current lifecycle state.
func (e *Environment) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()

	return e.status
}

// Start brings the environment from stopped to running, probing the client
// on the way up. On probe failure the environment lands in the error state.
func (e *Environment) Start(ctx context.Context) error {
	if err := e.transition(StatusStarting); err != nil {
		return err
	}
	e.lggr.Infow("Starting environment", "project", e.project, "name", e.name, "kind", e.kind)

	if _, err := e.client.CurrentSlot(ctx); err != nil {
		e.fail()

		return &EnvironmentError{Name: e.name, From: StatusStarting, To: StatusRunning, Err: err}
	}

	return e.transition(StatusRunning)
}

// Stop brings a running environment down to stopped.
func (e *Environment) Stop(ctx context.Context) error {
	if err := e.transition(StatusStopping); err != nil {
		return err
	}
	e.lggr.Infow("Stopping environment", "project", e.project, "name", e.name)

	if closer, ok := e.client.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			e.fail()

			return &EnvironmentError{Name: e.name, From: StatusStopping, To: StatusStopped, Err: err}
		}
	}

	return e.transition(StatusStopped)
}

// Reset moves the environment from error back to stopped. It is the only way
// out of the error state.
func (e *Environment) Reset() error {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	if e.status != StatusError {
		return &EnvironmentError{Name: e.name, From: e.status, To: StatusStopped}
	}
	e.status = StatusStopped

	return nil
}

// Submit sends a transaction through the client, serialized against other
// mutating operations. Failures are wrapped as LedgerError and retried only
// when retry is configured; rejections are returned as-is and never retried.
func (e *Environment) Submit(ctx context.Context, req *TransactionRequest) (solana.Signature, uint64, error) {
	if err := e.requireRunning("submit"); err != nil {
		return solana.Signature{}, 0, err
	}

	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()

	var (
		sig  solana.Signature
		slot uint64
	)
	submit := func() error {
		var err error
		sig, slot, err = e.client.Submit(ctx, req)
		if err == nil {
			return nil
		}

		var rejected *TransactionRejectedError
		if errors.As(err, &rejected) {
			return retry.Unrecoverable(err)
		}

		return &LedgerError{Op: "submit", Err: err}
	}

	var err error
	if e.retryCfg.Enabled {
		err = retry.Do(submit,
			retry.Context(ctx),
			retry.Attempts(e.retryCfg.Attempts),
			retry.Delay(e.retryCfg.Delay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(attempt uint, err error) {
				e.lggr.Warnw("Submission failed. Retrying...",
					"environment", e.name, "attempt", attempt, "error", err)
			}),
		)
	} else {
		err = submit()
	}
	if err != nil {
		return solana.Signature{}, 0, err
	}

	return sig, slot, nil
}

// Query reads an account's current state from the ledger.
func (e *Environment) Query(ctx context.Context, address solana.PublicKey) (account.Snapshot, error) {
	if err := e.requireRunning("query"); err != nil {
		return account.Snapshot{}, err
	}

	snap, err := e.client.GetAccount(ctx, address)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return account.Snapshot{}, err
		}

		return account.Snapshot{}, &LedgerError{Op: "query", Err: err}
	}

	return snap, nil
}

// CurrentSlot returns the ledger's current slot.
func (e *Environment) CurrentSlot(ctx context.Context) (uint64, error) {
	if err := e.requireRunning("current_slot"); err != nil {
		return 0, err
	}

	slot, err := e.client.CurrentSlot(ctx)
	if err != nil {
		return 0, &LedgerError{Op: "current_slot", Err: err}
	}

	return slot, nil
}

// Advance moves slot production forward by n slots. Environments whose
// client does not control slot production fail with ErrUnsupportedOperation.
func (e *Environment) Advance(ctx context.Context, n uint64) (uint64, error) {
	if err := e.requireRunning("advance"); err != nil {
		return 0, err
	}
	advancer, ok := e.client.(SlotAdvancer)
	if !ok {
		return 0, fmt.Errorf("%w: advance on %s environment", ErrUnsupportedOperation, e.kind)
	}

	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()

	slot, err := advancer.AdvanceSlots(ctx, n)
	if err != nil {
		return 0, &LedgerError{Op: "advance", Err: err}
	}

	return slot, nil
}

// Rewind destructively resets ledger-visible state to the target slot. Only
// forkable environments support it, and the target must not exceed the
// current slot.
func (e *Environment) Rewind(ctx context.Context, targetSlot uint64) error {
	if err := e.requireRunning("rewind"); err != nil {
		return err
	}
	rewinder, ok := e.client.(Rewinder)
	if !ok {
		return fmt.Errorf("%w: rewind on %s environment", ErrUnsupportedOperation, e.kind)
	}

	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()

	current, err := e.client.CurrentSlot(ctx)
	if err != nil {
		return &LedgerError{Op: "rewind", Err: err}
	}
	if targetSlot > current {
		return fmt.Errorf("%w: target %d, current %d", ErrInvalidTarget, targetSlot, current)
	}

	e.lggr.Infow("Rewinding environment", "environment", e.name, "target", targetSlot, "current", current)
	if err := rewinder.RewindToSlot(ctx, targetSlot); err != nil {
		return &LedgerError{Op: "rewind", Err: err}
	}

	return nil
}

// SetAccount injects account state directly into the ledger. Used by account
// overrides; unsupported on environments without state injection.
func (e *Environment) SetAccount(ctx context.Context, address solana.PublicKey, snap account.Snapshot) error {
	if err := e.requireRunning("set_account"); err != nil {
		return err
	}
	setter, ok := e.client.(AccountSetter)
	if !ok {
		return fmt.Errorf("%w: account injection on %s environment", ErrUnsupportedOperation, e.kind)
	}

	if err := setter.SetAccount(ctx, address, snap); err != nil {
		return &LedgerError{Op: "set_account", Err: err}
	}

	return nil
}

// transition moves the environment to the next state, enforcing the state
// machine.
func (e *Environment) transition(to Status) error {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	for _, allowed := range legalTransitions[e.status] {
		if allowed == to {
			e.status = to

			return nil
		}
	}

	return &EnvironmentError{Name: e.name, From: e.status, To: to}
}

// fail forces the environment into the error state.
func (e *Environment) fail() {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status = StatusError
}

// requireRunning guards operations that need a running environment.
func (e *Environment) requireRunning(op string) error {
	if status := e.Status(); status != StatusRunning {
		return &EnvironmentError{
			Name: e.name,
			From: status,
			To:   status,
			Err:  fmt.Errorf("%s requires a running environment", op),
		}
	}

	return nil
}
