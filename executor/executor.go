// Package executor runs individual plan steps against a ledger environment,
// recording the resulting account states in the versioned store. It knows
// nothing about plan-level sequencing: the execution package drives it.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/solharness/solharness/account"
	"github.com/solharness/solharness/datastore"
	"github.com/solharness/solharness/diff"
	"github.com/solharness/solharness/ledger"
	"github.com/solharness/solharness/pkg/logger"
	"github.com/solharness/solharness/plan"
	"github.com/solharness/solharness/statestore"
)

const (
	defaultStepTimeout  = 30 * time.Second
	defaultPollInterval = 500 * time.Millisecond
)

// Config holds the collaborators and tunables of an Executor.
type Config struct {
	Store statestore.MutableStore
	Env   *ledger.Environment
	// Schema optionally resolves per-account layouts for field-level
	// assertions and waits.
	Schema diff.SchemaProvider
	// Transactions optionally receives a record for every confirmed
	// submission.
	Transactions datastore.MutableTransactionStore
	Logger       logger.Logger

	// DefaultStepTimeout bounds instruction confirmation and wait polling
	// when a step does not carry its own timeout. Defaults to 30s.
	DefaultStepTimeout time.Duration
	// WaitPollInterval is the default re-poll interval for conditional
	// waits. Defaults to 500ms.
	WaitPollInterval time.Duration
}

// Executor executes single plan steps.
type Executor struct {
	store        statestore.MutableStore
	env          *ledger.Environment
	schema       diff.SchemaProvider
	txs          datastore.MutableTransactionStore
	lggr         logger.Logger
	stepTimeout  time.Duration
	pollInterval time.Duration
}

// New creates an Executor from the given config.
func New(cfg Config) (*Executor, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Env == nil {
		return nil, errors.New("environment is required")
	}

	lggr := cfg.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}

	stepTimeout := cfg.DefaultStepTimeout
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	pollInterval := cfg.WaitPollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Executor{
		store:        cfg.Store,
		env:          cfg.Env,
		schema:       cfg.Schema,
		txs:          cfg.Transactions,
		lggr:         logger.Named(lggr, "Executor"),
		stepTimeout:  stepTimeout,
		pollInterval: pollInterval,
	}, nil
}

// Env returns the environment steps run against.
func (e *Executor) Env() *ledger.Environment {
	return e.env
}

// Execute validates and runs one step, returning a short human-readable
// result for steps that produce one. A step whose outcome matches its
// declared expected result is reported as successful, including expected
// failures; cancellation is never treated as an expected failure.
func (e *Executor) Execute(ctx context.Context, step plan.Step) (string, error) {
	if err := step.Validate(); err != nil {
		return "", err
	}

	e.lggr.Debugw("Executing step", "type", step.Type, "order", step.Order, "name", step.Name)

	var (
		result string
		err    error
	)
	switch step.Type {
	case plan.StepTypeInstruction:
		result, err = e.runInstruction(ctx, step.Instruction)
	case plan.StepTypeAssertion:
		err = e.runAssertion(step.Assertion)
	case plan.StepTypeTimeTravel:
		err = e.runTimeTravel(ctx, step.TimeTravel)
	case plan.StepTypeAccountOverride:
		err = e.runOverride(ctx, step.Override)
	case plan.StepTypeWait:
		err = e.runWait(ctx, step.Wait)
	default:
		err = fmt.Errorf("%w %q", plan.ErrUnknownStepType, step.Type)
	}

	if errors.Is(err, context.Canceled) {
		return "", err
	}

	if merr := matchExpected(step.ExpectedResult, err); merr != nil {
		return "", merr
	}
	if err != nil {
		result = "failed as expected: " + err.Error()
	}

	return result, nil
}

// matchExpected reconciles a step's outcome with its declared expected
// result.
func matchExpected(expected *plan.ExpectedResult, err error) error {
	if expected == nil || expected.Status != "failed" {
		return err
	}

	if err == nil {
		return errors.New("step was expected to fail but completed")
	}
	if expected.ErrorContains != "" && !strings.Contains(err.Error(), expected.ErrorContains) {
		return fmt.Errorf("step failed with %q, expected the message to contain %q",
			err.Error(), expected.ErrorContains)
	}

	return nil
}

// runInstruction submits one transaction and records the post-state of every
// referenced account that changed.
func (e *Executor) runInstruction(ctx context.Context, p *plan.InstructionPayload) (string, error) {
	timeout := p.Timeout.Std()
	if timeout <= 0 {
		timeout = e.stepTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	metas := make(solana.AccountMetaSlice, 0, len(p.Accounts))
	for _, ref := range p.Accounts {
		metas = append(metas, &solana.AccountMeta{
			PublicKey:  ref.Address,
			IsWritable: ref.Writable,
			IsSigner:   ref.Signer,
		})
	}

	req := &ledger.TransactionRequest{
		Instructions: []solana.Instruction{solana.NewInstruction(p.ProgramID, metas, p.Data)},
	}

	sig, slot, err := e.env.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: confirmation did not arrive within %s", ErrTimeout, timeout)
		}

		return "", err
	}
	e.recordTransaction(sig, slot)

	for _, ref := range p.Accounts {
		snap, qerr := e.env.Query(ctx, ref.Address)
		if errors.Is(qerr, ledger.ErrAccountNotFound) {
			continue
		}
		if qerr != nil {
			return "", qerr
		}

		key := e.key(ref.Address)
		if cur, rerr := e.store.Read(key, nil); rerr == nil && cur.Equal(snap) {
			continue
		}
		if _, aerr := e.store.Apply(key, snap, slot, &sig); aerr != nil {
			return "", aerr
		}
	}

	return fmt.Sprintf("%s confirmed at slot %d", sig, slot), nil
}

// recordTransaction tracks a confirmed submission in the transaction store,
// walking the pending to confirmed lifecycle. Record-keeping never fails the
// step.
func (e *Executor) recordTransaction(sig solana.Signature, slot uint64) {
	if e.txs == nil {
		return
	}

	record := datastore.TransactionRecord{
		Project:     e.env.Project(),
		Environment: e.env.Name(),
		Signature:   sig,
		Slot:        slot,
		Status:      datastore.TransactionStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := e.txs.Add(record); err != nil {
		e.lggr.Warnw("Failed to record transaction", "signature", sig, "err", err)

		return
	}
	if err := e.txs.UpdateStatus(record.Key(), datastore.TransactionStatusConfirmed); err != nil {
		e.lggr.Warnw("Failed to confirm transaction record", "signature", sig, "err", err)
	}
}

// runAssertion reads a snapshot from the store and checks every expectation
// with exact equality. Both sides are compared as compacted JSON so integer
// fields never pass through floats.
func (e *Executor) runAssertion(p *plan.AssertionPayload) error {
	snap, err := e.store.Read(e.key(p.Address), p.AtSlot)
	if err != nil {
		return err
	}

	schema := e.schemaFor(p.Address)
	for _, exp := range p.Expect {
		actual, err := diff.ExtractField(snap, schema, exp.Field)
		if err != nil {
			return err
		}

		actualJSON, err := json.Marshal(actual)
		if err != nil {
			return fmt.Errorf("encoding field %q: %w", exp.Field, err)
		}

		if !jsonEqual(exp.Equals, actualJSON) {
			return &AssertionMismatchError{
				Field:    exp.Field,
				Expected: compactJSON(exp.Equals),
				Actual:   string(actualJSON),
			}
		}
	}

	return nil
}

// runTimeTravel rewinds the environment and resyncs every known account's
// store state to the post-rewind ledger view.
func (e *Executor) runTimeTravel(ctx context.Context, p *plan.TimeTravelPayload) error {
	if err := e.env.Rewind(ctx, p.TargetSlot); err != nil {
		return err
	}

	for _, key := range e.store.Keys(e.env.Project(), e.env.Name()) {
		snap, err := e.env.Query(ctx, key.Address)
		switch {
		case errors.Is(err, ledger.ErrAccountNotFound):
			if _, aerr := e.store.ApplyRewind(key, nil, p.TargetSlot); aerr != nil {
				return aerr
			}
		case err != nil:
			return err
		default:
			if _, aerr := e.store.ApplyRewind(key, &snap, p.TargetSlot); aerr != nil {
				return aerr
			}
		}
	}

	return nil
}

// runOverride injects a synthetic snapshot into the ledger and records it in
// the store at the environment's current slot.
func (e *Executor) runOverride(ctx context.Context, p *plan.OverridePayload) error {
	slot, err := e.env.CurrentSlot(ctx)
	if err != nil {
		return err
	}

	snap := account.Snapshot{
		Address:  p.Address,
		Lamports: p.Lamports,
		Owner:    p.Owner,
		Data:     p.Data,
		Slot:     slot,
	}

	if err := e.env.SetAccount(ctx, p.Address, snap); err != nil {
		return err
	}

	_, err = e.store.ApplyOverride(e.key(p.Address), snap, slot)

	return err
}

// runWait suspends for a fixed duration, or polls a condition until it holds
// or the timeout expires.
func (e *Executor) runWait(ctx context.Context, p *plan.WaitPayload) error {
	if p.Until == nil {
		timer := time.NewTimer(p.Duration.Std())
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	interval := p.PollInterval.Std()
	if interval <= 0 {
		interval = e.pollInterval
	}
	timeout := p.Timeout.Std()
	if timeout <= 0 {
		timeout = e.stepTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := e.conditionMet(ctx, p.Until)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: condition not met within %s", ErrTimeout, timeout)
			}

			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: condition not met within %s", ErrTimeout, timeout)
			}

			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// conditionMet evaluates a wait predicate against the live ledger state. An
// absent account never satisfies the predicate, it only means not yet.
func (e *Executor) conditionMet(ctx context.Context, c *plan.WaitCondition) (bool, error) {
	snap, err := e.env.Query(ctx, c.Address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	field := c.Field
	if field == "" {
		field = diff.FieldLamports
	}

	actual, err := diff.ExtractField(snap, e.schemaFor(c.Address), field)
	if err != nil {
		return false, err
	}

	if c.AtLeast != nil {
		v, ok := asUint64(actual)
		if !ok {
			return false, fmt.Errorf("field %q is not numeric", field)
		}

		return v >= *c.AtLeast, nil
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		return false, err
	}

	return jsonEqual(c.Equals, actualJSON), nil
}

func (e *Executor) key(address solana.PublicKey) account.Key {
	return account.NewKey(e.env.Project(), e.env.Name(), address)
}

func (e *Executor) schemaFor(address solana.PublicKey) diff.Schema {
	if e.schema == nil {
		return nil
	}

	return e.schema(address)
}

// jsonEqual compares two JSON values by their compacted encodings.
func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return false
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}

	return ca.String() == cb.String()
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}

	return buf.String()
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}

		return uint64(n), true
	default:
		return 0, false
	}
}
