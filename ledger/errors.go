package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound is returned by Query when the ledger holds no
	// account at the address.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUnsupportedOperation is returned when the environment's client does
	// not implement the requested capability (slot control, rewind, account
	// injection).
	ErrUnsupportedOperation = errors.New("operation not supported by this environment")

	// ErrInvalidTarget is returned when a rewind targets a slot beyond the
	// environment's current slot. This is a caller bug and fails loudly.
	ErrInvalidTarget = errors.New("rewind target exceeds current slot")
)

// EnvironmentError reports a lifecycle transition failure. It is fatal to
// the execution unless an external supervisor retries.
type EnvironmentError struct {
	Name string
	From Status
	To   Status
	Err  error
}

func (e *EnvironmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("environment %s: transition %s -> %s: %v", e.Name, e.From, e.To, e.Err)
	}

	return fmt.Sprintf("environment %s: illegal transition %s -> %s", e.Name, e.From, e.To)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// LedgerError wraps a submission or query failure reported by the underlying
// client.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// TransactionRejectedError carries the ledger-reported reason for a rejected
// transaction.
type TransactionRejectedError struct {
	Reason string
}

func (e *TransactionRejectedError) Error() string {
	return fmt.Sprintf("transaction rejected: %s", e.Reason)
}
