package statestore

import (
	"errors"
	"fmt"

	"github.com/solharness/solharness/account"
)

var (
	// ErrNotFound is returned when no snapshot exists for an account at the
	// requested point in time.
	ErrNotFound = errors.New("account state not found")

	// ErrOutOfOrderSlot is returned when an apply targets a slot earlier than
	// the account's current slot pointer. This is a caller bug: only the
	// rewind path may move state backward.
	ErrOutOfOrderSlot = errors.New("slot is not after the account's current slot")

	// ErrAccountFrozen is returned when an apply targets a frozen account.
	ErrAccountFrozen = errors.New("account is frozen")
)

// StateConflictError reports a slot collision: two writers produced state for
// the same account at the same slot. Exactly one history entry exists for the
// slot; the losing writer receives this error with both values attached.
type StateConflictError struct {
	Key      account.Key
	Slot     uint64
	Existing account.Snapshot
	Incoming account.Snapshot
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf(
		"state conflict for %s at slot %d: existing lamports=%d, incoming lamports=%d",
		e.Key, e.Slot, e.Existing.Lamports, e.Incoming.Lamports,
	)
}
