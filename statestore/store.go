// Package statestore provides the versioned record of account snapshots.
//
// Every observed account mutation appends one history entry keyed by
// (account, slot), holding the full snapshot at that slot, the field-level
// change set against the immediately preceding entry, and the causing
// transaction signature when one exists. For a given account, slots strictly
// increase; the sole legitimate way to move an account's slot pointer
// backward is the rewind path used by time travel.
package statestore

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/segmentio/ksuid"

	"github.com/solharness/solharness/account"
	"github.com/solharness/solharness/diff"
)

// OperationType tags the kind of mutation that produced a history entry.
type OperationType string

const (
	// OperationTransaction marks an entry caused by a confirmed ledger
	// transaction.
	OperationTransaction OperationType = "transaction"
	// OperationOverride marks a synthetic entry injected directly by a test,
	// with no ledger round-trip.
	OperationOverride OperationType = "override"
	// OperationRewind marks an entry produced by re-syncing an account after
	// the environment's observable state was rewound to an earlier slot.
	OperationRewind OperationType = "rewind"
)

// HistoryEntry is one append-only record of an observed account mutation.
type HistoryEntry struct {
	ID   string      `json:"id"`
	Key  account.Key `json:"key"`
	Slot uint64      `json:"slot"`
	// Snapshot is the full account state at Slot. A nil snapshot records that
	// the account did not exist at that point (only possible on rewind).
	Snapshot *account.Snapshot `json:"snapshot"`
	// Change is the delta against the immediately preceding entry.
	Change diff.ChangeSet `json:"change"`
	// TxSignature is the causing transaction, nil for synthetic overrides and
	// rewind re-syncs.
	TxSignature *solana.Signature `json:"txSignature,omitempty"`
	Operation   OperationType     `json:"operation"`
	RecordedAt  time.Time         `json:"recordedAt"`
}

// Range bounds a history query. Nil endpoints are unbounded; a zero Limit
// returns all matching entries.
type Range struct {
	FromSlot *uint64
	ToSlot   *uint64
	Limit    int
}

// contains reports whether a slot falls inside the range bounds.
func (r Range) contains(slot uint64) bool {
	if r.FromSlot != nil && slot < *r.FromSlot {
		return false
	}
	if r.ToSlot != nil && slot > *r.ToSlot {
		return false
	}

	return true
}

// Store is an immutable view over versioned account state.
type Store interface {
	// Read returns the latest snapshot at or before atSlot, or the current
	// snapshot when atSlot is nil. An absent account yields ErrNotFound.
	Read(key account.Key, atSlot *uint64) (account.Snapshot, error)

	// History returns the account's history entries inside r, oldest first.
	History(key account.Key, r Range) ([]HistoryEntry, error)

	// Contains reports whether the store holds any state for the account.
	Contains(key account.Key) bool

	// Keys returns every account key known for a project and environment,
	// ordered by address for determinism.
	Keys(project, environment string) []account.Key
}

// MutableStore extends Store with the apply paths. All mutations for one
// account are serialized behind an exclusive per-account lock held only for
// the duration of a single call.
type MutableStore interface {
	Store

	// Apply appends a transaction-caused history entry. The slot must be
	// strictly greater than the account's current slot pointer: an equal slot
	// fails with a *StateConflictError and an earlier slot with
	// ErrOutOfOrderSlot.
	Apply(key account.Key, snap account.Snapshot, slot uint64, causingTx *solana.Signature) (string, error)

	// ApplyOverride appends a synthetic entry with no causing transaction.
	// Slot rules are identical to Apply.
	ApplyOverride(key account.Key, snap account.Snapshot, slot uint64) (string, error)

	// ApplyRewind appends a rewind-tagged entry and is the only path allowed
	// to move the account's slot pointer backward. A nil snapshot records
	// that the account does not exist post-rewind.
	ApplyRewind(key account.Key, snap *account.Snapshot, slot uint64) (string, error)

	// Freeze marks the account as accepting no further mutation.
	Freeze(key account.Key) error

	// Prune deletes the oldest history entries beyond keepLastN and returns
	// the number removed. The entry backing the current snapshot is never
	// deleted.
	Prune(key account.Key, keepLastN int) (int, error)
}

// newEntryID generates a prefixed unique history entry ID.
func newEntryID() string {
	return "ash_" + ksuid.New().String()
}
