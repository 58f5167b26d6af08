// Package ledger wraps one programmable ledger environment behind a
// lifecycle state machine. The concrete validator process is external: it is
// consumed through the Client interface and the optional capability
// interfaces for slot control, rewind and account injection.
package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/solharness/solharness/account"
)

// TransactionRequest is one transaction to submit, already reduced to its
// instructions. Signing is the client's concern.
type TransactionRequest struct {
	Instructions []solana.Instruction
}

// Client is the interface the harness consumes from a ledger/validator
// implementation.
type Client interface {
	// Submit sends a transaction and blocks until it is confirmed or
	// rejected, returning the signature and the slot it landed in. Submission
	// failures are never retried inside the client.
	Submit(ctx context.Context, req *TransactionRequest) (solana.Signature, uint64, error)

	// GetAccount returns the account's current state, or ErrAccountNotFound.
	GetAccount(ctx context.Context, address solana.PublicKey) (account.Snapshot, error)

	// CurrentSlot returns the ledger's current slot.
	CurrentSlot(ctx context.Context) (uint64, error)
}

// SlotAdvancer is implemented by clients that control slot production.
type SlotAdvancer interface {
	// AdvanceSlots advances the ledger by n slots and returns the new slot.
	AdvanceSlots(ctx context.Context, n uint64) (uint64, error)
}

// Rewinder is implemented by clients whose observable state can be reset to
// an earlier slot.
type Rewinder interface {
	// RewindToSlot destructively resets ledger-visible state to the target slot.
	RewindToSlot(ctx context.Context, slot uint64) error
}

// AccountSetter is implemented by clients that accept direct account state
// injection, used by account overrides to plant test fixtures.
type AccountSetter interface {
	SetAccount(ctx context.Context, address solana.PublicKey, snap account.Snapshot) error
}
