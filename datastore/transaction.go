package datastore

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// TransactionStatus is the lifecycle status of a submitted transaction.
// Statuses only move forward: pending to confirmed to finalized, with failed
// reachable from any non-terminal status.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFinalized TransactionStatus = "finalized"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// rank orders the forward progression of statuses. Terminal statuses have no
// successors.
func (s TransactionStatus) rank() int {
	switch s {
	case TransactionStatusPending:
		return 0
	case TransactionStatusConfirmed:
		return 1
	case TransactionStatusFinalized:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a status update from s to next is legal.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	if s == TransactionStatusFinalized || s == TransactionStatusFailed {
		return false
	}
	if next == TransactionStatusFailed {
		return true
	}

	return next.rank() > s.rank()
}

// TransactionKey is the composite primary key of a TransactionRecord.
type TransactionKey struct {
	project     string
	environment string
	signature   solana.Signature
}

// NewTransactionKey creates a new TransactionKey.
func NewTransactionKey(project, environment string, signature solana.Signature) TransactionKey {
	return TransactionKey{
		project:     project,
		environment: environment,
		signature:   signature,
	}
}

// Project returns the project component of the key.
func (k TransactionKey) Project() string { return k.project }

// Environment returns the environment component of the key.
func (k TransactionKey) Environment() string { return k.environment }

// Signature returns the signature component of the key.
func (k TransactionKey) Signature() solana.Signature { return k.signature }

// Equals returns true if the two keys are equal, false otherwise.
func (k TransactionKey) Equals(other TransactionKey) bool {
	return k.project == other.project &&
		k.environment == other.environment &&
		k.signature == other.signature
}

// TransactionRecord is one submitted transaction and its confirmation
// lifecycle.
type TransactionRecord struct {
	Project     string            `json:"project"`
	Environment string            `json:"environment"`
	Signature   solana.Signature  `json:"signature"`
	Slot        uint64            `json:"slot"`
	Status      TransactionStatus `json:"status"`
	SubmittedAt time.Time         `json:"submittedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Clone returns a copy of the TransactionRecord.
func (r TransactionRecord) Clone() TransactionRecord {
	return r
}

// Key returns the TransactionKey for the TransactionRecord.
func (r TransactionRecord) Key() TransactionKey {
	return NewTransactionKey(r.Project, r.Environment, r.Signature)
}
