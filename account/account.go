// Package account defines the identity and snapshot types shared by the
// state store, the diff engine and the ledger environment.
package account

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Key uniquely identifies an account within a project and environment.
type Key struct {
	Project     string           `json:"project"`
	Environment string           `json:"environment"`
	Address     solana.PublicKey `json:"address"`
}

// NewKey creates a new Key instance.
func NewKey(project, environment string, address solana.PublicKey) Key {
	return Key{
		Project:     project,
		Environment: environment,
		Address:     address,
	}
}

// Equals returns true if the two Key instances identify the same account.
func (k Key) Equals(other Key) bool {
	return k.Project == other.Project &&
		k.Environment == other.Environment &&
		k.Address.Equals(other.Address)
}

// String returns a string representation of the Key.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Project, k.Environment, k.Address)
}

// Snapshot is the full observable state of one account at a specific slot.
type Snapshot struct {
	Address  solana.PublicKey `json:"address"`
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Data     []byte           `json:"data,omitempty"`
	// Slot is the slot at which this state was observed.
	Slot uint64 `json:"slot"`
}

// Clone returns a deep copy of the Snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Data != nil {
		out.Data = bytes.Clone(s.Data)
	}

	return out
}

// Equal reports whether two snapshots hold identical account state. The
// observation slot is not part of the comparison.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.Address.Equals(other.Address) &&
		s.Lamports == other.Lamports &&
		s.Owner.Equals(other.Owner) &&
		bytes.Equal(s.Data, other.Data)
}
