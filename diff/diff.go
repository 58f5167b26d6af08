// Package diff computes field-level deltas between two snapshots of the same
// account. Diffing is a pure function of its inputs: identical snapshot pairs
// always produce an identical ChangeSet, which makes change sets safe to
// cache and to compare in test assertions.
package diff

import (
	"bytes"
	"encoding/base64"
	"errors"
	"sort"

	"github.com/solharness/solharness/account"
)

// Built-in field names present on every account, independent of any schema.
const (
	FieldLamports = "lamports"
	FieldOwner    = "owner"
	FieldData     = "data"
)

// ErrUnknownField is returned when a field name resolves neither to a
// built-in field nor to a schema entry.
var ErrUnknownField = errors.New("unknown field")

// FieldChange holds the before and after values of a single field. A nil Old
// means the account did not exist before; a nil New means it no longer does.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ChangeSet maps field names to their observed changes. Only fields whose
// values actually differ appear in the set.
type ChangeSet map[string]FieldChange

// Empty returns true if no field changed.
func (c ChangeSet) Empty() bool {
	return len(c) == 0
}

// Fields returns the changed field names in lexical order.
func (c ChangeSet) Fields() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Diff compares two snapshots of the same account and returns the set of
// changed fields. Either side may be nil to represent a non-existent account.
//
// Lamports and owner are always compared directly. Account data is compared
// per schema field when a schema is supplied; otherwise any byte difference
// is reported as a single opaque "data" change.
func Diff(prev, next *account.Snapshot, schema Schema) ChangeSet {
	changes := ChangeSet{}
	if prev == nil && next == nil {
		return changes
	}

	oldLamports, newLamports := lamportsOf(prev), lamportsOf(next)
	if oldLamports != newLamports {
		changes[FieldLamports] = FieldChange{Old: oldLamports, New: newLamports}
	}

	oldOwner, newOwner := ownerOf(prev), ownerOf(next)
	if oldOwner != newOwner {
		changes[FieldOwner] = FieldChange{Old: oldOwner, New: newOwner}
	}

	diffData(changes, prev, next, schema)

	return changes
}

// diffData records data changes into the change set, either per schema field
// or as one opaque blob entry.
func diffData(changes ChangeSet, prev, next *account.Snapshot, schema Schema) {
	oldData, newData := dataOf(prev), dataOf(next)

	if len(schema) == 0 {
		if !bytes.Equal(oldData, newData) {
			changes[FieldData] = FieldChange{Old: encodeData(oldData), New: encodeData(newData)}
		}

		return
	}

	for _, f := range schema {
		oldVal := decodeSide(prev, f)
		newVal := decodeSide(next, f)
		if oldVal != newVal {
			changes[f.Name] = FieldChange{Old: oldVal, New: newVal}
		}
	}
}

func decodeSide(snap *account.Snapshot, f Field) any {
	if snap == nil {
		return nil
	}

	return f.decode(snap.Data)
}

func lamportsOf(snap *account.Snapshot) any {
	if snap == nil {
		return nil
	}

	return snap.Lamports
}

func ownerOf(snap *account.Snapshot) any {
	if snap == nil {
		return nil
	}

	return snap.Owner.String()
}

func dataOf(snap *account.Snapshot) []byte {
	if snap == nil {
		return nil
	}

	return snap.Data
}

// encodeData renders opaque account data for a change set or field
// extraction. Base64 matches the ledger RPC wire encoding for account data.
func encodeData(data any) any {
	raw, ok := data.([]byte)
	if !ok || raw == nil {
		return nil
	}

	return base64.StdEncoding.EncodeToString(raw)
}
