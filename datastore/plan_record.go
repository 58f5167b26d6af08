package datastore

import (
	"encoding/json"
	"time"
)

// PlanKey is the composite primary key of a PlanRecord: a plan name plus its
// semantic version string.
type PlanKey struct {
	name    string
	version string
}

// NewPlanKey creates a new PlanKey.
func NewPlanKey(name, version string) PlanKey {
	return PlanKey{name: name, version: version}
}

// Name returns the name component of the key.
func (k PlanKey) Name() string { return k.name }

// Version returns the version component of the key.
func (k PlanKey) Version() string { return k.version }

// Equals returns true if the two keys are equal, false otherwise.
func (k PlanKey) Equals(other PlanKey) bool {
	return k.name == other.name && k.version == other.version
}

// PlanRecord is one stored plan document, kept as the raw JSON it was loaded
// from so stored plans round-trip byte-exact.
type PlanRecord struct {
	Name      string          `json:"name"`
	Version   string          `json:"version"`
	Status    string          `json:"status"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Clone returns a copy of the PlanRecord.
func (r PlanRecord) Clone() PlanRecord {
	clone := r
	clone.Document = make(json.RawMessage, len(r.Document))
	copy(clone.Document, r.Document)

	return clone
}

// Key returns the PlanKey for the PlanRecord.
func (r PlanRecord) Key() PlanKey {
	return NewPlanKey(r.Name, r.Version)
}
