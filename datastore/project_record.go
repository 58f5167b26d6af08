package datastore

import (
	"time"
)

// ProjectKey is the primary key of a ProjectRecord.
type ProjectKey struct {
	name string
}

// NewProjectKey creates a new ProjectKey.
func NewProjectKey(name string) ProjectKey {
	return ProjectKey{name: name}
}

// Name returns the name component of the key.
func (k ProjectKey) Name() string { return k.name }

// Equals returns true if the two keys are equal, false otherwise.
func (k ProjectKey) Equals(other ProjectKey) bool {
	return k.name == other.name
}

// ProjectRecord is one registered project. Environments, accounts and
// executions all hang off a project by name.
type ProjectRecord struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a copy of the ProjectRecord.
func (r ProjectRecord) Clone() ProjectRecord {
	return r
}

// Key returns the ProjectKey for the ProjectRecord.
func (r ProjectRecord) Key() ProjectKey {
	return NewProjectKey(r.Name)
}

// EnvironmentKey is the composite primary key of an EnvironmentRecord.
type EnvironmentKey struct {
	project string
	name    string
}

// NewEnvironmentKey creates a new EnvironmentKey.
func NewEnvironmentKey(project, name string) EnvironmentKey {
	return EnvironmentKey{project: project, name: name}
}

// Project returns the project component of the key.
func (k EnvironmentKey) Project() string { return k.project }

// Name returns the name component of the key.
func (k EnvironmentKey) Name() string { return k.name }

// Equals returns true if the two keys are equal, false otherwise.
func (k EnvironmentKey) Equals(other EnvironmentKey) bool {
	return k.project == other.project && k.name == other.name
}

// EnvironmentRecord is one registered environment within a project.
type EnvironmentRecord struct {
	Project string `json:"project"`
	Name    string `json:"name"`
	// Kind is the environment kind: local, fork, testnet or devnet.
	Kind string `json:"kind"`
	// ForkSlot is the origin slot for fork environments, nil otherwise.
	ForkSlot  *uint64   `json:"forkSlot,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a copy of the EnvironmentRecord.
func (r EnvironmentRecord) Clone() EnvironmentRecord {
	clone := r
	if r.ForkSlot != nil {
		slot := *r.ForkSlot
		clone.ForkSlot = &slot
	}

	return clone
}

// Key returns the EnvironmentKey for the EnvironmentRecord.
func (r EnvironmentRecord) Key() EnvironmentKey {
	return NewEnvironmentKey(r.Project, r.Name)
}
