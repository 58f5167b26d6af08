package datastore

import (
	"time"
)

// ExecutionKey is the primary key of an ExecutionRecord.
type ExecutionKey struct {
	id string
}

// NewExecutionKey creates a new ExecutionKey.
func NewExecutionKey(id string) ExecutionKey {
	return ExecutionKey{id: id}
}

// ID returns the execution ID.
func (k ExecutionKey) ID() string { return k.id }

// Equals returns true if the two keys are equal, false otherwise.
func (k ExecutionKey) Equals(other ExecutionKey) bool {
	return k.id == other.id
}

// ExecutionRecord is the persisted summary of one plan execution.
type ExecutionRecord struct {
	ID          string `json:"id"`
	PlanName    string `json:"planName"`
	PlanVersion string `json:"planVersion"`
	Project     string `json:"project"`
	Environment string `json:"environment"`
	Status      string `json:"status"`

	TotalSteps     int `json:"totalSteps"`
	CompletedSteps int `json:"completedSteps"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a copy of the ExecutionRecord.
func (r ExecutionRecord) Clone() ExecutionRecord {
	clone := r
	if r.CompletedAt != nil {
		completedAt := *r.CompletedAt
		clone.CompletedAt = &completedAt
	}

	return clone
}

// Key returns the ExecutionKey for the ExecutionRecord.
func (r ExecutionRecord) Key() ExecutionKey {
	return NewExecutionKey(r.ID)
}

// StepKey is the composite primary key of a StepRecord: the owning execution
// plus the step's phase and order.
type StepKey struct {
	executionID string
	phase       string
	order       int
}

// NewStepKey creates a new StepKey.
func NewStepKey(executionID, phase string, order int) StepKey {
	return StepKey{executionID: executionID, phase: phase, order: order}
}

// ExecutionID returns the owning execution's ID.
func (k StepKey) ExecutionID() string { return k.executionID }

// Phase returns the phase component of the key.
func (k StepKey) Phase() string { return k.phase }

// Order returns the order component of the key.
func (k StepKey) Order() int { return k.order }

// Equals returns true if the two keys are equal, false otherwise.
func (k StepKey) Equals(other StepKey) bool {
	return k.executionID == other.executionID &&
		k.phase == other.phase &&
		k.order == other.order
}

// StepRecord is the persisted outcome of one executed step.
type StepRecord struct {
	ExecutionID string `json:"executionId"`
	Phase       string `json:"phase"`
	Order       int    `json:"order"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type"`
	Status      string `json:"status"`

	StartedAt       *time.Time `json:"startedAt,omitempty"`
	ExecutionTimeMS int64      `json:"executionTimeMs"`
	Result          string     `json:"result,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
}

// Clone returns a copy of the StepRecord.
func (r StepRecord) Clone() StepRecord {
	clone := r
	if r.StartedAt != nil {
		startedAt := *r.StartedAt
		clone.StartedAt = &startedAt
	}

	return clone
}

// Key returns the StepKey for the StepRecord.
func (r StepRecord) Key() StepKey {
	return NewStepKey(r.ExecutionID, r.Phase, r.Order)
}
