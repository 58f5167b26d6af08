// Package execution sequences whole plans: setup, then steps, then cleanup,
// delegating individual steps to the executor and aggregating the outcome.
package execution

import (
	"time"

	"github.com/solharness/solharness/plan"
)

// Status is the terminal or in-flight state of one plan execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// StepStatus is the state of one step within an execution.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Phase names which of the plan's three lists a step belongs to.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseSteps   Phase = "steps"
	PhaseCleanup Phase = "cleanup"
)

// StepOutcome is the recorded result of one step.
type StepOutcome struct {
	Phase Phase         `json:"phase"`
	Order int           `json:"order"`
	Name  string        `json:"name,omitempty"`
	Type  plan.StepType `json:"type"`

	Status        StepStatus    `json:"status"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	Result        string        `json:"result,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// Metrics aggregates step outcomes for one execution. It is computed on every
// terminal path, including cancellation.
type Metrics struct {
	ByType          map[plan.StepType]int `json:"by_type"`
	ByStatus        map[StepStatus]int    `json:"by_status"`
	TotalDurationMS int64                 `json:"total_duration_ms"`
}

// Execution is one run of a plan, with per-step outcomes and aggregate
// metrics.
type Execution struct {
	ID          string `json:"id"`
	PlanName    string `json:"plan_name"`
	PlanVersion string `json:"plan_version,omitempty"`
	Project     string `json:"project"`
	Environment string `json:"environment"`

	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	TotalSteps     int `json:"total_steps"`
	CompletedSteps int `json:"completed_steps"`

	Steps   []StepOutcome `json:"steps"`
	Metrics Metrics       `json:"metrics"`
}

// computeMetrics fills the execution's metrics from its step outcomes.
func (e *Execution) computeMetrics() {
	metrics := Metrics{
		ByType:   map[plan.StepType]int{},
		ByStatus: map[StepStatus]int{},
	}

	var total time.Duration
	for _, step := range e.Steps {
		metrics.ByType[step.Type]++
		metrics.ByStatus[step.Status]++
		total += step.ExecutionTime
	}
	metrics.TotalDurationMS = total.Milliseconds()

	e.Metrics = metrics
}
