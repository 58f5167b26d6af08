// Package plan defines the declarative test plan document: ordered steps
// with setup and cleanup blocks, exchanged as JSON. Step payloads form a
// closed tagged union per step type so handlers can match them exhaustively
// at compile time.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Status is the lifecycle state of a plan. A plan is mutable while draft and
// immutable once ready.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrPlanNotReady is returned when an execution is requested for a plan that
// has not been marked ready.
var ErrPlanNotReady = errors.New("plan is not ready")

// Plan is a declarative test plan: setup accounts, ordered steps, cleanup.
type Plan struct {
	Name        string          `json:"name"`
	Version     *semver.Version `json:"version,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      Status          `json:"status,omitempty"`

	// FailFast aborts remaining steps on the first failure. Defaults to true
	// when absent from the document.
	FailFast bool `json:"fail_fast"`

	Setup   []Step `json:"setup,omitempty"`
	Steps   []Step `json:"steps"`
	Cleanup []Step `json:"cleanup,omitempty"`
}

// planDoc mirrors Plan for JSON decoding, with a pointer FailFast so an
// absent field can default to true.
type planDoc struct {
	Name        string          `json:"name"`
	Version     *semver.Version `json:"version,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      Status          `json:"status,omitempty"`
	FailFast    *bool           `json:"fail_fast"`
	Setup       []Step          `json:"setup,omitempty"`
	Steps       []Step          `json:"steps"`
	Cleanup     []Step          `json:"cleanup,omitempty"`
}

// UnmarshalJSON decodes a plan document, defaulting fail_fast to true and
// status to draft.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var doc planDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	failFast := true
	if doc.FailFast != nil {
		failFast = *doc.FailFast
	}
	status := doc.Status
	if status == "" {
		status = StatusDraft
	}

	*p = Plan{
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
		Status:      status,
		FailFast:    failFast,
		Setup:       doc.Setup,
		Steps:       doc.Steps,
		Cleanup:     doc.Cleanup,
	}

	return nil
}

// Parse decodes and validates a plan document.
func Parse(data []byte) (Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("failed to parse plan document: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}

	return p, nil
}

// ParseYAML decodes and validates a YAML plan document. The document is
// converted to JSON first so both formats share one schema, including
// base64-encoded instruction data.
func ParseYAML(data []byte) (Plan, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Plan{}, fmt.Errorf("failed to parse plan document: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to parse plan document: %w", err)
	}

	return Parse(raw)
}

// Validate checks the plan document: a name, at least one step, and valid,
// strictly ordered steps in each block.
func (p Plan) Validate() error {
	if p.Name == "" {
		return errors.New("plan name is required")
	}
	if len(p.Steps) == 0 {
		return errors.New("plan has no steps")
	}

	if err := validateSteps(p.Setup); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := validateSteps(p.Steps); err != nil {
		return fmt.Errorf("steps: %w", err)
	}
	if err := validateSteps(p.Cleanup); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	return nil
}

// validateSteps checks each step and the strictly increasing order invariant.
func validateSteps(steps []Step) error {
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return err
		}
		if i > 0 && step.Order <= steps[i-1].Order {
			return fmt.Errorf("step order %d is not after %d", step.Order, steps[i-1].Order)
		}
	}

	return nil
}

// Ready validates the plan and transitions it from draft to ready, after
// which it must not be modified.
func (p *Plan) Ready() error {
	if p.Status != "" && p.Status != StatusDraft {
		return fmt.Errorf("cannot mark %q plan ready", p.Status)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.Status = StatusReady

	return nil
}

// TotalSteps returns the number of steps across all blocks.
func (p Plan) TotalSteps() int {
	return len(p.Setup) + len(p.Steps) + len(p.Cleanup)
}
