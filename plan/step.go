package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// StepType identifies which member of the step payload union is populated.
// The union is closed: a document carrying any other type fails validation.
type StepType string

const (
	StepTypeInstruction     StepType = "instruction"
	StepTypeAssertion       StepType = "assertion"
	StepTypeTimeTravel      StepType = "time_travel"
	StepTypeAccountOverride StepType = "account_override"
	StepTypeWait            StepType = "wait"
)

// stepTypes is the closed set of valid step types.
var stepTypes = map[StepType]struct{}{
	StepTypeInstruction:     {},
	StepTypeAssertion:       {},
	StepTypeTimeTravel:      {},
	StepTypeAccountOverride: {},
	StepTypeWait:            {},
}

// ErrUnknownStepType is returned for a step type outside the closed union.
var ErrUnknownStepType = errors.New("unknown step type")

// Step is one entry of a plan's setup, steps or cleanup list. Exactly one
// payload field matching Type must be set.
type Step struct {
	// Order defines the step's position within its list: strictly increasing,
	// gaps allowed, duplicates not.
	Order int      `json:"order"`
	Name  string   `json:"name,omitempty"`
	Type  StepType `json:"type"`

	Instruction *InstructionPayload `json:"instruction,omitempty"`
	Assertion   *AssertionPayload   `json:"assertion,omitempty"`
	TimeTravel  *TimeTravelPayload  `json:"time_travel,omitempty"`
	Override    *OverridePayload    `json:"account_override,omitempty"`
	Wait        *WaitPayload        `json:"wait,omitempty"`

	// ExpectedResult optionally declares the outcome the step is expected to
	// produce; a step whose outcome matches a declared expected failure is
	// treated as successful.
	ExpectedResult *ExpectedResult `json:"expected_result,omitempty"`
}

// payload returns the populated payload member, or nil.
func (s Step) payload() (any, StepType) {
	switch {
	case s.Instruction != nil:
		return s.Instruction, StepTypeInstruction
	case s.Assertion != nil:
		return s.Assertion, StepTypeAssertion
	case s.TimeTravel != nil:
		return s.TimeTravel, StepTypeTimeTravel
	case s.Override != nil:
		return s.Override, StepTypeAccountOverride
	case s.Wait != nil:
		return s.Wait, StepTypeWait
	default:
		return nil, ""
	}
}

// Validate checks the step's type against the closed union and that exactly
// one matching payload is populated.
func (s Step) Validate() error {
	if _, ok := stepTypes[s.Type]; !ok {
		return fmt.Errorf("step %d: %w %q", s.Order, ErrUnknownStepType, s.Type)
	}

	count := 0
	for _, set := range []bool{
		s.Instruction != nil, s.Assertion != nil, s.TimeTravel != nil, s.Override != nil, s.Wait != nil,
	} {
		if set {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("step %d: exactly one payload is required, found %d", s.Order, count)
	}

	payload, payloadType := s.payload()
	if payloadType != s.Type {
		return fmt.Errorf("step %d: type is %q but payload is %q", s.Order, s.Type, payloadType)
	}

	if v, ok := payload.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return fmt.Errorf("step %d: %w", s.Order, err)
		}
	}

	return nil
}

// AccountRef names one account an instruction reads or writes.
type AccountRef struct {
	Address  solana.PublicKey `json:"address"`
	Writable bool             `json:"writable,omitempty"`
	Signer   bool             `json:"signer,omitempty"`
}

// InstructionPayload builds and submits one transaction, then waits for
// confirmation up to Timeout.
type InstructionPayload struct {
	ProgramID solana.PublicKey `json:"program_id"`
	Accounts  []AccountRef     `json:"accounts"`
	Data      []byte           `json:"data,omitempty"`
	// Timeout bounds the confirmation wait; zero uses the engine default.
	Timeout Duration `json:"timeout,omitempty"`
}

func (p *InstructionPayload) validate() error {
	if p.ProgramID.IsZero() {
		return errors.New("instruction: program_id is required")
	}
	if len(p.Accounts) == 0 {
		return errors.New("instruction: at least one account is required")
	}

	return nil
}

// FieldExpectation asserts exact equality of one extracted field. Equals
// holds the expected value as raw JSON so integer fields compare without
// float precision loss.
type FieldExpectation struct {
	Field  string          `json:"field"`
	Equals json.RawMessage `json:"equals"`
}

// AssertionPayload reads a snapshot and compares extracted fields with exact
// equality. Assertions never mutate state.
type AssertionPayload struct {
	Address solana.PublicKey `json:"address"`
	// AtSlot reads a point-in-time snapshot instead of the current one.
	AtSlot *uint64            `json:"at_slot,omitempty"`
	Expect []FieldExpectation `json:"expect"`
}

func (p *AssertionPayload) validate() error {
	if p.Address.IsZero() {
		return errors.New("assertion: address is required")
	}
	if len(p.Expect) == 0 {
		return errors.New("assertion: at least one expectation is required")
	}
	for _, e := range p.Expect {
		if e.Field == "" {
			return errors.New("assertion: expectation field name is required")
		}
		if len(e.Equals) == 0 {
			return fmt.Errorf("assertion: expectation %q has no expected value", e.Field)
		}
	}

	return nil
}

// TimeTravelPayload rewinds the environment's observable state to TargetSlot.
type TimeTravelPayload struct {
	TargetSlot uint64 `json:"target_slot"`
}

// OverridePayload injects a synthetic account snapshot at the environment's
// current slot, with no transaction.
type OverridePayload struct {
	Address  solana.PublicKey `json:"address"`
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Data     []byte           `json:"data,omitempty"`
}

func (p *OverridePayload) validate() error {
	if p.Address.IsZero() {
		return errors.New("account_override: address is required")
	}

	return nil
}

// WaitCondition is a polling predicate over one account field.
type WaitCondition struct {
	Address solana.PublicKey `json:"address"`
	// Field names a built-in or schema field; defaults to "lamports".
	Field string `json:"field,omitempty"`
	// AtLeast holds when the field's numeric value is >= the bound.
	AtLeast *uint64 `json:"at_least,omitempty"`
	// Equals holds when the field's value is exactly equal (raw JSON).
	Equals json.RawMessage `json:"equals,omitempty"`
}

// WaitPayload suspends the execution for a fixed duration, or until a
// condition holds, re-polling at a fixed interval up to Timeout.
type WaitPayload struct {
	Duration     Duration       `json:"duration,omitempty"`
	Until        *WaitCondition `json:"until,omitempty"`
	PollInterval Duration       `json:"poll_interval,omitempty"`
	Timeout      Duration       `json:"timeout,omitempty"`
}

func (p *WaitPayload) validate() error {
	if p.Duration <= 0 && p.Until == nil {
		return errors.New("wait: either duration or until is required")
	}
	if p.Until != nil {
		if p.Until.Address.IsZero() {
			return errors.New("wait: until.address is required")
		}
		if p.Until.AtLeast == nil && len(p.Until.Equals) == 0 {
			return errors.New("wait: until requires at_least or equals")
		}
		if p.Timeout <= 0 {
			return errors.New("wait: timeout is required with until")
		}
	}

	return nil
}

// ExpectedResult declares the outcome a step is expected to produce.
type ExpectedResult struct {
	// Status is "completed" or "failed".
	Status string `json:"status"`
	// ErrorContains optionally requires the failure message to contain the
	// given substring.
	ErrorContains string `json:"error_contains,omitempty"`
}

// Duration is a time.Duration that marshals to and from JSON as a string
// such as "30s" or "1m30s".
type Duration time.Duration

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)

	return nil
}
