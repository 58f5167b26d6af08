package plan

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planDocument = `{
	"name": "transfer-smoke",
	"version": "1.2.0",
	"description": "override, transfer, assert",
	"setup": [
		{
			"order": 1,
			"name": "fund source",
			"type": "account_override",
			"account_override": {
				"address": "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
				"lamports": 1000,
				"owner": "11111111111111111111111111111111"
			}
		}
	],
	"steps": [
		{
			"order": 1,
			"name": "transfer",
			"type": "instruction",
			"instruction": {
				"program_id": "11111111111111111111111111111111",
				"accounts": [
					{"address": "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", "writable": true, "signer": true},
					{"address": "4fYNw3dojWmQ4dXtSGE9epjRGy9pFSx62YypT7avPYvA", "writable": true}
				],
				"data": "AgAAAMgAAAAAAAAA",
				"timeout": "30s"
			}
		},
		{
			"order": 2,
			"name": "check balances",
			"type": "assertion",
			"assertion": {
				"address": "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
				"expect": [
					{"field": "lamports", "equals": 800}
				]
			}
		},
		{
			"order": 3,
			"type": "wait",
			"wait": {
				"until": {
					"address": "4fYNw3dojWmQ4dXtSGE9epjRGy9pFSx62YypT7avPYvA",
					"at_least": 200
				},
				"poll_interval": "100ms",
				"timeout": "10s"
			}
		}
	]
}`

func Test_Parse(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(planDocument))
	require.NoError(t, err)

	assert.Equal(t, "transfer-smoke", p.Name)
	assert.Equal(t, "1.2.0", p.Version.String())
	assert.Equal(t, StatusDraft, p.Status)
	assert.True(t, p.FailFast, "fail_fast defaults to true when absent")
	assert.Equal(t, 4, p.TotalSteps())

	require.Len(t, p.Setup, 1)
	require.NotNil(t, p.Setup[0].Override)
	assert.Equal(t, uint64(1000), p.Setup[0].Override.Lamports)

	require.Len(t, p.Steps, 3)
	require.NotNil(t, p.Steps[0].Instruction)
	assert.Equal(t, solana.SystemProgramID, p.Steps[0].Instruction.ProgramID)
	assert.Equal(t, 30*time.Second, p.Steps[0].Instruction.Timeout.Std())
	require.NotNil(t, p.Steps[2].Wait)
	assert.Equal(t, 100*time.Millisecond, p.Steps[2].Wait.PollInterval.Std())
}

func Test_ParseYAML(t *testing.T) {
	t.Parallel()

	doc := `
name: transfer-smoke
version: "1.2.0"
setup:
  - order: 1
    type: account_override
    account_override:
      address: 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
      lamports: 1000
      owner: "11111111111111111111111111111111"
steps:
  - order: 1
    type: instruction
    instruction:
      program_id: "11111111111111111111111111111111"
      accounts:
        - address: 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
          writable: true
          signer: true
        - address: 4fYNw3dojWmQ4dXtSGE9epjRGy9pFSx62YypT7avPYvA
          writable: true
      data: AgAAAMgAAAAAAAAA
      timeout: 30s
  - order: 2
    type: assertion
    assertion:
      address: 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
      expect:
        - field: lamports
          equals: 800
`

	p, err := ParseYAML([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "transfer-smoke", p.Name)
	assert.Equal(t, "1.2.0", p.Version.String())
	assert.True(t, p.FailFast)
	assert.Equal(t, 3, p.TotalSteps())

	require.NotNil(t, p.Steps[0].Instruction)
	assert.Equal(t, transferBytes(200), p.Steps[0].Instruction.Data)
	assert.Equal(t, 30*time.Second, p.Steps[0].Instruction.Timeout.Std())

	require.NotNil(t, p.Steps[1].Assertion)
	assert.Equal(t, json.RawMessage("800"), p.Steps[1].Assertion.Expect[0].Equals)
}

func Test_ParseYAML_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParseYAML([]byte("name: [unclosed"))
	require.ErrorContains(t, err, "failed to parse plan document")
}

// transferBytes is the system transfer instruction data for the given
// lamports.
func transferBytes(lamports uint64) []byte {
	data := make([]byte, 12)
	data[0] = 2
	for i := range 8 {
		data[4+i] = byte(lamports >> (8 * i))
	}

	return data
}

func Test_Parse_FailFastExplicitFalse(t *testing.T) {
	t.Parallel()

	doc := `{
		"name": "continue-on-failure",
		"fail_fast": false,
		"steps": [
			{"order": 1, "type": "time_travel", "time_travel": {"target_slot": 5}}
		]
	}`

	p, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.False(t, p.FailFast)
}

func Test_Plan_Validate(t *testing.T) {
	t.Parallel()

	validStep := func(order int) Step {
		return Step{
			Order:      order,
			Type:       StepTypeTimeTravel,
			TimeTravel: &TimeTravelPayload{TargetSlot: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Plan)
		wantErr string
	}{
		{
			name:   "valid plan",
			mutate: func(*Plan) {},
		},
		{
			name:    "missing name",
			mutate:  func(p *Plan) { p.Name = "" },
			wantErr: "plan name is required",
		},
		{
			name:    "no steps",
			mutate:  func(p *Plan) { p.Steps = nil },
			wantErr: "plan has no steps",
		},
		{
			name: "duplicate step order",
			mutate: func(p *Plan) {
				p.Steps = []Step{validStep(1), validStep(1)}
			},
			wantErr: "order 1 is not after 1",
		},
		{
			name: "decreasing step order",
			mutate: func(p *Plan) {
				p.Steps = []Step{validStep(5), validStep(3)}
			},
			wantErr: "order 3 is not after 5",
		},
		{
			name: "unknown step type",
			mutate: func(p *Plan) {
				p.Steps = []Step{{Order: 1, Type: "teleport", TimeTravel: &TimeTravelPayload{}}}
			},
			wantErr: "unknown step type",
		},
		{
			name: "payload does not match type",
			mutate: func(p *Plan) {
				p.Steps = []Step{{Order: 1, Type: StepTypeWait, TimeTravel: &TimeTravelPayload{}}}
			},
			wantErr: `type is "wait" but payload is "time_travel"`,
		},
		{
			name: "multiple payloads",
			mutate: func(p *Plan) {
				p.Steps = []Step{{
					Order:      1,
					Type:       StepTypeTimeTravel,
					TimeTravel: &TimeTravelPayload{},
					Wait:       &WaitPayload{Duration: Duration(time.Second)},
				}}
			},
			wantErr: "exactly one payload is required",
		},
		{
			name: "invalid setup step",
			mutate: func(p *Plan) {
				p.Setup = []Step{{Order: 1, Type: StepTypeAssertion, Assertion: &AssertionPayload{}}}
			},
			wantErr: "setup: step 1: assertion: address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Plan{
				Name:  "p",
				Steps: []Step{validStep(1), validStep(2)},
			}
			tt.mutate(&p)

			err := p.Validate()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
		})
	}
}

func Test_Step_Validate_Payloads(t *testing.T) {
	t.Parallel()

	addr := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	tests := []struct {
		name    string
		step    Step
		wantErr string
	}{
		{
			name: "instruction without program id",
			step: Step{
				Order:       1,
				Type:        StepTypeInstruction,
				Instruction: &InstructionPayload{Accounts: []AccountRef{{Address: addr}}},
			},
			wantErr: "program_id is required",
		},
		{
			name: "instruction without accounts",
			step: Step{
				Order:       1,
				Type:        StepTypeInstruction,
				Instruction: &InstructionPayload{ProgramID: solana.SystemProgramID},
			},
			wantErr: "at least one account is required",
		},
		{
			name: "assertion without expectations",
			step: Step{
				Order:     1,
				Type:      StepTypeAssertion,
				Assertion: &AssertionPayload{Address: addr},
			},
			wantErr: "at least one expectation is required",
		},
		{
			name: "assertion expectation without value",
			step: Step{
				Order: 1,
				Type:  StepTypeAssertion,
				Assertion: &AssertionPayload{
					Address: addr,
					Expect:  []FieldExpectation{{Field: "lamports"}},
				},
			},
			wantErr: `expectation "lamports" has no expected value`,
		},
		{
			name: "wait without duration or condition",
			step: Step{
				Order: 1,
				Type:  StepTypeWait,
				Wait:  &WaitPayload{},
			},
			wantErr: "either duration or until is required",
		},
		{
			name: "wait condition without timeout",
			step: Step{
				Order: 1,
				Type:  StepTypeWait,
				Wait: &WaitPayload{
					Until: &WaitCondition{Address: addr, AtLeast: uintPtr(1)},
				},
			},
			wantErr: "timeout is required",
		},
		{
			name: "valid wait with duration",
			step: Step{
				Order: 1,
				Type:  StepTypeWait,
				Wait:  &WaitPayload{Duration: Duration(time.Second)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.step.Validate()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
		})
	}
}

func Test_Plan_Ready(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(planDocument))
	require.NoError(t, err)

	require.NoError(t, p.Ready())
	assert.Equal(t, StatusReady, p.Status)

	// Ready is not re-enterable once the plan left draft.
	err = p.Ready()
	require.ErrorContains(t, err, `cannot mark "ready" plan ready`)
}

func Test_Plan_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(planDocument))
	require.NoError(t, err)

	encoded, err := json.Marshal(p)
	require.NoError(t, err)

	decoded, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func Test_Duration_JSON(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Std())

	encoded, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(encoded))

	require.ErrorContains(t, json.Unmarshal([]byte(`"fast"`), &d), "invalid duration")
}

func uintPtr(v uint64) *uint64 { return &v }
