package execution_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/solharness/solharness/datastore"
	"github.com/solharness/solharness/execution"
	"github.com/solharness/solharness/executor"
	"github.com/solharness/solharness/ledger"
	"github.com/solharness/solharness/ledger/sim"
	"github.com/solharness/solharness/pkg/logger"
	"github.com/solharness/solharness/plan"
	"github.com/solharness/solharness/statestore"
)

var (
	alice = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	bob   = solana.MustPublicKeyFromBase58("4fYNw3dojWmQ4dXtSGE9epjRGy9pFSx62YypT7avPYvA")
)

type fixture struct {
	orch  *execution.Orchestrator
	store *statestore.MemoryStore
	ds    *datastore.MemoryDataStore
}

func newFixture(t *testing.T, lggr logger.Logger, opts ...sim.Option) *fixture {
	t.Helper()

	if lggr == nil {
		lggr = logger.Test(t)
	}

	env, err := ledger.New(ledger.Config{
		Project: "proj",
		Name:    "env",
		Kind:    ledger.KindLocal,
		Client:  sim.New(opts...),
		Logger:  lggr,
	})
	require.NoError(t, err)
	require.NoError(t, env.Start(t.Context()))

	store := statestore.NewMemoryStore()
	exec, err := executor.New(executor.Config{Store: store, Env: env, Logger: lggr})
	require.NoError(t, err)

	ds := datastore.NewMemoryDataStore()
	orch, err := execution.New(execution.Config{Executor: exec, Datastore: ds, Logger: lggr})
	require.NoError(t, err)

	return &fixture{orch: orch, store: store, ds: ds}
}

func transferData(lamports uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return data
}

func transferStep(order int, lamports uint64) plan.Step {
	return plan.Step{
		Order: order,
		Name:  "transfer",
		Type:  plan.StepTypeInstruction,
		Instruction: &plan.InstructionPayload{
			ProgramID: solana.SystemProgramID,
			Accounts: []plan.AccountRef{
				{Address: alice, Writable: true, Signer: true},
				{Address: bob, Writable: true},
			},
			Data: transferData(lamports),
		},
	}
}

func assertLamports(order int, address solana.PublicKey, lamports string) plan.Step {
	return plan.Step{
		Order: order,
		Name:  "check balance",
		Type:  plan.StepTypeAssertion,
		Assertion: &plan.AssertionPayload{
			Address: address,
			Expect:  []plan.FieldExpectation{{Field: "lamports", Equals: json.RawMessage(lamports)}},
		},
	}
}

func overrideStep(order int, address solana.PublicKey, lamports uint64) plan.Step {
	return plan.Step{
		Order: order,
		Name:  "seed account",
		Type:  plan.StepTypeAccountOverride,
		Override: &plan.OverridePayload{
			Address:  address,
			Lamports: lamports,
			Owner:    solana.SystemProgramID,
		},
	}
}

func readyPlan(t *testing.T, p plan.Plan) *plan.Plan {
	t.Helper()

	p.Status = plan.StatusReady

	return &p
}

func Test_Orchestrator_Run_Completed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	p := readyPlan(t, plan.Plan{
		Name:     "transfer-flow",
		FailFast: true,
		Setup:    []plan.Step{overrideStep(1, alice, 1000)},
		Steps: []plan.Step{
			transferStep(1, 200),
			assertLamports(2, alice, "800"),
			assertLamports(3, bob, "200"),
		},
		Cleanup: []plan.Step{{
			Order: 1,
			Type:  plan.StepTypeWait,
			Wait:  &plan.WaitPayload{Duration: plan.Duration(time.Millisecond)},
		}},
	})

	exec, err := f.orch.Run(t.Context(), p)
	require.NoError(t, err)

	assert.Equal(t, execution.StatusCompleted, exec.Status)
	assert.Equal(t, 5, exec.TotalSteps)
	assert.Equal(t, 5, exec.CompletedSteps)
	require.NotNil(t, exec.CompletedAt)

	assert.Equal(t, 5, exec.Metrics.ByStatus[execution.StepStatusCompleted])
	assert.Equal(t, 1, exec.Metrics.ByType[plan.StepTypeInstruction])
	assert.Equal(t, 2, exec.Metrics.ByType[plan.StepTypeAssertion])

	// The run is persisted with every step terminal.
	record, err := f.ds.Executions().Get(datastore.NewExecutionKey(exec.ID))
	require.NoError(t, err)
	assert.Equal(t, string(execution.StatusCompleted), record.Status)
	assert.Equal(t, 5, record.CompletedSteps)

	steps := f.ds.Steps().Filter(datastore.StepsByExecution(exec.ID))
	require.Len(t, steps, 5)
	for _, step := range steps {
		assert.Equal(t, string(execution.StepStatusCompleted), step.Status)
	}

	// The instruction step carries its confirmation as the result, in both
	// the outcome and the persisted record.
	transfer := exec.Steps[1]
	assert.Contains(t, transfer.Result, "confirmed at slot")
	persisted := f.ds.Steps().Filter(datastore.StepsByExecution(exec.ID),
		datastore.StepsByType(string(plan.StepTypeInstruction)))
	require.Len(t, persisted, 1)
	assert.Contains(t, persisted[0].Result, "confirmed at slot")
}

func Test_Orchestrator_Run_FailFast(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	p := readyPlan(t, plan.Plan{
		Name:     "failing-flow",
		FailFast: true,
		Setup:    []plan.Step{overrideStep(1, alice, 10)},
		Steps: []plan.Step{
			transferStep(1, 200), // insufficient funds
			assertLamports(2, alice, "10"),
			assertLamports(3, bob, "200"),
		},
		Cleanup: []plan.Step{assertLamports(1, alice, "10")},
	})

	exec, err := f.orch.Run(t.Context(), p)
	require.NoError(t, err)

	assert.Equal(t, execution.StatusFailed, exec.Status)
	// Setup and cleanup completed, the failing step failed, the rest were
	// skipped.
	assert.Equal(t, 2, exec.CompletedSteps)
	assert.Equal(t, 1, exec.Metrics.ByStatus[execution.StepStatusFailed])
	assert.Equal(t, 2, exec.Metrics.ByStatus[execution.StepStatusSkipped])

	failedStep := exec.Steps[1]
	assert.Equal(t, execution.StepStatusFailed, failedStep.Status)
	assert.Contains(t, failedStep.ErrorMessage, "insufficient funds")

	// Cleanup ran despite the failure.
	cleanup := exec.Steps[len(exec.Steps)-1]
	assert.Equal(t, execution.PhaseCleanup, cleanup.Phase)
	assert.Equal(t, execution.StepStatusCompleted, cleanup.Status)
}

func Test_Orchestrator_Run_NoFailFast(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	p := readyPlan(t, plan.Plan{
		Name:     "keep-going-flow",
		FailFast: false,
		Setup:    []plan.Step{overrideStep(1, alice, 1000)},
		Steps: []plan.Step{
			assertLamports(1, alice, "999"), // fails
			transferStep(2, 200),            // still runs
			assertLamports(3, bob, "200"),
		},
	})

	exec, err := f.orch.Run(t.Context(), p)
	require.NoError(t, err)

	assert.Equal(t, execution.StatusFailed, exec.Status)
	assert.Equal(t, 3, exec.CompletedSteps)
	assert.Equal(t, 1, exec.Metrics.ByStatus[execution.StepStatusFailed])
	assert.Zero(t, exec.Metrics.ByStatus[execution.StepStatusSkipped])
}

func Test_Orchestrator_Run_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, sim.WithAccount(alice, 1000, solana.SystemProgramID, nil))

	p := readyPlan(t, plan.Plan{
		Name:     "cancelled-flow",
		FailFast: true,
		Steps: []plan.Step{
			transferStep(1, 200),
			assertLamports(2, alice, "800"),
		},
		Cleanup: []plan.Step{assertLamports(1, alice, "800")},
	})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	exec, err := f.orch.Run(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, execution.StatusCancelled, exec.Status)
	assert.Equal(t, 2, exec.Metrics.ByStatus[execution.StepStatusSkipped])

	// Cleanup still ran on a detached context, but the assertion fails since
	// the transfer never happened.
	cleanup := exec.Steps[len(exec.Steps)-1]
	assert.Equal(t, execution.StepStatusFailed, cleanup.Status)

	// Terminal aggregation happens on cancellation too.
	require.NotNil(t, exec.CompletedAt)
	assert.Equal(t, 3, len(exec.Steps))
}

func Test_Orchestrator_Run_PlanNotReady(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	p := &plan.Plan{Name: "draft-flow", Steps: []plan.Step{assertLamports(1, alice, "1")}}
	_, err := f.orch.Run(t.Context(), p)
	require.ErrorIs(t, err, plan.ErrPlanNotReady)
}

func Test_Orchestrator_Run_Logging(t *testing.T) {
	t.Parallel()

	lggr, observed := logger.TestObserved(t, zapcore.InfoLevel)
	f := newFixture(t, lggr)

	p := readyPlan(t, plan.Plan{
		Name:  "logged-flow",
		Setup: []plan.Step{overrideStep(1, alice, 1000)},
		Steps: []plan.Step{assertLamports(1, alice, "1000")},
	})

	exec, err := f.orch.Run(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, exec.Status)

	require.NotEmpty(t, observed.FilterMessage("Starting execution").All())
	finished := observed.FilterMessage("Execution finished").All()
	require.Len(t, finished, 1)
	assert.EqualValues(t, execution.StatusCompleted, finished[0].ContextMap()["status"])
}
