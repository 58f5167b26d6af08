package harness_test

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	_ "github.com/proullon/ramsql/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solharness/solharness/account"
	"github.com/solharness/solharness/config"
	"github.com/solharness/solharness/datastore"
	"github.com/solharness/solharness/datastore/sqlstore"
	"github.com/solharness/solharness/execution"
	"github.com/solharness/solharness/harness"
	"github.com/solharness/solharness/internal/pointer"
	"github.com/solharness/solharness/ledger"
	"github.com/solharness/solharness/pkg/logger"
	"github.com/solharness/solharness/plan"
	"github.com/solharness/solharness/statestore"
)

var (
	alice = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	bob   = solana.MustPublicKeyFromBase58("4fYNw3dojWmQ4dXtSGE9epjRGy9pFSx62YypT7avPYvA")
)

func newTestHarness(t *testing.T, ds datastore.MutableDataStore) *harness.Harness {
	t.Helper()

	h, err := harness.New(harness.Config{
		Project:     "proj",
		Environment: "env",
		Kind:        ledger.KindLocal,
		Datastore:   ds,
		Logger:      logger.Test(t),
	})
	require.NoError(t, err)
	require.NoError(t, h.Start(t.Context()))
	t.Cleanup(func() {
		_ = h.Stop(t.Context())
	})

	return h
}

// transferData encodes a system program transfer of the given lamports.
func transferData(lamports uint64) []byte {
	data := make([]byte, 12)
	data[0] = 2
	for i := range 8 {
		data[4+i] = byte(lamports >> (8 * i))
	}

	return data
}

func Test_Harness_TransferScenario(t *testing.T) {
	t.Parallel()

	ds := datastore.NewMemoryDataStore()
	h := newTestHarness(t, ds)

	// Fund alice synthetically, move 200 lamports to bob, then check both
	// balances.
	document := fmt.Appendf(nil, `{
		"name": "transfer-scenario",
		"version": "1.0.0",
		"setup": [
			{"order": 1, "type": "account_override", "account_override": {
				"address": %q, "lamports": 1000, "owner": "11111111111111111111111111111111"
			}}
		],
		"steps": [
			{"order": 1, "name": "transfer", "type": "instruction", "instruction": {
				"program_id": "11111111111111111111111111111111",
				"accounts": [
					{"address": %q, "writable": true, "signer": true},
					{"address": %q, "writable": true}
				],
				"data": "AgAAAMgAAAAAAAAA"
			}},
			{"order": 2, "type": "assertion", "assertion": {
				"address": %q, "expect": [{"field": "lamports", "equals": 800}]
			}},
			{"order": 3, "type": "assertion", "assertion": {
				"address": %q, "expect": [{"field": "lamports", "equals": 200}]
			}}
		]
	}`, alice, alice, bob, alice, bob)

	exec, err := h.Run(t.Context(), document)
	require.NoError(t, err)

	assert.Equal(t, execution.StatusCompleted, exec.Status)
	assert.Equal(t, 4, exec.CompletedSteps)
	assert.Equal(t, "transfer-scenario", exec.PlanName)
	assert.Equal(t, "1.0.0", exec.PlanVersion)

	// Alice's history carries the override and the debit, at increasing
	// slots.
	entries, err := h.Store().History(account.NewKey("proj", "env", alice), statestore.Range{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, statestore.OperationOverride, entries[0].Operation)
	assert.Equal(t, statestore.OperationTransaction, entries[1].Operation)
	assert.Less(t, entries[0].Slot, entries[1].Slot)
	assert.Equal(t, uint64(800), entries[1].Snapshot.Lamports)

	// The run landed in the datastore, along with the confirmed submission.
	recs, err := ds.Executions().Fetch()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, string(execution.StatusCompleted), recs[0].Status)

	txs, err := ds.Transactions().Fetch()
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, datastore.TransactionStatusConfirmed, txs[0].Status)
	require.NotNil(t, entries[1].TxSignature)
	assert.Equal(t, *entries[1].TxSignature, txs[0].Signature)

	// Building the harness registered the project and environment.
	proj, err := ds.Projects().Get(datastore.NewProjectKey("proj"))
	require.NoError(t, err)
	assert.Equal(t, "proj", proj.Name)
	envRec, err := ds.Environments().Get(datastore.NewEnvironmentKey("proj", "env"))
	require.NoError(t, err)
	assert.Equal(t, "local", envRec.Kind)
}

func Test_Harness_DurablePersistence(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("ramsql", t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	durable := sqlstore.New(db)
	require.NoError(t, durable.Migrate())

	h, err := harness.New(harness.Config{
		Project:     "proj",
		Environment: "env",
		Kind:        ledger.KindLocal,
		Durable:     durable,
		Logger:      logger.Test(t),
	})
	require.NoError(t, err)
	require.NoError(t, h.Start(t.Context()))
	t.Cleanup(func() { _ = h.Stop(t.Context()) })

	p := plan.Plan{
		Name: "durable-flow",
		Steps: []plan.Step{
			{Order: 1, Type: plan.StepTypeAccountOverride, Override: &plan.OverridePayload{
				Address:  alice,
				Lamports: 1000,
				Owner:    solana.SystemProgramID,
			}},
			{Order: 2, Type: plan.StepTypeAssertion, Assertion: &plan.AssertionPayload{
				Address: alice,
				Expect:  []plan.FieldExpectation{{Field: "lamports", Equals: []byte("1000")}},
			}},
		},
		FailFast: true,
	}
	require.NoError(t, p.Ready())

	exec, err := h.RunPlan(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, exec.Status)

	// The execution, its steps, the account row and its history all landed
	// in the SQL store.
	record, err := durable.GetExecution(exec.ID)
	require.NoError(t, err)
	assert.Equal(t, string(execution.StatusCompleted), record.Status)
	assert.Equal(t, 2, record.CompletedSteps)

	steps, err := durable.ListSteps(exec.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 2)

	key := account.NewKey("proj", "env", alice)
	acct, err := durable.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), acct.Lamports)

	entries, err := durable.AccountHistory(key)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, statestore.OperationOverride, entries[0].Operation)

	proj, err := durable.GetProject(datastore.NewProjectKey("proj"))
	require.NoError(t, err)
	assert.Equal(t, "proj", proj.Name)
	envRec, err := durable.GetEnvironment(datastore.NewEnvironmentKey("proj", "env"))
	require.NoError(t, err)
	assert.Equal(t, "local", envRec.Kind)
}

func Test_Harness_TimeTravelBeforeCreation(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)

	// Bob is created at the current slot; rewinding to slot 0 lands before
	// his creation and the follow-up assertion must see him as absent.
	p := plan.Plan{
		Name: "rewind-before-creation",
		Steps: []plan.Step{
			{Order: 1, Type: plan.StepTypeAccountOverride, Override: &plan.OverridePayload{
				Address:  bob,
				Lamports: 500,
				Owner:    solana.SystemProgramID,
			}},
			{Order: 2, Type: plan.StepTypeTimeTravel, TimeTravel: &plan.TimeTravelPayload{TargetSlot: 0}},
			{Order: 3, Type: plan.StepTypeAssertion, Assertion: &plan.AssertionPayload{
				Address: bob,
				Expect:  []plan.FieldExpectation{{Field: "lamports", Equals: []byte("500")}},
			}, ExpectedResult: &plan.ExpectedResult{Status: "failed", ErrorContains: "not found"}},
		},
		FailFast: true,
	}
	require.NoError(t, p.Ready())

	exec, err := h.RunPlan(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, exec.Status)

	// The store keeps the full lineage: creation plus the rewind entry
	// marking the account absent.
	entries, err := h.Store().History(account.NewKey("proj", "env", bob), statestore.Range{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[1].Snapshot)
	assert.Equal(t, statestore.OperationRewind, entries[1].Operation)
}

func Test_Harness_FailFast(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)

	// Alice only holds 10 lamports, so the 200 lamport transfer is
	// rejected and the trailing assertion is skipped.
	p := plan.Plan{
		Name:     "insufficient-funds",
		FailFast: true,
		Steps: []plan.Step{
			{Order: 1, Type: plan.StepTypeAccountOverride, Override: &plan.OverridePayload{
				Address:  alice,
				Lamports: 10,
				Owner:    solana.SystemProgramID,
			}},
			{Order: 2, Type: plan.StepTypeInstruction, Instruction: &plan.InstructionPayload{
				ProgramID: solana.SystemProgramID,
				Accounts: []plan.AccountRef{
					{Address: alice, Writable: true, Signer: true},
					{Address: bob, Writable: true},
				},
				Data: transferData(200),
			}},
			{Order: 3, Type: plan.StepTypeAssertion, Assertion: &plan.AssertionPayload{
				Address: bob,
				Expect:  []plan.FieldExpectation{{Field: "lamports", Equals: []byte("200")}},
			}},
		},
	}
	require.NoError(t, p.Ready())

	exec, err := h.RunPlan(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, exec.Status)
	assert.Equal(t, 1, exec.CompletedSteps)
	assert.Equal(t, execution.StepStatusFailed, exec.Steps[1].Status)
	assert.Contains(t, exec.Steps[1].ErrorMessage, "insufficient funds")
	assert.Equal(t, execution.StepStatusSkipped, exec.Steps[2].Status)
}

func Test_Harness_RunRejectsInvalidDocument(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)

	_, err := h.Run(t.Context(), []byte(`{"name": "empty", "steps": []}`))
	require.ErrorContains(t, err, "no steps")
}

func Test_Harness_SettingsApplied(t *testing.T) {
	t.Parallel()

	settings := config.Default()
	settings.Store.HistoryRetention = 1

	h, err := harness.New(harness.Config{
		Project:     "proj",
		Environment: "env",
		Kind:        ledger.KindLocal,
		Settings:    settings,
		Logger:      logger.Test(t),
	})
	require.NoError(t, err)
	require.NoError(t, h.Start(t.Context()))
	t.Cleanup(func() {
		_ = h.Stop(t.Context())
	})

	p := plan.Plan{
		Name: "retention",
		Steps: []plan.Step{
			{Order: 1, Type: plan.StepTypeAccountOverride, Override: &plan.OverridePayload{
				Address:  alice,
				Lamports: 100,
				Owner:    solana.SystemProgramID,
			}},
			{Order: 2, Type: plan.StepTypeWait, Wait: &plan.WaitPayload{
				Duration: plan.Duration(time.Millisecond),
			}},
			{Order: 3, Type: plan.StepTypeInstruction, Instruction: &plan.InstructionPayload{
				ProgramID: solana.SystemProgramID,
				Accounts: []plan.AccountRef{
					{Address: alice, Writable: true, Signer: true},
					{Address: bob, Writable: true},
				},
				Data: transferData(40),
			}},
		},
	}
	require.NoError(t, p.Ready())

	exec, err := h.RunPlan(t.Context(), p)
	require.NoError(t, err)
	require.Equal(t, execution.StatusCompleted, exec.Status)

	// Retention of 1 keeps only the latest entry per account.
	entries, err := h.Store().History(account.NewKey("proj", "env", alice), statestore.Range{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(60), entries[0].Snapshot.Lamports)
}

func Test_New_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    harness.Config
		wantErr string
	}{
		{
			name: "missing project",
			give: harness.Config{
				Environment: "env",
				Kind:        ledger.KindLocal,
			},
			wantErr: "project is required",
		},
		{
			name: "fork without fork slot",
			give: harness.Config{
				Project:     "proj",
				Environment: "env",
				Kind:        ledger.KindFork,
			},
			wantErr: "fork slot",
		},
		{
			name: "remote without rpc url",
			give: harness.Config{
				Project:     "proj",
				Environment: "env",
				Kind:        ledger.KindDevnet,
			},
			wantErr: "rpc_url",
		},
		{
			name: "unknown kind",
			give: harness.Config{
				Project:     "proj",
				Environment: "env",
				Kind:        ledger.Kind("mainnet"),
			},
			wantErr: "unknown environment kind",
		},
		{
			name: "invalid log level",
			give: harness.Config{
				Project:     "proj",
				Environment: "env",
				Kind:        ledger.KindLocal,
				Settings: &config.Config{
					LogLevel: "loud",
				},
			},
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := harness.New(tt.give)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func Test_Harness_ForkEnvironment(t *testing.T) {
	t.Parallel()

	h, err := harness.New(harness.Config{
		Project:     "proj",
		Environment: "env",
		Kind:        ledger.KindFork,
		ForkSlot:    pointer.To(uint64(500)),
		Logger:      logger.Test(t),
	})
	require.NoError(t, err)
	require.NoError(t, h.Start(t.Context()))
	t.Cleanup(func() {
		_ = h.Stop(t.Context())
	})

	slot, err := h.Env().CurrentSlot(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(500), slot)
}
