package datastore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryDataStore_SealYieldsReadOnlyView(t *testing.T) {
	t.Parallel()

	mutable := NewMemoryDataStore()
	require.NoError(t, mutable.Plans().Add(PlanRecord{
		Name:     "transfer-flow",
		Version:  "1.0.0",
		Status:   "ready",
		Document: json.RawMessage(`{"name":"transfer-flow"}`),
	}))

	sealed := mutable.Seal()

	// The sealed view reads the same underlying records, including writes
	// that happen after sealing.
	got, err := sealed.Plans().Get(NewPlanKey("transfer-flow", "1.0.0"))
	require.NoError(t, err)
	require.Equal(t, "ready", got.Status)

	require.NoError(t, mutable.Plans().Upsert(PlanRecord{
		Name:    "transfer-flow",
		Version: "1.0.0",
		Status:  "archived",
	}))
	got, err = sealed.Plans().Get(NewPlanKey("transfer-flow", "1.0.0"))
	require.NoError(t, err)
	require.Equal(t, "archived", got.Status)
}

func TestMemoryDataStore_Merge(t *testing.T) {
	t.Parallel()

	startedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	source := NewMemoryDataStore()
	require.NoError(t, source.Projects().Add(ProjectRecord{
		Name:      "proj",
		CreatedAt: startedAt,
	}))
	require.NoError(t, source.Environments().Add(EnvironmentRecord{
		Project:   "proj",
		Name:      "local",
		Kind:      "local",
		CreatedAt: startedAt,
	}))
	require.NoError(t, source.Executions().Add(ExecutionRecord{
		ID:          "exec-1",
		PlanName:    "transfer-flow",
		PlanVersion: "1.0.0",
		Status:      "completed",
		TotalSteps:  3,
		StartedAt:   startedAt,
	}))
	require.NoError(t, source.Steps().Add(StepRecord{
		ExecutionID: "exec-1",
		Phase:       "steps",
		Order:       1,
		Type:        "instruction",
		Status:      "completed",
	}))

	target := NewMemoryDataStore()
	require.NoError(t, target.Executions().Add(ExecutionRecord{
		ID:       "exec-1",
		PlanName: "transfer-flow",
		Status:   "running",
	}))

	require.NoError(t, target.Merge(source.Seal()))

	// Merge upserts, so the source's terminal record wins.
	got, err := target.Executions().Get(NewExecutionKey("exec-1"))
	require.NoError(t, err)
	require.Equal(t, "completed", got.Status)
	require.Equal(t, 3, got.TotalSteps)

	steps := target.Steps().Filter(StepsByExecution("exec-1"))
	require.Len(t, steps, 1)

	_, err = target.Projects().Get(NewProjectKey("proj"))
	require.NoError(t, err)
	environments := target.Environments().Filter(EnvironmentsByProject("proj"))
	require.Len(t, environments, 1)
}

func TestMemoryDataStore_RecordClonesAreIsolated(t *testing.T) {
	t.Parallel()

	store := NewMemoryDataStore()
	require.NoError(t, store.Plans().Add(PlanRecord{
		Name:     "transfer-flow",
		Version:  "1.0.0",
		Document: json.RawMessage(`{"name":"transfer-flow"}`),
	}))

	got, err := store.Plans().Get(NewPlanKey("transfer-flow", "1.0.0"))
	require.NoError(t, err)
	got.Document[0] = 'X'

	again, err := store.Plans().Get(NewPlanKey("transfer-flow", "1.0.0"))
	require.NoError(t, err)
	require.Equal(t, json.RawMessage(`{"name":"transfer-flow"}`), again.Document)
}
