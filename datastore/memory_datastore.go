package datastore

// DataStore is a read-only aggregate over all record stores.
type DataStore interface {
	Projects() ProjectStore
	Environments() EnvironmentStore
	Transactions() TransactionStore
	Plans() PlanStore
	Executions() ExecutionStore
	Steps() StepStore
}

// MutableDataStore is a mutable aggregate over all record stores.
type MutableDataStore interface {
	Projects() MutableProjectStore
	Environments() MutableEnvironmentStore
	Transactions() MutableTransactionStore
	Plans() MutablePlanStore
	Executions() MutableExecutionStore
	Steps() MutableStepStore

	// Seal returns a read-only view over the same underlying stores.
	Seal() DataStore
}

// MemoryDataStore is a concrete implementation of the MutableDataStore interface.
var _ MutableDataStore = &MemoryDataStore{}

type MemoryDataStore struct {
	ProjectStore     *MemoryProjectStore     `json:"projectStore"`
	EnvironmentStore *MemoryEnvironmentStore `json:"environmentStore"`
	TransactionStore *MemoryTransactionStore `json:"transactionStore"`
	PlanStore        *MemoryPlanStore        `json:"planStore"`
	ExecutionStore   *MemoryExecutionStore   `json:"executionStore"`
	StepStore        *MemoryStepStore        `json:"stepStore"`
}

// NewMemoryDataStore creates a new instance of MemoryDataStore.
// NOTE: The instance returned is mutable and can be modified.
func NewMemoryDataStore() *MemoryDataStore {
	return &MemoryDataStore{
		ProjectStore:     NewMemoryProjectStore(),
		EnvironmentStore: NewMemoryEnvironmentStore(),
		TransactionStore: NewMemoryTransactionStore(),
		PlanStore:        NewMemoryPlanStore(),
		ExecutionStore:   NewMemoryExecutionStore(),
		StepStore:        NewMemoryStepStore(),
	}
}

// Seal seals the MemoryDataStore, by returning a new instance of sealedMemoryDataStore.
func (s *MemoryDataStore) Seal() DataStore {
	return &sealedMemoryDataStore{
		ProjectStore:     s.ProjectStore,
		EnvironmentStore: s.EnvironmentStore,
		TransactionStore: s.TransactionStore,
		PlanStore:        s.PlanStore,
		ExecutionStore:   s.ExecutionStore,
		StepStore:        s.StepStore,
	}
}

// Projects returns the ProjectStore of the MemoryDataStore.
func (s *MemoryDataStore) Projects() MutableProjectStore {
	return s.ProjectStore
}

// Environments returns the EnvironmentStore of the MemoryDataStore.
func (s *MemoryDataStore) Environments() MutableEnvironmentStore {
	return s.EnvironmentStore
}

// Transactions returns the TransactionStore of the MemoryDataStore.
func (s *MemoryDataStore) Transactions() MutableTransactionStore {
	return s.TransactionStore
}

// Plans returns the PlanStore of the MemoryDataStore.
func (s *MemoryDataStore) Plans() MutablePlanStore {
	return s.PlanStore
}

// Executions returns the ExecutionStore of the MemoryDataStore.
func (s *MemoryDataStore) Executions() MutableExecutionStore {
	return s.ExecutionStore
}

// Steps returns the StepStore of the MemoryDataStore.
func (s *MemoryDataStore) Steps() MutableStepStore {
	return s.StepStore
}

// Merge merges the given data store into the current MemoryDataStore.
func (s *MemoryDataStore) Merge(other DataStore) error {
	projects, err := other.Projects().Fetch()
	if err != nil {
		return err
	}
	for _, record := range projects {
		if err = s.ProjectStore.Upsert(record); err != nil {
			return err
		}
	}

	environments, err := other.Environments().Fetch()
	if err != nil {
		return err
	}
	for _, record := range environments {
		if err = s.EnvironmentStore.Upsert(record); err != nil {
			return err
		}
	}

	transactions, err := other.Transactions().Fetch()
	if err != nil {
		return err
	}
	for _, record := range transactions {
		if err = s.TransactionStore.Upsert(record); err != nil {
			return err
		}
	}

	plans, err := other.Plans().Fetch()
	if err != nil {
		return err
	}
	for _, record := range plans {
		if err = s.PlanStore.Upsert(record); err != nil {
			return err
		}
	}

	executions, err := other.Executions().Fetch()
	if err != nil {
		return err
	}
	for _, record := range executions {
		if err = s.ExecutionStore.Upsert(record); err != nil {
			return err
		}
	}

	steps, err := other.Steps().Fetch()
	if err != nil {
		return err
	}
	for _, record := range steps {
		if err = s.StepStore.Upsert(record); err != nil {
			return err
		}
	}

	return nil
}

// sealedMemoryDataStore implements the DataStore interface.
var _ DataStore = &sealedMemoryDataStore{}

// sealedMemoryDataStore is a read-only view over the stores of a
// MemoryDataStore.
type sealedMemoryDataStore struct {
	ProjectStore     *MemoryProjectStore     `json:"projectStore"`
	EnvironmentStore *MemoryEnvironmentStore `json:"environmentStore"`
	TransactionStore *MemoryTransactionStore `json:"transactionStore"`
	PlanStore        *MemoryPlanStore        `json:"planStore"`
	ExecutionStore   *MemoryExecutionStore   `json:"executionStore"`
	StepStore        *MemoryStepStore        `json:"stepStore"`
}

// Projects returns the ProjectStore of the sealedMemoryDataStore.
func (s *sealedMemoryDataStore) Projects() ProjectStore {
	return s.ProjectStore
}

// Environments returns the EnvironmentStore of the sealedMemoryDataStore.
func (s *sealedMemoryDataStore) Environments() EnvironmentStore {
	return s.EnvironmentStore
}

// Transactions returns the TransactionStore of the sealedMemoryDataStore.
func (s *sealedMemoryDataStore) Transactions() TransactionStore {
	return s.TransactionStore
}

// Plans returns the PlanStore of the sealedMemoryDataStore.
func (s *sealedMemoryDataStore) Plans() PlanStore {
	return s.PlanStore
}

// Executions returns the ExecutionStore of the sealedMemoryDataStore.
func (s *sealedMemoryDataStore) Executions() ExecutionStore {
	return s.ExecutionStore
}

// Steps returns the StepStore of the sealedMemoryDataStore.
func (s *sealedMemoryDataStore) Steps() StepStore {
	return s.StepStore
}
