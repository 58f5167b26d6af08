package datastore

// EnvironmentsByProject returns a filter that keeps environment records
// belonging to one project.
func EnvironmentsByProject(project string) FilterFunc[EnvironmentKey, EnvironmentRecord] {
	return func(records []EnvironmentRecord) []EnvironmentRecord {
		filtered := []EnvironmentRecord{}
		for _, record := range records {
			if record.Project == project {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}

// TransactionsByStatus returns a filter that keeps transaction records with
// the given status.
func TransactionsByStatus(status TransactionStatus) FilterFunc[TransactionKey, TransactionRecord] {
	return func(records []TransactionRecord) []TransactionRecord {
		filtered := []TransactionRecord{}
		for _, record := range records {
			if record.Status == status {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}

// TransactionsByEnvironment returns a filter that keeps transaction records
// belonging to one project and environment.
func TransactionsByEnvironment(project, environment string) FilterFunc[TransactionKey, TransactionRecord] {
	return func(records []TransactionRecord) []TransactionRecord {
		filtered := []TransactionRecord{}
		for _, record := range records {
			if record.Project == project && record.Environment == environment {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}

// PlansByName returns a filter that keeps all versions of one plan.
func PlansByName(name string) FilterFunc[PlanKey, PlanRecord] {
	return func(records []PlanRecord) []PlanRecord {
		filtered := []PlanRecord{}
		for _, record := range records {
			if record.Name == name {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}

// ExecutionsByPlan returns a filter that keeps execution records of one plan
// name.
func ExecutionsByPlan(planName string) FilterFunc[ExecutionKey, ExecutionRecord] {
	return func(records []ExecutionRecord) []ExecutionRecord {
		filtered := []ExecutionRecord{}
		for _, record := range records {
			if record.PlanName == planName {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}

// StepsByType returns a filter that keeps step records of one step type.
func StepsByType(stepType string) FilterFunc[StepKey, StepRecord] {
	return func(records []StepRecord) []StepRecord {
		filtered := []StepRecord{}
		for _, record := range records {
			if record.Type == stepType {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}

// StepsByExecution returns a filter that keeps step records of one execution.
func StepsByExecution(executionID string) FilterFunc[StepKey, StepRecord] {
	return func(records []StepRecord) []StepRecord {
		filtered := []StepRecord{}
		for _, record := range records {
			if record.ExecutionID == executionID {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}
