package datastore

import "errors"

var (
	// ErrProjectNotFound is returned when a project record does not exist in the store.
	ErrProjectNotFound = errors.New("project record not found")
	// ErrProjectExists is returned when a project record with the same key already exists.
	ErrProjectExists = errors.New("project record already exists")

	// ErrEnvironmentNotFound is returned when an environment record does not exist in the store.
	ErrEnvironmentNotFound = errors.New("environment record not found")
	// ErrEnvironmentExists is returned when an environment record with the same key already exists.
	ErrEnvironmentExists = errors.New("environment record already exists")

	// ErrTransactionNotFound is returned when a transaction record does not exist in the store.
	ErrTransactionNotFound = errors.New("transaction record not found")
	// ErrTransactionExists is returned when a transaction record with the same key already exists.
	ErrTransactionExists = errors.New("transaction record already exists")
	// ErrInvalidStatusTransition is returned when a transaction status update would move
	// backward or leave a terminal status.
	ErrInvalidStatusTransition = errors.New("invalid transaction status transition")

	// ErrPlanNotFound is returned when a plan record does not exist in the store.
	ErrPlanNotFound = errors.New("plan record not found")
	// ErrPlanExists is returned when a plan record with the same key already exists.
	ErrPlanExists = errors.New("plan record already exists")

	// ErrExecutionNotFound is returned when an execution record does not exist in the store.
	ErrExecutionNotFound = errors.New("execution record not found")
	// ErrExecutionExists is returned when an execution record with the same key already exists.
	ErrExecutionExists = errors.New("execution record already exists")

	// ErrStepNotFound is returned when a step record does not exist in the store.
	ErrStepNotFound = errors.New("step record not found")
	// ErrStepExists is returned when a step record with the same key already exists.
	ErrStepExists = errors.New("step record already exists")
)
