package execution

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/solharness/solharness/datastore"
	"github.com/solharness/solharness/executor"
	"github.com/solharness/solharness/pkg/logger"
	"github.com/solharness/solharness/plan"
)

// DurableStore receives execution records for durable persistence. The SQL
// store implements it.
type DurableStore interface {
	SaveExecution(record datastore.ExecutionRecord, steps []datastore.StepRecord) error
}

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Executor *executor.Executor
	// Datastore optionally receives execution and step records as the run
	// progresses. A nil datastore disables persistence.
	Datastore datastore.MutableDataStore
	// Durable optionally mirrors the same records into a durable store.
	Durable DurableStore
	Logger  logger.Logger
}

// Orchestrator runs whole plans against one environment.
type Orchestrator struct {
	exec    *executor.Executor
	ds      datastore.MutableDataStore
	durable DurableStore
	lggr    logger.Logger
}

// New creates an Orchestrator from the given config.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}

	lggr := cfg.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Orchestrator{
		exec:    cfg.Executor,
		ds:      cfg.Datastore,
		durable: cfg.Durable,
		lggr:    logger.Named(lggr, "Orchestrator"),
	}, nil
}

// Run executes a ready plan: setup, then steps, then cleanup. Cleanup always
// runs, even after a failure or cancellation earlier in the run. Step
// failures are reported through the returned Execution, not the error: a
// non-nil error means the plan could not be run at all.
func (o *Orchestrator) Run(ctx context.Context, p *plan.Plan) (*Execution, error) {
	if p == nil {
		return nil, errors.New("plan is required")
	}
	if p.Status != plan.StatusReady {
		return nil, plan.ErrPlanNotReady
	}

	env := o.exec.Env()
	exec := &Execution{
		ID:          uuid.NewString(),
		PlanName:    p.Name,
		Project:     env.Project(),
		Environment: env.Name(),
		Status:      StatusRunning,
		StartedAt:   time.Now().UTC(),
		TotalSteps:  p.TotalSteps(),
	}
	if p.Version != nil {
		exec.PlanVersion = p.Version.String()
	}

	// Outcomes are laid out upfront so skipped steps are visible in the
	// result and in persisted records.
	for _, step := range p.Setup {
		exec.Steps = append(exec.Steps, pendingOutcome(PhaseSetup, step))
	}
	for _, step := range p.Steps {
		exec.Steps = append(exec.Steps, pendingOutcome(PhaseSteps, step))
	}
	for _, step := range p.Cleanup {
		exec.Steps = append(exec.Steps, pendingOutcome(PhaseCleanup, step))
	}

	o.lggr.Infow("Starting execution",
		"execution", exec.ID, "plan", p.Name, "environment", exec.Environment,
		"totalSteps", exec.TotalSteps, "failFast", p.FailFast)
	o.persist(exec)

	var (
		failed    bool
		cancelled bool
		skip      bool
		idx       int
	)

	runPhase := func(ctx context.Context, steps []plan.Step, allowSkip bool) {
		for _, step := range steps {
			outcome := &exec.Steps[idx]
			idx++

			if allowSkip && skip {
				outcome.Status = StepStatusSkipped
				o.persist(exec)

				continue
			}
			if allowSkip && ctx.Err() != nil {
				outcome.Status = StepStatusSkipped
				cancelled = true
				skip = true
				o.persist(exec)

				continue
			}

			startedAt := time.Now().UTC()
			outcome.Status = StepStatusRunning
			outcome.StartedAt = &startedAt
			o.persist(exec)

			result, err := o.exec.Execute(ctx, step)
			outcome.ExecutionTime = time.Since(startedAt)
			outcome.Result = result

			if err != nil {
				outcome.Status = StepStatusFailed
				outcome.ErrorMessage = err.Error()
				failed = true

				if errors.Is(err, context.Canceled) {
					cancelled = true
					skip = true
				} else if p.FailFast {
					skip = true
				}

				o.lggr.Errorw("Step failed",
					"execution", exec.ID, "phase", outcome.Phase, "order", step.Order,
					"type", step.Type, "error", err)
			} else {
				outcome.Status = StepStatusCompleted
				exec.CompletedSteps++

				o.lggr.Infow("Step completed",
					"execution", exec.ID, "phase", outcome.Phase, "order", step.Order,
					"type", step.Type, "durationMS", outcome.ExecutionTime.Milliseconds())
			}
			o.persist(exec)
		}
	}

	runPhase(ctx, p.Setup, true)
	runPhase(ctx, p.Steps, true)
	// Cleanup always runs, detached from the caller's cancellation.
	runPhase(context.WithoutCancel(ctx), p.Cleanup, false)

	completedAt := time.Now().UTC()
	exec.CompletedAt = &completedAt
	switch {
	case cancelled:
		exec.Status = StatusCancelled
	case failed:
		exec.Status = StatusFailed
	default:
		exec.Status = StatusCompleted
	}
	exec.computeMetrics()
	o.persist(exec)

	o.lggr.Infow("Execution finished",
		"execution", exec.ID, "status", exec.Status,
		"completedSteps", exec.CompletedSteps, "totalSteps", exec.TotalSteps,
		"durationMS", exec.Metrics.TotalDurationMS)

	return exec, nil
}

func pendingOutcome(phase Phase, step plan.Step) StepOutcome {
	return StepOutcome{
		Phase:  phase,
		Order:  step.Order,
		Name:   step.Name,
		Type:   step.Type,
		Status: StepStatusPending,
	}
}

// persist mirrors the execution's current state into the datastore and the
// durable store, when configured. Persistence failures are logged, not fatal
// to the run.
func (o *Orchestrator) persist(exec *Execution) {
	if o.ds == nil && o.durable == nil {
		return
	}

	record := datastore.ExecutionRecord{
		ID:             exec.ID,
		PlanName:       exec.PlanName,
		PlanVersion:    exec.PlanVersion,
		Project:        exec.Project,
		Environment:    exec.Environment,
		Status:         string(exec.Status),
		TotalSteps:     exec.TotalSteps,
		CompletedSteps: exec.CompletedSteps,
		StartedAt:      exec.StartedAt,
		CompletedAt:    exec.CompletedAt,
	}
	stepRecords := make([]datastore.StepRecord, 0, len(exec.Steps))
	for _, step := range exec.Steps {
		stepRecords = append(stepRecords, datastore.StepRecord{
			ExecutionID:     exec.ID,
			Phase:           string(step.Phase),
			Order:           step.Order,
			Name:            step.Name,
			Type:            string(step.Type),
			Status:          string(step.Status),
			StartedAt:       step.StartedAt,
			ExecutionTimeMS: step.ExecutionTime.Milliseconds(),
			Result:          step.Result,
			ErrorMessage:    step.ErrorMessage,
		})
	}

	if o.ds != nil {
		if err := o.ds.Executions().Upsert(record); err != nil {
			o.lggr.Warnw("Failed to persist execution record", "execution", exec.ID, "error", err)
		}
		for _, stepRecord := range stepRecords {
			if err := o.ds.Steps().Upsert(stepRecord); err != nil {
				o.lggr.Warnw("Failed to persist step record",
					"execution", exec.ID, "phase", stepRecord.Phase, "order", stepRecord.Order, "error", err)
			}
		}
	}

	if o.durable != nil {
		if err := o.durable.SaveExecution(record, stepRecords); err != nil {
			o.lggr.Warnw("Failed to persist execution durably", "execution", exec.ID, "error", err)
		}
	}
}
