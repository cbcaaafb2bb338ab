// Package runner drives a landmark analysis: every goal of a bundle is
// instantiated into a task, solved, and recorded in a landmark store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/landmark-lite/internal/observability"
	"github.com/example/landmark-lite/landmark/bundle"
	"github.com/example/landmark-lite/landmark/domain"
	"github.com/example/landmark-lite/landmark/solver"
	"github.com/example/landmark-lite/landmark/store"
	"github.com/example/landmark-lite/landmark/task"
	"github.com/example/landmark-lite/pkg/id"
)

// StoreFactory creates the landmark store of one run.
type StoreFactory func(ctx context.Context, runID string) (store.Store, error)

// MemoryStoreFactory returns a fresh in-memory store per run.
func MemoryStoreFactory(ctx context.Context, runID string) (store.Store, error) {
	return store.NewMemoryStore(), nil
}

// Runner coordinates instantiation and solving of analysis tasks.
type Runner struct {
	solver       solver.Solver
	config       *domain.AnalysisConfig
	logger       *slog.Logger
	storeFactory StoreFactory
	metrics      *observability.Metrics
	idGenerator  func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfig overrides the configuration the bundle was loaded with.
func WithConfig(cfg domain.AnalysisConfig) Option {
	return func(r *Runner) {
		r.config = &cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithStoreFactory sets how the landmark store of a run is created.
func WithStoreFactory(f StoreFactory) Option {
	return func(r *Runner) {
		r.storeFactory = f
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithIDGenerator overrides how run IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(r *Runner) {
		r.idGenerator = gen
	}
}

// NewRunner creates a Runner that solves tasks with s.
func NewRunner(s solver.Solver, opts ...Option) *Runner {
	r := &Runner{
		solver:       s,
		logger:       slog.Default(),
		storeFactory: MemoryStoreFactory,
		metrics:      observability.NewMetrics(),
		idGenerator:  id.Generate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics returns the metrics the runner records into.
func (r *Runner) Metrics() *observability.Metrics {
	return r.metrics
}

// outcome is the result of one goal.
type outcome struct {
	task      *domain.Task
	landmarks domain.LandmarkSet
	failure   *domain.SolverError
}

// Run analyzes every goal of b and returns the populated analysis.
//
// Solver failures are collected in Analysis.Failures and the failing goal
// is left out of the store, unless FailFast is set, in which case the
// first SolverError is returned. Instantiation errors, store errors and
// context cancellation always abort the run.
func (r *Runner) Run(ctx context.Context, b *bundle.Bundle) (*Analysis, error) {
	cfg := b.Config()
	if r.config != nil {
		cfg = r.config.WithDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := r.idGenerator()
	logger := r.logger.With("run_id", runID)

	if cfg.StrictPlaceholder && !b.TemplateContains(cfg.Placeholder) {
		return nil, fmt.Errorf("%w: %q", domain.ErrMissingPlaceholder, cfg.Placeholder)
	}

	inst := task.NewInstantiator(b.StagingDir,
		task.WithPlaceholder(cfg.Placeholder),
		task.WithStrict(cfg.StrictPlaceholder),
		task.WithIDSource(b.NextTaskID),
		task.WithLogger(logger))

	// IDs follow goal order regardless of completion order.
	ids := make([]domain.TaskID, len(b.Goals))
	for i := range b.Goals {
		ids[i] = inst.NextID()
	}

	logger.Info("starting landmark analysis",
		"goals", len(b.Goals),
		"parallelism", cfg.Parallelism,
		"domain", b.DomainPath)
	start := time.Now()

	outcomes := make([]outcome, len(b.Goals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallelism)
	for i, goal := range b.Goals {
		i, goal := i, goal
		g.Go(func() error {
			out, err := r.runGoal(gctx, cfg, inst, b, goal, ids[i], logger)
			if err != nil {
				return err
			}
			outcomes[i] = out
			if out.failure != nil && cfg.FailFast {
				return out.failure
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	s, err := r.storeFactory(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark store: %w", err)
	}
	analysis := &Analysis{
		RunID:   runID,
		Goals:   b.Goals,
		Store:   s,
		metrics: r.metrics,
	}
	for _, out := range outcomes {
		analysis.Tasks = append(analysis.Tasks, *out.task)
		if out.failure != nil {
			analysis.Failures = append(analysis.Failures, out.failure)
			continue
		}
		putStart := time.Now()
		err := s.Put(ctx, out.task.ID, out.landmarks)
		r.metrics.StoreDuration().WithLabels("put").Since(putStart)
		if err != nil {
			analysis.Close()
			return nil, fmt.Errorf("failed to record landmarks of %s: %w", out.task.ID, err)
		}
	}

	logger.Info("landmark analysis finished",
		"tasks", len(analysis.Tasks),
		"failures", len(analysis.Failures),
		"duration", time.Since(start))
	return analysis, nil
}

// runGoal instantiates and solves one goal. A solver failure is returned
// in the outcome; the error return is reserved for run-fatal conditions.
func (r *Runner) runGoal(
	ctx context.Context,
	cfg domain.AnalysisConfig,
	inst *task.Instantiator,
	b *bundle.Bundle,
	goal domain.Goal,
	taskID domain.TaskID,
	logger *slog.Logger,
) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	t, err := inst.Instantiate(b.Template, goal, taskID)
	if err != nil {
		return outcome{}, err
	}
	r.metrics.TasksInstantiated().Inc()

	solveCtx := ctx
	if cfg.SolveTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, cfg.SolveTimeout)
		defer cancel()
	}

	start := time.Now()
	set, err := r.solver.Solve(solveCtx, solver.Request{
		TaskID:     taskID,
		DomainPath: b.DomainPath,
		TaskPath:   t.Path,
	})
	elapsed := time.Since(start)

	if err == nil {
		r.metrics.ObserveSolve(elapsed, observability.OutcomeOK)
		logger.Debug("solved task",
			"task_id", taskID,
			"goal_index", goal.Index,
			"landmarks", set.Len(),
			"duration", elapsed)
		return outcome{task: t, landmarks: set}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome{}, ctxErr
	}

	label := observability.OutcomeError
	if errors.Is(err, domain.ErrSolverTimeout) {
		label = observability.OutcomeTimeout
	} else if errors.Is(solveCtx.Err(), context.DeadlineExceeded) {
		label = observability.OutcomeTimeout
		err = fmt.Errorf("%w after %s: %w", domain.ErrSolverTimeout, cfg.SolveTimeout, err)
	}
	r.metrics.ObserveSolve(elapsed, label)

	failure := &domain.SolverError{
		TaskID:    taskID,
		GoalIndex: goal.Index,
		Goal:      goal.Text,
		Err:       err,
	}
	logger.Warn("landmark solver failed",
		"task_id", taskID,
		"goal_index", goal.Index,
		"duration", elapsed,
		"error", err)
	return outcome{task: t, failure: failure}, nil
}
