package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/example/landmark-lite/internal/observability"
	"github.com/example/landmark-lite/landmark/domain"
	"github.com/example/landmark-lite/landmark/intersect"
	"github.com/example/landmark-lite/landmark/store"
)

// Analysis is the outcome of one run.
type Analysis struct {
	RunID string

	// Goals are the goals of the bundle, in order.
	Goals []domain.Goal

	// Tasks are all instantiated tasks in goal order, including failed ones.
	Tasks []domain.Task

	// Store holds one entry per successfully solved task.
	Store store.Store

	// Failures lists the solver failures in goal order.
	Failures []*domain.SolverError

	metrics *observability.Metrics
}

// Task returns the task with the given identifier.
func (a *Analysis) Task(id domain.TaskID) (domain.Task, error) {
	for _, t := range a.Tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
}

// Goal returns the goal a task was instantiated from.
func (a *Analysis) Goal(id domain.TaskID) (domain.Goal, error) {
	t, err := a.Task(id)
	if err != nil {
		return domain.Goal{}, err
	}
	return t.Goal, nil
}

// GoalTexts returns the goal conditions in order.
func (a *Analysis) GoalTexts() []string {
	out := make([]string, len(a.Goals))
	for i, g := range a.Goals {
		out[i] = g.Text
	}
	return out
}

// Landmarks returns the landmark set recorded for a task.
func (a *Analysis) Landmarks(ctx context.Context, id domain.TaskID) (domain.LandmarkSet, error) {
	return a.Store.Get(ctx, id)
}

// Table returns the pairwise intersection table of the solved tasks.
func (a *Analysis) Table(ctx context.Context) (*intersect.Matrix, error) {
	defer a.observe(time.Now())
	return intersect.PairwiseTable(ctx, a.Store)
}

// Global returns the landmarks shared by every solved task.
func (a *Analysis) Global(ctx context.Context) (domain.LandmarkSet, error) {
	defer a.observe(time.Now())
	return intersect.GlobalIntersection(ctx, a.Store)
}

// Intersection returns the landmarks shared by the named tasks, or by all
// solved tasks when none are named.
func (a *Analysis) Intersection(ctx context.Context, ids ...domain.TaskID) (domain.LandmarkSet, error) {
	defer a.observe(time.Now())
	return intersect.Intersection(ctx, a.Store, ids...)
}

// FailedIDs returns the identifiers of tasks whose solver failed.
func (a *Analysis) FailedIDs() []domain.TaskID {
	ids := make([]domain.TaskID, len(a.Failures))
	for i, f := range a.Failures {
		ids[i] = f.TaskID
	}
	return ids
}

// Err joins all solver failures, or returns nil if every task solved.
func (a *Analysis) Err() error {
	errs := make([]error, len(a.Failures))
	for i, f := range a.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Close releases the store if it holds resources.
func (a *Analysis) Close() error {
	if c, ok := a.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (a *Analysis) observe(start time.Time) {
	if a.metrics != nil {
		a.metrics.IntersectionDuration().Since(start)
	}
}
