// Package solver defines the boundary to the external landmark extractor
// and provides command, remote and fake implementations of it.
package solver

import (
	"context"
	"fmt"

	"github.com/example/landmark-lite/landmark/domain"
)

// Solver computes the landmarks of one task.
//
// Implementations must be deterministic for the same domain and task, must
// report failures (unparsable, ungroundable or unsolvable tasks) as errors
// rather than returning an empty set, and must be safe for concurrent use
// when a run is configured with Parallelism > 1.
type Solver interface {
	Solve(ctx context.Context, req Request) (domain.LandmarkSet, error)
}

// Request identifies a staged task.
type Request struct {
	// TaskID is the run-scoped task identifier.
	TaskID domain.TaskID

	// DomainPath is the absolute path of the domain description.
	DomainPath string

	// TaskPath is the path of the staged task description.
	TaskPath string
}

// Validate checks that the request names both files.
func (r Request) Validate() error {
	if r.DomainPath == "" {
		return fmt.Errorf("%w: empty domain path", domain.ErrInvalidArgument)
	}
	if r.TaskPath == "" {
		return fmt.Errorf("%w: empty task path", domain.ErrInvalidArgument)
	}
	return nil
}

// Func adapts a function to the Solver interface.
type Func func(ctx context.Context, req Request) (domain.LandmarkSet, error)

// Solve implements Solver.
func (f Func) Solve(ctx context.Context, req Request) (domain.LandmarkSet, error) {
	return f(ctx, req)
}
