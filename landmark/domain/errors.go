package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned when an argument is invalid.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrResourceNotFound is returned when a required input is missing or unreadable.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrCorruptArchive is returned when an archive cannot be read as a bzip2 tar stream.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrMissingPlaceholder is returned in strict mode when the template
	// has no goal placeholder.
	ErrMissingPlaceholder = errors.New("template has no goal placeholder")

	// ErrSolver is returned when the landmark solver fails for a task.
	ErrSolver = errors.New("landmark solver failed")

	// ErrSolverTimeout is returned when the landmark solver exceeds its deadline.
	ErrSolverTimeout = errors.New("landmark solver timed out")

	// ErrEmptyStore is returned when intersecting an empty collection of landmark sets.
	ErrEmptyStore = errors.New("no landmark sets to intersect")
)

// Resource names a required input of an analysis.
type Resource string

const (
	ResourceDomain   Resource = "domain"
	ResourceGoals    Resource = "goals"
	ResourceTemplate Resource = "template"
	ResourceArchive  Resource = "archive"
)

// ResourceNotFoundError reports a missing or unreadable input.
// A corrupt archive is reported with Resource == ResourceArchive and an
// error chain that also matches ErrCorruptArchive.
type ResourceNotFoundError struct {
	Resource Resource
	Path     string
	Err      error
}

func (e *ResourceNotFoundError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrResourceNotFound, e.Resource)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResourceNotFoundError) Unwrap() error {
	return e.Err
}

func (e *ResourceNotFoundError) Is(target error) bool {
	return target == ErrResourceNotFound
}

// IsCorrupt reports whether the error describes an unreadable archive.
func (e *ResourceNotFoundError) IsCorrupt() bool {
	return errors.Is(e.Err, ErrCorruptArchive)
}

// SolverError reports a landmark solver failure for one goal.
type SolverError struct {
	TaskID    TaskID
	GoalIndex int
	Goal      string
	Err       error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%s: %s (goal %d %q): %v", ErrSolver, e.TaskID, e.GoalIndex, e.Goal, e.Err)
}

func (e *SolverError) Unwrap() error {
	return e.Err
}

func (e *SolverError) Is(target error) bool {
	return target == ErrSolver
}

// Timeout reports whether the solver was stopped by a deadline.
func (e *SolverError) Timeout() bool {
	return errors.Is(e.Err, ErrSolverTimeout)
}
