package solver

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/example/landmark-lite/landmark/domain"
)

// FakeSolver is a test double for Solver.
// It answers from configured landmark sets and records every call.
type FakeSolver struct {
	mu sync.Mutex

	// ByTask maps task identifiers to their landmark sets.
	ByTask map[domain.TaskID]domain.LandmarkSet

	// ByContent maps staged task text to landmark sets. It is consulted
	// when ByTask has no entry and requires the task file to exist.
	ByContent map[string]domain.LandmarkSet

	// Default is returned when neither map matches. If nil, an unmatched
	// task fails with ErrSolver.
	Default *domain.LandmarkSet

	// FailOn causes Solve to fail for these task identifiers.
	FailOn map[domain.TaskID]error

	// Delay adds artificial delay to Solve calls.
	Delay time.Duration

	// Calls records every request in call order.
	Calls []Request

	inFlight    int
	maxInFlight int
}

// NewFakeSolver creates a new FakeSolver.
func NewFakeSolver() *FakeSolver {
	return &FakeSolver{
		ByTask:    make(map[domain.TaskID]domain.LandmarkSet),
		ByContent: make(map[string]domain.LandmarkSet),
		FailOn:    make(map[domain.TaskID]error),
	}
}

// WithTask sets the landmarks returned for a task identifier.
func (s *FakeSolver) WithTask(id domain.TaskID, landmarks ...domain.Landmark) *FakeSolver {
	s.ByTask[id] = domain.NewLandmarkSet(landmarks...)
	return s
}

// WithContent sets the landmarks returned for a staged task text.
func (s *FakeSolver) WithContent(text string, landmarks ...domain.Landmark) *FakeSolver {
	s.ByContent[text] = domain.NewLandmarkSet(landmarks...)
	return s
}

// WithFailure makes Solve fail for the task identifier.
func (s *FakeSolver) WithFailure(id domain.TaskID, err error) *FakeSolver {
	s.FailOn[id] = err
	return s
}

// WithDelay sets an artificial delay for solver calls.
func (s *FakeSolver) WithDelay(delay time.Duration) *FakeSolver {
	s.Delay = delay
	return s
}

// Solve implements Solver.
func (s *FakeSolver) Solve(ctx context.Context, req Request) (domain.LandmarkSet, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, req)
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	delay := s.Delay
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.LandmarkSet{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.FailOn[req.TaskID]; ok {
		return domain.LandmarkSet{}, err
	}
	if set, ok := s.ByTask[req.TaskID]; ok {
		return set, nil
	}
	if len(s.ByContent) > 0 {
		data, err := os.ReadFile(req.TaskPath)
		if err != nil {
			return domain.LandmarkSet{}, fmt.Errorf("%w: task file: %v", domain.ErrSolver, err)
		}
		if set, ok := s.ByContent[string(data)]; ok {
			return set, nil
		}
	}
	if s.Default != nil {
		return *s.Default, nil
	}
	return domain.LandmarkSet{}, fmt.Errorf("%w: no landmarks configured for %s", domain.ErrSolver, req.TaskID)
}

// GetCalls returns all recorded requests.
func (s *FakeSolver) GetCalls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]Request, len(s.Calls))
	copy(calls, s.Calls)
	return calls
}

// MaxConcurrent returns the highest number of overlapping Solve calls seen.
func (s *FakeSolver) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// Reset clears recorded calls.
func (s *FakeSolver) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
	s.maxInFlight = 0
}
