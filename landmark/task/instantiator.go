// Package task turns a template and a goal condition into a concrete task
// description staged on disk for the solver.
package task

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/example/landmark-lite/internal/fsops"
	"github.com/example/landmark-lite/landmark/domain"
)

// FileExt is the extension of staged task files.
const FileExt = ".pddl"

// Instantiator substitutes goals into a template and stages the result.
// Its counter is scoped to one instance; create one per run.
type Instantiator struct {
	stagingDir  string
	placeholder string
	strict      bool
	logger      *slog.Logger

	nextID func() domain.TaskID

	mu      sync.Mutex
	counter int
}

// Option configures an Instantiator.
type Option func(*Instantiator)

// WithPlaceholder sets the template marker replaced by the goal.
func WithPlaceholder(placeholder string) Option {
	return func(i *Instantiator) {
		i.placeholder = placeholder
	}
}

// WithStrict makes Instantiate reject templates without the placeholder.
func WithStrict(strict bool) Option {
	return func(i *Instantiator) {
		i.strict = strict
	}
}

// WithIDSource makes NextID draw identifiers from next instead of the
// Instantiator's own counter, e.g. a counter scoped to a bundle.
func WithIDSource(next func() domain.TaskID) Option {
	return func(i *Instantiator) {
		i.nextID = next
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Instantiator) {
		i.logger = logger
	}
}

// NewInstantiator creates an Instantiator that stages tasks in stagingDir.
func NewInstantiator(stagingDir string, opts ...Option) *Instantiator {
	i := &Instantiator{
		stagingDir:  stagingDir,
		placeholder: domain.DefaultPlaceholder,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NextID returns the next task identifier. Without an ID source the first
// call returns "task1".
func (i *Instantiator) NextID() domain.TaskID {
	if i.nextID != nil {
		return i.nextID()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.counter++
	return domain.FormatTaskID(i.counter)
}

// Path returns the staging path for a task identifier.
func (i *Instantiator) Path(id domain.TaskID) string {
	return filepath.Join(i.stagingDir, id.Filename(FileExt))
}

// Instantiate replaces every placeholder occurrence in template with the
// goal text and writes the result to the path derived from id.
//
// A template without the placeholder yields the template unchanged, with
// PlaceholderFound set to false, unless the Instantiator is strict.
func (i *Instantiator) Instantiate(template string, goal domain.Goal, id domain.TaskID) (*domain.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty task id", domain.ErrInvalidArgument)
	}

	text, found := Substitute(template, i.placeholder, goal.Text)
	if !found {
		if i.strict {
			return nil, fmt.Errorf("%w: %q (task %s)", domain.ErrMissingPlaceholder, i.placeholder, id)
		}
		i.logger.Warn("template has no goal placeholder, task is goal-less",
			"task_id", id,
			"goal_index", goal.Index,
			"placeholder", i.placeholder)
	}

	path := i.Path(id)
	if err := fsops.AtomicWrite(path, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("failed to stage task %s: %w", id, err)
	}

	return &domain.Task{
		ID:               id,
		Goal:             goal,
		Text:             text,
		Path:             path,
		PlaceholderFound: found,
	}, nil
}

// Substitute replaces all occurrences of placeholder in template with goal.
// It reports whether the placeholder was present.
func Substitute(template, placeholder, goal string) (string, bool) {
	if placeholder == "" || !strings.Contains(template, placeholder) {
		return template, false
	}
	return strings.ReplaceAll(template, placeholder, goal), true
}
