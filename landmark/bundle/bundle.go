// Package bundle loads the inputs of a landmark analysis: a domain
// description, an ordered goal list and a task template.
package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/example/landmark-lite/internal/fsops"
	"github.com/example/landmark-lite/landmark/domain"
	"github.com/example/landmark-lite/pkg/id"
)

// Bundle is the in-memory form of one analysis input set.
// It is immutable after load, apart from Close.
type Bundle struct {
	// ID is unique per bundle and names its staging directory.
	ID string

	// DomainPath is the absolute path of the domain description.
	DomainPath string

	// Goals are the candidate goal conditions in file order.
	Goals []domain.Goal

	// Template is the task template text, verbatim.
	Template string

	// StagingDir is the private scratch directory of this bundle.
	StagingDir string

	config domain.AnalysisConfig
	logger *slog.Logger

	mu      sync.Mutex
	taskSeq int
}

// Option configures how a bundle is loaded.
type Option func(*options)

type options struct {
	config      domain.AnalysisConfig
	logger      *slog.Logger
	idGenerator func() string
}

// WithConfig sets the analysis configuration. Zero fields take defaults.
func WithConfig(cfg domain.AnalysisConfig) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithIDGenerator overrides how the bundle ID is generated.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) {
		o.idGenerator = gen
	}
}

func newOptions(opts []Option) (*options, error) {
	o := &options{idGenerator: id.GenerateShort}
	for _, opt := range opts {
		opt(o)
	}
	o.config = o.config.WithDefaults()
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// Load reads the three-file form of an analysis input.
// The domain path is resolved to an absolute path so the solver can run
// from any working directory.
func Load(domainPath, goalsPath, templatePath string, opts ...Option) (*Bundle, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	absDomain, err := filepath.Abs(domainPath)
	if err != nil {
		return nil, resourceErr(domain.ResourceDomain, domainPath, err)
	}
	info, err := os.Stat(absDomain)
	if err != nil {
		return nil, resourceErr(domain.ResourceDomain, domainPath, err)
	}
	if info.IsDir() {
		return nil, resourceErr(domain.ResourceDomain, domainPath, fmt.Errorf("%w: is a directory", domain.ErrInvalidArgument))
	}

	goalsData, err := os.ReadFile(goalsPath)
	if err != nil {
		return nil, resourceErr(domain.ResourceGoals, goalsPath, err)
	}
	goals, err := decodeGoals(goalsData)
	if err != nil {
		return nil, resourceErr(domain.ResourceGoals, goalsPath, err)
	}

	templateData, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, resourceErr(domain.ResourceTemplate, templatePath, err)
	}

	b := newBundle(o)
	if err := fsops.EnsureDir(b.StagingDir); err != nil {
		return nil, err
	}
	b.DomainPath = absDomain
	b.Goals = goals
	b.Template = string(templateData)

	b.logger.Debug("loaded bundle",
		"domain", b.DomainPath,
		"goals", len(b.Goals),
		"staging_dir", b.StagingDir)
	return b, nil
}

func newBundle(o *options) *Bundle {
	bundleID := o.idGenerator()
	return &Bundle{
		ID:         bundleID,
		StagingDir: filepath.Join(o.config.StagingDir, "run-"+bundleID),
		config:     o.config,
		logger:     o.logger.With("bundle_id", bundleID),
	}
}

// Config returns the configuration the bundle was loaded with.
func (b *Bundle) Config() domain.AnalysisConfig {
	return b.config
}

// Logger returns the bundle's logger.
func (b *Bundle) Logger() *slog.Logger {
	return b.logger
}

// GoalTexts returns the goal conditions in order.
func (b *Bundle) GoalTexts() []string {
	out := make([]string, len(b.Goals))
	for i, g := range b.Goals {
		out[i] = g.Text
	}
	return out
}

// Goal returns the goal at the given index.
func (b *Bundle) Goal(index int) (domain.Goal, error) {
	if index < 0 || index >= len(b.Goals) {
		return domain.Goal{}, fmt.Errorf("%w: goal index %d", domain.ErrNotFound, index)
	}
	return b.Goals[index], nil
}

// NextTaskID returns the next task identifier of this bundle. The counter
// starts at 1 and is shared by every run over the bundle, so task files
// staged by one run are never overwritten by the next.
func (b *Bundle) NextTaskID() domain.TaskID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taskSeq++
	return domain.FormatTaskID(b.taskSeq)
}

// HasPlaceholder reports whether the template contains the configured placeholder.
func (b *Bundle) HasPlaceholder() bool {
	return b.TemplateContains(b.config.Placeholder)
}

// TemplateContains reports whether the template contains placeholder.
func (b *Bundle) TemplateContains(placeholder string) bool {
	return placeholder != "" && strings.Contains(b.Template, placeholder)
}

// Close removes the staging directory unless KeepStaging is set.
func (b *Bundle) Close() error {
	if b.config.KeepStaging {
		return nil
	}
	if err := os.RemoveAll(b.StagingDir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove staging directory: %w", err)
	}
	return nil
}

// decodeGoals splits goal text into one goal per line. A trailing line
// break does not produce an empty goal.
func decodeGoals(data []byte) ([]domain.Goal, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: goal list is not valid UTF-8", domain.ErrInvalidArgument)
	}
	lines := splitLines(string(data))
	goals := make([]domain.Goal, len(lines))
	for i, line := range lines {
		goals[i] = domain.Goal{Index: i, Text: line}
	}
	return goals, nil
}

// isLineBreak reports whether r ends a line. Besides \n and \r this
// includes the vertical tab, form feed, the file, group and record
// separators, NEL and the Unicode line and paragraph separators.
func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// splitLines splits s at every line break; "\r\n" counts as one break.
// A break at the very end does not start another line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if i < start || !isLineBreak(r) {
			continue
		}
		lines = append(lines, s[start:i])
		start = i + utf8.RuneLen(r)
		if r == '\r' && strings.HasPrefix(s[start:], "\n") {
			start++
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func resourceErr(resource domain.Resource, path string, err error) error {
	return &domain.ResourceNotFoundError{Resource: resource, Path: path, Err: err}
}
