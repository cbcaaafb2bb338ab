package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultPlaceholder is the marker in a task template that is replaced by a goal.
const DefaultPlaceholder = "<HYPOTHESIS>"

// AnalysisConfig holds configuration for a landmark analysis run.
type AnalysisConfig struct {
	// Placeholder is the template marker replaced by each goal condition.
	// Default: "<HYPOTHESIS>"
	Placeholder string `yaml:"placeholder"`

	// StagingDir is the base directory for extracted domains and task files.
	// Each bundle stages into its own subdirectory.
	// Default: $TMPDIR/landmark-lite
	StagingDir string `yaml:"staging_dir"`

	// KeepStaging keeps staged files after the bundle is closed.
	KeepStaging bool `yaml:"keep_staging"`

	// StrictPlaceholder rejects templates that contain no placeholder.
	// When false a warning is logged and every task equals the template.
	StrictPlaceholder bool `yaml:"strict_placeholder"`

	// Parallelism is the number of goals instantiated and solved concurrently.
	// Default: 1
	Parallelism int `yaml:"parallelism"`

	// SolveTimeout bounds a single solver call. Zero means no timeout.
	SolveTimeout time.Duration `yaml:"solve_timeout"`

	// FailFast aborts the run on the first solver failure instead of
	// recording it and continuing with the remaining goals.
	FailFast bool `yaml:"fail_fast"`
}

// MaxParallelism bounds AnalysisConfig.Parallelism.
const MaxParallelism = 64

// DefaultConfig returns the default configuration.
func DefaultConfig() AnalysisConfig {
	return AnalysisConfig{
		Placeholder: DefaultPlaceholder,
		StagingDir:  filepath.Join(os.TempDir(), "landmark-lite"),
		Parallelism: 1,
	}
}

// Validate checks that the configuration is valid.
func (c *AnalysisConfig) Validate() error {
	if c.Placeholder == "" {
		return fmt.Errorf("%w: Placeholder must not be empty", ErrInvalidConfig)
	}
	if c.StagingDir == "" {
		return fmt.Errorf("%w: StagingDir must not be empty", ErrInvalidConfig)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("%w: Parallelism must be at least 1, got %d",
			ErrInvalidConfig, c.Parallelism)
	}
	if c.Parallelism > MaxParallelism {
		return fmt.Errorf("%w: Parallelism must be at most %d, got %d",
			ErrInvalidConfig, MaxParallelism, c.Parallelism)
	}
	if c.SolveTimeout < 0 {
		return fmt.Errorf("%w: SolveTimeout must not be negative, got %s",
			ErrInvalidConfig, c.SolveTimeout)
	}
	return nil
}

// WithDefaults returns a new config with defaults applied for zero values.
func (c AnalysisConfig) WithDefaults() AnalysisConfig {
	defaults := DefaultConfig()
	if c.Placeholder == "" {
		c.Placeholder = defaults.Placeholder
	}
	if c.StagingDir == "" {
		c.StagingDir = defaults.StagingDir
	}
	if c.Parallelism == 0 {
		c.Parallelism = defaults.Parallelism
	}
	return c
}
