// Package config loads analysis configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/landmark-lite/landmark/domain"
)

// Environment variables that override file settings.
const (
	EnvStagingDir        = "LANDMARK_STAGING_DIR"
	EnvParallelism       = "LANDMARK_PARALLELISM"
	EnvSolveTimeout      = "LANDMARK_SOLVE_TIMEOUT"
	EnvStrictPlaceholder = "LANDMARK_STRICT_PLACEHOLDER"
	EnvFailFast          = "LANDMARK_FAIL_FAST"
)

// File is the on-disk configuration layout.
type File struct {
	Analysis domain.AnalysisConfig `yaml:"analysis"`
}

// Load reads the YAML file at path, overlays the environment, applies
// defaults and validates the result. A missing file yields the defaults.
// ${VAR} references in the file are expanded from the environment.
func Load(path string, logger *slog.Logger) (domain.AnalysisConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var file File
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("config file not found, using defaults", "path", path)
	case err != nil:
		return domain.AnalysisConfig{}, fmt.Errorf("failed to read config file: %w", err)
	default:
		file, err = Parse(data)
		if err != nil {
			return domain.AnalysisConfig{}, fmt.Errorf("%s: %w", path, err)
		}
	}

	cfg := ApplyEnv(file.Analysis, os.LookupEnv, logger).WithDefaults()
	if err := cfg.Validate(); err != nil {
		return domain.AnalysisConfig{}, err
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var file File
	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return file, nil
}

// ApplyEnv overlays environment settings on cfg. Values that do not parse
// are logged and ignored.
func ApplyEnv(cfg domain.AnalysisConfig, lookup func(string) (string, bool), logger *slog.Logger) domain.AnalysisConfig {
	if logger == nil {
		logger = slog.Default()
	}
	invalid := func(key, value string, err error) {
		logger.Warn("ignoring invalid environment setting", "key", key, "value", value, "error", err)
	}

	if v, ok := lookup(EnvStagingDir); ok && v != "" {
		cfg.StagingDir = v
	}
	if v, ok := lookup(EnvParallelism); ok {
		if n, err := strconv.Atoi(v); err != nil {
			invalid(EnvParallelism, v, err)
		} else {
			cfg.Parallelism = n
		}
	}
	if v, ok := lookup(EnvSolveTimeout); ok {
		if d, err := time.ParseDuration(v); err != nil {
			invalid(EnvSolveTimeout, v, err)
		} else {
			cfg.SolveTimeout = d
		}
	}
	if v, ok := lookup(EnvStrictPlaceholder); ok {
		if b, err := strconv.ParseBool(v); err != nil {
			invalid(EnvStrictPlaceholder, v, err)
		} else {
			cfg.StrictPlaceholder = b
		}
	}
	if v, ok := lookup(EnvFailFast); ok {
		if b, err := strconv.ParseBool(v); err != nil {
			invalid(EnvFailFast, v, err)
		} else {
			cfg.FailFast = b
		}
	}
	return cfg
}
