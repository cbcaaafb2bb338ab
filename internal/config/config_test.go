package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/landmark-lite/landmark/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "landmark.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
analysis:
  placeholder: "<GOAL>"
  staging_dir: /tmp/lm
  parallelism: 4
  solve_timeout: 30s
  fail_fast: true
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Placeholder != "<GOAL>" {
		t.Errorf("Placeholder = %q", cfg.Placeholder)
	}
	if cfg.StagingDir != "/tmp/lm" {
		t.Errorf("StagingDir = %q", cfg.StagingDir)
	}
	if cfg.Parallelism != 4 {
		t.Errorf("Parallelism = %d", cfg.Parallelism)
	}
	if cfg.SolveTimeout != 30*time.Second {
		t.Errorf("SolveTimeout = %s", cfg.SolveTimeout)
	}
	if !cfg.FailFast || cfg.StrictPlaceholder {
		t.Errorf("FailFast = %v, StrictPlaceholder = %v", cfg.FailFast, cfg.StrictPlaceholder)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := domain.DefaultConfig()
	if cfg.Placeholder != want.Placeholder || cfg.Parallelism != want.Parallelism {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "analysis:\n  workers: 3\n"},
		{"bad parallelism", "analysis:\n  parallelism: 500\n"},
		{"negative timeout", "analysis:\n  solve_timeout: -1s\n"},
		{"malformed", "analysis: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), nil)
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Load error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("LM_TEST_DIR", "/srv/landmarks")

	file, err := Parse([]byte("analysis:\n  staging_dir: ${LM_TEST_DIR}/stage\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if file.Analysis.StagingDir != "/srv/landmarks/stage" {
		t.Errorf("StagingDir = %q", file.Analysis.StagingDir)
	}
}

func TestParseEmpty(t *testing.T) {
	file, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if file.Analysis.Parallelism != 0 {
		t.Errorf("Parallelism = %d, want 0", file.Analysis.Parallelism)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvStagingDir:        "/var/lm",
		EnvParallelism:       "8",
		EnvSolveTimeout:      "2m",
		EnvStrictPlaceholder: "true",
		EnvFailFast:          "not-a-bool",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	cfg := ApplyEnv(domain.AnalysisConfig{FailFast: true}, lookup, logger)

	if cfg.StagingDir != "/var/lm" || cfg.Parallelism != 8 || cfg.SolveTimeout != 2*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.StrictPlaceholder {
		t.Errorf("StrictPlaceholder = false, want true")
	}
	if !cfg.FailFast {
		t.Errorf("FailFast changed by invalid value")
	}
	if !strings.Contains(logs.String(), EnvFailFast) {
		t.Errorf("invalid value not logged: %s", logs.String())
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv(EnvParallelism, "2")
	path := writeConfig(t, "analysis:\n  parallelism: 6\n")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Parallelism != 2 {
		t.Errorf("Parallelism = %d, want 2", cfg.Parallelism)
	}
}
