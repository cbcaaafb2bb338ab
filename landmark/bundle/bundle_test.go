package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/example/landmark-lite/landmark/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T) domain.AnalysisConfig {
	t.Helper()
	return domain.AnalysisConfig{StagingDir: t.TempDir()}
}

func fixedID(id string) Option {
	return WithIDGenerator(func() string { return id })
}

func TestLoadThreeFiles(t *testing.T) {
	dir := t.TempDir()
	domainPath := writeFile(t, dir, "domain.pddl", "(define (domain d))")
	goalsPath := writeFile(t, dir, "hyps.dat", "(goal-a)\n(goal-b)\n(goal-a)\n")
	templatePath := writeFile(t, dir, "template.pddl", "(:goal <HYPOTHESIS>)")

	cfg := testConfig(t)
	b, err := Load(domainPath, goalsPath, templatePath, WithConfig(cfg), fixedID("abc"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer b.Close()

	if !filepath.IsAbs(b.DomainPath) {
		t.Errorf("DomainPath %q should be absolute", b.DomainPath)
	}
	want := []string{"(goal-a)", "(goal-b)", "(goal-a)"}
	if got := b.GoalTexts(); !reflect.DeepEqual(got, want) {
		t.Errorf("GoalTexts = %v, want %v", got, want)
	}
	for i, g := range b.Goals {
		if g.Index != i {
			t.Errorf("Goals[%d].Index = %d", i, g.Index)
		}
	}
	if b.Template != "(:goal <HYPOTHESIS>)" {
		t.Errorf("Template = %q", b.Template)
	}
	if !b.HasPlaceholder() {
		t.Error("expected template to contain placeholder")
	}
	if b.StagingDir != filepath.Join(cfg.StagingDir, "run-abc") {
		t.Errorf("StagingDir = %q", b.StagingDir)
	}
	if _, err := os.Stat(b.StagingDir); err != nil {
		t.Errorf("staging dir should exist: %v", err)
	}
}

func TestLoadRelativeDomainResolvesAbsolute(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "domain.pddl", "(define (domain d))")
	goalsPath := writeFile(t, dir, "hyps.dat", "g\n")
	templatePath := writeFile(t, dir, "template.pddl", "<HYPOTHESIS>")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	b, err := Load("domain.pddl", goalsPath, templatePath, WithConfig(testConfig(t)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer b.Close()

	resolved, _ := filepath.EvalSymlinks(filepath.Join(dir, "domain.pddl"))
	got, _ := filepath.EvalSymlinks(b.DomainPath)
	if got != resolved {
		t.Errorf("DomainPath = %q, want %q", got, resolved)
	}
}

func TestLoadMissingResources(t *testing.T) {
	dir := t.TempDir()
	domainPath := writeFile(t, dir, "domain.pddl", "d")
	goalsPath := writeFile(t, dir, "hyps.dat", "g")
	templatePath := writeFile(t, dir, "template.pddl", "t")
	missing := filepath.Join(dir, "missing")

	tests := []struct {
		name     string
		domain   string
		goals    string
		template string
		want     domain.Resource
	}{
		{"domain", missing, goalsPath, templatePath, domain.ResourceDomain},
		{"goals", domainPath, missing, templatePath, domain.ResourceGoals},
		{"template", domainPath, goalsPath, missing, domain.ResourceTemplate},
		{"domain is dir", dir, goalsPath, templatePath, domain.ResourceDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			_, err := Load(tt.domain, tt.goals, tt.template, WithConfig(cfg))
			if !errors.Is(err, domain.ErrResourceNotFound) {
				t.Fatalf("error = %v, want ErrResourceNotFound", err)
			}
			var rnf *domain.ResourceNotFoundError
			if !errors.As(err, &rnf) {
				t.Fatalf("expected ResourceNotFoundError, got %T", err)
			}
			if rnf.Resource != tt.want {
				t.Errorf("Resource = %q, want %q", rnf.Resource, tt.want)
			}
			entries, _ := os.ReadDir(cfg.StagingDir)
			if len(entries) != 0 {
				t.Errorf("no staging state should be left behind, found %d entries", len(entries))
			}
		})
	}
}

func TestLoadInvalidUTF8Goals(t *testing.T) {
	dir := t.TempDir()
	domainPath := writeFile(t, dir, "domain.pddl", "d")
	goalsPath := writeFile(t, dir, "hyps.dat", "\xff\xfe")
	templatePath := writeFile(t, dir, "template.pddl", "t")

	_, err := Load(domainPath, goalsPath, templatePath, WithConfig(testConfig(t)))
	var rnf *domain.ResourceNotFoundError
	if !errors.As(err, &rnf) || rnf.Resource != domain.ResourceGoals {
		t.Fatalf("error = %v, want goals ResourceNotFoundError", err)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	_, err := Load("a", "b", "c", WithConfig(domain.AnalysisConfig{Parallelism: -1}))
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\nb", []string{"a", "b"}},
		{"a\r\nb\r\n", []string{"a", "b"}},
		{"a\rb", []string{"a", "b"}},
		{"a\n\nb\n", []string{"a", "", "b"}},
		{"\n", []string{""}},
		{"\r\n\r\n", []string{"", ""}},
		{"a\r\r\nb", []string{"a", "", "b"}},
		{"a\vb\fc", []string{"a", "b", "c"}},
		{"a\x1cb\x1dc\x1ed", []string{"a", "b", "c", "d"}},
		{"a\u0085b\u2028c\u2029", []string{"a", "b", "c"}},
		{"é\u2028ü", []string{"é", "ü"}},
		{"a\tb", []string{"a\tb"}},
	}
	for _, tt := range tests {
		if got := splitLines(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmptyGoalList(t *testing.T) {
	dir := t.TempDir()
	domainPath := writeFile(t, dir, "domain.pddl", "d")
	goalsPath := writeFile(t, dir, "hyps.dat", "")
	templatePath := writeFile(t, dir, "template.pddl", "<HYPOTHESIS>")

	b, err := Load(domainPath, goalsPath, templatePath, WithConfig(testConfig(t)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer b.Close()
	if len(b.Goals) != 0 {
		t.Errorf("Goals = %v, want none", b.Goals)
	}
}

func TestNextTaskIDPerBundle(t *testing.T) {
	b1, b2 := &Bundle{}, &Bundle{}
	if id := b1.NextTaskID(); id != "task1" {
		t.Errorf("first id = %s, want task1", id)
	}
	if id := b1.NextTaskID(); id != "task2" {
		t.Errorf("second id = %s, want task2", id)
	}
	if id := b2.NextTaskID(); id != "task1" {
		t.Errorf("other bundle id = %s, want task1", id)
	}
}

func TestGoalAccessor(t *testing.T) {
	b := &Bundle{Goals: []domain.Goal{{Index: 0, Text: "x"}}}
	g, err := b.Goal(0)
	if err != nil || g.Text != "x" {
		t.Errorf("Goal(0) = %v, %v", g, err)
	}
	if _, err := b.Goal(1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Goal(1) error = %v, want ErrNotFound", err)
	}
}

func TestCloseRemovesStaging(t *testing.T) {
	dir := t.TempDir()
	domainPath := writeFile(t, dir, "domain.pddl", "d")
	goalsPath := writeFile(t, dir, "hyps.dat", "g")
	templatePath := writeFile(t, dir, "template.pddl", "t")

	b, err := Load(domainPath, goalsPath, templatePath, WithConfig(testConfig(t)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(b.StagingDir); !os.IsNotExist(err) {
		t.Errorf("staging dir should be removed, stat err = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}

	cfg := testConfig(t)
	cfg.KeepStaging = true
	kept, err := Load(domainPath, goalsPath, templatePath, WithConfig(cfg))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := kept.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(kept.StagingDir); err != nil {
		t.Errorf("staging dir should be kept: %v", err)
	}
}
