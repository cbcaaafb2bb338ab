package solver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/example/landmark-lite/landmark/domain"
)

// Argument placeholders expanded by ExecSolver.
const (
	ArgDomain = "{domain}"
	ArgTask   = "{task}"
)

// pipeWaitDelay bounds how long Solve waits for output pipes to close
// after the command was killed or exited.
const pipeWaitDelay = 500 * time.Millisecond

// ExecSolver runs an external landmark extractor as a subprocess.
//
// The command receives the domain and task paths through Args and prints
// one landmark per line on stdout. Blank lines and lines starting with '#'
// are ignored. A non-zero exit status is a solver failure.
type ExecSolver struct {
	// Command is the executable to run.
	Command string

	// Args are passed to Command after expanding {domain} and {task}.
	// Defaults to []string{"{domain}", "{task}"}.
	Args []string

	// Dir is the working directory of the subprocess.
	Dir string

	// Environment contains additional environment variables.
	Environment map[string]string

	// Timeout bounds each invocation. Zero means the caller's context decides.
	Timeout time.Duration
}

// NewExecSolver creates an ExecSolver for the given command.
func NewExecSolver(command string, args ...string) *ExecSolver {
	return &ExecSolver{
		Command: command,
		Args:    args,
	}
}

// Solve implements Solver.
func (s *ExecSolver) Solve(ctx context.Context, req Request) (domain.LandmarkSet, error) {
	if err := req.Validate(); err != nil {
		return domain.LandmarkSet{}, err
	}
	if s.Command == "" {
		return domain.LandmarkSet{}, fmt.Errorf("%w: no solver command configured", domain.ErrInvalidConfig)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.Command, s.expandArgs(req)...)
	// Kill the whole process group on cancellation so wrappers cannot
	// leave a planner running that keeps the output pipes open.
	setProcessGroup(cmd)
	cmd.WaitDelay = pipeWaitDelay
	cmd.Dir = s.Dir
	cmd.Env = os.Environ()
	for k, v := range s.Environment {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return domain.LandmarkSet{}, fmt.Errorf("%w: %s after %v", domain.ErrSolverTimeout, req.TaskID, ctxErr)
		}
		return domain.LandmarkSet{}, ctxErr
	}
	if err != nil {
		return domain.LandmarkSet{}, fmt.Errorf("%w: %s: %v\nstderr: %s",
			domain.ErrSolver, s.Command, err, strings.TrimSpace(stderr.String()))
	}

	return ParseOutput(stdout.Bytes())
}

func (s *ExecSolver) expandArgs(req Request) []string {
	args := s.Args
	if len(args) == 0 {
		args = []string{ArgDomain, ArgTask}
	}
	r := strings.NewReplacer(ArgDomain, req.DomainPath, ArgTask, req.TaskPath)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// ParseOutput reads one landmark per line.
func ParseOutput(data []byte) (domain.LandmarkSet, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return domain.LandmarkSet{}, fmt.Errorf("%w: unreadable solver output: %v", domain.ErrSolver, err)
	}
	return domain.ParseLandmarks(lines), nil
}
