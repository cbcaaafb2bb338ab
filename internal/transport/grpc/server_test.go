package grpc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/example/landmark-lite/internal/observability"
	"github.com/example/landmark-lite/landmark/domain"
	"github.com/example/landmark-lite/landmark/solver"
)

const bufSize = 1024 * 1024

// setupRemote starts a bufconn server around sv and returns a RemoteSolver for it.
func setupRemote(t *testing.T, sv solver.Solver) *solver.RemoteSolver {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := NewServer(sv, WithStagingDir(t.TempDir()))

	go func() {
		if err := srv.ServeListener(lis); err != nil {
			t.Logf("Server exited with error: %v", err)
		}
	}()

	remote, conn, err := solver.DialRemoteSolver(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialRemoteSolver failed: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		lis.Close()
	})
	return remote
}

func stage(t *testing.T, id domain.TaskID, taskText string) solver.Request {
	t.Helper()
	dir := t.TempDir()
	domainPath := filepath.Join(dir, "domain.pddl")
	taskPath := filepath.Join(dir, id.Filename(".pddl"))
	if err := os.WriteFile(domainPath, []byte("(define (domain d))"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(taskPath, []byte(taskText), 0o644); err != nil {
		t.Fatal(err)
	}
	return solver.Request{TaskID: id, DomainPath: domainPath, TaskPath: taskPath}
}

func TestRemoteSolve(t *testing.T) {
	fake := solver.NewFakeSolver().WithContent("(:goal (g1))", "(at a)", "(at b)")
	remote := setupRemote(t, fake)

	got, err := remote.Solve(context.Background(), stage(t, "task1", "(:goal (g1))"))
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !got.Equal(domain.NewLandmarkSet("(at a)", "(at b)")) {
		t.Errorf("Solve = %s", got)
	}

	calls := fake.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("server solver called %d times, want 1", len(calls))
	}
	if calls[0].TaskID != "task1" {
		t.Errorf("TaskID = %q, want task1", calls[0].TaskID)
	}
	if filepath.Base(calls[0].TaskPath) != "task1.pddl" {
		t.Errorf("server staged task as %q", calls[0].TaskPath)
	}
	if _, err := os.Stat(calls[0].TaskPath); !os.IsNotExist(err) {
		t.Error("server should remove staged files after solving")
	}
}

func TestRemoteSolveEmptySet(t *testing.T) {
	fake := solver.NewFakeSolver().WithTask("task2")
	remote := setupRemote(t, fake)

	got, err := remote.Solve(context.Background(), stage(t, "task2", "x"))
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("Solve = %s, want empty", got)
	}
}

func TestRemoteSolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		timeout bool
	}{
		{"solver failure", domain.ErrSolver, domain.ErrSolver, false},
		{"timeout", domain.ErrSolverTimeout, domain.ErrSolverTimeout, true},
		{"internal", errors.New("boom"), domain.ErrSolver, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := solver.NewFakeSolver().WithFailure("task1", tt.err)
			remote := setupRemote(t, fake)

			_, err := remote.Solve(context.Background(), stage(t, "task1", "x"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if got := errors.Is(err, domain.ErrSolverTimeout); got != tt.timeout {
				t.Errorf("timeout = %v, want %v", got, tt.timeout)
			}
		})
	}
}

func TestRemoteSolveDeadline(t *testing.T) {
	fake := solver.NewFakeSolver().WithTask("task1", "A").WithDelay(2 * time.Second)
	remote := setupRemote(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := remote.Solve(ctx, stage(t, "task1", "x"))
	if !errors.Is(err, domain.ErrSolverTimeout) {
		t.Fatalf("error = %v, want ErrSolverTimeout", err)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	panicky := solver.Func(func(ctx context.Context, req solver.Request) (domain.LandmarkSet, error) {
		panic("solver exploded")
	})
	remote := setupRemote(t, panicky)

	_, err := remote.Solve(context.Background(), stage(t, "task1", "x"))
	if !errors.Is(err, domain.ErrSolver) {
		t.Fatalf("error = %v, want ErrSolver", err)
	}
}

func TestServerRejectsBadTaskID(t *testing.T) {
	srv := NewServer(solver.NewFakeSolver(), WithStagingDir(t.TempDir()))
	req, err := solver.EncodeRequest("../../etc/passwd", "d", "t")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Solve(context.Background(), req); err == nil {
		t.Error("expected invalid task id to be rejected")
	}
}

func TestServerRecordsMetrics(t *testing.T) {
	fake := solver.NewFakeSolver().
		WithTask("task1", "L").
		WithFailure("task2", domain.ErrSolver)
	srv := NewServer(fake, WithStagingDir(t.TempDir()), WithMetrics(observability.NewMetrics()))

	for _, id := range []domain.TaskID{"task1", "task2"} {
		req, err := solver.EncodeRequest(id, "(define (domain d))", "(define (problem p))")
		if err != nil {
			t.Fatal(err)
		}
		srv.Solve(context.Background(), req)
	}

	outcomes := srv.Metrics().Snapshot().SolveOutcomes
	if outcomes[observability.OutcomeOK] != 1 || outcomes[observability.OutcomeError] != 1 {
		t.Errorf("SolveOutcomes = %v, want one ok and one error", outcomes)
	}
}
