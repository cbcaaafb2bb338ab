package e2e

import (
	"context"
	"net"
	"os/exec"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/example/landmark-lite/internal/observability"
	grpcTransport "github.com/example/landmark-lite/internal/transport/grpc"
	"github.com/example/landmark-lite/landmark/solver"
)

const bufSize = 1024 * 1024

// extractorScript prints a shared landmark plus every "(on x y)" atom of
// the task, and fails if the domain file is missing.
const extractorScript = `test -f "$1" || exit 3
echo "(clear a)"
grep -o "(on [a-z] [a-z])" "$2"`

// archivePath is the bundle fixture shared with the bundle package tests.
var archivePath = filepath.Join("..", "..", "landmark", "bundle", "testdata", "valid.tar.bz2")

// TestEnv wires a solver service behind gRPC so analysis runs can use it
// as a remote solver.
type TestEnv struct {
	Exec    *solver.ExecSolver
	Server  *grpcTransport.Server
	Remote  *solver.RemoteSolver
	Metrics *observability.Metrics
}

// NewTestEnv starts a bufconn solver service around a shell extractor.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ex := solver.NewExecSolver("sh", "-c", extractorScript, "extract", solver.ArgDomain, solver.ArgTask)
	env := NewTestEnvWith(t, ex)
	env.Exec = ex
	return env
}

// NewTestEnvWith starts a bufconn solver service around sv.
func NewTestEnvWith(t *testing.T, sv solver.Solver) *TestEnv {
	t.Helper()
	env := &TestEnv{Metrics: observability.NewMetrics()}

	lis := bufconn.Listen(bufSize)
	env.Server = grpcTransport.NewServer(sv,
		grpcTransport.WithStagingDir(t.TempDir()),
		grpcTransport.WithMetrics(env.Metrics),
	)
	go func() {
		if err := env.Server.ServeListener(lis); err != nil {
			t.Logf("server exited: %v", err)
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
	env.Remote = remote

	t.Cleanup(func() {
		conn.Close()
		env.Server.Stop()
		lis.Close()
	})
	return env
}
