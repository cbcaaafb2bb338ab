// Package grpc exposes a landmark solver as a gRPC service so that analysis
// runs can delegate solving to a remote host.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/landmark-lite/internal/fsops"
	"github.com/example/landmark-lite/internal/observability"
	"github.com/example/landmark-lite/landmark/domain"
	"github.com/example/landmark-lite/landmark/solver"
)

// SolverServer is the server API of the landmark solver service.
type SolverServer interface {
	Solve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Server is the gRPC server wrapping a solver.Solver.
type Server struct {
	solver     solver.Solver
	stagingDir string
	logger     *slog.Logger
	metrics    *observability.Metrics
	grpcServer *grpc.Server
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStagingDir sets where received domains and tasks are written before
// the wrapped solver runs. Defaults to os.TempDir().
func WithStagingDir(dir string) ServerOption {
	return func(s *Server) {
		s.stagingDir = dir
	}
}

// WithMetrics records solve durations and outcomes into m.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new gRPC server for the given solver.
func NewServer(sv solver.Solver, opts ...ServerOption) *Server {
	s := &Server{
		solver:     sv,
		stagingDir: os.TempDir(),
		logger:     slog.Default(),
		metrics:    observability.NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(s.logger),
			RecoveryInterceptor(s.logger),
		),
	)
	Register(s.grpcServer, s)
	return s
}

// Register registers a SolverServer on a grpc.Server.
func Register(registrar grpc.ServiceRegistrar, srv SolverServer) {
	registrar.RegisterService(&serviceDesc, srv)
}

// Serve starts the gRPC server on the given address.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("solver service listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

// ServeListener serves on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Metrics returns the metrics the server records into.
func (s *Server) Metrics() *observability.Metrics {
	return s.metrics
}

// GracefulStop gracefully stops the server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Stop stops the server immediately.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// Solve stages the received domain and task and runs the wrapped solver.
func (s *Server) Solve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, domainText, taskText, err := solver.DecodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := id.Seq(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := fsops.EnsureDir(s.stagingDir); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	dir, err := os.MkdirTemp(s.stagingDir, "solve-*")
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	defer os.RemoveAll(dir)

	domainPath := filepath.Join(dir, "domain.pddl")
	taskPath := filepath.Join(dir, id.Filename(".pddl"))
	if err := fsops.AtomicWrite(domainPath, []byte(domainText), 0o644); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if err := fsops.AtomicWrite(taskPath, []byte(taskText), 0o644); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	start := time.Now()
	set, err := s.solver.Solve(ctx, solver.Request{TaskID: id, DomainPath: domainPath, TaskPath: taskPath})
	if err != nil {
		st := toStatus(err)
		outcome := observability.OutcomeError
		if status.Code(st) == codes.DeadlineExceeded {
			outcome = observability.OutcomeTimeout
		}
		s.metrics.ObserveSolve(time.Since(start), outcome)
		return nil, st
	}
	s.metrics.ObserveSolve(time.Since(start), observability.OutcomeOK)

	out, err := solver.EncodeLandmarks(set)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps solver errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrSolverTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrSolver):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func solveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SolverServer).Solve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: solver.SolveMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SolverServer).Solve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: solver.ServiceName,
	HandlerType: (*SolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Solve",
			Handler:    solveHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "landmark/v1/solver.proto",
}

// LoggingInterceptor returns a gRPC interceptor that logs requests and their duration.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := []any{
			"method", info.FullMethod,
			"duration", time.Since(start),
		}
		if taskID := extractTaskID(req); taskID != "" {
			attrs = append(attrs, "task_id", taskID)
		}
		if err != nil {
			logger.Warn("gRPC call failed", append(attrs, "error", err)...)
		} else {
			logger.Debug("gRPC call", attrs...)
		}
		return resp, err
	}
}

func extractTaskID(req interface{}) string {
	if s, ok := req.(*structpb.Struct); ok {
		return s.GetFields()[solver.FieldTaskID].GetStringValue()
	}
	return ""
}

// RecoveryInterceptor returns a gRPC interceptor that recovers from panics.
func RecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC panic recovered", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, fmt.Sprintf("internal error: %v", r))
			}
		}()
		return handler(ctx, req)
	}
}
