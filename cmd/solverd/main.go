// Command solverd serves a landmark extractor over gRPC so that analysis
// runs on other hosts can use it as a remote solver.
package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/example/landmark-lite/internal/config"
	"github.com/example/landmark-lite/internal/observability"
	grpcTransport "github.com/example/landmark-lite/internal/transport/grpc"
	"github.com/example/landmark-lite/landmark/solver"
)

// Config holds the daemon configuration.
type Config struct {
	GRPCAddr   string
	DebugAddr  string
	ConfigPath string
	Command    string
	Args       []string
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := loadConfig()
	if cfg.Command == "" {
		logger.Error("SOLVER_COMMAND is required")
		os.Exit(2)
	}

	analysis, err := config.Load(cfg.ConfigPath, logger)
	if err != nil {
		logger.Error("failed to load configuration", "path", cfg.ConfigPath, "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics)
		logger.Info("starting debug server", "addr", cfg.DebugAddr)
		if err := http.ListenAndServe(cfg.DebugAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("debug server error", "error", err)
		}
	}()

	exec := solver.NewExecSolver(cfg.Command, cfg.Args...)
	exec.Timeout = analysis.SolveTimeout

	server := grpcTransport.NewServer(exec,
		grpcTransport.WithLogger(logger),
		grpcTransport.WithStagingDir(analysis.StagingDir),
		grpcTransport.WithMetrics(metrics),
	)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		server.GracefulStop()
	}()

	logger.Info("starting landmark solver service",
		"addr", cfg.GRPCAddr,
		"command", cfg.Command,
		"solve_timeout", analysis.SolveTimeout)
	if err := server.Serve(cfg.GRPCAddr); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() Config {
	cfg := Config{
		GRPCAddr:   ":50051",
		DebugAddr:  ":6060",
		ConfigPath: "landmark.yaml",
	}
	if v := os.Getenv("SOLVER_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("DEBUG_ADDR"); v != "" {
		cfg.DebugAddr = v
	}
	if v := os.Getenv("LANDMARK_CONFIG"); v != "" {
		cfg.ConfigPath = v
	}
	cfg.Command = os.Getenv("SOLVER_COMMAND")
	if v := os.Getenv("SOLVER_ARGS"); v != "" {
		cfg.Args = strings.Fields(v)
	}
	return cfg
}
