package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	app "github.com/kode4food/relay"
	"github.com/kode4food/relay/internal/archive"
	"github.com/kode4food/relay/internal/config"
	"github.com/kode4food/relay/internal/definition"
	"github.com/kode4food/relay/internal/events"
	"github.com/kode4food/relay/internal/executor"
	"github.com/kode4food/relay/internal/graph"
	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/internal/server"
	"github.com/kode4food/relay/internal/store"
	"github.com/kode4food/relay/pkg/log"
)

type relay struct {
	cfg        *config.Config
	client     *graph.Client
	store      store.Store
	archive    *archive.BlobArchive
	hub        *events.Hub
	engine     *pipeline.Engine
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2

	usage = "usage: relay serve | relay run <definition-file>"
)

var (
	ErrConnectStore = errors.New("failed to connect to graph store")
	ErrOpenArchive  = errors.New("failed to open run archive")
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return exitUsage
	}

	loadDotEnv()
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		return exitFailure
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		return exitFailure
	}

	s := &relay{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}

	switch {
	case args[0] == "serve" && len(args) == 1:
		s.setupLogging(stdout)
		if err := s.serve(); err != nil {
			slog.Error("Failed to start application", log.Error(err))
			return exitFailure
		}
		return exitOK
	case args[0] == "run" && len(args) == 2:
		s.setupLogging(stderr)
		return s.runFile(args[1], stdout)
	default:
		_, _ = fmt.Fprintln(stderr, usage)
		return exitUsage
	}
}

func loadDotEnv() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", log.Error(err))
	}
}

func (s *relay) setupLogging(w io.Writer) {
	level, _ := log.ParseLevel(s.cfg.LogLevel)

	env := os.Getenv("ENV")
	logger := log.NewWithWriter(w, app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Relay starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("store_backend", s.cfg.Store.Backend),
		slog.String("store_redis_addr", s.cfg.Store.Addr),
		slog.Int("store_redis_db", s.cfg.Store.DB),
		slog.String("failure_policy", s.cfg.FailurePolicy),
		slog.Bool("archive", s.cfg.Archive.URL != ""),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *relay) serve() error {
	if err := s.initialize(context.Background()); err != nil {
		return err
	}
	defer s.close()
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *relay) runFile(path string, stdout io.Writer) int {
	def, err := definition.Load(path)
	if err != nil {
		slog.Error("Failed to load definition",
			slog.String("path", path),
			log.Error(err))
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	if err := s.initialize(ctx); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		return exitFailure
	}
	defer s.close()

	p, _, err := definition.Apply(ctx, s.engine, def)
	if err != nil {
		slog.Error("Failed to apply definition",
			log.Pipeline(def.Name),
			log.Error(err))
		return exitFailure
	}

	rep, err := p.RunWithReport(ctx)
	if rep != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			slog.Error("Failed to write report", log.Error(err))
		}
	}
	if err != nil || rep.Failed() {
		return exitFailure
	}
	return exitOK
}

func (s *relay) initialize(ctx context.Context) error {
	if err := s.initializeStore(ctx); err != nil {
		return err
	}
	if err := s.initializeArchive(ctx); err != nil {
		s.close()
		return err
	}

	s.hub = events.NewHub()
	deps := pipeline.Dependencies{
		Store: s.store,
		Executor: executor.NewShellExecutor(
			s.cfg.StepShell, s.cfg.ExecutorOptions()...,
		),
		Events: s.hub,
	}
	if s.archive != nil {
		deps.Archive = s.archive
	}

	eng, err := pipeline.NewEngine(deps, s.cfg.PipelineConfig())
	if err != nil {
		s.close()
		return err
	}
	s.engine = eng
	return nil
}

func (s *relay) initializeStore(ctx context.Context) error {
	if s.cfg.Store.Backend == config.BackendMemory {
		s.store = store.NewMemoryStore()
		return nil
	}

	s.client = graph.NewClient(s.cfg.Store.GraphOptions())
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Store.Timeout)
	defer cancel()
	if err := s.client.Ping(ctx); err != nil {
		_ = s.client.Close()
		s.client = nil
		return fmt.Errorf("%w: %w", ErrConnectStore, err)
	}
	s.store = store.NewFalkorStore(s.client)
	return nil
}

func (s *relay) initializeArchive(ctx context.Context) error {
	if s.cfg.Archive.URL == "" {
		return nil
	}
	a, err := archive.NewBlobArchive(
		ctx, s.cfg.Archive.URL, s.cfg.Archive.Prefix,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	s.archive = a
	return nil
}

func (s *relay) startServer() {
	var reports server.ReportReader
	if s.archive != nil {
		reports = s.archive
	}
	s.apiServer = server.NewServer(s.engine, s.hub, reports)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
			s.quit <- syscall.SIGTERM
		}
	}()
}

func (s *relay) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	slog.Info("Server exited")
}

func (s *relay) close() {
	if s.hub != nil {
		s.hub.Close()
		s.hub = nil
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			slog.Error("Failed to close archive", log.Error(err))
		}
		s.archive = nil
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			slog.Error("Failed to close store client", log.Error(err))
		}
		s.client = nil
	}
}
