package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kode4food/relay/internal/config"
	"github.com/kode4food/relay/internal/events"
	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/internal/store"
)

type (
	// TestEnv holds all the components needed for pipeline testing
	TestEnv struct {
		Engine   *pipeline.Engine
		Store    *store.MemoryStore
		Executor *MockExecutor
		Hub      *events.Hub
		Config   pipeline.Config
	}

	// EnvOption adjusts the engine dependencies and configuration before
	// the engine is built
	EnvOption func(*pipeline.Dependencies, *pipeline.Config)
)

// NewTestConfig creates a default configuration with debug logging and the
// in-memory store selected
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Store.Backend = config.BackendMemory
	return cfg
}

// NewTestEnv creates an engine over an in-memory store, a mock executor and
// a running event hub. The hub is closed when the test completes
func NewTestEnv(t *testing.T, opts ...EnvOption) *TestEnv {
	t.Helper()

	env := &TestEnv{
		Store:    store.NewMemoryStore(),
		Executor: NewMockExecutor(),
		Hub:      events.NewHub(),
	}
	t.Cleanup(env.Hub.Close)

	deps := pipeline.Dependencies{
		Store:    env.Store,
		Executor: env.Executor,
		Events:   env.Hub,
	}
	cfg := pipeline.Config{
		FailurePolicy: pipeline.PolicyContinue,
		CloneAttempts: pipeline.DefaultCloneAttempts,
	}
	for _, o := range opts {
		o(&deps, &cfg)
	}

	eng, err := pipeline.NewEngine(deps, cfg)
	require.NoError(t, err)
	env.Engine = eng
	env.Config = cfg
	return env
}

// WithTestEnv creates a test environment and executes the provided function
// with it
func WithTestEnv(t *testing.T, fn func(*TestEnv), opts ...EnvOption) {
	t.Helper()
	fn(NewTestEnv(t, opts...))
}

// WithPolicy selects the failure policy
func WithPolicy(p pipeline.FailurePolicy) EnvOption {
	return func(_ *pipeline.Dependencies, cfg *pipeline.Config) {
		cfg.FailurePolicy = p
	}
}

// WithNamer replaces the snapshot namer
func WithNamer(n pipeline.Namer) EnvOption {
	return func(deps *pipeline.Dependencies, _ *pipeline.Config) {
		deps.Namer = n
	}
}

// WithArchive attaches a run report archiver
func WithArchive(a pipeline.Archiver) EnvOption {
	return func(deps *pipeline.Dependencies, _ *pipeline.Config) {
		deps.Archive = a
	}
}
