package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kode4food/relay/internal/events"
	"github.com/kode4food/relay/internal/executor"
	"github.com/kode4food/relay/internal/store"
	"github.com/kode4food/relay/pkg/api"
)

type (
	// Engine opens pipelines against one store and runs them with one
	// executor. It is safe for concurrent use
	Engine struct {
		store    store.Store
		exec     executor.Executor
		events   events.Publisher
		archive  Archiver
		namer    Namer
		policy   FailurePolicy
		attempts int
	}

	// Dependencies are the collaborators an Engine is built from. Store and
	// Executor are required
	Dependencies struct {
		Store    store.Store
		Executor executor.Executor
		Events   events.Publisher
		Archive  Archiver
		Namer    Namer
	}

	// Config holds run behavior settings
	Config struct {
		FailurePolicy FailurePolicy
		CloneAttempts int
	}

	// Archiver stores the report of a finished run
	Archiver interface {
		Put(ctx context.Context, report *api.RunReport) error
	}

	nopPublisher struct{}
)

// DefaultCloneAttempts is the number of snapshot names tried before a clone
// gives up
const DefaultCloneAttempts = 3

var (
	ErrStoreRequired    = errors.New("store is required")
	ErrExecutorRequired = errors.New("executor is required")
)

// NewEngine creates an engine from its dependencies and configuration
func NewEngine(deps Dependencies, cfg Config) (*Engine, error) {
	if deps.Store == nil {
		return nil, ErrStoreRequired
	}
	if deps.Executor == nil {
		return nil, ErrExecutorRequired
	}
	policy, err := ParseFailurePolicy(string(cfg.FailurePolicy))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:    deps.Store,
		exec:     deps.Executor,
		events:   deps.Events,
		archive:  deps.Archive,
		namer:    deps.Namer,
		policy:   policy,
		attempts: cfg.CloneAttempts,
	}
	if e.events == nil {
		e.events = nopPublisher{}
	}
	if e.namer == nil {
		e.namer = DefaultNamer
	}
	if e.attempts <= 0 {
		e.attempts = DefaultCloneAttempts
	}
	return e, nil
}

// Open returns the named pipeline. The backing graph is created by the
// first step written to it
func (e *Engine) Open(ctx context.Context, name string) (*Pipeline, error) {
	if strings.TrimSpace(name) == "" {
		return nil, store.ErrNameEmpty
	}
	g, err := e.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open pipeline %q: %w", name, err)
	}
	return &Pipeline{engine: e, graph: g}, nil
}

// List returns the names of every stored pipeline graph, snapshots included
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}

// Delete removes the named pipeline graph
func (e *Engine) Delete(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return store.ErrNameEmpty
	}
	return e.store.Delete(ctx, name)
}

// Ping checks that the store is reachable
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// FailurePolicy returns the policy applied to non-zero step exits
func (e *Engine) FailurePolicy() FailurePolicy {
	return e.policy
}

func (nopPublisher) Publish(api.EventType, any) {}
