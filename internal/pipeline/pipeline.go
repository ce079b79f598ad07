package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kode4food/relay/internal/store"
	"github.com/kode4food/relay/pkg/api"
	"github.com/kode4food/relay/pkg/log"
)

// Pipeline is a handle to one named graph of steps, either a definition or
// a run snapshot
type Pipeline struct {
	engine *Engine
	graph  store.Graph
	origin string
}

// Name returns the name of the backing graph
func (p *Pipeline) Name() string {
	return p.graph.Name()
}

// Origin returns the name of the definition a snapshot was cloned from. For
// a pipeline that is not a snapshot it is the pipeline's own name
func (p *Pipeline) Origin() string {
	if p.origin == "" {
		return p.Name()
	}
	return p.origin
}

// CreateStep adds a step without a result
func (p *Pipeline) CreateStep(
	ctx context.Context, command, description string,
) (*api.Step, error) {
	st := &api.Step{Command: command, Description: description}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	res, err := p.graph.CreateStep(ctx, command, description)
	if err != nil {
		return nil, err
	}
	slog.Debug("Step created",
		log.Pipeline(p.Name()),
		log.StepID(res.ID),
		log.Command(command))
	return res, nil
}

// ConnectSteps adds a NEXT edge from src to dest. Fan-out and cycles are
// not rejected here; they surface when the pipeline runs
func (p *Pipeline) ConnectSteps(
	ctx context.Context, src, dest api.StepID,
) error {
	if err := p.graph.Connect(ctx, src, dest); err != nil {
		return err
	}
	slog.Debug("Steps connected",
		log.Pipeline(p.Name()),
		slog.Int64("src", int64(src)),
		slog.Int64("dest", int64(dest)))
	return nil
}

// Steps returns every step ordered by creation id
func (p *Pipeline) Steps(ctx context.Context) ([]*api.Step, error) {
	return p.graph.Steps(ctx)
}

// Step returns the step with the given id
func (p *Pipeline) Step(ctx context.Context, id api.StepID) (*api.Step, error) {
	return p.graph.Step(ctx, id)
}

// Clone copies the pipeline into a new graph with a derived name. Name
// generation is retried on collision up to the configured attempts
func (p *Pipeline) Clone(ctx context.Context) (*Pipeline, error) {
	var lastErr error
	for range p.engine.attempts {
		name := p.engine.namer(p.Name())
		g, err := p.engine.store.Copy(ctx, p.Name(), name)
		if err == nil {
			return &Pipeline{
				engine: p.engine,
				graph:  g,
				origin: p.Origin(),
			}, nil
		}
		if !errors.Is(err, store.ErrNameCollision) {
			return nil, err
		}
		slog.Warn("Snapshot name collision",
			log.Pipeline(p.Name()),
			log.Snapshot(name))
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %w", ErrCloneFailed, lastErr)
}
