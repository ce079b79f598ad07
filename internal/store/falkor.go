package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kode4food/relay/internal/graph"
	"github.com/kode4food/relay/pkg/api"
)

type (
	// FalkorStore keeps each pipeline in its own FalkorDB graph
	FalkorStore struct {
		client *graph.Client
	}

	falkorGraph struct {
		client *graph.Client
		name   string
	}
)

const stepColumns = `ID(s), s.cmd, s.desc, s.output, s.exit_code`

const (
	stepNode = `(s:` + api.StepLabel + `)`
	nextEdge = `[:` + api.NextEdge + `]`
)

const (
	createStepQuery = `CREATE (s:` + api.StepLabel + ` ` +
		`{cmd: $cmd, desc: $desc}) RETURN ` + stepColumns

	connectQuery = `MATCH (src:` + api.StepLabel + `), ` +
		`(dest:` + api.StepLabel + `) ` +
		`WHERE ID(src) = $src AND ID(dest) = $dest ` +
		`CREATE (src)-` + nextEdge + `->(dest) RETURN ID(src)`

	stepsQuery = `MATCH ` + stepNode + ` RETURN ` + stepColumns +
		` ORDER BY ID(s)`

	stepQuery = `MATCH ` + stepNode + ` WHERE ID(s) = $id RETURN ` + stepColumns

	rootsQuery = `MATCH ` + stepNode + ` WHERE indegree(s) = 0 ` +
		`RETURN ` + stepColumns + ` ORDER BY ID(s)`

	successorsQuery = `MATCH (c:` + api.StepLabel + `)-` + nextEdge + `->` +
		stepNode + ` WHERE ID(c) = $id ` +
		`RETURN ` + stepColumns + ` ORDER BY ID(s)`

	setResultQuery = `MATCH ` + stepNode + ` WHERE ID(s) = $id ` +
		`SET s.output = $output, s.exit_code = $exit_code RETURN ID(s)`
)

var (
	_ Store = (*FalkorStore)(nil)
	_ Graph = (*falkorGraph)(nil)
)

// NewFalkorStore creates a store backed by the given FalkorDB client
func NewFalkorStore(client *graph.Client) *FalkorStore {
	return &FalkorStore{client: client}
}

// Open returns a handle to the named graph. FalkorDB creates the graph on
// its first write
func (s *FalkorStore) Open(_ context.Context, name string) (Graph, error) {
	if name == "" {
		return nil, ErrNameEmpty
	}
	return &falkorGraph{client: s.client, name: name}, nil
}

// Copy duplicates src under dst. A source that has never been written has
// no FalkorDB key, so its copy is an equally empty graph
func (s *FalkorStore) Copy(ctx context.Context, src, dst string) (Graph, error) {
	err := s.client.Copy(ctx, src, dst)
	if err != nil && !errors.Is(err, graph.ErrGraphNotFound) {
		return nil, err
	}
	return s.Open(ctx, dst)
}

// Delete removes the named graph
func (s *FalkorStore) Delete(ctx context.Context, name string) error {
	err := s.client.Delete(ctx, name)
	if errors.Is(err, graph.ErrGraphNotFound) {
		return fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	return err
}

// List returns the names of all graphs on the server
func (s *FalkorStore) List(ctx context.Context) ([]string, error) {
	return s.client.List(ctx)
}

// Ping checks that the FalkorDB server is reachable
func (s *FalkorStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (g *falkorGraph) Name() string {
	return g.name
}

func (g *falkorGraph) CreateStep(
	ctx context.Context, cmd, desc string,
) (*api.Step, error) {
	res, err := g.client.Query(ctx, g.name, createStepQuery, graph.Params{
		"cmd":  cmd,
		"desc": desc,
	})
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, fmt.Errorf("%w: no step returned", graph.ErrMalformedReply)
	}
	return scanStep(res.Rows[0])
}

func (g *falkorGraph) Connect(
	ctx context.Context, src, dest api.StepID,
) error {
	res, err := g.client.Query(ctx, g.name, connectQuery, graph.Params{
		"src":  src,
		"dest": dest,
	})
	if err != nil {
		return err
	}
	if res.Stats.Int(graph.StatRelationshipsCreated) == 0 {
		return fmt.Errorf("%w: %d -> %d", ErrStepNotFound, src, dest)
	}
	return nil
}

func (g *falkorGraph) Steps(ctx context.Context) ([]*api.Step, error) {
	return g.readSteps(ctx, stepsQuery, nil)
}

func (g *falkorGraph) Step(
	ctx context.Context, id api.StepID,
) (*api.Step, error) {
	steps, err := g.readSteps(ctx, stepQuery, graph.Params{"id": id})
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrStepNotFound, id)
	}
	return steps[0], nil
}

func (g *falkorGraph) Roots(ctx context.Context) ([]*api.Step, error) {
	return g.readSteps(ctx, rootsQuery, nil)
}

func (g *falkorGraph) Successors(
	ctx context.Context, id api.StepID,
) ([]*api.Step, error) {
	return g.readSteps(ctx, successorsQuery, graph.Params{"id": id})
}

func (g *falkorGraph) SetResult(
	ctx context.Context, id api.StepID, r api.Result,
) error {
	res, err := g.client.Query(ctx, g.name, setResultQuery, graph.Params{
		"id":        id,
		"output":    r.Output,
		"exit_code": r.ExitCode,
	})
	if err != nil {
		return err
	}
	if res.Empty() {
		return fmt.Errorf("%w: %d", ErrStepNotFound, id)
	}
	return nil
}

func (g *falkorGraph) readSteps(
	ctx context.Context, stmt string, params graph.Params,
) ([]*api.Step, error) {
	res, err := g.client.ReadOnlyQuery(ctx, g.name, stmt, params)
	if errors.Is(err, graph.ErrGraphNotFound) {
		return []*api.Step{}, nil
	}
	if err != nil {
		return nil, err
	}

	steps := make([]*api.Step, 0, len(res.Rows))
	for _, row := range res.Rows {
		st, err := scanStep(row)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

func scanStep(row graph.Row) (*api.Step, error) {
	id, err := row.Int(0)
	if err != nil {
		return nil, err
	}
	cmd, err := row.String(1)
	if err != nil {
		return nil, err
	}
	desc, err := row.OptString(2)
	if err != nil {
		return nil, err
	}
	output, err := row.OptString(3)
	if err != nil {
		return nil, err
	}
	code, err := row.OptInt(4)
	if err != nil {
		return nil, err
	}

	st := &api.Step{
		ID:      api.StepID(id),
		Command: cmd,
		Output:  output,
	}
	if desc != nil {
		st.Description = *desc
	}
	if code != nil {
		c := int(*code)
		st.ExitCode = &c
	}
	return st, nil
}
