// Package store provides typed access to pipeline graphs
//
// A Store opens, copies and deletes named graphs. A Graph holds the Step
// nodes and NEXT edges of one pipeline or run snapshot. FalkorStore persists
// graphs in FalkorDB, while MemoryStore keeps them in process
package store

import (
	"context"
	"errors"

	"github.com/kode4food/relay/internal/graph"
	"github.com/kode4food/relay/pkg/api"
)

type (
	// Store manages named pipeline graphs
	Store interface {
		// Open returns a handle to the named graph. A graph that does not
		// exist yet is created implicitly by its first write
		Open(ctx context.Context, name string) (Graph, error)

		// Copy duplicates the src graph under dst and returns a handle to
		// the duplicate. It fails with ErrNameCollision when dst exists
		Copy(ctx context.Context, src, dst string) (Graph, error)

		// Delete removes the named graph
		Delete(ctx context.Context, name string) error

		// List returns the names of all stored graphs
		List(ctx context.Context) ([]string, error)

		// Ping checks that the backing store is reachable
		Ping(ctx context.Context) error
	}

	// Graph is the set of steps and NEXT edges of one graph instance. Step
	// ids are assigned by the graph and only meaningful within it
	Graph interface {
		Name() string

		// CreateStep persists a new step without a result
		CreateStep(ctx context.Context, cmd, desc string) (*api.Step, error)

		// Connect adds a NEXT edge from src to dest. It fails with
		// ErrStepNotFound when either id does not resolve
		Connect(ctx context.Context, src, dest api.StepID) error

		// Steps returns every step ordered by id
		Steps(ctx context.Context) ([]*api.Step, error)

		// Step returns the step with the given id
		Step(ctx context.Context, id api.StepID) (*api.Step, error)

		// Roots returns the steps without an incoming NEXT edge, ordered
		// by id
		Roots(ctx context.Context) ([]*api.Step, error)

		// Successors returns the targets of the step's outgoing NEXT
		// edges, ordered by id
		Successors(ctx context.Context, id api.StepID) ([]*api.Step, error)

		// SetResult records the execution result on the step
		SetResult(ctx context.Context, id api.StepID, res api.Result) error
	}
)

var (
	ErrStepNotFound     = errors.New("step not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrNameCollision    = graph.ErrNameCollision
	ErrStoreUnavailable = graph.ErrStoreUnavailable
	ErrNameEmpty        = graph.ErrGraphNameEmpty
)
