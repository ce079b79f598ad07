package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	// Client issues graph commands against a FalkorDB server
	Client struct {
		rdb redis.UniversalClient
	}

	// Options configures the connection to the FalkorDB server
	Options struct {
		Addr     string
		Password string
		DB       int
		Timeout  time.Duration
	}
)

const (
	cmdQuery   = "GRAPH.QUERY"
	cmdROQuery = "GRAPH.RO_QUERY"
	cmdCopy    = "GRAPH.COPY"
	cmdDelete  = "GRAPH.DELETE"
	cmdList    = "GRAPH.LIST"
)

var (
	ErrStoreUnavailable = errors.New("graph store unavailable")
	ErrQueryFailed      = errors.New("graph query failed")
	ErrNameCollision    = errors.New("graph name already exists")
	ErrGraphNotFound    = errors.New("graph not found")
	ErrGraphNameEmpty   = errors.New("graph name empty")
)

// NewClient connects to the FalkorDB server described by opts. The
// connection is lazy: the first command dials the server
func NewClient(opts Options) *Client {
	return NewClientFromRedis(redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		Protocol:     2,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	}))
}

// NewClientFromRedis wraps an existing Redis client
func NewClientFromRedis(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

// Query executes a Cypher statement that may write to the graph
func (c *Client) Query(
	ctx context.Context, graph, stmt string, params Params,
) (*ResultSet, error) {
	return c.query(ctx, cmdQuery, graph, stmt, params)
}

// ReadOnlyQuery executes a Cypher statement that only reads the graph
func (c *Client) ReadOnlyQuery(
	ctx context.Context, graph, stmt string, params Params,
) (*ResultSet, error) {
	return c.query(ctx, cmdROQuery, graph, stmt, params)
}

// Copy duplicates the src graph under the dst name. The copy is fully
// independent of its source once created
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	if src == "" || dst == "" {
		return ErrGraphNameEmpty
	}
	names, err := c.List(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(names, dst) {
		return fmt.Errorf("%w: %s", ErrNameCollision, dst)
	}
	if !slices.Contains(names, src) {
		return fmt.Errorf("%w: %s", ErrGraphNotFound, src)
	}
	if err := c.rdb.Do(ctx, cmdCopy, src, dst).Err(); err != nil {
		if isServerError(err) && strings.Contains(err.Error(), "exists") {
			return fmt.Errorf("%w: %s", ErrNameCollision, dst)
		}
		return wrapError(err)
	}
	return nil
}

// Delete removes a graph and everything in it
func (c *Client) Delete(ctx context.Context, graph string) error {
	if graph == "" {
		return ErrGraphNameEmpty
	}
	if err := c.rdb.Do(ctx, cmdDelete, graph).Err(); err != nil {
		return wrapGraphError(err, graph)
	}
	return nil
}

// List returns the names of every graph held by the server
func (c *Client) List(ctx context.Context) ([]string, error) {
	res, err := c.rdb.Do(ctx, cmdList).StringSlice()
	if err != nil {
		return nil, wrapError(err)
	}
	return res, nil
}

// Ping checks that the server is reachable
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) query(
	ctx context.Context, cmd, graph, stmt string, params Params,
) (*ResultSet, error) {
	if graph == "" {
		return nil, ErrGraphNameEmpty
	}
	q, err := BuildQuery(stmt, params)
	if err != nil {
		return nil, err
	}
	raw, err := c.rdb.Do(ctx, cmd, graph, q).Result()
	if err != nil {
		return nil, wrapGraphError(err, graph)
	}
	return parseResultSet(raw)
}

// wrapGraphError maps FalkorDB's reply for a missing graph key to
// ErrGraphNotFound
func wrapGraphError(err error, graph string) error {
	if isServerError(err) && strings.Contains(err.Error(), "empty key") {
		return fmt.Errorf("%w: %s", ErrGraphNotFound, graph)
	}
	return wrapError(err)
}

func wrapError(err error) error {
	if isServerError(err) {
		return fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func isServerError(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr) && !errors.Is(err, redis.Nil)
}
