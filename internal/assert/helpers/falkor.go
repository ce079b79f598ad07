package helpers

import (
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/alicebob/miniredis/v2/server"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/relay/internal/graph"
)

type (
	// FakeFalkor answers GRAPH.* commands on an in-process Redis server.
	// Query replies come from a Responder, while graph names are tracked so
	// GRAPH.LIST, GRAPH.COPY and GRAPH.DELETE behave like FalkorDB
	FakeFalkor struct {
		Redis     *miniredis.Miniredis
		responder Responder
		graphs    map[string]bool
		queries   []GraphQuery
		mu        sync.Mutex
	}

	// GraphQuery is a recorded GRAPH.QUERY or GRAPH.RO_QUERY invocation
	GraphQuery struct {
		Command string
		Graph   string
		Text    string
	}

	// GraphReply is a canned reply. A nil Columns slice produces a
	// statistics-only reply
	GraphReply struct {
		Error   string
		Columns []string
		Rows    [][]any
		Stats   []string
	}

	// Responder produces the reply for a query
	Responder func(GraphQuery) GraphReply
)

const emptyKeyError = "ERR Invalid graph operation on empty key"

// NewFakeFalkor starts a miniredis server with GRAPH.* commands registered.
// The server is closed when the test completes
func NewFakeFalkor(t *testing.T) *FakeFalkor {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	f := &FakeFalkor{
		Redis:  mr,
		graphs: map[string]bool{},
		responder: func(GraphQuery) GraphReply {
			return GraphReply{}
		},
	}

	srv := mr.Server()
	require.NoError(t, srv.Register("GRAPH.QUERY", f.handleQuery))
	require.NoError(t, srv.Register("GRAPH.RO_QUERY", f.handleQuery))
	require.NoError(t, srv.Register("GRAPH.COPY", f.handleCopy))
	require.NoError(t, srv.Register("GRAPH.DELETE", f.handleDelete))
	require.NoError(t, srv.Register("GRAPH.LIST", f.handleList))
	return f
}

// Client returns a graph client connected to the fake server
func (f *FakeFalkor) Client(t *testing.T) *graph.Client {
	t.Helper()
	cl := graph.NewClient(graph.Options{Addr: f.Redis.Addr()})
	t.Cleanup(func() { _ = cl.Close() })
	return cl
}

// Respond replaces the query responder
func (f *FakeFalkor) Respond(r Responder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responder = r
}

// AddGraph marks a graph name as existing
func (f *FakeFalkor) AddGraph(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphs[name] = true
}

// Graphs returns the existing graph names in sorted order
func (f *FakeFalkor) Graphs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]string, 0, len(f.graphs))
	for name := range f.graphs {
		res = append(res, name)
	}
	slices.Sort(res)
	return res
}

// Queries returns every query received so far
func (f *FakeFalkor) Queries() []GraphQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queries)
}

// LastQuery returns the most recent query, or the zero value
func (f *FakeFalkor) LastQuery() GraphQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return GraphQuery{}
	}
	return f.queries[len(f.queries)-1]
}

func (f *FakeFalkor) handleQuery(c *server.Peer, cmd string, args []string) {
	if len(args) < 2 {
		c.WriteError("ERR wrong number of arguments for '" + cmd + "'")
		return
	}
	q := GraphQuery{Command: strings.ToUpper(cmd), Graph: args[0], Text: args[1]}

	f.mu.Lock()
	f.queries = append(f.queries, q)
	exists := f.graphs[q.Graph]
	if q.Command == "GRAPH.QUERY" {
		f.graphs[q.Graph] = true
	}
	responder := f.responder
	f.mu.Unlock()

	if q.Command == "GRAPH.RO_QUERY" && !exists {
		c.WriteError(emptyKeyError)
		return
	}
	writeReply(c, responder(q))
}

func (f *FakeFalkor) handleCopy(c *server.Peer, cmd string, args []string) {
	if len(args) != 2 {
		c.WriteError("ERR wrong number of arguments for '" + cmd + "'")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.graphs[args[0]] {
		c.WriteError(emptyKeyError)
		return
	}
	if f.graphs[args[1]] {
		c.WriteError("ERR destination key already exists")
		return
	}
	f.graphs[args[1]] = true
	c.WriteOK()
}

func (f *FakeFalkor) handleDelete(c *server.Peer, cmd string, args []string) {
	if len(args) != 1 {
		c.WriteError("ERR wrong number of arguments for '" + cmd + "'")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.graphs[args[0]] {
		c.WriteError(emptyKeyError)
		return
	}
	delete(f.graphs, args[0])
	c.WriteInline("Graph removed")
}

func (f *FakeFalkor) handleList(c *server.Peer, _ string, _ []string) {
	names := f.Graphs()
	c.WriteLen(len(names))
	for _, name := range names {
		c.WriteBulk(name)
	}
}

func writeReply(c *server.Peer, r GraphReply) {
	if r.Error != "" {
		c.WriteError(r.Error)
		return
	}
	if r.Columns == nil {
		c.WriteLen(1)
		writeStats(c, r.Stats)
		return
	}

	c.WriteLen(3)
	c.WriteLen(len(r.Columns))
	for _, col := range r.Columns {
		c.WriteBulk(col)
	}
	c.WriteLen(len(r.Rows))
	for _, row := range r.Rows {
		c.WriteLen(len(row))
		for _, v := range row {
			writeValue(c, v)
		}
	}
	writeStats(c, r.Stats)
}

func writeStats(c *server.Peer, stats []string) {
	c.WriteLen(len(stats))
	for _, s := range stats {
		c.WriteBulk(s)
	}
}

func writeValue(c *server.Peer, v any) {
	switch v := v.(type) {
	case nil:
		c.WriteNull()
	case int:
		c.WriteInt(v)
	case int64:
		c.WriteInt(int(v))
	case string:
		c.WriteBulk(v)
	default:
		c.WriteNull()
	}
}
