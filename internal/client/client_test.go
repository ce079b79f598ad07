package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/relay/internal/archive"
	"github.com/kode4food/relay/internal/assert/helpers"
	"github.com/kode4food/relay/internal/client"
	"github.com/kode4food/relay/internal/server"
)

func newClient(t *testing.T) (*client.HTTPClient, *helpers.TestEnv) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	arch, err := archive.NewBlobArchive(context.Background(), "mem://", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = arch.Close() })

	env := helpers.NewTestEnv(t, helpers.WithArchive(arch))
	srv := server.NewServer(env.Engine, env.Hub, arch)
	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.CloseWebSockets)

	cl, err := client.NewHTTPClient(ts.URL, 5*time.Second)
	require.NoError(t, err)
	return cl, env
}

func TestNewHTTPClientInvalidBase(t *testing.T) {
	_, err := client.NewHTTPClient("not a url", time.Second)
	assert.ErrorIs(t, err, client.ErrInvalidBase)
}

func TestBuildAndRun(t *testing.T) {
	cl, env := newClient(t)
	ctx := context.Background()

	first, err := cl.CreateStep(ctx, "build", "echo one", "first")
	require.NoError(t, err)
	second, err := cl.CreateStep(ctx, "build", "echo two", "second")
	require.NoError(t, err)
	require.NoError(t, cl.ConnectSteps(ctx, "build", first.ID, second.ID))

	steps, err := cl.Steps(ctx, "build")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "echo one", steps[0].Command)

	st, err := cl.Step(ctx, "build", second.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", st.Description)

	rep, err := cl.Run(ctx, "build")
	require.NoError(t, err)
	assert.Equal(t, "build", rep.Pipeline)
	assert.False(t, rep.Failed())
	assert.Len(t, rep.Executed(), 2)
	assert.True(t, env.Executor.WasInvoked("echo two"))

	archived, err := cl.Report(ctx, rep.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, rep.Snapshot, archived.Snapshot)

	names, err := cl.Pipelines(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "build")
	assert.Contains(t, names, rep.Snapshot)

	require.NoError(t, cl.Delete(ctx, rep.Snapshot))
	names, err = cl.Pipelines(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, rep.Snapshot)
}

func TestRunFailedStepIsReport(t *testing.T) {
	cl, env := newClient(t)
	ctx := context.Background()
	env.Executor.SetExitCode("false", 1)

	_, err := cl.CreateStep(ctx, "broken", "false", "")
	require.NoError(t, err)

	rep, err := cl.Run(ctx, "broken")
	require.NoError(t, err)
	assert.True(t, rep.Failed())
}

func TestStructureErrorStatus(t *testing.T) {
	cl, _ := newClient(t)
	ctx := context.Background()

	_, err := cl.CreateStep(ctx, "empty", "echo a", "")
	require.NoError(t, err)
	_, err = cl.CreateStep(ctx, "empty", "echo b", "")
	require.NoError(t, err)

	_, err = cl.Run(ctx, "empty")
	assert.ErrorIs(t, err, client.ErrInvalidPlan)
	assert.ErrorIs(t, err, client.ErrHTTPError)

	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
}

func TestNotFound(t *testing.T) {
	cl, _ := newClient(t)
	ctx := context.Background()

	_, err := cl.Step(ctx, "build", 42)
	assert.ErrorIs(t, err, client.ErrNotFound)

	_, err = cl.Report(ctx, "missing")
	assert.ErrorIs(t, err, client.ErrNotFound)

	err = cl.Delete(ctx, "missing")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestBadRequest(t *testing.T) {
	cl, _ := newClient(t)

	_, err := cl.CreateStep(context.Background(), "build", "", "")
	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.NotErrorIs(t, err, client.ErrNotFound)
}

func TestInvalidReply(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.Header.Get("User-Agent"), "relay-client/")
			_, _ = w.Write([]byte("not json"))
		},
	))
	defer ts.Close()

	cl, err := client.NewHTTPClient(ts.URL, time.Second)
	require.NoError(t, err)
	_, err = cl.Pipelines(context.Background())
	assert.ErrorIs(t, err, client.ErrInvalidReply)
}

func TestPlainTextError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		},
	))
	defer ts.Close()

	cl, err := client.NewHTTPClient(ts.URL, time.Second)
	require.NoError(t, err)
	_, err = cl.Run(context.Background(), "build")

	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "upstream down", se.Message)
}

func TestRequestFailed(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	cl, err := client.NewHTTPClient(base, time.Second)
	require.NoError(t, err)
	_, err = cl.Pipelines(context.Background())
	assert.ErrorIs(t, err, client.ErrRequestFailed)
}
