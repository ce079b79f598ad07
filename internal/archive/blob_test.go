package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/relay/internal/archive"
	"github.com/kode4food/relay/internal/assert/helpers"
	"github.com/kode4food/relay/pkg/api"
)

func newReport(snapshot string) *api.RunReport {
	out := "hello\n"
	code := 0
	return &api.RunReport{
		Pipeline:   "greet",
		Snapshot:   snapshot,
		StartedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC),
		Steps: []*api.Step{{
			ID:       1,
			Command:  "echo hello",
			Output:   &out,
			ExitCode: &code,
		}},
	}
}

func TestBlobArchive(t *testing.T) {
	ctx := context.Background()

	a, err := archive.NewBlobArchive(ctx, "mem://", "runs/")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	t.Run("Get returns not found for missing report", func(t *testing.T) {
		_, err := a.Get(ctx, "greet_1")
		assert.ErrorIs(t, err, archive.ErrReportNotFound)
	})

	t.Run("Put and Get round-trip", func(t *testing.T) {
		require.NoError(t, a.Put(ctx, newReport("greet_1")))

		got, err := a.Get(ctx, "greet_1")
		require.NoError(t, err)
		assert.Equal(t, "greet", got.Pipeline)
		require.Len(t, got.Steps, 1)
		res, ok := got.Steps[0].Result()
		require.True(t, ok)
		assert.Equal(t, "hello\n", res.Output)
		assert.True(t, got.StartedAt.Equal(newReport("").StartedAt))
	})

	t.Run("List returns archived snapshots", func(t *testing.T) {
		require.NoError(t, a.Put(ctx, newReport("greet_2")))

		names, err := a.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"greet_1", "greet_2"}, names)
	})

	t.Run("Delete removes report", func(t *testing.T) {
		require.NoError(t, a.Delete(ctx, "greet_1"))

		_, err := a.Get(ctx, "greet_1")
		assert.ErrorIs(t, err, archive.ErrReportNotFound)
	})

	t.Run("Delete on missing report succeeds", func(t *testing.T) {
		assert.NoError(t, a.Delete(ctx, "nonexistent"))
	})

	t.Run("empty snapshot rejected", func(t *testing.T) {
		assert.ErrorIs(t, a.Put(ctx, newReport("")), archive.ErrSnapshotEmpty)
		_, err := a.Get(ctx, "")
		assert.ErrorIs(t, err, archive.ErrSnapshotEmpty)
	})
}

func TestBlobArchiveKeyFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := archive.NewBlobArchive(ctx, "file://"+dir, "reports/")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Put(ctx, newReport("greet_20240501")))

	data, err := os.ReadFile(
		filepath.Join(dir, "reports", "greet_20240501.json"),
	)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"snapshot":"greet_20240501"`)
}

func TestBlobArchiveInvalidURL(t *testing.T) {
	_, err := archive.NewBlobArchive(
		context.Background(), "unknown://bucket", "",
	)
	assert.Error(t, err)
}

func TestRunArchivedThroughEngine(t *testing.T) {
	ctx := context.Background()
	a, err := archive.NewBlobArchive(ctx, "mem://", "")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		p := env.OpenPipeline(t, "build")
		helpers.BuildChain(t, p, "a", "b")

		rep, err := p.RunWithReport(ctx)
		require.NoError(t, err)

		got, err := a.Get(ctx, rep.Snapshot)
		require.NoError(t, err)
		assert.Equal(t, rep.Snapshot, got.Snapshot)
		assert.Len(t, got.Steps, 2)
	}, helpers.WithArchive(a))
}
