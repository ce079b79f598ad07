package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	as "github.com/kode4food/relay/internal/assert"
	"github.com/kode4food/relay/internal/assert/helpers"
	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/internal/store"
	"github.com/kode4food/relay/pkg/api"
)

func TestCreateStep(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		w := as.New(t)
		p := env.OpenPipeline(t, "build")

		st, err := p.CreateStep(context.Background(), "make", "compile")
		require.NoError(t, err)
		w.StepValid(st)
		w.StepNotRun(st)
		assert.Equal(t, "compile", st.Description)

		got, err := p.Step(context.Background(), st.ID)
		require.NoError(t, err)
		assert.Equal(t, st, got)
	})
}

func TestCreateStepEmptyCommand(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		p := env.OpenPipeline(t, "build")

		_, err := p.CreateStep(context.Background(), " ", "nothing")
		assert.ErrorIs(t, err, api.ErrCommandEmpty)
	})
}

func TestOpenEmptyName(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		_, err := env.Engine.Open(context.Background(), "")
		assert.ErrorIs(t, err, store.ErrNameEmpty)
	})
}

func TestStepsOrderedByCreation(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		p := env.OpenPipeline(t, "build")
		created := helpers.AddSteps(t, p, "c", "a", "b")

		steps, err := p.Steps(context.Background())
		require.NoError(t, err)
		require.Len(t, steps, 3)
		for i, s := range steps {
			assert.Equal(t, created[i].ID, s.ID)
			assert.Equal(t, created[i].Command, s.Command)
		}
	})
}

func TestConnectUnknownStep(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		p := env.OpenPipeline(t, "build")
		steps := helpers.AddSteps(t, p, "a")

		err := p.ConnectSteps(context.Background(), steps[0].ID, 999)
		assert.ErrorIs(t, err, store.ErrStepNotFound)
	})
}

func TestCloneIndependence(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		p := env.OpenPipeline(t, "build")
		helpers.BuildChain(t, p, "a", "b")

		clone, err := p.Clone(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, p.Name(), clone.Name())
		assert.True(t, strings.HasPrefix(clone.Name(), "build_"))

		orig, err := p.Steps(ctx)
		require.NoError(t, err)
		copied, err := clone.Steps(ctx)
		require.NoError(t, err)
		require.Len(t, copied, len(orig))
		for i := range orig {
			assert.Equal(t, orig[i].Command, copied[i].Command)
			assert.Equal(t, orig[i].Description, copied[i].Description)
		}

		first, err := clone.InitialStep(ctx)
		require.NoError(t, err)
		_, err = clone.RunStep(ctx, first)
		require.NoError(t, err)

		orig, err = p.Steps(ctx)
		require.NoError(t, err)
		for _, s := range orig {
			as.New(t).StepNotRun(s)
		}

		next, err := clone.NextStep(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, "b", next.Command)
	})
}

func TestCloneSnapshotKeepsResults(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		w := as.New(t)
		p := env.OpenPipeline(t, "build")
		helpers.BuildChain(t, p, "echo a", "exit 4")
		env.Executor.SetResult("exit 4", api.Result{Output: "bad", ExitCode: 4})

		snap, err := p.Run(ctx)
		require.NoError(t, err)

		again, err := snap.Clone(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, snap.Name(), again.Name())

		copied, err := again.Steps(ctx)
		require.NoError(t, err)
		byCmd := helpers.StepsByCommand(copied)
		w.StepResult(byCmd["echo a"], 0, "echo a")
		w.StepResult(byCmd["exit 4"], 4, "bad")

		env.Executor.SetResult("echo a", api.Result{Output: "changed"})
		_, err = again.RunStep(ctx, byCmd["echo a"])
		require.NoError(t, err)

		orig, err := snap.Steps(ctx)
		require.NoError(t, err)
		w.StepResult(helpers.StepsByCommand(orig)["echo a"], 0, "echo a")
	})
}

func TestCloneRetriesCollision(t *testing.T) {
	calls := 0
	namer := func(name string) string {
		calls++
		if calls < 3 {
			return name + "_taken"
		}
		return fmt.Sprintf("%s_%d", name, calls)
	}

	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		_, err := env.Store.Open(ctx, "build_taken")
		require.NoError(t, err)

		p := env.OpenPipeline(t, "build")
		clone, err := p.Clone(ctx)
		require.NoError(t, err)
		assert.Equal(t, "build_3", clone.Name())
		assert.Equal(t, 3, calls)
	}, helpers.WithNamer(namer))
}

func TestCloneGivesUp(t *testing.T) {
	namer := func(string) string { return "fixed" }

	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		_, err := env.Store.Open(ctx, "fixed")
		require.NoError(t, err)

		p := env.OpenPipeline(t, "build")
		_, err = p.Clone(ctx)
		assert.ErrorIs(t, err, pipeline.ErrCloneFailed)
		assert.ErrorIs(t, err, store.ErrNameCollision)
	}, helpers.WithNamer(namer))
}

func TestDefaultNamer(t *testing.T) {
	a := pipeline.DefaultNamer("build")
	b := pipeline.DefaultNamer("build")

	assert.NotEqual(t, a, b)
	parts := strings.Split(a, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "build", parts[0])
	assert.True(t, strings.HasSuffix(parts[1], "Z"))
	assert.Len(t, parts[2], 8)
}

func TestEngineListAndDelete(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		p := env.OpenPipeline(t, "build")
		helpers.BuildChain(t, p, "a")

		names, err := env.Engine.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, "build")

		require.NoError(t, env.Engine.Delete(ctx, "build"))
		names, err = env.Engine.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, names, "build")

		assert.NoError(t, env.Engine.Ping(ctx))
	})
}

func TestNewEngineRequirements(t *testing.T) {
	_, err := pipeline.NewEngine(pipeline.Dependencies{}, pipeline.Config{})
	assert.ErrorIs(t, err, pipeline.ErrStoreRequired)

	_, err = pipeline.NewEngine(pipeline.Dependencies{
		Store: store.NewMemoryStore(),
	}, pipeline.Config{})
	assert.ErrorIs(t, err, pipeline.ErrExecutorRequired)

	_, err = pipeline.NewEngine(pipeline.Dependencies{
		Store:    store.NewMemoryStore(),
		Executor: helpers.NewMockExecutor(),
	}, pipeline.Config{FailurePolicy: "sometimes"})
	assert.ErrorIs(t, err, pipeline.ErrUnknownPolicy)

	eng, err := pipeline.NewEngine(pipeline.Dependencies{
		Store:    store.NewMemoryStore(),
		Executor: helpers.NewMockExecutor(),
	}, pipeline.Config{})
	require.NoError(t, err)
	assert.Equal(t, pipeline.PolicyContinue, eng.FailurePolicy())
}

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		name     string
		expected pipeline.FailurePolicy
		err      bool
	}{
		{name: "", expected: pipeline.PolicyContinue},
		{name: "continue", expected: pipeline.PolicyContinue},
		{name: "abort", expected: pipeline.PolicyAbort},
		{name: "retry", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pipeline.ParseFailurePolicy(tt.name)
			if tt.err {
				assert.ErrorIs(t, err, pipeline.ErrUnknownPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}
