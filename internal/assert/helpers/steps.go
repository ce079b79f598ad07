package helpers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/pkg/api"
)

// OpenPipeline opens the named pipeline on the test engine
func (env *TestEnv) OpenPipeline(t *testing.T, name string) *pipeline.Pipeline {
	t.Helper()
	p, err := env.Engine.Open(context.Background(), name)
	require.NoError(t, err)
	return p
}

// AddSteps creates one step per command, described as "step N", without
// connecting them
func AddSteps(
	t *testing.T, p *pipeline.Pipeline, cmds ...string,
) []*api.Step {
	t.Helper()
	ctx := context.Background()
	res := make([]*api.Step, 0, len(cmds))
	for i, cmd := range cmds {
		st, err := p.CreateStep(ctx, cmd, fmt.Sprintf("step %d", i+1))
		require.NoError(t, err)
		res = append(res, st)
	}
	return res
}

// BuildChain creates one step per command and connects them in order
func BuildChain(
	t *testing.T, p *pipeline.Pipeline, cmds ...string,
) []*api.Step {
	t.Helper()
	steps := AddSteps(t, p, cmds...)
	for i := 1; i < len(steps); i++ {
		err := p.ConnectSteps(
			context.Background(), steps[i-1].ID, steps[i].ID,
		)
		require.NoError(t, err)
	}
	return steps
}

// StepsByCommand indexes steps by their command
func StepsByCommand(steps []*api.Step) map[string]*api.Step {
	res := make(map[string]*api.Step, len(steps))
	for _, s := range steps {
		res[s.Command] = s
	}
	return res
}
