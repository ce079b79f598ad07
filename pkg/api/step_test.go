package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/relay/pkg/api"
)

func TestStepValidate(t *testing.T) {
	assert.NoError(t, (&api.Step{Command: "echo hi"}).Validate())
	assert.ErrorIs(t, (&api.Step{}).Validate(), api.ErrCommandEmpty)
	assert.ErrorIs(t,
		(&api.Step{Command: "  \t"}).Validate(), api.ErrCommandEmpty,
	)
}

func TestStepResultAbsent(t *testing.T) {
	step := &api.Step{ID: 1, Command: "true"}
	_, ok := step.Result()
	assert.False(t, ok)
}

func TestStepWithResult(t *testing.T) {
	step := &api.Step{ID: 7, Command: "false", Description: "fails"}
	done := step.WithResult(api.Result{Output: "", ExitCode: 1})

	res, ok := done.Result()
	assert.True(t, ok)
	assert.Equal(t, 1, res.ExitCode)
	assert.False(t, res.Succeeded())

	assert.Nil(t, step.ExitCode)
	assert.Equal(t, step.ID, done.ID)
	assert.Equal(t, step.Description, done.Description)
}

func TestReportFailed(t *testing.T) {
	ok := (&api.Step{ID: 1}).WithResult(api.Result{Output: "a"})
	bad := (&api.Step{ID: 2}).WithResult(api.Result{ExitCode: 2})
	pending := &api.Step{ID: 3}

	rep := &api.RunReport{Steps: []*api.Step{ok, pending}}
	assert.False(t, rep.Failed())
	assert.Len(t, rep.Executed(), 1)

	rep.Steps = append(rep.Steps, bad)
	assert.True(t, rep.Failed())
	assert.Len(t, rep.Executed(), 2)

	rep = &api.RunReport{Error: "boom"}
	assert.True(t, rep.Failed())
}
