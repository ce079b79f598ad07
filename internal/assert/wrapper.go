package assert

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/relay/internal/config"
	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/pkg/api"
)

// Wrapper wraps testify assertions with relay-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 100 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus relay-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// StepValid asserts that a step is valid
func (w *Wrapper) StepValid(s *api.Step) {
	w.Helper()
	w.NoError(s.Validate())
	w.NotEmpty(s.Command)
}

// StepInvalid asserts that a step is invalid and returns the validation error
func (w *Wrapper) StepInvalid(s *api.Step, expected error) error {
	w.Helper()
	err := s.Validate()
	w.Error(err)
	if expected != nil {
		w.ErrorIs(err, expected)
	}
	return err
}

// StepNotRun asserts that a step carries no recorded result
func (w *Wrapper) StepNotRun(s *api.Step) {
	w.Helper()
	w.Nil(s.Output, "step %d should have no output", s.ID)
	w.Nil(s.ExitCode, "step %d should have no exit code", s.ID)
}

// StepResult asserts the exit code recorded on a step and that its output
// contains the given text
func (w *Wrapper) StepResult(s *api.Step, exitCode int, contains string) {
	w.Helper()
	res, ok := s.Result()
	if !w.True(ok, "step %d should have a result", s.ID) {
		return
	}
	w.Equal(exitCode, res.ExitCode)
	if contains != "" {
		w.Contains(res.Output, contains)
	}
}

// StructureError asserts that err is a pipeline structure error of the
// given kind
func (w *Wrapper) StructureError(err error, kind error) {
	w.Helper()
	var se *pipeline.StructureError
	if !w.True(errors.As(err, &se), "expected structure error, got %v", err) {
		return
	}
	w.ErrorIs(se, kind)
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= 65535)
	w.True(cfg.StepTimeout >= 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// EventuallyWithError runs a condition that returns an error until it
// succeeds or times out
func (w *Wrapper) EventuallyWithError(
	condition func() error, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		err := condition()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(DefaultRetryInterval)
	}
	if lastErr != nil {
		w.Fail(msg+": last error: "+lastErr.Error(), args...)
		return
	}
	w.Fail(msg, args...)
}
