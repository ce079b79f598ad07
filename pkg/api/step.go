package api

import (
	"errors"
	"strings"
)

type (
	// StepID is the store-assigned identity of a step. It is only meaningful
	// within the graph that issued it
	StepID int64

	// Step is one stage of a pipeline
	Step struct {
		Output      *string `json:"output,omitempty"`
		ExitCode    *int    `json:"exit_code,omitempty"`
		Command     string  `json:"cmd"`
		Description string  `json:"desc"`
		ID          StepID  `json:"id"`
	}

	// Result is the captured outcome of executing a step's command
	Result struct {
		Output   string `json:"output"`
		ExitCode int    `json:"exit_code"`
	}
)

const (
	// StepLabel is the node label used for steps in the graph store
	StepLabel = "Step"

	// NextEdge is the relationship type linking a step to its successor
	NextEdge = "NEXT"
)

var ErrCommandEmpty = errors.New("step command empty")

// Validate checks that a step can be created
func (s *Step) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return ErrCommandEmpty
	}
	return nil
}

// Result returns the recorded execution result of the step, if any
func (s *Step) Result() (Result, bool) {
	if s.ExitCode == nil {
		return Result{}, false
	}
	res := Result{ExitCode: *s.ExitCode}
	if s.Output != nil {
		res.Output = *s.Output
	}
	return res, true
}

// WithResult returns a copy of the step carrying the provided result
func (s *Step) WithResult(res Result) *Step {
	out := *s
	output := res.Output
	code := res.ExitCode
	out.Output = &output
	out.ExitCode = &code
	return &out
}

// Succeeded reports whether the result represents a zero exit status
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}
