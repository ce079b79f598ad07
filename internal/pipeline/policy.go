package pipeline

import (
	"errors"
	"fmt"
)

// FailurePolicy decides what a run does after a step exits non-zero
type FailurePolicy string

const (
	// PolicyContinue records the failure and moves on to the next step
	PolicyContinue FailurePolicy = "continue"

	// PolicyAbort stops the run after recording the failing step
	PolicyAbort FailurePolicy = "abort"
)

var ErrUnknownPolicy = errors.New("unknown failure policy")

// ParseFailurePolicy parses a policy name. An empty name selects
// PolicyContinue
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch p := FailurePolicy(name); p {
	case "":
		return PolicyContinue, nil
	case PolicyContinue, PolicyAbort:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
}
