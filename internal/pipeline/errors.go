package pipeline

import (
	"errors"
	"fmt"
)

// StructureError reports a graph shape that cannot be executed as a single
// path. Kind is one of ErrNoEntryStep, ErrAmbiguousEntry or ErrCycle
type StructureError struct {
	Kind     error
	Pipeline string
	Detail   string
}

var (
	ErrNoEntryStep    = errors.New("no entry step")
	ErrAmbiguousEntry = errors.New("ambiguous entry")
	ErrCycle          = errors.New("step revisited")
	ErrStepFailed     = errors.New("step failed")
	ErrCloneFailed    = errors.New("could not allocate snapshot name")
)

func (e *StructureError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("pipeline %q: %s", e.Pipeline, e.Kind)
	}
	return fmt.Sprintf("pipeline %q: %s: %s", e.Pipeline, e.Kind, e.Detail)
}

func (e *StructureError) Unwrap() error {
	return e.Kind
}

// IsStructureError reports whether err carries a StructureError
func IsStructureError(err error) bool {
	var se *StructureError
	return errors.As(err, &se)
}

func structureError(pipeline string, kind error, detail string) error {
	return &StructureError{
		Kind:     kind,
		Pipeline: pipeline,
		Detail:   detail,
	}
}
