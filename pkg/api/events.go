package api

import "time"

type (
	// EventType identifies a run event
	EventType string

	// Event is a run lifecycle notification
	Event struct {
		Timestamp time.Time `json:"timestamp"`
		Data      any       `json:"data"`
		Type      EventType `json:"type"`
	}

	// RunStartedEvent is emitted once the snapshot for a run exists
	RunStartedEvent struct {
		Pipeline string `json:"pipeline"`
		Snapshot string `json:"snapshot"`
	}

	// StepStartedEvent is emitted before a step's command is executed
	StepStartedEvent struct {
		Pipeline string `json:"pipeline"`
		Snapshot string `json:"snapshot"`
		Command  string `json:"cmd"`
		StepID   StepID `json:"step_id"`
	}

	// StepCompletedEvent is emitted once a step's result is recorded
	StepCompletedEvent struct {
		Pipeline string `json:"pipeline"`
		Snapshot string `json:"snapshot"`
		StepID   StepID `json:"step_id"`
		ExitCode int    `json:"exit_code"`
	}

	// RunCompletedEvent is emitted when the last step of a run has executed
	RunCompletedEvent struct {
		Pipeline string `json:"pipeline"`
		Snapshot string `json:"snapshot"`
		Steps    int    `json:"steps"`
	}

	// RunFailedEvent is emitted when a run stops because of an error
	RunFailedEvent struct {
		Pipeline string `json:"pipeline"`
		Snapshot string `json:"snapshot,omitempty"`
		Error    string `json:"error"`
	}
)

// EventPipeline returns the name of the pipeline an event belongs to, or an
// empty string when the payload carries none
func EventPipeline(ev *Event) string {
	switch d := ev.Data.(type) {
	case RunStartedEvent:
		return d.Pipeline
	case StepStartedEvent:
		return d.Pipeline
	case StepCompletedEvent:
		return d.Pipeline
	case RunCompletedEvent:
		return d.Pipeline
	case RunFailedEvent:
		return d.Pipeline
	default:
		return ""
	}
}

const (
	EventTypeRunStarted    EventType = "run_started"
	EventTypeStepStarted   EventType = "step_started"
	EventTypeStepCompleted EventType = "step_completed"
	EventTypeRunCompleted  EventType = "run_completed"
	EventTypeRunFailed     EventType = "run_failed"
)
