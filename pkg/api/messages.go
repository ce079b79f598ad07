package api

type (
	// CreateStepRequest contains the fields of a new step
	CreateStepRequest struct {
		Command     string `json:"cmd"`
		Description string `json:"desc"`
	}

	// ConnectStepsRequest links a step to its successor
	ConnectStepsRequest struct {
		Source StepID `json:"src"`
		Dest   StepID `json:"dest"`
	}

	// StepCreatedResponse is returned when a step is created
	StepCreatedResponse struct {
		Step     *Step  `json:"step"`
		Pipeline string `json:"pipeline"`
	}

	// StepsListResponse contains the steps of a pipeline
	StepsListResponse struct {
		Pipeline string  `json:"pipeline"`
		Steps    []*Step `json:"steps"`
		Count    int     `json:"count"`
	}

	// PipelinesListResponse contains the names of stored pipelines
	PipelinesListResponse struct {
		Pipelines []string `json:"pipelines"`
		Count     int      `json:"count"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Status  string `json:"status"`
		Error   string `json:"error,omitempty"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// SubscribeRequest narrows the events streamed to a WebSocket client
	SubscribeRequest struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// ClientSubscription selects events by type and pipeline. Empty fields
	// match everything
	ClientSubscription struct {
		EventTypes []EventType `json:"event_types,omitempty"`
		Pipeline   string      `json:"pipeline,omitempty"`
	}

	// SubscribedResult acknowledges a subscription
	SubscribedResult struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)
