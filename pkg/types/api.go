package types

// TensorPayload is the wire representation of a tensor crossing the HTTP
// boundary. Shape is row-major; Data holds exactly the product of Shape
// elements.
type TensorPayload struct {
	// Element type. Only "f32" is supported.
	// example: f32
	DType string `json:"dtype" example:"f32"`
	// Tensor shape, e.g. [3] for a single vector or [2,3] for a batch of two.
	// example: [3]
	Shape []int `json:"shape" example:"3"`
	// Flattened element values in row-major order.
	// example: [1.0,2.0,3.0]
	Data []float32 `json:"data"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	// Input tensor matching the loaded model's input signature.
	Input TensorPayload `json:"input"`
	// Optional caller-supplied correlation id echoed back in the response.
	// The server assigns one when absent.
	// example: 9f3b2c1a
	CorrelationID string `json:"correlation_id,omitempty" example:"9f3b2c1a"`
	// Optional per-request deadline in milliseconds. Zero means the server
	// default applies.
	// example: 2000
	DeadlineMS int64 `json:"deadline_ms,omitempty" example:"2000"`
}

// PredictResponse is the success body of POST /predict.
type PredictResponse struct {
	Output        TensorPayload `json:"output"`
	CorrelationID string        `json:"correlation_id"`
	// Wall time spent on the request, queueing included.
	DurationMS int64 `json:"duration_ms"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Human-readable error message.
	// example: input shape does not match model signature
	Error string `json:"error" example:"input shape does not match model signature"`
	// Machine-readable error kind, stable across releases.
	// example: shape_mismatch
	Kind string `json:"kind" example:"shape_mismatch"`
	// HTTP status code.
	// example: 422
	Code int `json:"code" example:"422"`
	// Whether retrying the same request later can succeed.
	// example: false
	Retryable bool `json:"retryable"`
	// Correlation id when one was known at the time of failure.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	// Health state: starting, ready, degraded or shutting_down.
	// example: ready
	State string `json:"state" example:"ready"`
	// Reason for a degraded state, empty otherwise.
	Reason string `json:"reason,omitempty"`
	Model  ModelStatus `json:"model"`
	Queue  QueueStatus `json:"queue"`
	// Seconds since process start.
	// example: 3600
	UptimeSec int64 `json:"uptime_sec" example:"3600"`
}

// ModelStatus describes the loaded model artifact.
type ModelStatus struct {
	// Model identifier taken from the artifact header.
	// example: identity-v1
	ID string `json:"id" example:"identity-v1"`
	// Artifact format version.
	// example: 1
	FormatVersion uint32 `json:"format_version" example:"1"`
	// Backend device descriptor.
	// example: cpu
	Device string `json:"device" example:"cpu"`
	// Whether the backend accepts concurrent inference calls.
	// example: false
	ParallelSafe bool `json:"parallel_safe"`
	InputDim     int  `json:"input_dim"`
	OutputDim    int  `json:"output_dim"`
}

// QueueStatus describes executor occupancy.
type QueueStatus struct {
	// Jobs waiting in the backlog.
	// example: 0
	Queued int `json:"queued" example:"0"`
	// Jobs currently executing.
	// example: 1
	Executing int `json:"executing" example:"1"`
	// Configured execution slots.
	// example: 2
	Slots int `json:"slots" example:"2"`
	// Configured backlog capacity.
	// example: 32
	BacklogCap int `json:"backlog_cap" example:"32"`
}
