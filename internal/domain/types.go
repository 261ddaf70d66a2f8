package domain

import (
	"errors"
	"fmt"
	"time"
)

// TaskState is the lifecycle state of one submitted purge sub-request.
type TaskState string

const (
	StateSubmitted        TaskState = "submitted"
	StateExecuting        TaskState = "executing"
	StateAwaitingEstimate TaskState = "awaiting_estimate"
	StateComplete         TaskState = "complete"
	StateFailed           TaskState = "failed"
	StateCancelled        TaskState = "cancelled"
)

// Purge is the outcome of one accepted purge sub-request.
type Purge struct {
	// ResponseBody is whatever the API returned when the purge was created.
	ResponseBody map[string]any

	// EstimatedComplete is when the purge is expected to be done, on the
	// monotonic clock. The API offers no way to confirm actual completion,
	// so this estimate is the only completion signal available.
	EstimatedComplete time.Time
}

// ErrCancelled rejects futures still outstanding when the client shuts down.
var ErrCancelled = errors.New("purge cancelled: client shut down")

// ErrClosed is returned for submissions made after the client shut down.
var ErrClosed = errors.New("purge client is closed")

// ConfigurationError reports invalid configuration or an unusable
// credential source.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// TransportError reports a purge request that failed after exhausting
// all retries.
type TransportError struct {
	Endpoint   string
	Retries    int
	LastReason string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s was unsuccessful after %d retries: %s",
		e.Endpoint, e.Retries, e.LastReason)
}

// DecodeError reports an accepted response whose body could not be parsed.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response from %s: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
