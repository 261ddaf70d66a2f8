package config

import (
	"fmt"
	"time"

	"fastpurge/internal/domain"
)

// minPayload is the serialized size of the smallest useful request body,
// {"objects":["x"]}.
const minPayload = 17

// Config holds every tunable of the purge client. A Config is immutable
// once constructed and safe to share across goroutines without
// synchronization.
type Config struct {
	// MaxPayloadBytes bounds the serialized size of one sub-request body.
	// Set slightly below the API's documented limit to leave room for
	// overhead beyond our control.
	MaxPayloadBytes int

	// MaxConcurrent bounds how many sub-requests may be in flight
	// (executing or awaiting their completion estimate) at once.
	// Submissions beyond the bound block until a slot frees.
	MaxConcurrent int

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles on
	// each subsequent retry.
	RetryBackoff time.Duration

	// DefaultNetwork matches the API's documented default.
	DefaultNetwork string

	// DefaultPurgeType is "delete" rather than the faster "invalidate".
	// Delete achieves the needed result for all kinds of purge requests,
	// including compliance and copyright ones, at the cost of being more
	// expensive than needed for most. Callers who know better can opt in
	// to "invalidate" per call.
	DefaultPurgeType string

	// DefaultDelay is the completion estimate used when the API response
	// lacks estimatedSeconds, and the ceiling on the poll wake interval.
	DefaultDelay time.Duration

	Scheme string
	Port   int
}

// Default returns the stock configuration for the production API.
func Default() Config {
	return Config{
		MaxPayloadBytes:  45000,
		MaxConcurrent:    10,
		MaxRetries:       10,
		RetryBackoff:     150 * time.Millisecond,
		DefaultNetwork:   "production",
		DefaultPurgeType: "delete",
		DefaultDelay:     5 * time.Second,
		Scheme:           "https",
		Port:             443,
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxPayloadBytes < minPayload:
		return &domain.ConfigurationError{Reason: fmt.Sprintf(
			"max payload %d cannot hold a single object", c.MaxPayloadBytes)}
	case c.MaxConcurrent <= 0:
		return &domain.ConfigurationError{Reason: "max concurrent requests must be positive"}
	case c.MaxRetries <= 0:
		return &domain.ConfigurationError{Reason: "max retries must be positive"}
	case c.RetryBackoff <= 0:
		return &domain.ConfigurationError{Reason: "retry backoff must be positive"}
	case c.DefaultDelay <= 0:
		return &domain.ConfigurationError{Reason: "default delay must be positive"}
	case c.DefaultNetwork == "":
		return &domain.ConfigurationError{Reason: "default network must be set"}
	case c.DefaultPurgeType == "":
		return &domain.ConfigurationError{Reason: "default purge type must be set"}
	case c.Scheme != "http" && c.Scheme != "https":
		return &domain.ConfigurationError{Reason: fmt.Sprintf("unsupported scheme %q", c.Scheme)}
	case c.Port <= 0 || c.Port > 65535:
		return &domain.ConfigurationError{Reason: fmt.Sprintf("invalid port %d", c.Port)}
	}
	return nil
}
