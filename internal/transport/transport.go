// Package transport performs signed purge requests with retry and
// exponential backoff.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"fastpurge/internal/auth"
	"fastpurge/internal/config"
	"fastpurge/internal/domain"
	"fastpurge/internal/metrics"
)

const (
	requestTimeout = 30 * time.Second
	maxBackoff     = 60 * time.Second
)

// Transport submits one purge body per Send call, retrying on any
// non-created status or connection failure. Each worker borrows its own
// *http.Client from a bounded pool for the duration of a call, so no
// session is ever used by two goroutines at once.
type Transport struct {
	cfg      config.Config
	signer   auth.Signer
	log      zerolog.Logger
	met      *metrics.Metrics
	sessions chan *http.Client
}

func New(cfg config.Config, signer auth.Signer, logger zerolog.Logger, met *metrics.Metrics) *Transport {
	sessions := make(chan *http.Client, cfg.MaxConcurrent)
	for i := 0; i < cfg.MaxConcurrent; i++ {
		sessions <- &http.Client{Timeout: requestTimeout}
	}
	return &Transport{cfg: cfg, signer: signer, log: logger, met: met, sessions: sessions}
}

// Send POSTs body to endpoint until the API reports the purge as created,
// retrying up to MaxRetries times. The returned Purge carries the parsed
// response and the estimated completion instant on the monotonic clock.
func (t *Transport) Send(ctx context.Context, endpoint string, body []byte) (domain.Purge, error) {
	var session *http.Client
	select {
	case session = <-t.sessions:
	case <-ctx.Done():
		return domain.Purge{}, ctx.Err()
	}
	defer func() { t.sessions <- session }()

	t.log.Debug().Int("bytes", len(body)).Str("endpoint", endpoint).Msg("posting purge request")

	var lastReason string
	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffExp(t.cfg.RetryBackoff, attempt)):
			case <-ctx.Done():
				return domain.Purge{}, ctx.Err()
			}
		}

		t.met.RequestsTotal.Inc()
		resp, err := t.post(ctx, session, endpoint, body)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Purge{}, ctx.Err()
			}
			lastReason = err.Error()
			t.met.RetriesTotal.Inc()
			t.log.Error().Err(err).
				Str("method", http.MethodPost).
				Str("endpoint", endpoint).
				Msg("purge request failed")
			continue
		}

		// The server signals async queueing strictly with 201; anything
		// else is a retry trigger.
		if resp.StatusCode != http.StatusCreated {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastReason = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
			t.met.RetriesTotal.Inc()
			t.log.Error().
				Int("status", resp.StatusCode).
				Str("reason", http.StatusText(resp.StatusCode)).
				Str("method", http.MethodPost).
				Str("endpoint", endpoint).
				Msg("invalid status received for purge request")
			continue
		}

		return t.decode(endpoint, resp)
	}

	return domain.Purge{}, &domain.TransportError{
		Endpoint:   endpoint,
		Retries:    t.cfg.MaxRetries,
		LastReason: lastReason,
	}
}

func (t *Transport) post(ctx context.Context, session *http.Client, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := t.signer.Sign(req, body); err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}
	return session.Do(req)
}

func (t *Transport) decode(endpoint string, resp *http.Response) (domain.Purge, error) {
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		// The purge was accepted, so retrying would double-submit it.
		return domain.Purge{}, &domain.DecodeError{Endpoint: endpoint, Err: err}
	}

	estimate := t.cfg.DefaultDelay
	if v, ok := payload["estimatedSeconds"].(float64); ok {
		estimate = time.Duration(v * float64(time.Second))
	}

	// time.Now carries a monotonic reading, so the estimate is immune to
	// wall-clock adjustments.
	return domain.Purge{
		ResponseBody:      payload,
		EstimatedComplete: time.Now().Add(estimate),
	}, nil
}

func backoffExp(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1) // base, 2*base, 4*base...
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	return d
}
