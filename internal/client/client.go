// Package client is the public face of the purge engine. A Client fans a
// large purge out into payload-bounded sub-requests, submits them to the
// scheduler, and hands back one aggregate handle per logical call.
package client

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"fastpurge/internal/auth"
	"fastpurge/internal/config"
	"fastpurge/internal/domain"
	"fastpurge/internal/edgerc"
	"fastpurge/internal/metrics"
	"fastpurge/internal/scheduler"
	"fastpurge/internal/splitter"
	"fastpurge/internal/transport"
)

// Client purges cached content through the CCU v3 API.
//
// Purge operations return an Aggregate which resolves when the purge is
// estimated to be complete, or fails. Callers should Close the client
// when done; outstanding purges are cancelled or abandoned.
type Client struct {
	cfg     config.Config
	sched   *scheduler.Scheduler
	baseURL string
	log     zerolog.Logger
}

// New builds a Client from explicit credentials. A nil reg disables
// metric registration.
func New(cfg config.Config, creds edgerc.Credentials, logger zerolog.Logger, reg prometheus.Registerer) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	met := metrics.New(reg)
	tr := transport.New(cfg, auth.NewEdgeGrid(creds), logger, met)
	return &Client{
		cfg:     cfg,
		sched:   scheduler.New(cfg, tr, logger, met),
		baseURL: baseURL(cfg, creds.Host),
		log:     logger,
	}, nil
}

// NewFromEdgeRc builds a Client with credentials resolved from the
// .edgerc file at path; an empty path means ~/.edgerc.
func NewFromEdgeRc(cfg config.Config, path string, logger zerolog.Logger, reg prometheus.Registerer) (*Client, error) {
	creds, err := edgerc.Resolve(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, creds, logger, reg)
}

// Close stops the scheduler, rejecting every unresolved purge with
// ErrCancelled. In-flight requests are abandoned.
func (c *Client) Close() {
	c.sched.Close()
}

type purgeOpts struct {
	network   string
	purgeType string
}

// PurgeOption adjusts one purge call.
type PurgeOption func(*purgeOpts)

// WithNetwork targets "staging" or "production".
func WithNetwork(network string) PurgeOption {
	return func(o *purgeOpts) { o.network = network }
}

// WithPurgeType selects "delete" or "invalidate" semantics.
func WithPurgeType(purgeType string) PurgeOption {
	return func(o *purgeOpts) { o.purgeType = purgeType }
}

// PurgeObjects purges a collection of objects of the given type ("url",
// "tag" or "cpcode"). The object list is split into as many sub-requests
// as the payload limit demands; ctx bounds only submission, which blocks
// while the scheduler is at capacity.
func (c *Client) PurgeObjects(ctx context.Context, objectType string, objects []any, opts ...PurgeOption) (*Aggregate, error) {
	o := purgeOpts{network: c.cfg.DefaultNetwork, purgeType: c.cfg.DefaultPurgeType}
	for _, opt := range opts {
		opt(&o)
	}

	endpoint := fmt.Sprintf("%s/ccu/v3/%s/%s/%s", c.baseURL, o.purgeType, objectType, o.network)

	bodies, err := splitter.Split(objects, c.cfg.MaxPayloadBytes)
	if err != nil {
		return nil, fmt.Errorf("serializing purge objects: %w", err)
	}

	c.log.Debug().
		Int("objects", len(objects)).
		Int("requests", len(bodies)).
		Str("endpoint", endpoint).
		Msg("submitting purge")

	futures := make([]*scheduler.Future, 0, len(bodies))
	for _, body := range bodies {
		fut, err := c.sched.Submit(ctx, endpoint, body.Payload)
		if err != nil {
			return nil, err
		}
		futures = append(futures, fut)
	}
	return &Aggregate{futures: futures}, nil
}

// PurgeByURL purges by URL.
func (c *Client) PurgeByURL(ctx context.Context, urls []string, opts ...PurgeOption) (*Aggregate, error) {
	return c.PurgeObjects(ctx, "url", toAny(urls), opts...)
}

// PurgeByTag purges by cache tag.
func (c *Client) PurgeByTag(ctx context.Context, tags []string, opts ...PurgeOption) (*Aggregate, error) {
	return c.PurgeObjects(ctx, "tag", toAny(tags), opts...)
}

// PurgeByCPCode purges by content-provider code.
func (c *Client) PurgeByCPCode(ctx context.Context, cpcodes []int, opts ...PurgeOption) (*Aggregate, error) {
	return c.PurgeObjects(ctx, "cpcode", toAny(cpcodes), opts...)
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// baseURL elides the default port for the scheme, matching what the API's
// own tooling sends.
func baseURL(cfg config.Config, host string) string {
	if (cfg.Scheme == "http" && cfg.Port == 80) || (cfg.Scheme == "https" && cfg.Port == 443) {
		return fmt.Sprintf("%s://%s", cfg.Scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", cfg.Scheme, host, cfg.Port)
}

// Aggregate tracks every sub-request of one logical purge call.
type Aggregate struct {
	futures []*scheduler.Future
}

// Len is the number of sub-requests the call was split into.
func (a *Aggregate) Len() int { return len(a.futures) }

// Futures exposes the per-sub-request futures, in split order.
func (a *Aggregate) Futures() []*scheduler.Future { return a.futures }

// Get blocks until every sub-request completes, returning their results
// in split order, or until one fails, returning that first error. Other
// sub-requests are not cancelled on failure; they may still complete or
// fail on their own, but the aggregate outcome is already decided.
func (a *Aggregate) Get(ctx context.Context) ([]domain.Purge, error) {
	results := make([]domain.Purge, len(a.futures))
	for i, fut := range a.futures {
		purge, err := fut.Get(ctx)
		if err != nil {
			return nil, err
		}
		results[i] = purge
	}
	return results, nil
}
