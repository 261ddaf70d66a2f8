// Package scheduler runs purge sub-requests under a concurrency bound and
// resolves their futures once the server's completion estimate elapses.
//
// The API has no endpoint to query the status of a purge. The only
// completion signal is the estimatedSeconds the server declares when a
// purge is created, so a single poll loop watches every accepted task and
// resolves its future one tick after the estimate passes — never earlier.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fastpurge/internal/config"
	"fastpurge/internal/domain"
	"fastpurge/internal/metrics"
)

// Sender performs one purge sub-request, retrying internally. By the time
// Send returns an error, every retry has already happened; the scheduler
// never retries on its behalf.
type Sender interface {
	Send(ctx context.Context, endpoint string, body []byte) (domain.Purge, error)
}

// Future resolves once its purge sub-request reaches a terminal state.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result domain.Purge
	err    error
}

// Done is closed when the future has resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Get blocks until the future resolves or ctx expires.
func (f *Future) Get(ctx context.Context) (domain.Purge, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return domain.Purge{}, ctx.Err()
	}
}

func (f *Future) complete(p domain.Purge, err error) {
	f.once.Do(func() {
		f.result = p
		f.err = err
		close(f.done)
	})
}

type task struct {
	id    string
	state domain.TaskState
	fut   *Future
	purge domain.Purge
}

// Scheduler admits tasks under a MaxConcurrent bound; a task holds its
// slot from admission until it reaches a terminal state, which is the
// sole backpressure mechanism. Accepted tasks wait in the pending set for
// the poll loop to declare them complete.
type Scheduler struct {
	cfg    config.Config
	sender Sender
	log    zerolog.Logger
	met    *metrics.Metrics

	sem  chan struct{}
	wake chan struct{}
	stop chan struct{}

	// ctx is cancelled on Close; in-flight sends are abandoned, not
	// waited for.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
}

func New(cfg config.Config, sender Sender, logger zerolog.Logger, met *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:    cfg,
		sender: sender,
		log:    logger,
		met:    met,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*task),
	}
	go s.poll()
	return s
}

// Submit admits one purge sub-request, blocking while MaxConcurrent tasks
// are already executing or awaiting their estimate. The returned future
// resolves when the task reaches a terminal state.
func (s *Scheduler) Submit(ctx context.Context, endpoint string, body []byte) (*Future, error) {
	t := &task{
		id:    "prg_" + uuid.NewString(),
		state: domain.StateSubmitted,
		fut:   &Future{done: make(chan struct{})},
	}

	select {
	case s.sem <- struct{}{}:
	case <-s.stop:
		return nil, domain.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.sem
		return nil, domain.ErrClosed
	}
	t.state = domain.StateExecuting
	s.tasks[t.id] = t
	s.mu.Unlock()

	go s.run(t, endpoint, body)
	return t.fut, nil
}

func (s *Scheduler) run(t *task, endpoint string, body []byte) {
	purge, err := s.sender.Send(s.ctx, endpoint, body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.state != domain.StateExecuting {
		// Close cancelled the task while the request was in flight; the
		// future is already rejected and the slot already released.
		return
	}

	if err != nil {
		t.state = domain.StateFailed
		delete(s.tasks, t.id)
		<-s.sem
		s.met.PurgesFailed.Inc()
		s.log.Error().Err(err).Str("task_id", t.id).Msg("purge task failed")
		t.fut.complete(domain.Purge{}, err)
		return
	}

	t.state = domain.StateAwaitingEstimate
	t.purge = purge
	s.log.Debug().Str("task_id", t.id).
		Time("estimated_complete", purge.EstimatedComplete).
		Msg("purge accepted, awaiting estimate")

	// Nudge the poller so a short estimate is not stuck behind a full
	// default-delay sleep.
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// poll is the only loop that moves tasks from awaiting-estimate to
// complete. It sleeps until the earliest pending estimate or the default
// delay, whichever comes first, so the wake frequency stays bounded no
// matter how many tasks are pending.
func (s *Scheduler) poll() {
	timer := time.NewTimer(s.cfg.DefaultDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-timer.C:
		}

		next := s.resolveDue(time.Now())

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(next)
	}
}

func (s *Scheduler) resolveDue(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.DefaultDelay
	for id, t := range s.tasks {
		if t.state != domain.StateAwaitingEstimate {
			continue
		}
		remaining := t.purge.EstimatedComplete.Sub(now)
		if remaining > 0 {
			if remaining < next {
				next = remaining
			}
			continue
		}

		t.state = domain.StateComplete
		delete(s.tasks, id)
		<-s.sem
		s.met.PurgesCompleted.Inc()
		s.log.Debug().Str("task_id", id).Msg("purge estimate elapsed, task complete")
		t.fut.complete(t.purge, nil)
	}
	if next < 0 {
		next = 0
	}
	return next
}

// Close stops admission and polling and rejects every unresolved future
// with ErrCancelled. Requests already in flight are abandoned; their
// eventual result is discarded.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.stop)
	s.cancel()

	// Every tracked task holds a slot, whether executing or awaiting its
	// estimate, so each is released here exactly once.
	for id, t := range s.tasks {
		<-s.sem
		t.state = domain.StateCancelled
		delete(s.tasks, id)
		t.fut.complete(domain.Purge{}, domain.ErrCancelled)
	}
	s.mu.Unlock()

	s.log.Debug().Msg("purge scheduler closed")
}
