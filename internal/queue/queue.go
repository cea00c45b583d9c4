package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"scribe/internal/config"
	"scribe/internal/logging"
)

// Task is a unit of work admitted by the queue. The queue runs it on the
// submitting goroutine once a concurrency slot is available.
type Task func(ctx context.Context) error

// Options bound admission behavior.
type Options struct {
	// MaxConcurrent is the number of tasks allowed to run at once.
	MaxConcurrent int
	// MaxQueued is how many submissions may wait for a slot before new
	// submissions are rejected outright.
	MaxQueued int
	// WaitTimeout bounds how long a submission waits for a slot. Zero
	// means wait until the context is done.
	WaitTimeout time.Duration
	// LaunchRate, when positive, paces task launches to this many per
	// second on top of the concurrency bound.
	LaunchRate float64
}

// Queue admits tasks under a concurrency bound with a bounded FIFO wait
// line. Submissions beyond the wait line are rejected immediately so
// callers see backpressure instead of unbounded queueing.
type Queue struct {
	maxConcurrent int
	maxQueued     int
	waitTimeout   time.Duration
	limiter       *rate.Limiter
	logger        *slog.Logger

	mu      sync.Mutex
	active  int
	waiters []*waiter

	completed atomic.Int64
	failed    atomic.Int64
}

type waiterState int

const (
	stateWaiting waiterState = iota
	stateAdmitted
	stateAbandoned
)

type waiter struct {
	ready chan struct{}
	state waiterState
}

// New builds a queue from explicit options.
func New(opts Options, logger *slog.Logger) *Queue {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.MaxQueued < 0 {
		opts.MaxQueued = 0
	}
	q := &Queue{
		maxConcurrent: opts.MaxConcurrent,
		maxQueued:     opts.MaxQueued,
		waitTimeout:   opts.WaitTimeout,
		logger:        logging.NewComponentLogger(logger, "queue"),
	}
	if opts.LaunchRate > 0 {
		q.limiter = rate.NewLimiter(rate.Limit(opts.LaunchRate), 1)
	}
	return q
}

// NewFromConfig builds a queue from the daemon configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Queue {
	return New(Options{
		MaxConcurrent: cfg.Queue.MaxConcurrent,
		MaxQueued:     cfg.Queue.MaxSize,
		WaitTimeout:   time.Duration(cfg.Queue.WaitTimeoutSeconds) * time.Second,
		LaunchRate:    cfg.Queue.LaunchRatePerSecond,
	}, logger)
}

// Submit runs the task once a slot is available, blocking until admission,
// timeout, or context cancellation. The task's error is returned as-is;
// admission failures are *FullError, *TimeoutError, or the context error.
func (q *Queue) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	if err := q.acquire(ctx); err != nil {
		return err
	}
	defer q.release()

	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	err := task(ctx)
	if err != nil {
		q.failed.Add(1)
	} else {
		q.completed.Add(1)
	}
	return err
}

func (q *Queue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if q.active < q.maxConcurrent {
		q.active++
		q.mu.Unlock()
		return nil
	}
	if len(q.waiters) >= q.maxQueued {
		stats := q.statsLocked()
		q.mu.Unlock()
		q.logger.Debug("submission rejected, queue full",
			logging.Int("active", stats.Active),
			logging.Int("pending", stats.Pending))
		return &FullError{Stats: stats}
	}
	w := &waiter{ready: make(chan struct{})}
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	var timeout <-chan time.Time
	if q.waitTimeout > 0 {
		timer := time.NewTimer(q.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-w.ready:
		return nil
	case <-timeout:
		if q.abandon(w) {
			q.logger.Debug("submission timed out waiting for slot",
				logging.Duration("waited", q.waitTimeout))
			return &TimeoutError{Waited: q.waitTimeout, Stats: q.Stats()}
		}
		// Admitted in the same instant the timer fired; the slot is ours.
		<-w.ready
		return nil
	case <-ctx.Done():
		if q.abandon(w) {
			return ctx.Err()
		}
		<-w.ready
		return nil
	}
}

// abandon withdraws a waiter from the wait line. Returns false when the
// waiter was already handed a slot, in which case the caller must take it.
func (q *Queue) abandon(w *waiter) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w.state == stateAdmitted {
		return false
	}
	w.state = stateAbandoned
	for i, candidate := range q.waiters {
		if candidate == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			break
		}
	}
	return true
}

func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters = q.waiters[1:]
		if w.state != stateWaiting {
			continue
		}
		// The slot transfers to the waiter; active stays unchanged.
		w.state = stateAdmitted
		close(w.ready)
		return
	}
	q.active--
}

// Stats snapshots queue occupancy and lifetime task accounting.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statsLocked()
}

func (q *Queue) statsLocked() Stats {
	completed := q.completed.Load()
	failed := q.failed.Load()
	return Stats{
		Pending:        len(q.waiters),
		Active:         q.active,
		QueueSize:      q.maxQueued,
		Completed:      completed,
		Failed:         failed,
		TotalProcessed: completed + failed,
	}
}

// Stats describes queue state at a point in time. QueueSize is the
// configured wait-line capacity, Pending the number currently waiting.
type Stats struct {
	Pending        int   `json:"pending"`
	Active         int   `json:"active"`
	QueueSize      int   `json:"queue_size"`
	Completed      int64 `json:"completed"`
	Failed         int64 `json:"failed"`
	TotalProcessed int64 `json:"total_processed"`
}
