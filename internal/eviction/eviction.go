package eviction

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/transcript"
)

// Eviction policies. LRU enforces the entry-count and size budgets, TTL the
// age bound, and the combined policy all three. None disables every step.
const (
	PolicyLRU    = "lru"
	PolicyTTL    = "ttl"
	PolicyLRUTTL = "lru+ttl"
	PolicyNone   = "none"
)

// Oldest-first deletes run in fixed batches so one pass never holds a long
// write transaction.
const batchSize = 100

// ErrRunInProgress is returned when a run is requested while another is
// still executing.
var ErrRunInProgress = errors.New("eviction run already in progress")

// Report counts evictions per policy step for one run.
type Report struct {
	TTL   int64 `json:"evicted_by_ttl"`
	Count int64 `json:"evicted_by_count"`
	Size  int64 `json:"evicted_by_size"`
}

// Total sums all steps.
func (r Report) Total() int64 {
	return r.TTL + r.Count + r.Size
}

// Options bound what a run may leave behind.
type Options struct {
	Policy     string
	MaxEntries int
	MaxSizeMB  int
	TTLDays    int
	Interval   time.Duration
}

// Service enforces the cache budgets, on demand and on a schedule.
type Service struct {
	cache   *transcript.Store
	opts    Options
	logger  *slog.Logger
	running atomic.Bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New builds the service from explicit options.
func New(cache *transcript.Store, opts Options, logger *slog.Logger) *Service {
	if opts.Policy == "" {
		opts.Policy = PolicyNone
	}
	return &Service{
		cache:  cache,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "eviction"),
	}
}

// NewFromConfig builds the service from the daemon configuration.
func NewFromConfig(cache *transcript.Store, cfg *config.Config, logger *slog.Logger) *Service {
	return New(cache, Options{
		Policy:     cfg.Cache.EvictionPolicy,
		MaxEntries: cfg.Cache.MaxEntries,
		MaxSizeMB:  cfg.Cache.MaxSizeMB,
		TTLDays:    cfg.Cache.TTLDays,
		Interval:   time.Duration(cfg.Cache.EvictionIntervalHours) * time.Hour,
	}, logger)
}

// RunOnce executes one policy pass: age bound first, then the entry-count
// budget, then the size budget. At most one run executes at a time; a
// request that overlaps an in-flight run returns ErrRunInProgress.
func (s *Service) RunOnce(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	var report Report
	if s.opts.Policy == PolicyNone {
		return report, nil
	}

	if s.opts.Policy == PolicyTTL || s.opts.Policy == PolicyLRUTTL {
		evicted, err := s.cache.EvictOlderThan(ctx, s.opts.TTLDays)
		if err != nil {
			return report, err
		}
		report.TTL = evicted
	}

	if s.opts.Policy == PolicyLRU || s.opts.Policy == PolicyLRUTTL {
		evicted, err := s.enforceEntryBudget(ctx)
		if err != nil {
			return report, err
		}
		report.Count = evicted

		evicted, err = s.enforceSizeBudget(ctx)
		if err != nil {
			return report, err
		}
		report.Size = evicted
	}

	if total := report.Total(); total > 0 {
		s.logger.Info("eviction pass finished",
			logging.Int64("ttl", report.TTL),
			logging.Int64("count", report.Count),
			logging.Int64("size", report.Size))
	}
	return report, nil
}

func (s *Service) enforceEntryBudget(ctx context.Context) (int64, error) {
	if s.opts.MaxEntries <= 0 {
		return 0, nil
	}
	var evicted int64
	for {
		stats, err := s.cache.Stats(ctx)
		if err != nil {
			return evicted, err
		}
		excess := stats.Entries - s.opts.MaxEntries
		if excess <= 0 {
			return evicted, nil
		}
		if excess > batchSize {
			excess = batchSize
		}
		removed, err := s.cache.EvictOldest(ctx, excess)
		if err != nil {
			return evicted, err
		}
		evicted += removed
		if removed == 0 {
			return evicted, nil
		}
	}
}

func (s *Service) enforceSizeBudget(ctx context.Context) (int64, error) {
	if s.opts.MaxSizeMB <= 0 {
		return 0, nil
	}
	budget := int64(s.opts.MaxSizeMB) * 1024 * 1024
	var evicted int64
	for {
		stats, err := s.cache.Stats(ctx)
		if err != nil {
			return evicted, err
		}
		if stats.TotalBytes <= budget || stats.Entries == 0 {
			return evicted, nil
		}
		// Estimate how many oldest entries cover the excess so a slightly
		// over-budget cache is not wiped a hundred entries at a time.
		average := stats.TotalBytes / int64(stats.Entries)
		if average <= 0 {
			average = 1
		}
		excess := stats.TotalBytes - budget
		count := int((excess + average - 1) / average)
		if count < 1 {
			count = 1
		}
		if count > batchSize {
			count = batchSize
		}
		removed, err := s.cache.EvictOldest(ctx, count)
		if err != nil {
			return evicted, err
		}
		evicted += removed
		if removed == 0 {
			return evicted, nil
		}
	}
}

// Start schedules RunOnce on the configured interval until Stop. An
// interval of zero disables scheduling. Errors and overlapping runs are
// logged; the schedule keeps firing.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil || s.opts.Interval <= 0 {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
					s.logger.Error("scheduled eviction failed", logging.Error(err))
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}(s.stop, s.done)

	s.logger.Info("eviction schedule started",
		logging.String("policy", s.opts.Policy),
		logging.Duration("interval", s.opts.Interval))
}

// Stop halts the schedule and waits for any in-flight tick to return.
func (s *Service) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
