package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/eviction"
	"scribe/internal/extractor"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
	"scribe/internal/transcript"
)

// Daemon owns the extraction core: stores, admission queue, orchestrator,
// eviction schedule, and the management API. It enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	db           *sql.DB
	jobStore     *jobs.Store
	cache        *transcript.Store
	queue        *queue.Queue
	orchestrator *pipeline.Orchestrator
	evictor      *eviction.Service
	api          *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	jobsWG  sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Queue        queue.Stats
	Cache        transcript.Stats
	Jobs         jobs.Summary
	Dependencies []deps.Status
}

// New constructs a daemon over an opened database.
func New(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || db == nil || logger == nil {
		return nil, errors.New("daemon requires config, database, and logger")
	}

	ext, err := extractor.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	jobStore := jobs.NewStore(db)
	cache := transcript.NewStore(db)
	q := queue.NewFromConfig(cfg, logger)

	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		db:           db,
		jobStore:     jobStore,
		cache:        cache,
		queue:        q,
		orchestrator: pipeline.New(jobStore, cache, q, ext, cfg, logger),
		evictor:      eviction.NewFromConfig(cache, cfg, logger),
		lockPath:     cfg.LockFilePath(),
		lock:         flock.New(cfg.LockFilePath()),
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the daemon lock and launches the eviction schedule and the
// management API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.evictor.Start(d.ctx)
	if err := d.api.start(d.ctx); err != nil {
		d.evictor.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx, d.cancel = nil, nil
		return err
	}

	for _, dep := range deps.CheckBinaries(deps.Requirements(d.cfg)) {
		if !dep.Available && !dep.Optional {
			d.logger.Warn("dependency unavailable",
				logging.String("name", dep.Name),
				logging.String("detail", dep.Detail))
		}
	}

	d.running.Store(true)
	d.logger.Info("scribe daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels in-flight jobs, halts the schedule and API, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.jobsWG.Wait()
	d.evictor.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Submit creates a job for the given URLs and processes it in the
// background. The returned job is in its initial state; progress is
// observable through the job store.
func (d *Daemon) Submit(ctx context.Context, jobType jobs.Type, urls []string, metadata map[string]any) (*jobs.Job, error) {
	if !d.running.Load() {
		return nil, errors.New("daemon not running")
	}

	items := make([]pipeline.Item, 0, len(urls))
	for _, url := range urls {
		items = append(items, pipeline.Item{
			VideoID:  extractor.VideoIDFromURL(url),
			VideoURL: url,
		})
	}

	job, err := d.jobStore.Create(ctx, jobType, len(items), metadata)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	d.jobsWG.Add(1)
	go func() {
		defer d.jobsWG.Done()
		if err := d.orchestrator.Process(d.ctx, job.ID, items); err != nil {
			d.logger.Error("job processing failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
	}()

	d.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("type", string(jobType)),
		logging.Int("items", len(items)))
	return job, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Queue:        d.queue.Stats(),
	}
	if stats, err := d.cache.Stats(ctx); err == nil {
		status.Cache = stats
	}
	if summary, err := d.jobStore.Summary(ctx); err == nil {
		status.Jobs = summary
	}
	status.Dependencies = deps.CheckBinaries(deps.Requirements(d.cfg))
	return status
}

// CacheStats returns transcript cache statistics.
func (d *Daemon) CacheStats(ctx context.Context) (transcript.Stats, error) {
	return d.cache.Stats(ctx)
}

// EvictCache removes the n least-recently-accessed cache entries.
func (d *Daemon) EvictCache(ctx context.Context, n int) (int64, error) {
	return d.cache.EvictOldest(ctx, n)
}

// RunEviction triggers one full policy pass immediately.
func (d *Daemon) RunEviction(ctx context.Context) (eviction.Report, error) {
	return d.evictor.RunOnce(ctx)
}

// ClearCache wipes every cached transcript.
func (d *Daemon) ClearCache(ctx context.Context) (int64, error) {
	return d.cache.Clear(ctx)
}

// Job looks up one job by identifier.
func (d *Daemon) Job(ctx context.Context, id string) (*jobs.Job, error) {
	return d.jobStore.Get(ctx, id)
}

// JobResults returns a job's per-item outcomes in request order.
func (d *Daemon) JobResults(ctx context.Context, id string) ([]*jobs.Result, error) {
	return d.jobStore.Results(ctx, id)
}

// ListJobs returns recent jobs, optionally filtered by status.
func (d *Daemon) ListJobs(ctx context.Context, status jobs.Status, limit int) ([]*jobs.Job, error) {
	if status != "" {
		return d.jobStore.ListByStatus(ctx, status)
	}
	return d.jobStore.ListRecent(ctx, limit)
}

// JobSummary returns per-status job counts.
func (d *Daemon) JobSummary(ctx context.Context) (jobs.Summary, error) {
	return d.jobStore.Summary(ctx)
}

// PruneJobs deletes terminal jobs older than the given number of days.
func (d *Daemon) PruneJobs(ctx context.Context, days int) (int64, error) {
	return d.jobStore.DeleteOlderThan(ctx, days)
}

// APIAddr returns the bound management API address, empty when disabled.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}
