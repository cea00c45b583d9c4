package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scribe/internal/config"
	"scribe/internal/extractor"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/transcript"
)

// Item is one requested video within a job.
type Item struct {
	VideoID  string
	VideoURL string
}

// Error codes for failures produced by the pipeline itself rather than the
// extractor.
const (
	codeQueueFull    = "queue_full"
	codeQueueTimeout = "queue_timeout"
	codeCancelled    = "cancelled"
	codeInternal     = "internal"
)

// Orchestrator drives multi-item extraction requests cache-first: batch
// cache lookup, queue-bounded extraction of the misses, best-effort cache
// writes, and job bookkeeping throughout.
type Orchestrator struct {
	jobs                *jobs.Store
	cache               *transcript.Store
	queue               *queue.Queue
	extractor           extractor.Extractor
	retryCachedFailures bool
	logger              *slog.Logger
}

// New wires the orchestrator over its collaborators.
func New(jobStore *jobs.Store, cache *transcript.Store, q *queue.Queue, ext extractor.Extractor, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	retryFailed := false
	if cfg != nil {
		retryFailed = cfg.Cache.RetryFailed
	}
	return &Orchestrator{
		jobs:                jobStore,
		cache:               cache,
		queue:               q,
		extractor:           ext,
		retryCachedFailures: retryFailed,
		logger:              logging.NewComponentLogger(logger, "pipeline"),
	}
}

type settlement struct {
	videoID string
	result  *extractor.Result
	err     error
}

type outcome struct {
	success      bool
	errorCode    string
	errorMessage string
	processingMs *int64
}

// Process drives the given job to a terminal state. Item-level failures are
// isolated into result rows; only failures that prevent bookkeeping itself
// (job record updates, result persistence) fail the job and propagate.
func (o *Orchestrator) Process(ctx context.Context, jobID string, items []Item) error {
	// Terminal-state and result writes must land even when the request
	// context is already cancelled.
	storeCtx := context.WithoutCancel(ctx)
	log := o.logger.With(logging.String(logging.FieldJobID, jobID))

	if len(items) == 0 {
		if err := o.jobs.Complete(storeCtx, jobID); err != nil {
			return fmt.Errorf("complete empty job: %w", err)
		}
		log.Info("job completed", logging.Int("total", 0))
		return nil
	}

	if err := o.jobs.UpdateStatus(storeCtx, jobID, jobs.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	// Duplicate identifiers are looked up and extracted once but still
	// yield one result row per requested position.
	multiplicity := make(map[string]int)
	uniqueIDs := make([]string, 0, len(items))
	for i := range items {
		if items[i].VideoID == "" {
			items[i].VideoID = extractor.VideoIDFromURL(items[i].VideoURL)
		}
		if multiplicity[items[i].VideoID] == 0 {
			uniqueIDs = append(uniqueIDs, items[i].VideoID)
		}
		multiplicity[items[i].VideoID]++
	}

	cached, err := o.cache.GetBatch(ctx, uniqueIDs)
	if err != nil {
		o.failJob(storeCtx, jobID, fmt.Errorf("cache lookup: %w", err), log)
		return fmt.Errorf("cache lookup: %w", err)
	}
	if o.retryCachedFailures {
		for id, entry := range cached {
			if entry.Failed() {
				delete(cached, id)
			}
		}
	}

	outcomes := make(map[string]outcome, len(uniqueIDs))
	var processed, successful, failed int
	for id, entry := range cached {
		out := outcome{success: !entry.Failed()}
		if entry.Failed() {
			out.errorCode = entry.ErrorCode
			out.errorMessage = entry.ErrorMessage
		}
		outcomes[id] = out
		processed += multiplicity[id]
		if out.success {
			successful += multiplicity[id]
		} else {
			failed += multiplicity[id]
		}
	}

	urlByID := make(map[string]string, len(uniqueIDs))
	for _, item := range items {
		if _, ok := urlByID[item.VideoID]; !ok {
			urlByID[item.VideoID] = item.VideoURL
		}
	}

	missing := make([]string, 0, len(uniqueIDs))
	for _, id := range uniqueIDs {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}
	log.Info("cache partition",
		logging.Int("total", len(items)),
		logging.Int("hits", len(cached)),
		logging.Int("to_extract", len(missing)))

	if processed > 0 {
		o.pushProgress(storeCtx, jobID, processed, successful, failed, log)
	}

	settleCh := make(chan settlement, len(missing))
	for _, id := range missing {
		id := id
		videoURL := urlByID[id]
		go func() {
			var result *extractor.Result
			err := o.queue.Submit(ctx, func(taskCtx context.Context) error {
				extracted, err := o.extractor.Extract(taskCtx, videoURL)
				if err != nil {
					return err
				}
				result = extracted
				return nil
			})
			settleCh <- settlement{videoID: id, result: result, err: err}
		}()
	}

	// Settlements are folded in on this goroutine only, so progress pushes
	// for the job stay ordered.
	for range missing {
		s := <-settleCh
		out := o.settle(storeCtx, s, urlByID[s.videoID], log)
		outcomes[s.videoID] = out

		processed += multiplicity[s.videoID]
		if out.success {
			successful += multiplicity[s.videoID]
		} else {
			failed += multiplicity[s.videoID]
		}
		o.pushProgress(storeCtx, jobID, processed, successful, failed, log)
	}

	results := make([]*jobs.Result, 0, len(items))
	for _, item := range items {
		out := outcomes[item.VideoID]
		results = append(results, &jobs.Result{
			JobID:            jobID,
			VideoID:          item.VideoID,
			VideoURL:         item.VideoURL,
			Success:          out.success,
			ErrorCode:        out.errorCode,
			ErrorMessage:     out.errorMessage,
			ProcessingTimeMs: out.processingMs,
		})
	}
	if err := o.jobs.AddResults(storeCtx, results); err != nil {
		o.failJob(storeCtx, jobID, fmt.Errorf("persist results: %w", err), log)
		return fmt.Errorf("persist results: %w", err)
	}

	if ctx.Err() != nil {
		if err := o.jobs.Abort(storeCtx, jobID, "processing cancelled"); err != nil {
			return fmt.Errorf("abort job: %w", err)
		}
		log.Warn("job aborted", logging.Int("processed", processed))
		return ctx.Err()
	}

	if err := o.jobs.Complete(storeCtx, jobID); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	log.Info("job completed",
		logging.Int("total", len(items)),
		logging.Int("successful", successful),
		logging.Int("failed", failed))
	return nil
}

// settle converts one extraction settlement into an item outcome and writes
// deterministic outcomes through to the cache best-effort.
func (o *Orchestrator) settle(ctx context.Context, s settlement, videoURL string, log *slog.Logger) outcome {
	if s.err == nil {
		ms := s.result.Duration.Milliseconds()
		entry := &transcript.Transcript{
			VideoID:          s.result.VideoID,
			VideoURL:         s.result.VideoURL,
			VideoTitle:       s.result.Title,
			Segments:         s.result.Segments,
			SRT:              s.result.SRT,
			PlainText:        s.result.PlainText,
			ExtractionTimeMs: &ms,
		}
		if err := o.cache.Put(ctx, entry); err != nil {
			log.Warn("cache write failed",
				logging.String(logging.FieldVideoID, s.videoID),
				logging.Error(err))
		}
		return outcome{success: true, processingMs: &ms}
	}

	var extractErr *extractor.Error
	switch {
	case errors.As(s.err, &extractErr):
		// A definitive per-video failure; cache it so repeats are served
		// without re-driving the extractor.
		entry := &transcript.Transcript{
			VideoID:      s.videoID,
			VideoURL:     videoURL,
			Segments:     []transcript.Segment{},
			ErrorCode:    extractErr.Code,
			ErrorMessage: extractErr.Message,
		}
		if err := o.cache.Put(ctx, entry); err != nil {
			log.Warn("cache write failed",
				logging.String(logging.FieldVideoID, s.videoID),
				logging.Error(err))
		}
		return outcome{errorCode: extractErr.Code, errorMessage: extractErr.Message}
	case isQueueFull(s.err):
		return outcome{errorCode: codeQueueFull, errorMessage: s.err.Error()}
	case isQueueTimeout(s.err):
		return outcome{errorCode: codeQueueTimeout, errorMessage: s.err.Error()}
	case errors.Is(s.err, context.Canceled), errors.Is(s.err, context.DeadlineExceeded):
		return outcome{errorCode: codeCancelled, errorMessage: s.err.Error()}
	default:
		return outcome{errorCode: codeInternal, errorMessage: s.err.Error()}
	}
}

func (o *Orchestrator) pushProgress(ctx context.Context, jobID string, processed, successful, failed int, log *slog.Logger) {
	if err := o.jobs.UpdateProgress(ctx, jobID, processed, successful, failed); err != nil {
		log.Warn("progress update failed", logging.Error(err))
	}
}

func (o *Orchestrator) failJob(ctx context.Context, jobID string, cause error, log *slog.Logger) {
	if err := o.jobs.Fail(ctx, jobID, cause.Error()); err != nil {
		log.Error("marking job failed also failed", logging.Error(err))
	}
	log.Error("job failed", logging.Error(cause))
}

func isQueueFull(err error) bool {
	var full *queue.FullError
	return errors.As(err, &full)
}

func isQueueTimeout(err error) bool {
	var timeout *queue.TimeoutError
	return errors.As(err, &timeout)
}
