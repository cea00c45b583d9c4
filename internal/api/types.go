package api

import (
	"time"

	"scribe/internal/deps"
	"scribe/internal/eviction"
	"scribe/internal/jobs"
	"scribe/internal/queue"
	"scribe/internal/transcript"
)

// DaemonStatus is the wire form of the daemon's runtime state.
type DaemonStatus struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	DatabasePath string           `json:"database_path"`
	LockFilePath string           `json:"lock_file_path"`
	Queue        queue.Stats      `json:"queue"`
	Cache        transcript.Stats `json:"cache"`
	Jobs         jobs.Summary     `json:"jobs"`
	Dependencies []deps.Status    `json:"dependencies,omitempty"`
}

// Job is the wire form of a job record.
type Job struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Status          string         `json:"status"`
	TotalItems      int            `json:"total_items"`
	ProcessedItems  int            `json:"processed_items"`
	SuccessfulItems int            `json:"successful_items"`
	FailedItems     int            `json:"failed_items"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// FromJob converts a stored job into its wire form.
func FromJob(job *jobs.Job) Job {
	return Job{
		ID:              job.ID,
		Type:            string(job.Type),
		Status:          string(job.Status),
		TotalItems:      job.TotalItems,
		ProcessedItems:  job.ProcessedItems,
		SuccessfulItems: job.SuccessfulItems,
		FailedItems:     job.FailedItems,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		CompletedAt:     job.CompletedAt,
		ErrorMessage:    job.ErrorMessage,
		Metadata:        job.Metadata,
	}
}

// FromJobs converts a job list into wire form.
func FromJobs(list []*jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// JobResult is the wire form of one per-item outcome.
type JobResult struct {
	ID               int64     `json:"id"`
	VideoID          string    `json:"video_id"`
	VideoURL         string    `json:"video_url"`
	Success          bool      `json:"success"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	ProcessingTimeMs *int64    `json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// FromResults converts stored results into wire form.
func FromResults(list []*jobs.Result) []JobResult {
	out := make([]JobResult, 0, len(list))
	for _, result := range list {
		out = append(out, JobResult{
			ID:               result.ID,
			VideoID:          result.VideoID,
			VideoURL:         result.VideoURL,
			Success:          result.Success,
			ErrorCode:        result.ErrorCode,
			ErrorMessage:     result.ErrorMessage,
			ProcessingTimeMs: result.ProcessingTimeMs,
			CreatedAt:        result.CreatedAt,
		})
	}
	return out
}

// SubmitJobRequest asks the daemon to extract a set of video URLs.
type SubmitJobRequest struct {
	Type     string         `json:"type"`
	URLs     []string       `json:"urls"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SubmitJobResponse returns the created job.
type SubmitJobResponse struct {
	Job Job `json:"job"`
}

// JobResponse wraps a single job lookup.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a job listing.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResultsResponse wraps the per-item outcomes of one job.
type JobResultsResponse struct {
	Results []JobResult `json:"results"`
}

// JobSummaryResponse wraps the per-status job counts.
type JobSummaryResponse struct {
	Summary jobs.Summary `json:"summary"`
}

// CacheStatsResponse wraps transcript cache statistics.
type CacheStatsResponse struct {
	Stats transcript.Stats `json:"stats"`
}

// EvictResponse reports a manual LRU eviction.
type EvictResponse struct {
	Evicted int64 `json:"evicted"`
}

// EvictionRunResponse reports a full policy pass.
type EvictionRunResponse struct {
	Report eviction.Report `json:"report"`
}

// ClearCacheResponse reports a full cache wipe.
type ClearCacheResponse struct {
	Removed int64 `json:"removed"`
}

// PruneJobsResponse reports how many old jobs were deleted.
type PruneJobsResponse struct {
	Deleted int64 `json:"deleted"`
}
