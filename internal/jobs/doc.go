// Package jobs persists extraction jobs and their per-item results.
//
// A job moves pending -> processing -> completed, failed, or aborted; the
// terminal statuses stamp completed_at and accept no further transitions
// from the orchestrator. Progress counters always satisfy
// processed == successful + failed. Result rows cascade away with their job.
package jobs
