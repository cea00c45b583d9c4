package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store manages job and result persistence backed by SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps the shared database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const jobColumns = "id, type, status, total_items, processed_items, successful_items, failed_items, created_at, updated_at, completed_at, error_message, metadata"

const resultColumns = "id, job_id, video_id, video_url, success, error_code, error_message, processing_time_ms, created_at"

// Create inserts a new job. A zero ID is replaced with a fresh identifier
// and the stored job is returned.
func (s *Store) Create(ctx context.Context, jobType Type, totalItems int, metadata map[string]any) (*Job, error) {
	if totalItems < 0 {
		return nil, fmt.Errorf("total items must be non-negative, got %d", totalItems)
	}

	job := &Job{
		ID:         NewID(),
		Type:       jobType,
		Status:     StatusPending,
		TotalItems: totalItems,
		CreatedAt:  time.Now().UTC(),
		Metadata:   metadata,
	}
	job.UpdatedAt = job.CreatedAt

	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(job.Type),
		string(job.Status),
		job.TotalItems,
		0,
		0,
		0,
		job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nil,
		nil,
		metadataJSON,
	); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// Get returns the job with the given identifier, or nil when unknown.
func (s *Store) Get(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateStatus transitions a job to the given status. Terminal statuses also
// stamp completed_at; failure and abort reasons land in error_message.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status Status, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var completedAt any
	if status.IsTerminal() {
		completedAt = now
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ?, completed_at = COALESCE(?, completed_at), error_message = ? WHERE id = ?`,
		string(status),
		now,
		completedAt,
		nullableString(message),
		jobID,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s not found", jobID)
	}
	return nil
}

// UpdateProgress pushes new aggregate counters for an in-flight job.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, processed, successful, failed int) error {
	if successful+failed != processed {
		return fmt.Errorf("inconsistent progress: %d successful + %d failed != %d processed", successful, failed, processed)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET processed_items = ?, successful_items = ?, failed_items = ?, updated_at = ?
         WHERE id = ? AND total_items >= ?`,
		processed,
		successful,
		failed,
		time.Now().UTC().Format(time.RFC3339Nano),
		jobID,
		processed,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s not found or progress %d exceeds total", jobID, processed)
	}
	return nil
}

// Complete marks a job completed. Partial and even total item failure still
// completes the job; item outcomes live in the result rows.
func (s *Store) Complete(ctx context.Context, jobID string) error {
	return s.UpdateStatus(ctx, jobID, StatusCompleted, "")
}

// Fail marks a job failed with the reason the caller observed.
func (s *Store) Fail(ctx context.Context, jobID string, message string) error {
	return s.UpdateStatus(ctx, jobID, StatusFailed, message)
}

// Abort marks a job aborted, recording why when a reason is given.
func (s *Store) Abort(ctx context.Context, jobID string, message string) error {
	return s.UpdateStatus(ctx, jobID, StatusAborted, message)
}

// AddResult records one per-item outcome for a job.
func (s *Store) AddResult(ctx context.Context, result *Result) error {
	if result == nil {
		return errors.New("result is nil")
	}
	return s.addResultExec(ctx, s.db.ExecContext, result)
}

// AddResults records a whole batch of outcomes in one transaction, in the
// order given. Row ids preserve that order for later reads.
func (s *Store) AddResults(ctx context.Context, results []*Result) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add results tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, result := range results {
		if result == nil {
			return errors.New("result is nil")
		}
		if err := s.addResultExec(ctx, tx.ExecContext, result); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add results tx: %w", err)
	}
	return nil
}

type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

func (s *Store) addResultExec(ctx context.Context, exec execFunc, result *Result) error {
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := exec(
		ctx,
		`INSERT INTO job_results (job_id, video_id, video_url, success, error_code, error_message, processing_time_ms, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.JobID,
		result.VideoID,
		result.VideoURL,
		boolToInt(result.Success),
		nullableString(result.ErrorCode),
		nullableString(result.ErrorMessage),
		nullableInt64(result.ProcessingTimeMs),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("add job result: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		result.ID = id
	}
	result.CreatedAt = createdAt
	return nil
}

// Results returns every outcome recorded for a job in insertion order.
func (s *Store) Results(ctx context.Context, jobID string) ([]*Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM job_results WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job results: %w", err)
	}
	return results, nil
}

// ListRecent returns the most recently created jobs, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.listJobs(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id LIMIT ?`, limit)
}

// ListByStatus returns jobs in the given status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Job, error) {
	return s.listJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at ASC, id`, string(status))
}

// ListByTypeAndStatus narrows ListByStatus to one job type.
func (s *Store) ListByTypeAndStatus(ctx context.Context, jobType Type, status Status) ([]*Job, error) {
	return s.listJobs(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE type = ? AND status = ? ORDER BY created_at ASC, id`,
		string(jobType),
		string(status),
	)
}

func (s *Store) listJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Summary counts jobs per status.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var summary Summary

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return summary, fmt.Errorf("query job summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return summary, fmt.Errorf("scan job summary: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusProcessing:
			summary.Processing = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		case StatusAborted:
			summary.Aborted = count
		}
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("iterate job summary: %w", err)
	}
	return summary, nil
}

// Delete removes one job; result rows follow via the cascade.
func (s *Store) Delete(ctx context.Context, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteOlderThan prunes terminal jobs whose completion is older than the
// given number of days. In-flight jobs are never pruned.
func (s *Store) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(StatusCompleted),
		string(StatusFailed),
		string(StatusAborted),
		cutoff.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		jobType      string
		status       string
		totalItems   int
		processed    int
		successful   int
		failed       int
		createdRaw   string
		updatedRaw   string
		completedRaw sql.NullString
		errorMessage sql.NullString
		metadataJSON sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobType,
		&status,
		&totalItems,
		&processed,
		&successful,
		&failed,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
		&errorMessage,
		&metadataJSON,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Type:            Type(jobType),
		Status:          Status(status),
		TotalItems:      totalItems,
		ProcessedItems:  processed,
		SuccessfulItems: successful,
		FailedItems:     failed,
		ErrorMessage:    errorMessage.String,
	}
	if parsed, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = parsed
	}
	if parsed, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = parsed
	}
	if completedRaw.Valid {
		if parsed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &parsed
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &job.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal job metadata: %w", err)
		}
	}
	return job, nil
}

func scanResult(scanner interface{ Scan(dest ...any) error }) (*Result, error) {
	var (
		id           int64
		jobID        string
		videoID      string
		videoURL     string
		success      int
		errorCode    sql.NullString
		errorMessage sql.NullString
		processingMs sql.NullInt64
		createdRaw   string
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&videoID,
		&videoURL,
		&success,
		&errorCode,
		&errorMessage,
		&processingMs,
		&createdRaw,
	); err != nil {
		return nil, fmt.Errorf("scan job result: %w", err)
	}

	result := &Result{
		ID:           id,
		JobID:        jobID,
		VideoID:      videoID,
		VideoURL:     videoURL,
		Success:      success != 0,
		ErrorCode:    errorCode.String,
		ErrorMessage: errorMessage.String,
	}
	if processingMs.Valid {
		value := processingMs.Int64
		result.ProcessingTimeMs = &value
	}
	if parsed, err := parseTimeString(createdRaw); err == nil {
		result.CreatedAt = parsed
	}
	return result, nil
}

func marshalMetadata(metadata map[string]any) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal job metadata: %w", err)
	}
	return string(encoded), nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
