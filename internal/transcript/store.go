package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Store manages transcript cache persistence backed by SQLite.
type Store struct {
	db *sql.DB

	hits   atomic.Int64
	misses atomic.Int64
}

// NewStore wraps the shared database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const transcriptColumns = "video_id, video_url, video_title, transcript_json, srt_text, plain_text, extracted_at, last_accessed_at, access_count, extraction_time_ms, error_code, error_message"

// Get returns the cached transcript for a video and advances its access
// metadata. Returns nil when the video is not cached.
func (s *Store) Get(ctx context.Context, videoID string) (*Transcript, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin get tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+transcriptColumns+` FROM transcripts WHERE video_id = ?`, videoID)
	entry, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE transcripts SET access_count = access_count + 1, last_accessed_at = ? WHERE video_id = ?`,
		now.Format(time.RFC3339Nano),
		videoID,
	); err != nil {
		return nil, fmt.Errorf("update access metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit get tx: %w", err)
	}

	entry.AccessCount++
	entry.LastAccessedAt = now
	s.hits.Add(1)
	return entry, nil
}

// Exists reports whether a transcript is cached without touching its access
// metadata or the hit-rate accounting.
func (s *Store) Exists(ctx context.Context, videoID string) (bool, error) {
	var one int
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM transcripts WHERE video_id = ?`, videoID)
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check transcript exists: %w", err)
	}
	return true, nil
}

// Put upserts a transcript. Zero timestamps default to now and the access
// count is floored at one; an existing row for the video is replaced.
func (s *Store) Put(ctx context.Context, entry *Transcript) error {
	if entry == nil {
		return errors.New("transcript is nil")
	}
	return s.putExec(ctx, s.db.ExecContext, entry)
}

// PutBatch upserts several transcripts inside one transaction so a crash
// cannot leave a partially written batch.
func (s *Store) PutBatch(ctx context.Context, entries []*Transcript) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, entry := range entries {
		if entry == nil {
			return errors.New("transcript is nil")
		}
		if err := s.putExec(ctx, tx.ExecContext, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put batch tx: %w", err)
	}
	return nil
}

type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

func (s *Store) putExec(ctx context.Context, exec execFunc, entry *Transcript) error {
	segments, err := json.Marshal(entry.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}

	extractedAt := entry.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = time.Now().UTC()
	}
	lastAccessedAt := entry.LastAccessedAt
	if lastAccessedAt.IsZero() {
		lastAccessedAt = extractedAt
	}
	accessCount := entry.AccessCount
	if accessCount < 1 {
		accessCount = 1
	}

	if _, err := exec(
		ctx,
		`INSERT OR REPLACE INTO transcripts (`+transcriptColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.VideoID,
		entry.VideoURL,
		nullableString(entry.VideoTitle),
		string(segments),
		nullableString(entry.SRT),
		nullableString(entry.PlainText),
		extractedAt.UTC().Format(time.RFC3339Nano),
		lastAccessedAt.UTC().Format(time.RFC3339Nano),
		accessCount,
		nullableInt64(entry.ExtractionTimeMs),
		nullableString(entry.ErrorCode),
		nullableString(entry.ErrorMessage),
	); err != nil {
		return fmt.Errorf("put transcript: %w", err)
	}
	return nil
}

// GetBatch looks up several videos in one query. Every hit has its access
// metadata advanced, mirroring Get.
func (s *Store) GetBatch(ctx context.Context, videoIDs []string) (map[string]*Transcript, error) {
	found := make(map[string]*Transcript, len(videoIDs))
	if len(videoIDs) == 0 {
		return found, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin get batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	placeholders := makePlaceholders(len(videoIDs))
	args := make([]any, len(videoIDs))
	for i, id := range videoIDs {
		args[i] = id
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+transcriptColumns+` FROM transcripts WHERE video_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query transcript batch: %w", err)
	}
	for rows.Next() {
		entry, err := scanTranscript(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		found[entry.VideoID] = entry
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript batch: %w", err)
	}

	if len(found) > 0 {
		now := time.Now().UTC()
		hitPlaceholders := makePlaceholders(len(found))
		hitArgs := make([]any, 0, len(found)+1)
		hitArgs = append(hitArgs, now.Format(time.RFC3339Nano))
		for id := range found {
			hitArgs = append(hitArgs, id)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE transcripts SET access_count = access_count + 1, last_accessed_at = ? WHERE video_id IN (`+hitPlaceholders+`)`,
			hitArgs...,
		); err != nil {
			return nil, fmt.Errorf("update batch access metadata: %w", err)
		}
		for _, entry := range found {
			entry.AccessCount++
			entry.LastAccessedAt = now
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit get batch tx: %w", err)
	}

	// Count unique requested ids; duplicates in one request are one lookup.
	unique := make(map[string]struct{}, len(videoIDs))
	for _, id := range videoIDs {
		unique[id] = struct{}{}
	}
	s.hits.Add(int64(len(found)))
	s.misses.Add(int64(len(unique) - len(found)))

	return found, nil
}

// EvictOldest deletes the n least-recently-accessed entries and returns how
// many were actually removed.
func (s *Store) EvictOldest(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM transcripts WHERE video_id IN (
            SELECT video_id FROM transcripts ORDER BY last_accessed_at ASC LIMIT ?
        )`,
		n,
	)
	if err != nil {
		return 0, fmt.Errorf("evict oldest: %w", err)
	}
	return res.RowsAffected()
}

// EvictOlderThan deletes entries whose last access is older than the given
// number of days. Idempotent: a second call with no intervening writes
// deletes nothing.
func (s *Store) EvictOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM transcripts WHERE last_accessed_at < ?`,
		cutoff.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("evict older than: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes one entry by video identifier.
func (s *Store) Delete(ctx context.Context, videoID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE video_id = ?`, videoID)
	if err != nil {
		return false, fmt.Errorf("delete transcript: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes every cached transcript and returns the number removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts`)
	if err != nil {
		return 0, fmt.Errorf("clear transcripts: %w", err)
	}
	return res.RowsAffected()
}

// Stats reports cache contents plus the in-process hit rate. The size figure
// approximates stored bytes from the rendered transcript payloads.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1),
        COALESCE(SUM(LENGTH(transcript_json) + LENGTH(COALESCE(srt_text, '')) + LENGTH(COALESCE(plain_text, ''))), 0),
        COALESCE(MIN(last_accessed_at), ''),
        COALESCE(MAX(last_accessed_at), '')
        FROM transcripts`)
	var oldestRaw, newestRaw string
	if err := row.Scan(&stats.Entries, &stats.TotalBytes, &oldestRaw, &newestRaw); err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	if parsed, err := parseTimeString(oldestRaw); err == nil {
		stats.OldestAccess = parsed
	}
	if parsed, err := parseTimeString(newestRaw); err == nil {
		stats.NewestAccess = parsed
	}

	row = s.db.QueryRowContext(ctx, `SELECT video_id, access_count FROM transcripts ORDER BY access_count DESC, video_id LIMIT 1`)
	if err := row.Scan(&stats.MostAccessedID, &stats.MostAccessedCount); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, fmt.Errorf("most accessed: %w", err)
	}

	hits := s.hits.Load()
	misses := s.misses.Load()
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats, nil
}

func scanTranscript(scanner interface{ Scan(dest ...any) error }) (*Transcript, error) {
	var (
		videoID      string
		videoURL     string
		videoTitle   sql.NullString
		segmentsJSON string
		srtText      sql.NullString
		plainText    sql.NullString
		extractedRaw string
		accessedRaw  string
		accessCount  int64
		extractionMs sql.NullInt64
		errorCode    sql.NullString
		errorMessage sql.NullString
	)

	if err := scanner.Scan(
		&videoID,
		&videoURL,
		&videoTitle,
		&segmentsJSON,
		&srtText,
		&plainText,
		&extractedRaw,
		&accessedRaw,
		&accessCount,
		&extractionMs,
		&errorCode,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	entry := &Transcript{
		VideoID:      videoID,
		VideoURL:     videoURL,
		VideoTitle:   videoTitle.String,
		SRT:          srtText.String,
		PlainText:    plainText.String,
		AccessCount:  accessCount,
		ErrorCode:    errorCode.String,
		ErrorMessage: errorMessage.String,
	}
	if err := json.Unmarshal([]byte(segmentsJSON), &entry.Segments); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	if extractionMs.Valid {
		value := extractionMs.Int64
		entry.ExtractionTimeMs = &value
	}
	if parsed, err := parseTimeString(extractedRaw); err == nil {
		entry.ExtractedAt = parsed
	}
	if parsed, err := parseTimeString(accessedRaw); err == nil {
		entry.LastAccessedAt = parsed
	}
	return entry, nil
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

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
