package transcript

import "time"

// Segment is one timed piece of a transcript.
type Segment struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

// Transcript is a cached extraction outcome for one video. A row is written
// for terminal failures too, so repeated requests for a broken video do not
// re-drive the browser; ErrorCode marks those rows.
type Transcript struct {
	VideoID          string
	VideoURL         string
	VideoTitle       string
	Segments         []Segment
	SRT              string
	PlainText        string
	ExtractedAt      time.Time
	LastAccessedAt   time.Time
	AccessCount      int64
	ExtractionTimeMs *int64
	ErrorCode        string
	ErrorMessage     string
}

// Failed reports whether this row caches a failed extraction attempt.
func (t *Transcript) Failed() bool {
	return t.ErrorCode != "" || t.ErrorMessage != ""
}

// Stats summarizes cache contents and in-process lookup accounting.
type Stats struct {
	Entries           int       `json:"entries"`
	TotalBytes        int64     `json:"total_bytes"`
	OldestAccess      time.Time `json:"oldest_access"`
	NewestAccess      time.Time `json:"newest_access"`
	MostAccessedID    string    `json:"most_accessed_id"`
	MostAccessedCount int64     `json:"most_accessed_count"`
	HitRate           float64   `json:"hit_rate"`
}
