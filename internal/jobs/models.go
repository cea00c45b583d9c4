package jobs

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusAborted    Status = "aborted"
)

// Type distinguishes how a multi-item request was submitted.
type Type string

const (
	TypeBatch    Type = "batch"
	TypePlaylist Type = "playlist"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusAborted,
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusAborted:   {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// ParseType converts a string into a known Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case TypeBatch, TypePlaylist:
		return normalized, true
	}
	return "", false
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Job tracks one multi-item extraction request and its aggregate progress.
//
// The counters obey processed == successful + failed and processed <= total
// at every observed instant; the orchestrator only pushes updates that
// preserve this.
type Job struct {
	ID              string
	Type            Type
	Status          Status
	TotalItems      int
	ProcessedItems  int
	SuccessfulItems int
	FailedItems     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	ErrorMessage    string
	Metadata        map[string]any
}

// Result is the per-item outcome record belonging to a job. Every requested
// position yields exactly one row, including duplicates of the same video.
type Result struct {
	ID               int64
	JobID            string
	VideoID          string
	VideoURL         string
	Success          bool
	ErrorCode        string
	ErrorMessage     string
	ProcessingTimeMs *int64
	CreatedAt        time.Time
}

// Summary counts jobs per status across the whole store.
type Summary struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Aborted    int `json:"aborted"`
	Total      int `json:"total"`
}

// NewID returns a fresh opaque job identifier.
func NewID() string {
	return uuid.NewString()
}
