package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/config"
	"scribe/internal/transcript"
)

// Result is a successful extraction for one video.
type Result struct {
	VideoID   string
	VideoURL  string
	Title     string
	Segments  []transcript.Segment
	SRT       string
	PlainText string
	// Duration is how long the extraction took end to end.
	Duration time.Duration
}

// Extractor produces a transcript for a video URL. Implementations must
// honor context cancellation and return *Error for failures that should be
// recorded against the video rather than treated as infrastructure faults.
type Extractor interface {
	Extract(ctx context.Context, videoURL string) (*Result, error)
}

// Func adapts a plain function into an Extractor.
type Func func(ctx context.Context, videoURL string) (*Result, error)

func (f Func) Extract(ctx context.Context, videoURL string) (*Result, error) {
	return f(ctx, videoURL)
}

// Error codes recorded on per-video failures.
const (
	CodeTimeout     = "timeout"
	CodeUnavailable = "unavailable"
	CodeBadOutput   = "bad_output"
	CodeFailed      = "extraction_failed"
)

// Error is a per-video extraction failure with a stable machine code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New selects the configured extractor implementation.
func New(cfg *config.Config, logger *slog.Logger) (Extractor, error) {
	switch cfg.Extractor.Kind {
	case "", "command":
		return NewCommand(cfg.Extractor, logger), nil
	default:
		return nil, fmt.Errorf("unknown extractor kind %q", cfg.Extractor.Kind)
	}
}
