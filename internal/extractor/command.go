package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/transcript"
)

// Command runs an external helper binary that drives the actual extraction
// and prints one JSON document on stdout.
type Command struct {
	binary  string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommand builds the exec-based extractor from configuration.
func NewCommand(cfg config.Extractor, logger *slog.Logger) *Command {
	return &Command{
		binary:  cfg.Command,
		args:    cfg.Args,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logging.NewComponentLogger(logger, "extractor"),
	}
}

type commandPayload struct {
	VideoID   string               `json:"video_id"`
	Title     string               `json:"title"`
	Segments  []transcript.Segment `json:"segments"`
	SRT       string               `json:"srt"`
	PlainText string               `json:"plain_text"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Command) Extract(ctx context.Context, videoURL string) (*Result, error) {
	if c.binary == "" {
		return nil, errors.New("extractor command not configured")
	}

	start := time.Now()
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := make([]string, 0, len(c.args)+1)
	args = append(args, c.args...)
	args = append(args, videoURL)

	cmd := exec.CommandContext(runCtx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("launching extractor", logging.String("url", videoURL))
	runErr := cmd.Run()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, &Error{Code: CodeTimeout, Message: fmt.Sprintf("extraction exceeded %s", c.timeout)}
	}
	if runErr != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = runErr.Error()
		}
		return nil, &Error{Code: CodeFailed, Message: message}
	}

	var payload commandPayload
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		return nil, &Error{Code: CodeBadOutput, Message: fmt.Sprintf("parse extractor output: %v", err)}
	}
	if payload.Error != nil {
		code := payload.Error.Code
		if code == "" {
			code = CodeFailed
		}
		return nil, &Error{Code: code, Message: payload.Error.Message}
	}
	if len(payload.Segments) == 0 {
		return nil, &Error{Code: CodeUnavailable, Message: "no transcript segments returned"}
	}

	videoID := payload.VideoID
	if videoID == "" {
		videoID = VideoIDFromURL(videoURL)
	}
	result := &Result{
		VideoID:   videoID,
		VideoURL:  videoURL,
		Title:     payload.Title,
		Segments:  payload.Segments,
		SRT:       payload.SRT,
		PlainText: payload.PlainText,
		Duration:  time.Since(start),
	}
	if result.SRT == "" {
		result.SRT = RenderSRT(result.Segments)
	}
	if result.PlainText == "" {
		result.PlainText = RenderPlainText(result.Segments)
	}
	return result, nil
}

// VideoIDFromURL derives a video identifier from a watch URL: the v query
// parameter when present, otherwise the last path segment, otherwise the
// URL itself.
func VideoIDFromURL(videoURL string) string {
	parsed, err := url.Parse(videoURL)
	if err != nil {
		return videoURL
	}
	if v := parsed.Query().Get("v"); v != "" {
		return v
	}
	if segment := strings.Trim(parsed.Path, "/"); segment != "" {
		if idx := strings.LastIndexByte(segment, '/'); idx >= 0 {
			segment = segment[idx+1:]
		}
		if segment != "" {
			return segment
		}
	}
	return videoURL
}

// RenderSRT formats segments as SubRip text. Each cue ends where the next
// begins; the last cue gets a three second window.
func RenderSRT(segments []transcript.Segment) string {
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	for i, segment := range segments {
		end := segment.Time + 3
		if i+1 < len(segments) {
			end = segments[i+1].Time
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatSRTTime(segment.Time), formatSRTTime(end), segment.Text)
	}
	return b.String()
}

// RenderPlainText joins segment text with single spaces.
func RenderPlainText(segments []transcript.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := time.Duration(seconds * float64(time.Second))
	h := int(total.Hours())
	m := int(total.Minutes()) % 60
	s := int(total.Seconds()) % 60
	ms := int(total.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
