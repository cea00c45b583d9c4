package extractor_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/extractor"
	"scribe/internal/logging"
	"scribe/internal/transcript"
)

func newShellExtractor(script string) *extractor.Command {
	return extractor.NewCommand(config.Extractor{
		Command: "/bin/sh",
		Args:    []string{"-c", script},
	}, logging.NewNop())
}

func TestCommandParsesHelperOutput(t *testing.T) {
	cmd := newShellExtractor(`echo '{"video_id":"abc123","title":"A Video","segments":[{"time":0,"text":"hello"},{"time":1.5,"text":"world"}]}'`)

	result, err := cmd.Extract(context.Background(), "https://videos.example/watch?v=abc123")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.VideoID != "abc123" || result.Title != "A Video" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if result.PlainText != "hello world" {
		t.Fatalf("expected plain text derived from segments, got %q", result.PlainText)
	}
	if !strings.Contains(result.SRT, "00:00:00,000 --> 00:00:01,500") {
		t.Fatalf("expected SRT derived from segments, got %q", result.SRT)
	}
	if result.Duration <= 0 {
		t.Fatal("expected measured extraction duration")
	}
}

func TestCommandSurfacesHelperErrorPayload(t *testing.T) {
	cmd := newShellExtractor(`echo '{"error":{"code":"unavailable","message":"no captions published"}}'`)

	_, err := cmd.Extract(context.Background(), "https://videos.example/watch?v=abc123")
	var extractErr *extractor.Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *extractor.Error, got %v", err)
	}
	if extractErr.Code != extractor.CodeUnavailable || extractErr.Message != "no captions published" {
		t.Fatalf("unexpected error: %+v", extractErr)
	}
}

func TestCommandRejectsUnparsableOutput(t *testing.T) {
	cmd := newShellExtractor(`echo 'not json'`)

	_, err := cmd.Extract(context.Background(), "https://videos.example/watch?v=abc123")
	var extractErr *extractor.Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *extractor.Error, got %v", err)
	}
	if extractErr.Code != extractor.CodeBadOutput {
		t.Fatalf("expected bad output code, got %s", extractErr.Code)
	}
}

func TestCommandReportsStderrOnFailure(t *testing.T) {
	cmd := newShellExtractor(`echo 'browser crashed' >&2; exit 3`)

	_, err := cmd.Extract(context.Background(), "https://videos.example/watch?v=abc123")
	var extractErr *extractor.Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *extractor.Error, got %v", err)
	}
	if extractErr.Code != extractor.CodeFailed || extractErr.Message != "browser crashed" {
		t.Fatalf("unexpected error: %+v", extractErr)
	}
}

func TestCommandTreatsEmptySegmentsAsUnavailable(t *testing.T) {
	cmd := newShellExtractor(`echo '{"video_id":"abc123","segments":[]}'`)

	_, err := cmd.Extract(context.Background(), "https://videos.example/watch?v=abc123")
	var extractErr *extractor.Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *extractor.Error, got %v", err)
	}
	if extractErr.Code != extractor.CodeUnavailable {
		t.Fatalf("expected unavailable code, got %s", extractErr.Code)
	}
}

func TestCommandHonorsContextCancellation(t *testing.T) {
	cmd := newShellExtractor(`sleep 5`)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := cmd.Extract(ctx, "https://videos.example/watch?v=abc123")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}
}

func TestVideoIDFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://videos.example/watch?v=abc123", "abc123"},
		{"https://videos.example/clips/xyz789", "xyz789"},
		{"https://videos.example/", "https://videos.example/"},
		{"not a url at all", "not a url at all"},
	}
	for _, tc := range cases {
		if got := extractor.VideoIDFromURL(tc.url); got != tc.want {
			t.Errorf("VideoIDFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestRenderSRT(t *testing.T) {
	srt := extractor.RenderSRT([]transcript.Segment{
		{Time: 0, Text: "first"},
		{Time: 2.5, Text: "second"},
	})
	want := "1\n00:00:00,000 --> 00:00:02,500\nfirst\n\n2\n00:00:02,500 --> 00:00:05,500\nsecond\n\n"
	if srt != want {
		t.Fatalf("unexpected SRT:\n%q\nwant:\n%q", srt, want)
	}
}

func TestFuncAdapter(t *testing.T) {
	called := false
	fn := extractor.Func(func(ctx context.Context, videoURL string) (*extractor.Result, error) {
		called = true
		return &extractor.Result{VideoID: "fn", VideoURL: videoURL}, nil
	})

	result, err := fn.Extract(context.Background(), "https://videos.example/watch?v=fn")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !called || result.VideoID != "fn" {
		t.Fatalf("adapter did not delegate: %+v", result)
	}
}
