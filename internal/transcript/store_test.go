package transcript_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"scribe/internal/testsupport"
	"scribe/internal/transcript"
)

func newEntry(videoID string, lastAccessed time.Time) *transcript.Transcript {
	return &transcript.Transcript{
		VideoID:  videoID,
		VideoURL: "https://videos.example/watch?v=" + videoID,
		Segments: []transcript.Segment{
			{Time: 0, Text: "hello"},
			{Time: 1.5, Text: "world"},
		},
		PlainText:      "hello world",
		ExtractedAt:    lastAccessed,
		LastAccessedAt: lastAccessed,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := testsupport.MustOpenTranscriptStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	extractionMs := int64(4200)
	entry := newEntry("vid-1", time.Now().UTC().Add(-time.Hour))
	entry.VideoTitle = "A Title"
	entry.SRT = "1\n00:00:00,000 --> 00:00:01,500\nhello\n"
	entry.ExtractionTimeMs = &extractionMs

	if err := store.Put(ctx, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "vid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached transcript")
	}
	if got.VideoTitle != "A Title" || got.SRT != entry.SRT || got.PlainText != "hello world" {
		t.Fatalf("unexpected round-trip fields: %#v", got)
	}
	if len(got.Segments) != 2 || got.Segments[1].Time != 1.5 || got.Segments[1].Text != "world" {
		t.Fatalf("unexpected segments: %#v", got.Segments)
	}
	if got.ExtractionTimeMs == nil || *got.ExtractionTimeMs != 4200 {
		t.Fatalf("unexpected extraction time: %v", got.ExtractionTimeMs)
	}
	if got.AccessCount != 2 {
		t.Fatalf("expected access count incremented to 2, got %d", got.AccessCount)
	}
	if !got.LastAccessedAt.After(entry.LastAccessedAt) {
		t.Fatalf("expected last accessed advanced past %v, got %v", entry.LastAccessedAt, got.LastAccessedAt)
	}
}

func TestGetMissReturnsNil(t *testing.T) {
	store := testsupport.MustOpenTranscriptStore(t, testsupport.NewConfig(t))

	got, err := store.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for cache miss, got %#v", got)
	}
}

func TestExistsDoesNotTouchAccessMetadata(t *testing.T) {
	store := testsupport.MustOpenTranscriptStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	accessed := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	if err := store.Put(ctx, newEntry("vid-exists", accessed)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ok, err := store.Exists(ctx, "vid-exists")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if ok, _ := store.Exists(ctx, "vid-missing"); ok {
		t.Fatal("expected missing entry to report false")
	}

	got, err := store.Get(ctx, "vid-exists")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Get is the first mutating read; Exists must not have bumped the count.
	if got.AccessCount != 2 {
		t.Fatalf("expected access count 2 after one Get, got %d", got.AccessCount)
	}
}

func TestPutReplacesExistingRow(t *testing.T) {
	store := testsupport.MustOpenTranscriptStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.Put(ctx, newEntry("vid-replace", time.Now().UTC())); err != nil {
		t.Fatalf("Put: %v", err)
	}
	replacement := newEntry("vid-replace", time.Now().UTC())
	replacement.PlainText = "replaced"
	if err := store.Put(ctx, replacement); err != nil {
		t.Fatalf("Put replacement: %v", err)
	}

	got, err := store.Get(ctx, "vid-replace")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PlainText != "replaced" {
		t.Fatalf("expected last writer to win, got %q", got.PlainText)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("expected upsert to keep one row, got %d", stats.Entries)
	}
}

func TestGetBatchAdvancesAccessMetadataForHits(t *testing.T) {
	store := testsupport.MustOpenTranscriptStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.PutBatch(ctx, []*transcript.Transcript{
		newEntry("vid-a", time.Now().UTC()),
		newEntry("vid-b", time.Now().UTC()),
	}); err != nil {
		t.Fatalf("PutBatch: %v", err)
	}

	found, err := store.GetBatch(ctx, []string{"vid-a", "vid-b", "vid-c"})
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(found))
	}
	for _, id := range []string{"vid-a", "vid-b"} {
		if found[id] == nil {
			t.Fatalf("expected hit for %s", id)
		}
		if found[id].AccessCount != 2 {
			t.Fatalf("%s: expected access count 2, got %d", id, found[id].AccessCount)
		}
	}
	if _, ok := found["vid-c"]; ok {
		t.Fatal("expected vid-c to be a miss")
	}
}

func TestEvictOldestRemovesLeastRecentlyAccessed(t *testing.T) {
	store := testsupport.MustOpenTranscriptStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	base := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)
	for i := 0; i < 5; i++ {
		entry := newEntry(fmt.Sprintf("vid-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := store.Put(ctx, entry); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	evicted, err := store.EvictOldest(ctx, 2)
	if err != nil {
		t.Fatalf("EvictOldest: %v", err)
	}
	if evicted != 2 {
		t.Fatalf("expected 2 evicted, got %d", evicted)
	}

	for i := 0; i < 5; i++ {
		ok, err := store.Exists(ctx, fmt.Sprintf("vid-%d", i))
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		expectGone := i < 2
		if ok == expectGone {
			t.Fatalf("vid-%d: exists=%v, expected %v", i, ok, !expectGone)
		}
	}

	// Asking for more than remains removes what is left and reports it.
	evicted, err = store.EvictOldest(ctx, 10)
	if err != nil {
		t.Fatalf("EvictOldest over count: %v", err)
	}
	if evicted != 3 {
		t.Fatalf("expected 3 evicted, got %d", evicted)
	}
}

func TestEvictOlderThanIsIdempotent(t *testing.T) {
	store := testsupport.MustOpenTranscriptStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	stale := time.Now().UTC().AddDate(0, 0, -45)
	fresh := time.Now().UTC()
	if err := store.Put(ctx, newEntry("vid-stale", stale)); err != nil {
		t.Fatalf("Put stale: %v", err)
	}
	if err := store.Put(ctx, newEntry("vid-fresh", fresh)); err != nil {
		t.Fatalf("Put fresh: %v", err)
	}

	first, err := store.EvictOlderThan(ctx, 30)
	if err != nil {
		t.Fatalf("EvictOlderThan: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected 1 evicted on first pass, got %d", first)
	}

	second, err := store.EvictOlderThan(ctx, 30)
	if err != nil {
		t.Fatalf("EvictOlderThan second: %v", err)
	}
	if second != 0 {
		t.Fatalf("expected idempotent second pass, got %d", second)
	}

	if ok, _ := store.Exists(ctx, "vid-fresh"); !ok {
		t.Fatal("expected fresh entry to survive")
	}
}

func TestStatsReportsContentsAndHitRate(t *testing.T) {
	store := testsupport.MustOpenTranscriptStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	old := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Second)
	if err := store.Put(ctx, newEntry("vid-old", old)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, newEntry("vid-new", time.Now().UTC())); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Two hits on vid-new, one miss.
	if _, err := store.Get(ctx, "vid-new"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := store.Get(ctx, "vid-new"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := store.Get(ctx, "vid-absent"); err != nil {
		t.Fatalf("Get miss: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.TotalBytes <= 0 {
		t.Fatalf("expected positive size estimate, got %d", stats.TotalBytes)
	}
	if stats.MostAccessedID != "vid-new" || stats.MostAccessedCount != 3 {
		t.Fatalf("unexpected most accessed: %s (%d)", stats.MostAccessedID, stats.MostAccessedCount)
	}
	if stats.OldestAccess.After(stats.NewestAccess) {
		t.Fatalf("oldest %v after newest %v", stats.OldestAccess, stats.NewestAccess)
	}
	want := 2.0 / 3.0
	if diff := stats.HitRate - want; diff < -0.001 || diff > 0.001 {
		t.Fatalf("expected hit rate ~%.3f, got %.3f", want, stats.HitRate)
	}
}

func TestDeleteAndClear(t *testing.T) {
	store := testsupport.MustOpenTranscriptStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Put(ctx, newEntry(fmt.Sprintf("vid-%d", i), time.Now().UTC())); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	removed, err := store.Delete(ctx, "vid-0")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to remove a row")
	}
	if removed, _ := store.Delete(ctx, "vid-0"); removed {
		t.Fatal("expected second delete to be a no-op")
	}

	cleared, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared, got %d", cleared)
	}
}
