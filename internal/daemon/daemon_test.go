package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/testsupport"
)

func newTestDaemon(t *testing.T) (*daemon.Daemon, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Extractor.Command = "/bin/sh"
	cfg.Extractor.Args = []string{"-c", `echo '{"title":"A Video","segments":[{"time":0,"text":"hello"},{"time":1.5,"text":"world"}]}'`}

	db := testsupport.MustOpenDB(t, cfg)
	d, err := daemon.New(cfg, db, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, cfg
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &payload)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func waitForTerminal(t *testing.T, base, jobID string) api.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var resp api.JobResponse
		if code := getJSON(t, base+"/api/jobs/"+jobID, &resp); code != http.StatusOK {
			t.Fatalf("unexpected status %d fetching job", code)
		}
		if jobs.Status(resp.Job.Status).IsTerminal() {
			return resp.Job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return api.Job{}
}

func TestDaemonIsSingleInstance(t *testing.T) {
	d, cfg := newTestDaemon(t)
	_ = d

	db := testsupport.MustOpenDB(t, cfg)
	second, err := daemon.New(cfg, db, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail to start")
	}
}

func TestSubmitDrivesJobThroughAPI(t *testing.T) {
	d, _ := newTestDaemon(t)
	base := "http://" + d.APIAddr()

	var submitted api.SubmitJobResponse
	code := postJSON(t, base+"/api/jobs", api.SubmitJobRequest{
		URLs: []string{
			"https://videos.example/watch?v=vid-1",
			"https://videos.example/watch?v=vid-2",
		},
	}, &submitted)
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if submitted.Job.TotalItems != 2 || submitted.Job.Type != string(jobs.TypeBatch) {
		t.Fatalf("unexpected submitted job: %+v", submitted.Job)
	}

	job := waitForTerminal(t, base, submitted.Job.ID)
	if job.Status != string(jobs.StatusCompleted) {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.SuccessfulItems != 2 || job.ProcessedItems != 2 {
		t.Fatalf("unexpected counters: %+v", job)
	}

	var results api.JobResultsResponse
	if code := getJSON(t, base+"/api/jobs/"+job.ID+"/results", &results); code != http.StatusOK {
		t.Fatalf("unexpected status %d fetching results", code)
	}
	if len(results.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results.Results))
	}
	if results.Results[0].VideoID != "vid-1" || !results.Results[0].Success {
		t.Fatalf("unexpected first result: %+v", results.Results[0])
	}

	var stats api.CacheStatsResponse
	if code := getJSON(t, base+"/api/cache/stats", &stats); code != http.StatusOK {
		t.Fatalf("unexpected status %d fetching cache stats", code)
	}
	if stats.Stats.Entries != 2 {
		t.Fatalf("expected both extractions cached, got %d entries", stats.Stats.Entries)
	}
}

func TestStatusEndpointReportsRuntime(t *testing.T) {
	d, cfg := newTestDaemon(t)
	base := "http://" + d.APIAddr()

	var status api.DaemonStatus
	if code := getJSON(t, base+"/api/status", &status); code != http.StatusOK {
		t.Fatalf("unexpected status code %d", code)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected database path: %s", status.DatabasePath)
	}
	if status.Queue.QueueSize != cfg.Queue.MaxSize {
		t.Fatalf("unexpected queue size: %+v", status.Queue)
	}
}

func TestCacheManagementEndpoints(t *testing.T) {
	d, _ := newTestDaemon(t)
	base := "http://" + d.APIAddr()

	var submitted api.SubmitJobResponse
	postJSON(t, base+"/api/jobs", api.SubmitJobRequest{
		URLs: []string{"https://videos.example/watch?v=vid-cache"},
	}, &submitted)
	waitForTerminal(t, base, submitted.Job.ID)

	var evicted api.EvictResponse
	if code := postJSON(t, base+"/api/cache/evict?count=1", nil, &evicted); code != http.StatusOK {
		t.Fatalf("unexpected status %d evicting", code)
	}
	if evicted.Evicted != 1 {
		t.Fatalf("expected 1 evicted, got %d", evicted.Evicted)
	}
	if code := postJSON(t, base+"/api/cache/evict?count=0", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad count, got %d", code)
	}

	var run api.EvictionRunResponse
	if code := postJSON(t, base+"/api/cache/eviction/run", nil, &run); code != http.StatusOK {
		t.Fatalf("unexpected status %d running eviction", code)
	}

	var cleared api.ClearCacheResponse
	if code := postJSON(t, base+"/api/cache/clear", nil, &cleared); code != http.StatusOK {
		t.Fatalf("unexpected status %d clearing", code)
	}
}

func TestJobEndpointsRejectUnknownInput(t *testing.T) {
	d, _ := newTestDaemon(t)
	base := "http://" + d.APIAddr()

	if code := getJSON(t, base+"/api/jobs/no-such-job", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if code := getJSON(t, fmt.Sprintf("%s/api/jobs?status=%s", base, "bogus"), nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", code)
	}
	if code := postJSON(t, base+"/api/jobs", api.SubmitJobRequest{Type: "bogus"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", code)
	}

	var summary api.JobSummaryResponse
	if code := getJSON(t, base+"/api/jobs/summary", &summary); code != http.StatusOK {
		t.Fatalf("unexpected status %d fetching summary", code)
	}
}
