package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scribe/internal/logging"
	"scribe/internal/queue"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConcurrencyAndWaitLineBounds(t *testing.T) {
	q := queue.New(queue.Options{MaxConcurrent: 3, MaxQueued: 2}, logging.NewNop())
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{}, 8)
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Submit(ctx, func(context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			})
			if err != nil {
				t.Errorf("Submit: %v", err)
			}
		}()
	}

	// Three tasks run, two wait; no more than three ever start.
	for i := 0; i < 3; i++ {
		<-started
	}
	waitFor(t, "two pending submissions", func() bool {
		return q.Stats().Pending == 2
	})
	select {
	case <-started:
		t.Fatal("fourth task started while all slots were busy")
	case <-time.After(25 * time.Millisecond):
	}

	// The sixth submission finds the wait line full and is rejected.
	err := q.Submit(ctx, func(context.Context) error { return nil })
	var full *queue.FullError
	if !errors.As(err, &full) {
		t.Fatalf("expected FullError, got %v", err)
	}
	if full.Stats.Active != 3 || full.Stats.Pending != 2 {
		t.Fatalf("unexpected stats at rejection: %+v", full.Stats)
	}

	close(release)
	wg.Wait()

	stats := q.Stats()
	if stats.Active != 0 || stats.Pending != 0 {
		t.Fatalf("expected drained queue, got %+v", stats)
	}
	if stats.Completed != 5 || stats.TotalProcessed != 5 {
		t.Fatalf("expected 5 completed, got %+v", stats)
	}
}

func TestWaitersAdmittedInSubmissionOrder(t *testing.T) {
	q := queue.New(queue.Options{MaxConcurrent: 1, MaxQueued: 3}, logging.NewNop())
	ctx := context.Background()

	release := make(chan struct{})
	blocked := make(chan struct{})
	go func() {
		_ = q.Submit(ctx, func(context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Submit(ctx, func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		waitFor(t, "waiter enqueued", func() bool {
			return q.Stats().Pending == i
		})
	}

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected FIFO admission, got %v", order)
	}
}

func TestWaitTimeoutNeverRunsTask(t *testing.T) {
	q := queue.New(queue.Options{MaxConcurrent: 1, MaxQueued: 2, WaitTimeout: 20 * time.Millisecond}, logging.NewNop())
	ctx := context.Background()

	release := make(chan struct{})
	blocked := make(chan struct{})
	go func() {
		_ = q.Submit(ctx, func(context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked
	defer close(release)

	ran := false
	err := q.Submit(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	var timeout *queue.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if timeout.Waited != 20*time.Millisecond {
		t.Fatalf("unexpected waited duration: %s", timeout.Waited)
	}
	if ran {
		t.Fatal("timed-out submission must not run its task")
	}
	if q.Stats().Pending != 0 {
		t.Fatal("expected abandoned waiter removed from the wait line")
	}
}

func TestContextCancelWhileWaiting(t *testing.T) {
	q := queue.New(queue.Options{MaxConcurrent: 1, MaxQueued: 2}, logging.NewNop())

	release := make(chan struct{})
	blocked := make(chan struct{})
	go func() {
		_ = q.Submit(context.Background(), func(context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	ran := false
	go func() {
		errCh <- q.Submit(ctx, func(context.Context) error {
			ran = true
			return nil
		})
	}()
	waitFor(t, "waiter enqueued", func() bool {
		return q.Stats().Pending == 1
	})
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran {
		t.Fatal("cancelled submission must not run its task")
	}
}

func TestTaskErrorsCountAsFailures(t *testing.T) {
	q := queue.New(queue.Options{MaxConcurrent: 2, MaxQueued: 2}, logging.NewNop())
	ctx := context.Background()

	wantErr := errors.New("extraction blew up")
	if err := q.Submit(ctx, func(context.Context) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("expected task error passed through, got %v", err)
	}
	if err := q.Submit(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	stats := q.Stats()
	if stats.Failed != 1 || stats.Completed != 1 || stats.TotalProcessed != 2 {
		t.Fatalf("unexpected accounting: %+v", stats)
	}
	if stats.QueueSize != 2 {
		t.Fatalf("expected configured wait-line capacity, got %d", stats.QueueSize)
	}
}
