package queue

import (
	"fmt"
	"time"
)

// FullError reports a submission rejected because the wait line was at
// capacity. The embedded stats describe the queue at rejection time.
type FullError struct {
	Stats Stats
}

func (e *FullError) Error() string {
	return fmt.Sprintf("queue full: %d active, %d of %d waiting", e.Stats.Active, e.Stats.Pending, e.Stats.QueueSize)
}

// TimeoutError reports a submission that waited its full allowance without
// being handed a slot.
type TimeoutError struct {
	Waited time.Duration
	Stats  Stats
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("queue wait timed out after %s: %d active, %d waiting", e.Waited, e.Stats.Active, e.Stats.Pending)
}
