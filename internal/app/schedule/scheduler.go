package schedule

import (
	"context"
	"time"
)

// Scheduler runs a named task after a delay. Scheduled tasks carry no
// cancellation token; they are expected to re-check state when they fire and
// no-op if the world has moved on.
type Scheduler interface {
	Schedule(ctx context.Context, name string, delay time.Duration, task func(context.Context)) error
}
