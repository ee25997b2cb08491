package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	appschedule "bagsy/internal/app/schedule"
)

// TimerScheduler runs tasks on plain timers inside the process. Tasks are
// detached from the caller's context: an agent round must outlive the HTTP
// request that triggered it. There is no cancellation handle either; tasks
// re-check persisted state when they fire, so a late timer racing a human
// action resolves as a no-op.
type TimerScheduler struct {
	Logger *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewTimerScheduler(logger *slog.Logger) *TimerScheduler {
	return &TimerScheduler{Logger: logger}
}

func (s *TimerScheduler) Schedule(ctx context.Context, name string, delay time.Duration, task func(context.Context)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return context.Canceled
	}
	s.wg.Add(1)
	s.mu.Unlock()

	taskCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()
		if delay > 0 {
			time.Sleep(delay)
		}
		if s.Logger != nil {
			s.Logger.Debug("scheduled task firing", "name", name, "delay", delay)
		}
		task(taskCtx)
	}()
	return nil
}

// Close stops accepting tasks and waits for in-flight ones.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

var _ appschedule.Scheduler = (*TimerScheduler)(nil)
