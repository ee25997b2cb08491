package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrBudgetExhausted = errors.New("governor: external call budget exhausted")
	ErrNotConfigured   = errors.New("governor: not configured")
)

// Governor enforces a hard per-process budget over calls to the paid
// market/LLM service and bounds retries on failing calls. It is the only
// cross-negotiation shared mutable state in the system; construct one per
// process and inject it everywhere.
type Governor struct {
	mu      sync.Mutex
	used    int
	budget  int
	backoff []time.Duration
	logger  *slog.Logger
}

const defaultAttempts = 2

func New(budget int, backoff []time.Duration, logger *slog.Logger) *Governor {
	if len(backoff) == 0 {
		backoff = []time.Duration{500 * time.Millisecond}
	}
	return &Governor{budget: budget, backoff: backoff, logger: logger}
}

// CanRequest reports whether a slot is still available, without consuming it.
func (g *Governor) CanRequest() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.used >= g.budget {
		return false, fmt.Sprintf("budget of %d external calls spent", g.budget)
	}
	return true, ""
}

// Reserve atomically consumes one slot. A reserved slot is never returned,
// even when the guarded call later fails: failed calls still cost money.
func (g *Governor) Reserve() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.used >= g.budget {
		return false
	}
	g.used++
	return true
}

// Used returns the number of consumed slots.
func (g *Governor) Used() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.used
}

// ExecuteWithRetry reserves a slot and runs fn, retrying a bounded number of
// times with backoff before surfacing the last error. Callers must fall back
// to synthetic data when ErrBudgetExhausted or the final error comes back.
func (g *Governor) ExecuteWithRetry(ctx context.Context, label string, fn func(context.Context) error) error {
	if !g.Reserve() {
		if g.logger != nil {
			g.logger.Warn("governed call blocked", "label", label, "budget", g.budget)
		}
		return ErrBudgetExhausted
	}

	var lastErr error
	for attempt := 0; attempt < defaultAttempts; attempt++ {
		if attempt > 0 {
			wait := g.backoff[min(attempt-1, len(g.backoff)-1)]
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if g.logger != nil {
			g.logger.Warn("governed call attempt failed", "label", label, "attempt", attempt+1, "error", lastErr)
		}
	}
	return fmt.Errorf("governor: %s failed after %d attempts: %w", label, defaultAttempts, lastErr)
}
