package governor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestReserveConsumesBudget(t *testing.T) {
	g := New(2, []time.Duration{time.Millisecond}, nil)

	if ok, _ := g.CanRequest(); !ok {
		t.Fatal("fresh governor must allow requests")
	}
	if !g.Reserve() || !g.Reserve() {
		t.Fatal("first two reservations must succeed")
	}
	if g.Reserve() {
		t.Fatal("budget of 2 must block the third reservation")
	}
	if ok, reason := g.CanRequest(); ok || reason == "" {
		t.Fatalf("exhausted governor must block with a reason, got ok=%v reason=%q", ok, reason)
	}
}

func TestReserveIsAtomicUnderContention(t *testing.T) {
	g := New(50, []time.Duration{time.Millisecond}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Reserve() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 50 {
		t.Fatalf("want exactly 50 grants, got %d", granted)
	}
}

func TestExecuteWithRetryRetriesThenSurfaces(t *testing.T) {
	g := New(5, []time.Duration{time.Millisecond}, nil)

	attempts := 0
	err := g.ExecuteWithRetry(context.Background(), "flaky", func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("want error after exhausted retries")
	}
	if attempts != 2 {
		t.Fatalf("want 2 attempts, got %d", attempts)
	}
	// The slot stays consumed even though the call failed.
	if g.Used() != 1 {
		t.Fatalf("failed call must still cost a slot, got %d used", g.Used())
	}
}

func TestExecuteWithRetrySucceedsOnSecondAttempt(t *testing.T) {
	g := New(5, []time.Duration{time.Millisecond}, nil)

	attempts := 0
	err := g.ExecuteWithRetry(context.Background(), "recovering", func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second attempt should have recovered: %v", err)
	}
	if g.Used() != 1 {
		t.Fatalf("one call, one slot: got %d", g.Used())
	}
}

func TestExecuteWithRetryBlocksWhenExhausted(t *testing.T) {
	g := New(0, []time.Duration{time.Millisecond}, nil)

	err := g.ExecuteWithRetry(context.Background(), "any", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("want ErrBudgetExhausted, got %v", err)
	}
}
