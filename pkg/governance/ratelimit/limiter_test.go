package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecuteRunsTask(t *testing.T) {
	l := NewLimiter("svc", Settings{Capacity: 1, Window: time.Second})

	value, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if value != "payload" {
		t.Errorf("Execute() = %v, want %q", value, "payload")
	}
}

func TestExecutePropagatesTaskError(t *testing.T) {
	l := NewLimiter("svc", Settings{Capacity: 1, Window: time.Second})
	taskErr := errors.New("upstream down")

	_, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, taskErr
	})
	if !errors.Is(err, taskErr) {
		t.Errorf("Execute() error = %v, want %v", err, taskErr)
	}
}

func TestCapacityNeverExceededWithinWindow(t *testing.T) {
	const capacity = 3
	const window = 200 * time.Millisecond

	l := NewLimiter("svc", Settings{Capacity: capacity, Window: window})

	var mu sync.Mutex
	var admissions []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
				mu.Lock()
				admissions = append(admissions, time.Now())
				mu.Unlock()
				return nil, nil
			})
			if err != nil {
				t.Errorf("Execute() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if len(admissions) != 10 {
		t.Fatalf("got %d admissions, want 10", len(admissions))
	}

	// Any trailing window may contain at most capacity admissions. The
	// timestamp is recorded before the task runs, so observed times can
	// trail the true admission instant slightly; allow a scheduling margin.
	const margin = 20 * time.Millisecond
	mu.Lock()
	defer mu.Unlock()
	for i := range admissions {
		inWindow := 0
		for j := range admissions {
			d := admissions[j].Sub(admissions[i])
			if d >= 0 && d < window-margin {
				inWindow++
			}
		}
		if inWindow > capacity {
			t.Errorf("found %d admissions within one window, capacity is %d", inWindow, capacity)
		}
	}
}

func TestThirdCallWaitsForWindow(t *testing.T) {
	const window = 150 * time.Millisecond
	l := NewLimiter("svc", Settings{Capacity: 2, Window: window})

	start := time.Now()
	done := make(chan time.Duration, 3)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
				done <- time.Since(start)
				return nil, nil
			})
			if err != nil {
				t.Errorf("Execute() error = %v", err)
			}
		}()
	}
	wg.Wait()
	close(done)

	var elapsed []time.Duration
	for d := range done {
		elapsed = append(elapsed, d)
	}
	if len(elapsed) != 3 {
		t.Fatalf("got %d completions, want 3", len(elapsed))
	}

	delayed := 0
	for _, d := range elapsed {
		if d >= window-10*time.Millisecond {
			delayed++
		}
	}
	if delayed != 1 {
		t.Errorf("got %d delayed executions, want exactly 1 (elapsed: %v)", delayed, elapsed)
	}
}

func TestFIFOAdmissionOrder(t *testing.T) {
	// Capacity 1 with a measurable window serializes admissions, exposing
	// the queue order directly.
	l := NewLimiter("svc", Settings{Capacity: 1, Window: 30 * time.Millisecond})

	var mu sync.Mutex
	var order []int

	// Occupy the only slot so subsequent Executes must queue.
	_, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("warm-up Execute() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			})
			if err != nil {
				t.Errorf("Execute(%d) error = %v", i, err)
			}
		}(i)
		// Give each goroutine time to enqueue before the next, so the
		// intended order is the enqueue order.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("admissions out of FIFO order: %v", order)
		}
	}
}

func TestQueueLimit(t *testing.T) {
	l := NewLimiter("svc", Settings{Capacity: 1, Window: time.Minute, QueueLimit: 1})

	// Fill the window so everything else queues.
	if _, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("warm-up Execute() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queued := make(chan error, 1)
	go func() {
		_, err := l.Execute(ctx, func(ctx context.Context) (any, error) {
			return nil, nil
		})
		queued <- err
	}()

	// Wait for the first task to occupy the queue.
	waitFor(t, func() bool { return l.Status().QueueDepth >= 1 })

	_, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Execute() error = %v, want ErrQueueFull", err)
	}

	cancel()
	if err := <-queued; !errors.Is(err, context.Canceled) {
		t.Errorf("queued Execute() error = %v, want context.Canceled", err)
	}
}

func TestContextCancelledWhileQueued(t *testing.T) {
	l := NewLimiter("svc", Settings{Capacity: 1, Window: time.Minute})

	if _, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("warm-up Execute() error = %v", err)
	}

	var invoked atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Execute(ctx, func(ctx context.Context) (any, error) {
			invoked.Store(true)
			return nil, nil
		})
		errCh <- err
	}()

	waitFor(t, func() bool { return l.Status().QueueDepth >= 1 })
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if invoked.Load() {
		t.Error("cancelled task was invoked")
	}
	if got := l.Status().InWindow; got != 1 {
		t.Errorf("InWindow = %d after cancellation, want 1 (no slot consumed)", got)
	}
}

func TestResetSettlesQueuedTasks(t *testing.T) {
	l := NewLimiter("svc", Settings{Capacity: 1, Window: time.Minute})

	if _, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("warm-up Execute() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, nil
		})
		errCh <- err
	}()

	waitFor(t, func() bool { return l.Status().QueueDepth >= 1 })
	l.Reset()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrReset) {
			t.Errorf("queued Execute() error = %v, want ErrReset", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued task not settled after Reset")
	}

	if !l.CanAdmit() {
		t.Error("CanAdmit() = false after Reset, want true")
	}
}

func TestStatus(t *testing.T) {
	l := NewLimiter("svc", Settings{Capacity: 2, Window: time.Minute})

	st := l.Status()
	if st.Service != "svc" || st.Capacity != 2 || st.InWindow != 0 || st.Remaining != 2 {
		t.Errorf("fresh Status() = %+v", st)
	}
	if st.NextSlot != 0 {
		t.Errorf("fresh NextSlot = %v, want 0", st.NextSlot)
	}

	for i := 0; i < 2; i++ {
		if _, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, nil
		}); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	st = l.Status()
	if st.InWindow != 2 || st.Remaining != 0 {
		t.Errorf("saturated Status() = %+v, want InWindow=2 Remaining=0", st)
	}
	if st.NextSlot <= 0 {
		t.Errorf("saturated NextSlot = %v, want > 0", st.NextSlot)
	}
}

func TestExecuteTyped(t *testing.T) {
	l := NewLimiter("svc", Settings{Capacity: 1, Window: time.Second})

	got, err := ExecuteTyped(context.Background(), l, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("ExecuteTyped() error = %v", err)
	}
	if got != 42 {
		t.Errorf("ExecuteTyped() = %d, want 42", got)
	}

	taskErr := errors.New("boom")
	_, err = ExecuteTyped(context.Background(), l, func(ctx context.Context) (int, error) {
		return 0, taskErr
	})
	if !errors.Is(err, taskErr) {
		t.Errorf("ExecuteTyped() error = %v, want %v", err, taskErr)
	}
}

func TestWindowSlidesOpen(t *testing.T) {
	l := NewLimiter("svc", Settings{Capacity: 1, Window: 50 * time.Millisecond})

	if _, err := l.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if l.CanAdmit() {
		t.Error("CanAdmit() = true immediately after saturating, want false")
	}

	time.Sleep(60 * time.Millisecond)

	if !l.CanAdmit() {
		t.Error("CanAdmit() = false after window elapsed, want true")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func ExampleExecuteTyped() {
	l := NewLimiter("coingecko", Settings{Capacity: 10, Window: time.Minute})

	price, err := ExecuteTyped(context.Background(), l, func(ctx context.Context) (float64, error) {
		return 3141.59, nil // stand-in for a provider call
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(price)
	// Output: 3141.59
}
