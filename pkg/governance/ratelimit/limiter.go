package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Errors returned by the limiter itself. Task errors pass through untouched.
var (
	// ErrQueueFull is returned when a limiter's pending queue is at its
	// configured cap.
	ErrQueueFull = errors.New("rate limiter queue full")

	// ErrReset settles tasks that were still queued when Reset was called.
	ErrReset = errors.New("rate limiter reset")
)

// Task is one unit of rate-limited work. The limiter never inspects or
// alters the result; it only decides when the task runs.
type Task func(ctx context.Context) (any, error)

// Limiter admits at most capacity tasks within any trailing window, for one
// service. Excess tasks queue in FIFO order and are admitted as slots free
// up; the limiter delays work, it never rejects it for rate reasons (the
// only limiter-originated failures are a full queue or a context that ends
// before admission).
//
// # Algorithm
//
// Admission timestamps inside the trailing window are retained and pruned
// on every check. A task is admitted when fewer than capacity timestamps
// remain; otherwise the next slot opens when the oldest timestamp leaves
// the window.
//
// The timestamp is recorded before the task is invoked, so a burst of
// slow tasks cannot overshoot capacity while their predecessors are still
// in flight.
//
// # Draining
//
// A single drainer goroutine owns queue consumption, guarded by the
// draining flag: an Execute arriving mid-drain only enqueues and relies on
// the existing drainer. A task stays in the queue until the moment it is
// admitted, so queue depth and the queue cap always reflect every task
// still waiting. Admission order is strictly FIFO; tasks themselves run
// concurrently once admitted, and one task's failure never blocks or
// cancels the others.
type Limiter struct {
	service    string
	capacity   int
	window     time.Duration
	queueLimit int
	wake       chan struct{}

	mu         sync.Mutex
	timestamps []time.Time
	queue      []*pending
	draining   bool
}

type pending struct {
	ctx     context.Context
	task    Task
	done    chan outcome
	settled bool // guarded by the limiter's mu
}

type outcome struct {
	value any
	err   error
}

// Settings configures a limiter for one service.
type Settings struct {
	// Capacity is the maximum number of admissions per rolling window.
	Capacity int

	// Window is the rolling time-window length.
	Window time.Duration

	// QueueLimit caps the pending queue. Zero means unlimited.
	QueueLimit int
}

// Status is a read-only snapshot of a limiter, for observability.
type Status struct {
	Service    string        `json:"service"`
	Capacity   int           `json:"capacity"`
	InWindow   int           `json:"in_window"`
	Remaining  int           `json:"remaining"`
	QueueDepth int           `json:"queue_depth"`
	NextSlot   time.Duration `json:"next_slot_ms"`
}

// NewLimiter creates a limiter for the given service.
func NewLimiter(service string, settings Settings) *Limiter {
	return &Limiter{
		service:    service,
		capacity:   settings.Capacity,
		window:     settings.Window,
		queueLimit: settings.QueueLimit,
		wake:       make(chan struct{}, 1),
	}
}

// CanAdmit prunes timestamps older than the window and reports whether a
// task could be admitted right now. It has no side effect beyond pruning.
func (l *Limiter) CanAdmit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(time.Now())
	return len(l.timestamps) < l.capacity
}

// TimeUntilNextSlot returns how long until the next admission slot opens,
// or zero if one is open now. Callers must re-check admission after the
// implied wait: concurrent admissions may have taken the slot.
func (l *Limiter) TimeUntilNextSlot() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.timeUntilNextSlotLocked(time.Now())
}

func (l *Limiter) timeUntilNextSlotLocked(now time.Time) time.Duration {
	l.pruneLocked(now)
	if len(l.timestamps) < l.capacity {
		return 0
	}

	wait := l.window - now.Sub(l.timestamps[0])
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Execute queues the task and returns its own result once it has run.
// If the context ends before the task is admitted, Execute returns the
// context's error and the task never consumes a window slot. Once admitted,
// the task runs to completion regardless of the caller's interest.
func (l *Limiter) Execute(ctx context.Context, task Task) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	p := &pending{
		ctx:  ctx,
		task: task,
		done: make(chan outcome, 1),
	}

	l.mu.Lock()
	if l.queueLimit > 0 && len(l.queue) >= l.queueLimit {
		l.mu.Unlock()
		return nil, ErrQueueFull
	}
	l.queue = append(l.queue, p)
	start := !l.draining
	if start {
		l.draining = true
	}
	l.mu.Unlock()

	if start {
		go l.drain()
	}

	select {
	case out := <-p.done:
		return out.value, out.err
	case <-ctx.Done():
		// The drainer will observe the dead context and settle the task
		// without consuming a slot; done is buffered so nothing leaks.
		return nil, ctx.Err()
	}
}

// drain is the single queue consumer. It admits the head as soon as a window
// slot is free, leaving it queued until that moment, then launches the task
// and moves on.
func (l *Limiter) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.draining = false
			l.mu.Unlock()
			return
		}
		p := l.queue[0]

		if p.settled {
			l.queue = l.queue[1:]
			l.mu.Unlock()
			continue
		}

		if err := p.ctx.Err(); err != nil {
			l.queue = l.queue[1:]
			p.settled = true
			l.mu.Unlock()
			p.done <- outcome{err: err}
			continue
		}

		now := time.Now()
		l.pruneLocked(now)
		if len(l.timestamps) < l.capacity {
			l.timestamps = append(l.timestamps, now)
			l.queue = l.queue[1:]
			l.mu.Unlock()

			go func(p *pending) {
				value, err := p.task(p.ctx)
				l.settle(p, outcome{value: value, err: err})
			}(p)
			continue
		}

		wait := l.timeUntilNextSlotLocked(now)
		l.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			// Re-check admission; state may have changed during the wait.
		case <-p.ctx.Done():
			timer.Stop()
			// Loop settles the dead head.
		case <-l.wake:
			timer.Stop()
			// Reset emptied the queue or freed the window; re-check.
		}
	}
}

// settle delivers the outcome unless the task was already settled by Reset.
func (l *Limiter) settle(p *pending, out outcome) {
	l.mu.Lock()
	if p.settled {
		l.mu.Unlock()
		return
	}
	p.settled = true
	l.mu.Unlock()

	p.done <- out
}

// Status reports current window occupancy, remaining capacity, queue depth,
// and time to the next slot.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.pruneLocked(now)

	remaining := l.capacity - len(l.timestamps)
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		Service:    l.service,
		Capacity:   l.capacity,
		InWindow:   len(l.timestamps),
		Remaining:  remaining,
		QueueDepth: len(l.queue),
		NextSlot:   l.timeUntilNextSlotLocked(now),
	}
}

// Reset clears timestamps and settles any still-queued tasks with ErrReset.
// Tasks already admitted are unaffected; they settle on their own.
func (l *Limiter) Reset() {
	l.mu.Lock()
	queued := l.queue
	l.queue = nil
	l.timestamps = nil

	toSettle := make([]*pending, 0, len(queued))
	for _, p := range queued {
		if !p.settled {
			p.settled = true
			toSettle = append(toSettle, p)
		}
	}
	l.mu.Unlock()

	for _, p := range toSettle {
		p.done <- outcome{err: ErrReset}
	}

	// Nudge a drainer sleeping on a long window so it notices promptly.
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// pruneLocked drops timestamps older than the window. Caller must hold mu.
// After pruning, len(timestamps) never exceeds capacity.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}

// ExecuteTyped runs a typed task through the limiter, sparing callers the
// type assertion on Execute's result.
func ExecuteTyped[T any](ctx context.Context, l *Limiter, task func(ctx context.Context) (T, error)) (T, error) {
	value, err := l.Execute(ctx, func(ctx context.Context) (any, error) {
		return task(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	result, ok := value.(T)
	if !ok {
		var zero T
		return zero, errors.New("rate limiter task returned unexpected type")
	}
	return result, nil
}
