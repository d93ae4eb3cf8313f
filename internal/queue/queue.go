package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrQueueClosed is returned when an action is submitted to a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrNilAction is returned when a nil action is submitted
	ErrNilAction = errors.New("action is nil")

	// ErrActionPanicked wraps the value recovered from a panicking action
	ErrActionPanicked = errors.New("action panicked")
)

// Action is a unit of work run by the queue. It must return in finite time;
// the queue never cancels it.
type Action func(ctx context.Context) error

// ActionQueue runs actions one at a time in FIFO order.
// At most one drain goroutine is active; it starts on the first submission
// after an idle period and stops when no entries are pending.
type ActionQueue struct {
	// Pending entries, head first
	pending []entry

	// State
	draining bool
	closed   bool
	idle     chan struct{} // closed when the current drain stops
	stats    Stats

	// Base context handed to every action
	ctx    context.Context
	logger *log.Logger

	mu sync.Mutex
}

// entry pairs an action with the completion its caller waits on.
type entry struct {
	action     Action
	completion *Completion
	enqueued   time.Time
}

// Stats tracks queue activity.
type Stats struct {
	TotalEnqueued  int64
	TotalCompleted int64
	TotalFailed    int64
	CurrentSize    int
	PeakSize       int
	LastEnqueue    time.Time
	LastComplete   time.Time
	TotalRunTime   time.Duration
	AverageRunTime time.Duration
}

// Option configures an ActionQueue.
type Option func(*ActionQueue)

// WithContext sets the context passed to every action.
func WithContext(ctx context.Context) Option {
	return func(q *ActionQueue) {
		if ctx != nil {
			q.ctx = ctx
		}
	}
}

// WithLogger sets the logger used for drain events.
func WithLogger(logger *log.Logger) Option {
	return func(q *ActionQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewActionQueue creates an idle queue.
func NewActionQueue(opts ...Option) *ActionQueue {
	q := &ActionQueue{
		ctx:    context.Background(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.WithPrefix("queue")
	return q
}

// Submit appends action to the queue and returns its completion.
// If no drain is running one is started; otherwise the entry just waits its
// turn. The completion resolves with the action's error once it has run.
func (q *ActionQueue) Submit(action Action) *Completion {
	c := newCompletion()

	if action == nil {
		c.resolve(ErrNilAction)
		return c
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		c.resolve(ErrQueueClosed)
		return c
	}

	now := time.Now()
	q.pending = append(q.pending, entry{action: action, completion: c, enqueued: now})
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = now
	if size := len(q.pending); size > q.stats.PeakSize {
		q.stats.PeakSize = size
	}

	start := !q.draining
	if start {
		q.draining = true
		q.idle = make(chan struct{})
	}
	idle := q.idle
	q.mu.Unlock()

	q.logger.Debug("Action enqueued", "id", c.id, "draining", !start)

	if start {
		go q.drain(idle)
	}
	return c
}

// drain runs pending entries until none are left.
func (q *ActionQueue) drain(idle chan struct{}) {
	defer close(idle)

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		e := q.pending[0]
		q.pending[0] = entry{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		start := time.Now()
		err := q.run(e)
		elapsed := time.Since(start)

		q.mu.Lock()
		q.stats.TotalCompleted++
		if err != nil {
			q.stats.TotalFailed++
		}
		q.stats.LastComplete = time.Now()
		q.stats.TotalRunTime += elapsed
		q.mu.Unlock()

		if err != nil {
			q.logger.Error("Action failed", "id", e.completion.id, "duration", elapsed, "error", err)
		} else {
			q.logger.Debug("Action completed", "id", e.completion.id, "duration", elapsed,
				"waited", start.Sub(e.enqueued))
		}

		// Resolve before the next entry starts so completions follow FIFO order.
		e.completion.resolve(err)
	}
}

// run executes one action, converting a panic into an error.
func (q *ActionQueue) run(e entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanicked, r)
		}
	}()
	return e.action(q.ctx)
}

// Size returns the number of entries waiting to run. The running entry is
// not counted.
func (q *ActionQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether a drain is active.
func (q *ActionQueue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// GetStats returns current queue statistics.
func (q *ActionQueue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.pending)
	if stats.TotalCompleted > 0 {
		stats.AverageRunTime = stats.TotalRunTime / time.Duration(stats.TotalCompleted)
	}
	return stats
}

// Close stops accepting submissions and waits for queued entries to finish
// or for ctx to end. In-flight and pending actions are never abandoned.
func (q *ActionQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	if !q.draining {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
