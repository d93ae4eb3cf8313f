package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Completion is the signal a caller waits on for one submitted action.
type Completion struct {
	id   uuid.UUID
	done chan struct{}
	err  error
	once sync.Once
}

func newCompletion() *Completion {
	return &Completion{
		id:   uuid.New(),
		done: make(chan struct{}),
	}
}

// ID identifies the queue entry in logs.
func (c *Completion) ID() uuid.UUID {
	return c.id
}

// Done is closed once the action has settled.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the action's error. It is nil until Done is closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the action settles and returns its error. If ctx ends
// first, Wait returns ctx.Err() and the action keeps running.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}
