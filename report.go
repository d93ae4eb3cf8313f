package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dgnsrekt/voxline/internal/queue"
)

// report collects the outcome of queued actions. In live mode each failure
// is printed as soon as it happens.
type report struct {
	live bool
	out  io.Writer

	wg     sync.WaitGroup
	mu     sync.Mutex
	done   bool
	total  int
	failed []error
}

func newReport(out io.Writer, live bool) *report {
	return &report{out: out, live: live}
}

// track watches c until it settles. Completions tracked after wait has
// started are ignored.
func (r *report) track(c *queue.Completion) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.total++
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		<-c.Done()
		err := c.Err()
		// Interrupted actions are not failures.
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		r.mu.Lock()
		r.failed = append(r.failed, err)
		r.mu.Unlock()
		if r.live {
			r.print(err)
		}
	}()
}

// wait blocks until every tracked action has settled and summarizes the
// failures. A single failed action is returned as is.
func (r *report) wait() error {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case len(r.failed) == 0:
		return nil
	case r.total == 1 && !r.live:
		return r.failed[0]
	}
	if !r.live {
		for _, err := range r.failed {
			r.print(err)
		}
	}
	return fmt.Errorf("%d of %d failed", len(r.failed), r.total)
}

func (r *report) print(err error) {
	fmt.Fprintln(r.out, errorStyle.Render("Error:"), userMessage(err))
}
