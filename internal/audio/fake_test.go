package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// fakeProcess consumes input until End, then reports diag and exits with code.
// With exitEarly it exits straight away without reading anything.
type fakeProcess struct {
	mu      sync.Mutex
	written bytes.Buffer
	exited  bool

	code int
	diag string

	ended   chan struct{}
	endOnce sync.Once
	exit    chan struct{}
}

func (p *fakeProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return 0, io.ErrClosedPipe
	}
	return p.written.Write(b)
}

func (p *fakeProcess) End() error {
	p.endOnce.Do(func() { close(p.ended) })
	return nil
}

func (p *fakeProcess) Wait() (int, error) {
	<-p.exit
	return p.code, nil
}

func (p *fakeProcess) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func (p *fakeProcess) finish(onDiagnostic func(string)) {
	if p.diag != "" && onDiagnostic != nil {
		onDiagnostic(p.diag)
	}
	p.mu.Lock()
	p.exited = true
	p.mu.Unlock()
	close(p.exit)
}

type fakeSpawner struct {
	code      int
	diag      string
	exitEarly bool
	err       error

	mu    sync.Mutex
	procs []*fakeProcess
}

func (s *fakeSpawner) Spawn(_ context.Context, onDiagnostic func(string)) (Process, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := &fakeProcess{
		code:  s.code,
		diag:  s.diag,
		ended: make(chan struct{}),
		exit:  make(chan struct{}),
	}
	s.mu.Lock()
	s.procs = append(s.procs, p)
	s.mu.Unlock()

	if s.exitEarly {
		p.finish(onDiagnostic)
	} else {
		go func() {
			<-p.ended
			p.finish(onDiagnostic)
		}()
	}
	return p, nil
}

func (s *fakeSpawner) Spawned() []*fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeProcess(nil), s.procs...)
}

// failingReader yields data once, then fails with err.
type failingReader struct {
	data []byte
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), nil
}

func (r *failingReader) Close() error { return nil }

// trackingCloser records whether Close was called.
type trackingCloser struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (c *trackingCloser) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *trackingCloser) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var errConnectionReset = errors.New("connection reset by peer")
