package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Process is a running playback child. It is used for exactly one playback.
type Process interface {
	// Write sends audio bytes to the process input.
	Write(p []byte) (int, error)

	// End closes the process input, signalling end of audio.
	End() error

	// Wait blocks until the process exits and returns its exit code.
	// A non-nil error means the exit status could not be determined.
	Wait() (int, error)
}

// Spawner starts playback processes. onDiagnostic receives diagnostic text
// as the process emits it; it may be called from another goroutine.
type Spawner interface {
	Spawn(ctx context.Context, onDiagnostic func(string)) (Process, error)
}

// ExecSpawner runs an external command that reads audio on stdin and writes
// diagnostics on stderr.
type ExecSpawner struct {
	Command string
	Args    []string

	// Env is appended to the current environment.
	Env []string

	// Stdout receives the player's standard output. Discarded when nil.
	Stdout io.Writer

	// GracePeriod is how long a cancelled player gets between SIGINT and
	// SIGKILL. Only relevant when the caller's context is cancelled.
	GracePeriod time.Duration
}

// Spawn starts the command with stdin and stderr pipes attached.
func (s ExecSpawner) Spawn(ctx context.Context, onDiagnostic func(string)) (Process, error) {
	if s.Command == "" {
		return nil, &SpawnError{Err: errors.New("no player command configured")}
	}

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	cmd.Stdout = s.Stdout

	// Graceful shutdown: SIGINT first, then SIGKILL after the grace period
	grace := s.GracePeriod
	if grace <= 0 {
		grace = 500 * time.Millisecond
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = grace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Command: s.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Command: s.Command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: s.Command, Err: err}
	}

	p := &execProcess{cmd: cmd, stdin: stdin}

	// stderr must be fully read before cmd.Wait
	p.pumps.Go(func() error {
		buf := make([]byte, 4096)
		for {
			n, err := stderr.Read(buf)
			if n > 0 && onDiagnostic != nil {
				onDiagnostic(string(buf[:n]))
			}
			if err == io.EOF || errors.Is(err, os.ErrClosed) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read player stderr: %w", err)
			}
		}
	})

	return p, nil
}

// execProcess is a Process backed by os/exec.
type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	pumps errgroup.Group

	endOnce sync.Once
	endErr  error

	waitOnce sync.Once
	code     int
	waitErr  error
}

func (p *execProcess) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *execProcess) End() error {
	p.endOnce.Do(func() {
		p.endErr = p.stdin.Close()
	})
	return p.endErr
}

func (p *execProcess) Wait() (int, error) {
	p.waitOnce.Do(func() {
		pumpErr := p.pumps.Wait()
		err := p.cmd.Wait()

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			p.code = 0
		case errors.As(err, &exitErr):
			p.code = exitErr.ExitCode()
		default:
			p.code = -1
			p.waitErr = err
		}
		if p.waitErr == nil && pumpErr != nil && p.code == 0 {
			p.waitErr = pumpErr
		}
	})
	return p.code, p.waitErr
}
