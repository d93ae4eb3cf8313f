package audio

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// DefaultBufferSize is the chunk size used when piping audio.
const DefaultBufferSize = 32 * 1024

// BridgeResult describes one finished pipe.
type BridgeResult struct {
	Bytes    int64
	Duration time.Duration

	// ReadErr is the stream's own failure (e.g. a dropped connection).
	ReadErr error

	// WriteErr is set when the process stopped accepting input.
	WriteErr error

	// EndErr is set when closing the process input failed.
	EndErr error
}

// Bridge pipes an audio stream into a process input. Writes block until the
// process accepts the bytes, so a slow player slows the reader down.
type Bridge struct {
	BufferSize int
	Logger     *log.Logger
}

// Pipe copies src into dst until src is exhausted, src fails or dst refuses
// a write. It always ends dst's input and closes src before returning.
func (b *Bridge) Pipe(dst Process, src io.ReadCloser) BridgeResult {
	logger := b.Logger
	if logger == nil {
		logger = log.Default()
	}
	size := b.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	var res BridgeResult
	start := time.Now()
	buf := make([]byte, size)

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				// Abort: the player is gone, stop pulling from the stream.
				res.WriteErr = werr
				break
			}
			res.Bytes += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			res.ReadErr = rerr
			break
		}
	}

	res.EndErr = dst.End()
	_ = src.Close()
	res.Duration = time.Since(start)

	switch {
	case res.ReadErr != nil && !errors.Is(res.ReadErr, ErrStreamAborted):
		logger.Warn("Audio stream error", "error", res.ReadErr, "piped", humanize.Bytes(uint64(res.Bytes)))
	case res.WriteErr != nil:
		logger.Debug("Player stopped accepting audio", "error", res.WriteErr, "piped", humanize.Bytes(uint64(res.Bytes)))
	default:
		logger.Debug("Audio stream piped", "bytes", humanize.Bytes(uint64(res.Bytes)), "duration", res.Duration)
	}

	return res
}

// abortableStream lets the sink unblock a pending Read once the player has
// exited. Reads after Abort return ErrStreamAborted.
type abortableStream struct {
	io.ReadCloser

	mu      sync.Mutex
	aborted bool
	once    sync.Once
	err     error
}

func (s *abortableStream) Read(p []byte) (int, error) {
	n, err := s.ReadCloser.Read(p)
	if err != nil && err != io.EOF && s.isAborted() {
		return n, ErrStreamAborted
	}
	return n, err
}

func (s *abortableStream) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Abort marks the stream as abandoned and closes it.
func (s *abortableStream) Abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
	_ = s.Close()
}

func (s *abortableStream) Close() error {
	s.once.Do(func() {
		s.err = s.ReadCloser.Close()
	})
	return s.err
}
