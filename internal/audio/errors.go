package audio

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrPlaybackFailed matches any *PlaybackFailedError
	ErrPlaybackFailed = errors.New("playback failed")

	// ErrNotFound indicates an audio file does not exist
	ErrNotFound = errors.New("audio file not found")

	// ErrStreamAborted is returned by a stream read after the sink gave up on it
	ErrStreamAborted = errors.New("audio stream aborted")
)

// PlaybackFailedError reports a player that exited with a nonzero code.
type PlaybackFailedError struct {
	Code        int
	Diagnostics string

	// StreamErr is set when the input stream also failed while piping.
	StreamErr error
}

// Error implements the error interface
func (e *PlaybackFailedError) Error() string {
	msg := fmt.Sprintf("audio player exited with code %d", e.Code)
	if e.Diagnostics != "" {
		msg += ". Details: " + e.Diagnostics
	}
	if e.StreamErr != nil {
		msg += fmt.Sprintf(" (stream error: %v)", e.StreamErr)
	}
	return msg
}

// Is reports whether target is ErrPlaybackFailed.
func (e *PlaybackFailedError) Is(target error) bool {
	return target == ErrPlaybackFailed
}

// Unwrap returns the stream error, if any.
func (e *PlaybackFailedError) Unwrap() error {
	return e.StreamErr
}

// SpawnError reports a player process that could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start audio player %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IOError reports a local audio file that could not be opened.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is matches ErrNotFound when the underlying error is fs.ErrNotExist.
func (e *IOError) Is(target error) bool {
	return target == ErrNotFound && errors.Is(e.Err, fs.ErrNotExist)
}
