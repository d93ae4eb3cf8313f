package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
)

// Source produces a readable audio byte stream. The caller owns the returned
// stream and must close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (io.ReadCloser, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

// FileSource streams a local audio file.
type FileSource struct {
	Path string
}

// Open opens the file. Missing files match ErrNotFound; every failure is an
// *IOError.
func (s FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	path, err := homedir.Expand(s.Path)
	if err != nil {
		return nil, &IOError{Op: "expand", Path: s.Path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, &IOError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}

	return f, nil
}

// BytesSource serves an in-memory buffer, such as decoded fallback audio.
type BytesSource []byte

// Open returns a fresh reader over the buffer.
func (b BytesSource) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}
