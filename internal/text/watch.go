package text

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
)

// Watcher reloads a replacements file into a Normalizer whenever the file is
// written or recreated. A file that fails to parse leaves the previous rules
// in place.
type Watcher struct {
	path       string
	normalizer *Normalizer
	watcher    *fsnotify.Watcher
	logger     *log.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// LoadInto reads the replacements file into n. A missing file clears nothing
// and is not an error; it is only logged at debug level.
func LoadInto(n *Normalizer, path string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	replacements, err := LoadReplacementsFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("No replacements file", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load replacements %s: %w", path, err)
	}
	n.SetReplacements(replacements)
	logger.Debug("Loaded replacements", "path", path, "count", len(replacements))
	return nil
}

// Watch loads path into n and keeps it in sync until Close. The parent
// directory is watched so editors that replace the file are handled.
func Watch(path string, n *Normalizer, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("text")

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	expanded, err = filepath.Abs(expanded)
	if err != nil {
		return nil, err
	}

	if err := LoadInto(n, expanded, logger); err != nil {
		logger.Warn("Keeping previous replacements", "error", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(expanded)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Debug("fsnotify watching dir", "dir", dir)

	w := &Watcher{
		path:       expanded,
		normalizer: n,
		watcher:    fw,
		logger:     logger,
		done:       make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.logger.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			if err := w.Reload(); err != nil {
				w.logger.Warn("Keeping previous replacements", "error", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("fsnotify error", "error", err)
		}
	}
}

// Reload reads the file now.
func (w *Watcher) Reload() error {
	return LoadInto(w.normalizer, w.path, w.logger)
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
