package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

const logFileName = "voxline-debug.log"

func getLogFilePath() (string, error) {
	dirs, err := gap.NewScope(gap.User, "voxline").DataDirs()
	if err != nil {
		return "", fmt.Errorf("could not get data directory: %w", err)
	}
	return filepath.Join(dirs[0], logFileName), nil
}

// setupLog sends warnings and errors to stderr. In debug mode everything,
// down to debug level, goes to the debug log file instead.
func setupLog(debug bool) (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	if !debug {
		return func() error { return nil }, nil
	}

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}

	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	log.SetReportTimestamp(true)
	log.Debug("Debug logging enabled", "pid", os.Getpid())
	return f.Close, nil
}
