package audio

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}

func shellSpawner(t *testing.T, script string) ExecSpawner {
	t.Helper()
	if testing.Short() {
		t.Skip("spawns /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	return ExecSpawner{Command: "/bin/sh", Args: []string{"-c", script}}
}

func TestExecSpawner_ExitCodeAndDiagnostics(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		wantCode int
		wantDiag string
	}{
		{"success", "cat >/dev/null", 0, ""},
		{"decode error", `cat >/dev/null; printf "decode error" >&2; exit 1`, 1, "decode error"},
		{"custom code", "cat >/dev/null; exit 7", 7, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spawner := shellSpawner(t, tt.script)

			var (
				mu   sync.Mutex
				diag strings.Builder
			)
			proc, err := spawner.Spawn(context.Background(), func(s string) {
				mu.Lock()
				diag.WriteString(s)
				mu.Unlock()
			})
			if err != nil {
				t.Fatalf("Spawn() error = %v", err)
			}

			if _, err := proc.Write([]byte("some audio")); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if err := proc.End(); err != nil {
				t.Fatalf("End() error = %v", err)
			}

			code, err := proc.Wait()
			if err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			mu.Lock()
			defer mu.Unlock()
			if diag.String() != tt.wantDiag {
				t.Errorf("diagnostics = %q, want %q", diag.String(), tt.wantDiag)
			}
		})
	}
}

func TestExecSpawner_ThroughSink(t *testing.T) {
	spawner := shellSpawner(t, `cat >/dev/null; echo "decode error" >&2; exit 1`)
	sink := NewSink(spawner, nil)

	err := sink.PlaySource(context.Background(), BytesSource("not really mp3"))
	var failed *PlaybackFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("PlaySource() error = %v, want *PlaybackFailedError", err)
	}
	if failed.Code != 1 || strings.TrimSpace(failed.Diagnostics) != "decode error" {
		t.Errorf("got code=%d diag=%q", failed.Code, failed.Diagnostics)
	}
}

func TestExecSpawner_Cancel(t *testing.T) {
	spawner := shellSpawner(t, "sleep 10")
	spawner.GracePeriod = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	proc, err := spawner.Spawn(ctx, nil)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	start := time.Now()
	cancel()
	code, _ := proc.Wait()
	if code == 0 {
		t.Error("cancelled player should not report success")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancel took %v", elapsed)
	}
}

func TestExecSpawner_MissingCommand(t *testing.T) {
	tests := []struct {
		name    string
		spawner ExecSpawner
	}{
		{"empty", ExecSpawner{}},
		{"not on path", ExecSpawner{Command: "voxline-no-such-player-binary"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spawner.Spawn(context.Background(), nil)
			var se *SpawnError
			if !errors.As(err, &se) {
				t.Errorf("Spawn() error = %v, want *SpawnError", err)
			}
		})
	}
}
