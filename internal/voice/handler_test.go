package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/voxline/internal/audio"
	"github.com/dgnsrekt/voxline/internal/queue"
	"github.com/dgnsrekt/voxline/internal/tts"
)

type fakeSpeaker struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *fakeSpeaker) Stream(_ context.Context, text string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader("eleven:" + text)), nil
}

type fakeFallback struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeFallback) Stream(_ context.Context, text, lang string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls = append(f.calls, lang+":"+text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader("google:" + text)), nil
}

func (f *fakeFallback) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recordingPlayer drains each stream and records it. It fails the test if
// two playbacks ever overlap.
type recordingPlayer struct {
	t        *testing.T
	delay    time.Duration
	err      error
	inFlight atomic.Int32

	mu     sync.Mutex
	played []string
}

func (p *recordingPlayer) Play(ctx context.Context, stream io.ReadCloser) error {
	defer stream.Close()
	if n := p.inFlight.Add(1); n != 1 {
		p.t.Errorf("%d playbacks in flight", n)
	}
	defer p.inFlight.Add(-1)

	b, err := io.ReadAll(stream)
	if err != nil {
		return err
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	p.played = append(p.played, string(b))
	p.mu.Unlock()
	return p.err
}

func (p *recordingPlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

type upper struct{}

func (upper) Normalize(s string) string { return strings.ToUpper(s) }

func wait(t *testing.T, c *queue.Completion) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) && c.Err() == nil {
		t.Fatal("completion did not resolve")
	}
	return err
}

func TestHandler_SayInOrder(t *testing.T) {
	player := &recordingPlayer{t: t, delay: 2 * time.Millisecond}
	h := NewHandler(queue.NewActionQueue(), player, WithSpeaker(&fakeSpeaker{}), WithNormalizer(upper{}))

	var completions []*queue.Completion
	for i := 0; i < 10; i++ {
		completions = append(completions, h.Say(fmt.Sprintf("line %d", i)))
	}
	for i, c := range completions {
		if err := wait(t, c); err != nil {
			t.Fatalf("Say #%d error = %v", i, err)
		}
	}

	played := player.Played()
	for i, got := range played {
		want := fmt.Sprintf("eleven:LINE %d", i)
		if got != want {
			t.Errorf("played[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestHandler_Fallback(t *testing.T) {
	unauthorized := &tts.APIError{StatusCode: 401, Provider: "elevenlabs"}
	transport := &tts.TransportError{Provider: "elevenlabs", Op: "stream request", Err: errors.New("connection refused")}

	tests := []struct {
		name           string
		speakerErr     error
		auto           bool
		onUnauthorized bool
		wantPlayed     string
		wantErr        error
	}{
		{
			name:       "transport error falls back",
			speakerErr: transport,
			auto:       true,
			wantPlayed: "google:Il est 5 heures",
		},
		{
			name:       "unauthorized is not masked",
			speakerErr: unauthorized,
			auto:       true,
			wantErr:    tts.ErrUnauthorized,
		},
		{
			name:           "unauthorized falls back when asked",
			speakerErr:     unauthorized,
			auto:           true,
			onUnauthorized: true,
			wantPlayed:     "google:Il est 5 heures",
		},
		{
			name:       "fallback disabled",
			speakerErr: transport,
			auto:       false,
			wantErr:    transport,
		},
		{
			name:       "missing key falls back",
			speakerErr: tts.ErrNoAPIKey,
			auto:       true,
			wantPlayed: "google:Il est 5 heures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &recordingPlayer{t: t}
			fallback := &fakeFallback{}
			h := NewHandler(queue.NewActionQueue(), player,
				WithSpeaker(&fakeSpeaker{err: tt.speakerErr}),
				WithFallback(fallback, "fr"),
				WithAutoFallback(tt.auto, tt.onUnauthorized),
			)

			err := wait(t, h.Say("Il est 5 heures"))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Say() error = %v, want %v", err, tt.wantErr)
				}
				if n := len(fallback.Calls()); n != 0 {
					t.Errorf("fallback called %d times", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("Say() error = %v", err)
			}
			played := player.Played()
			if len(played) != 1 || played[0] != tt.wantPlayed {
				t.Errorf("played = %q, want [%q]", played, tt.wantPlayed)
			}
			if calls := fallback.Calls(); len(calls) != 1 || calls[0] != "fr:Il est 5 heures" {
				t.Errorf("fallback calls = %q", calls)
			}
		})
	}
}

func TestHandler_FallbackFailureReported(t *testing.T) {
	googleErr := errors.New("google down")
	h := NewHandler(queue.NewActionQueue(), &recordingPlayer{t: t},
		WithSpeaker(&fakeSpeaker{err: errors.New("eleven down")}),
		WithFallback(&fakeFallback{err: googleErr}, "fr"),
		WithAutoFallback(true, false),
	)
	if err := wait(t, h.Say("bonjour")); !errors.Is(err, googleErr) {
		t.Errorf("Say() error = %v, want fallback error", err)
	}
}

func TestHandler_FailureDoesNotBlockNext(t *testing.T) {
	player := &recordingPlayer{t: t}
	h := NewHandler(queue.NewActionQueue(), player, WithSpeaker(&fakeSpeaker{}))

	missing := h.PlayFile(filepath.Join(t.TempDir(), "missing.mp3"))
	next := h.Say("after")

	if err := wait(t, missing); !errors.Is(err, audio.ErrNotFound) {
		t.Errorf("PlayFile() error = %v, want ErrNotFound", err)
	}
	if err := wait(t, next); err != nil {
		t.Errorf("Say() after failure error = %v", err)
	}
	if played := player.Played(); len(played) != 1 || played[0] != "eleven:after" {
		t.Errorf("played = %q", played)
	}
}

func TestHandler_SayFallback(t *testing.T) {
	player := &recordingPlayer{t: t}
	fallback := &fakeFallback{}
	h := NewHandler(queue.NewActionQueue(), player, WithFallback(fallback, "fr"))

	if err := wait(t, h.SayFallback("hello", "en")); err != nil {
		t.Fatal(err)
	}
	if err := wait(t, h.SayFallback("salut", "")); err != nil {
		t.Fatal(err)
	}
	want := []string{"en:hello", "fr:salut"}
	got := fallback.Calls()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("fallback calls = %q, want %q", got, want)
	}

	bare := NewHandler(queue.NewActionQueue(), player)
	if err := wait(t, bare.SayFallback("x", "")); !errors.Is(err, ErrNoFallback) {
		t.Errorf("error = %v, want ErrNoFallback", err)
	}
}

func TestHandler_EmptyTextAndNoSpeaker(t *testing.T) {
	h := NewHandler(queue.NewActionQueue(), &recordingPlayer{t: t})

	if err := wait(t, h.Say("   ")); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("Say(blank) error = %v, want ErrEmptyText", err)
	}
	if err := wait(t, h.Say("hi")); !errors.Is(err, ErrNoSpeaker) {
		t.Errorf("Say() error = %v, want ErrNoSpeaker", err)
	}
}

func TestHandler_Timeout(t *testing.T) {
	player := &recordingPlayer{t: t, delay: time.Second}
	h := NewHandler(queue.NewActionQueue(), player, WithSpeaker(&fakeSpeaker{}), WithTimeout(20*time.Millisecond))

	err := wait(t, h.Say("slow"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Say() error = %v, want deadline exceeded", err)
	}
}

func TestHandler_PlaybackFailureSurfaces(t *testing.T) {
	failed := &audio.PlaybackFailedError{Code: 1, Diagnostics: "decode error"}
	h := NewHandler(queue.NewActionQueue(), &recordingPlayer{t: t, err: failed}, WithSpeaker(&fakeSpeaker{}))

	err := wait(t, h.Say("hi"))
	var pf *audio.PlaybackFailedError
	if !errors.As(err, &pf) || pf.Diagnostics != "decode error" {
		t.Errorf("Say() error = %v, want the playback failure", err)
	}
}

func TestHandler_Close(t *testing.T) {
	h := NewHandler(queue.NewActionQueue(), &recordingPlayer{t: t}, WithSpeaker(&fakeSpeaker{}))
	first := h.Say("one")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := first.Err(); err != nil {
		t.Errorf("queued action should finish before Close returns, err = %v", err)
	}
	select {
	case <-first.Done():
	default:
		t.Error("queued action not done after Close")
	}
	if err := wait(t, h.Say("late")); !errors.Is(err, queue.ErrQueueClosed) {
		t.Errorf("Say() after Close error = %v, want ErrQueueClosed", err)
	}
}
