package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/voxline/internal/audio"
	"github.com/dgnsrekt/voxline/internal/config"
	"github.com/dgnsrekt/voxline/internal/queue"
	"github.com/dgnsrekt/voxline/internal/tts"
	"github.com/spf13/viper"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unauthorized",
			err:  fmt.Errorf("say: %w", &tts.APIError{StatusCode: 401, Message: "invalid_api_key", Provider: "elevenlabs"}),
			want: "unauthorized: invalid API key or not enough credits",
		},
		{
			name: "playback diagnostics verbatim",
			err:  &audio.PlaybackFailedError{Code: 1, Diagnostics: "decode error: no frame header"},
			want: "decode error: no frame header",
		},
		{
			name: "missing key",
			err:  tts.ErrNoAPIKey,
			want: tts.ErrNoAPIKey.Error() + " (set ELEVENLABS_APIKEY)",
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userMessage(tt.err); got != tt.want {
				t.Errorf("userMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultConfigLoads(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		t.Fatalf("default config does not parse: %v", err)
	}

	c, err := config.Load(v)
	if err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}

	want := config.Default()
	if c.Text.Language != want.Text.Language {
		t.Errorf("Text.Language = %q, want %q", c.Text.Language, want.Text.Language)
	}
	if c.Cache.TTL != want.Cache.TTL {
		t.Errorf("Cache.TTL = %v, want %v", c.Cache.TTL, want.Cache.TTL)
	}
	if c.Player.GracePeriod != want.Player.GracePeriod {
		t.Errorf("Player.GracePeriod = %v, want %v", c.Player.GracePeriod, want.Player.GracePeriod)
	}
}

func TestReport(t *testing.T) {
	run := func(errs ...error) []*queue.Completion {
		q := queue.NewActionQueue()
		var out []*queue.Completion
		for _, err := range errs {
			out = append(out, q.Submit(func(context.Context) error { return err }))
		}
		return out
	}

	t.Run("all succeed", func(t *testing.T) {
		var buf bytes.Buffer
		r := newReport(&buf, false)
		for _, c := range run(nil, nil) {
			r.track(c)
		}
		if err := r.wait(); err != nil {
			t.Errorf("wait() = %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("single failure is returned as is", func(t *testing.T) {
		var buf bytes.Buffer
		r := newReport(&buf, false)
		r.track(run(tts.ErrNoVoiceID)[0])
		if err := r.wait(); !errors.Is(err, tts.ErrNoVoiceID) {
			t.Errorf("wait() = %v, want ErrNoVoiceID", err)
		}
	})

	t.Run("failures are counted", func(t *testing.T) {
		var buf bytes.Buffer
		r := newReport(&buf, false)
		for _, c := range run(nil, errors.New("first"), nil, errors.New("second")) {
			r.track(c)
		}
		err := r.wait()
		if err == nil || err.Error() != "2 of 4 failed" {
			t.Errorf("wait() = %v, want 2 of 4 failed", err)
		}
		if !strings.Contains(buf.String(), "first") || !strings.Contains(buf.String(), "second") {
			t.Errorf("output %q should list both failures", buf.String())
		}
	})

	t.Run("interrupted actions are not failures", func(t *testing.T) {
		var buf bytes.Buffer
		r := newReport(&buf, true)
		r.track(run(context.Canceled)[0])
		if err := r.wait(); err != nil {
			t.Errorf("wait() = %v", err)
		}
	})
}

func TestReadLines(t *testing.T) {
	var got []string
	input := "bonjour\n\n   \n  J'ai 42 ans  \nfin"
	if err := readLines(context.Background(), strings.NewReader(input), func(s string) { got = append(got, s) }); err != nil {
		t.Fatalf("readLines() error = %v", err)
	}
	want := []string{"bonjour", "J'ai 42 ans", "fin"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestFilterVoices(t *testing.T) {
	voices := []tts.Voice{
		{VoiceID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Labels: map[string]string{"accent": "american"}},
		{VoiceID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi"},
		{VoiceID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Labels: map[string]string{"accent": "british"}},
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"Rachel", "Domi", "Bella"}},
		{"rach", []string{"Rachel"}},
		{"british", []string{"Bella"}},
		{"zzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			var got []string
			for _, v := range filterVoices(voices, tt.filter) {
				got = append(got, v.Name)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("filterVoices(%q) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

type flakyLister struct {
	calls atomic.Int32
	fails int32
	err   error
}

func (l *flakyLister) ListVoices(context.Context) (*tts.VoiceList, error) {
	if l.calls.Add(1) <= l.fails {
		return nil, l.err
	}
	return &tts.VoiceList{Voices: []tts.Voice{{VoiceID: "abc", Name: "Rachel"}}}, nil
}

func TestListVoicesWithRetry(t *testing.T) {
	transient := &tts.TransportError{Provider: "elevenlabs", Op: "list voices", Err: errors.New("connection reset")}

	tests := []struct {
		name      string
		fails     int32
		err       error
		retries   int
		wantErr   bool
		wantCalls int32
	}{
		{"no retries by default", 1, transient, 0, true, 1},
		{"recovers", 2, transient, 2, false, 3},
		{"gives up", 5, transient, 2, true, 3},
		{"unauthorized is final", 5, &tts.APIError{StatusCode: 401, Provider: "elevenlabs"}, 3, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &flakyLister{fails: tt.fails, err: tt.err}
			list, err := listVoicesWithRetry(context.Background(), l, tt.retries, time.Millisecond)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(list.Voices) != 1 {
				t.Errorf("voices = %v", list.Voices)
			}
			if got := l.calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestPrintVoices(t *testing.T) {
	var buf bytes.Buffer
	printVoices(&buf, []tts.Voice{
		{VoiceID: "abc", Name: "Rachel", Category: "premade", Description: strings.Repeat("calm ", 40)},
		{VoiceID: "def", Name: "Domi"},
	}, "abc", 40)

	out := buf.String()
	for _, want := range []string{"Rachel", "abc", "premade", "Domi", "2 voices"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, strings.Repeat("calm ", 40)) {
		t.Error("description was not truncated")
	}
}

func TestPlayerSpawner(t *testing.T) {
	t.Run("configured command", func(t *testing.T) {
		s, err := playerSpawner(config.PlayerConfig{Command: "mpv", Args: []string{"--no-video", "-"}})
		if err != nil {
			t.Fatal(err)
		}
		es, ok := s.(audio.ExecSpawner)
		if !ok || es.Command != "mpv" || len(es.Args) != 2 {
			t.Errorf("spawner = %+v", s)
		}
	})

	t.Run("built-in player", func(t *testing.T) {
		s, err := playerSpawner(config.PlayerConfig{Volume: 0.5})
		if err != nil {
			t.Fatal(err)
		}
		es, ok := s.(audio.ExecSpawner)
		if !ok {
			t.Fatalf("spawner = %T", s)
		}
		if strings.Join(es.Args, " ") != "player --volume 0.5" {
			t.Errorf("args = %q", es.Args)
		}
	})
}
