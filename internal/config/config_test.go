package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func fileConfig(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	return v
}

func TestDefault(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load(nil) error = %v", err)
	}

	if cfg.ElevenLabs.Model != "eleven_multilingual_v1" {
		t.Errorf("Model = %q", cfg.ElevenLabs.Model)
	}
	if cfg.ElevenLabs.Stability != 0.5 || cfg.ElevenLabs.SimilarityBoost != 0.5 {
		t.Errorf("voice settings = %v/%v, want 0.5/0.5", cfg.ElevenLabs.Stability, cfg.ElevenLabs.SimilarityBoost)
	}
	if !cfg.Fallback.Enabled || cfg.Fallback.OnUnauthorized {
		t.Errorf("fallback = %+v, want enabled and not on unauthorized", cfg.Fallback)
	}
	if cfg.Text.Language != "fr" {
		t.Errorf("text language = %q", cfg.Text.Language)
	}
	if cfg.ActionTimeout != 0 {
		t.Errorf("ActionTimeout = %v, want disabled", cfg.ActionTimeout)
	}
	if cfg.Debug {
		t.Error("debug should be off by default")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("ELEVENLABS_APIKEY", "sk-test")
	t.Setenv("ELEVENLABS_VOICEID", "voice-1")
	t.Setenv("ELEVENLABS_VOICE_STABILITY", "0.3")
	t.Setenv("ELEVENLABS_VOICE_SIMILARITY_BOOST", "0.9")
	t.Setenv("ELEVENLABS_VOICE_MODEL", "eleven_turbo_v2_5")
	t.Setenv("DEBUG_MODE", "1")
	t.Setenv("VOXLINE_PLAYER_ARGS", "-q -")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	el := cfg.ElevenLabs
	if el.APIKey != "sk-test" || el.VoiceID != "voice-1" {
		t.Errorf("credentials = %q/%q", el.APIKey, el.VoiceID)
	}
	if el.Stability != 0.3 || el.SimilarityBoost != 0.9 {
		t.Errorf("voice settings = %v/%v", el.Stability, el.SimilarityBoost)
	}
	if el.Model != "eleven_turbo_v2_5" {
		t.Errorf("Model = %q", el.Model)
	}
	if !cfg.Debug {
		t.Error("DEBUG_MODE=1 should enable debug")
	}
	if len(cfg.Player.Args) != 2 || cfg.Player.Args[0] != "-q" {
		t.Errorf("player args = %q", cfg.Player.Args)
	}
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	v := fileConfig(t, `
elevenlabs:
  voice_id: from-file
  stability: 0.7
fallback:
  enabled: false
  language: en
text:
  language: en-GB
  replacements_file: ~/words.json
cache:
  ttl: 2h
action_timeout: 45s
`)
	t.Setenv("ELEVENLABS_VOICEID", "from-env")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ElevenLabs.VoiceID != "from-env" {
		t.Errorf("environment should win over file, VoiceID = %q", cfg.ElevenLabs.VoiceID)
	}
	if cfg.ElevenLabs.Stability != 0.7 {
		t.Errorf("Stability = %v, want file value 0.7", cfg.ElevenLabs.Stability)
	}
	if cfg.ElevenLabs.SimilarityBoost != 0.5 {
		t.Errorf("unset keys keep defaults, SimilarityBoost = %v", cfg.ElevenLabs.SimilarityBoost)
	}
	if cfg.Fallback.Enabled {
		t.Error("file should disable fallback")
	}
	if cfg.Text.Language != "en" {
		t.Errorf("text language = %q, want normalized en", cfg.Text.Language)
	}
	if cfg.Text.ReplacementsFile != "~/words.json" {
		t.Errorf("ReplacementsFile = %q", cfg.Text.ReplacementsFile)
	}
	if cfg.Cache.TTL != 2*time.Hour {
		t.Errorf("cache TTL = %v", cfg.Cache.TTL)
	}
	if cfg.ActionTimeout != 45*time.Second {
		t.Errorf("ActionTimeout = %v", cfg.ActionTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"stability too high", func(c *Config) { c.ElevenLabs.Stability = 1.5 }, "stability"},
		{"negative similarity", func(c *Config) { c.ElevenLabs.SimilarityBoost = -0.1 }, "similarity_boost"},
		{"unsupported text language", func(c *Config) { c.Text.Language = "de" }, "text language"},
		{"bad fallback language", func(c *Config) { c.Fallback.Language = "!!" }, "fallback language"},
		{"zero rate", func(c *Config) { c.Fallback.RequestsPerMinute = 0 }, "requests_per_minute"},
		{"loud player", func(c *Config) { c.Player.Volume = 2 }, "volume"},
		{"cache size", func(c *Config) { c.Cache.MaxSizeMB = 0 }, "max_size"},
		{"cache disabled ignores size", func(c *Config) { c.Cache.Enabled = false; c.Cache.MaxSizeMB = 0 }, ""},
		{"negative timeout", func(c *Config) { c.ActionTimeout = -time.Second }, "action_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
