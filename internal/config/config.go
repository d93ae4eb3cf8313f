// Package config holds voxline's settings. Values come from, in increasing
// precedence: built-in defaults, the YAML config file (via viper) and the
// environment (via caarlos0/env). Command-line flags are applied on top by
// the caller.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dgnsrekt/voxline/internal/text"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Config contains all voxline configuration options.
type Config struct {
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs" envPrefix:"ELEVENLABS_"`
	Fallback   FallbackConfig   `mapstructure:"fallback" envPrefix:"VOXLINE_FALLBACK_"`
	Text       TextConfig       `mapstructure:"text" envPrefix:"VOXLINE_TEXT_"`
	Player     PlayerConfig     `mapstructure:"player" envPrefix:"VOXLINE_PLAYER_"`
	Cache      CacheConfig      `mapstructure:"cache" envPrefix:"VOXLINE_CACHE_"`
	Server     ServerConfig     `mapstructure:"server" envPrefix:"VOXLINE_SERVER_"`

	// ActionTimeout bounds one generate-and-play cycle. Zero disables it.
	ActionTimeout time.Duration `mapstructure:"action_timeout" env:"VOXLINE_ACTION_TIMEOUT"`

	Debug bool `mapstructure:"debug" env:"DEBUG_MODE"`
}

// ElevenLabsConfig contains the remote voice settings. The environment
// names match the ones the hosted bot used.
type ElevenLabsConfig struct {
	APIKey          string  `mapstructure:"api_key" env:"APIKEY"`
	VoiceID         string  `mapstructure:"voice_id" env:"VOICEID"`
	Stability       float64 `mapstructure:"stability" env:"VOICE_STABILITY"`
	SimilarityBoost float64 `mapstructure:"similarity_boost" env:"VOICE_SIMILARITY_BOOST"`
	Model           string  `mapstructure:"model" env:"VOICE_MODEL"`
	OutputFormat    string  `mapstructure:"output_format" env:"OUTPUT_FORMAT"`
	BaseURL         string  `mapstructure:"base_url" env:"BASE_URL"`
}

// FallbackConfig contains the Google Translate fallback settings.
type FallbackConfig struct {
	// Enabled retries a failed ElevenLabs request through Google.
	Enabled bool `mapstructure:"enabled" env:"ENABLED"`

	// OnUnauthorized also falls back on a rejected API key.
	OnUnauthorized bool `mapstructure:"on_unauthorized" env:"ON_UNAUTHORIZED"`

	Language          string `mapstructure:"language" env:"LANGUAGE"`
	Host              string `mapstructure:"host" env:"HOST"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
}

// TextConfig contains text normalization settings.
type TextConfig struct {
	// Language numbers are spelled in (fr or en)
	Language string `mapstructure:"language" env:"LANGUAGE"`

	// ReplacementsFile is a JSON object of case-insensitive replacements.
	ReplacementsFile string `mapstructure:"replacements_file" env:"REPLACEMENTS_FILE"`

	// Watch reloads ReplacementsFile when it changes.
	Watch bool `mapstructure:"watch" env:"WATCH"`
}

// PlayerConfig selects the playback executable. An empty Command runs
// voxline's own player subcommand.
type PlayerConfig struct {
	Command     string        `mapstructure:"command" env:"COMMAND"`
	Args        []string      `mapstructure:"args" env:"ARGS" envSeparator:" "`
	GracePeriod time.Duration `mapstructure:"grace_period" env:"GRACE_PERIOD"`
	Volume      float64       `mapstructure:"volume" env:"VOLUME"`
}

// CacheConfig contains the fallback clip cache settings.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled" env:"ENABLED"`

	// Dir defaults to the user data directory when empty.
	Dir       string        `mapstructure:"dir" env:"DIR"`
	MaxSizeMB int           `mapstructure:"max_size" env:"MAX_SIZE"`
	TTL       time.Duration `mapstructure:"ttl" env:"TTL"`
}

// ServerConfig contains the HTTP surface settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" env:"ADDR"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		ElevenLabs: ElevenLabsConfig{
			Stability:       0.5,
			SimilarityBoost: 0.5,
			Model:           "eleven_multilingual_v1",
			OutputFormat:    "mp3_44100_128",
			BaseURL:         "https://api.elevenlabs.io/v1",
		},
		Fallback: FallbackConfig{
			Enabled:           true,
			OnUnauthorized:    false,
			Language:          "fr",
			Host:              "https://translate.google.com",
			RequestsPerMinute: 50,
		},
		Text: TextConfig{
			Language: "fr",
			Watch:    true,
		},
		Player: PlayerConfig{
			GracePeriod: 500 * time.Millisecond,
			Volume:      1.0,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MaxSizeMB: 64,
			TTL:       7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7878",
		},
	}
}

// Load builds a Config from the defaults, the file settings held by v (may
// be nil) and the environment, then validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	if v != nil {
		if err := v.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.ElevenLabs.Stability < 0 || c.ElevenLabs.Stability > 1 {
		errs = append(errs, fmt.Errorf("elevenlabs stability must be between 0.0 and 1.0, got %.2f", c.ElevenLabs.Stability))
	}
	if c.ElevenLabs.SimilarityBoost < 0 || c.ElevenLabs.SimilarityBoost > 1 {
		errs = append(errs, fmt.Errorf("elevenlabs similarity_boost must be between 0.0 and 1.0, got %.2f", c.ElevenLabs.SimilarityBoost))
	}

	lang, err := text.ParseLanguage(c.Text.Language)
	if err != nil {
		errs = append(errs, fmt.Errorf("text language: %w", err))
	} else {
		c.Text.Language = lang
	}

	if _, err := language.Parse(c.Fallback.Language); err != nil {
		errs = append(errs, fmt.Errorf("fallback language %q is not a language code", c.Fallback.Language))
	}
	if c.Fallback.RequestsPerMinute < 1 {
		errs = append(errs, fmt.Errorf("fallback requests_per_minute must be at least 1, got %d", c.Fallback.RequestsPerMinute))
	}

	if c.Player.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("player grace_period cannot be negative, got %v", c.Player.GracePeriod))
	}
	if c.Player.Volume < 0 || c.Player.Volume > 1 {
		errs = append(errs, fmt.Errorf("player volume must be between 0.0 and 1.0, got %.2f", c.Player.Volume))
	}

	if c.Cache.Enabled && (c.Cache.MaxSizeMB < 1 || c.Cache.MaxSizeMB > 10000) {
		errs = append(errs, fmt.Errorf("cache max_size must be between 1 and 10000 MB, got %d", c.Cache.MaxSizeMB))
	}

	if c.ActionTimeout < 0 {
		errs = append(errs, fmt.Errorf("action_timeout cannot be negative, got %v", c.ActionTimeout))
	}

	return errors.Join(errs...)
}
