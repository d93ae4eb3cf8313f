package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"
)

// Supported input formats for Play.
const (
	FormatMP3 = "mp3"
	FormatPCM = "pcm"
)

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	Format     string  // mp3 or pcm (signed 16-bit little endian)
	SampleRate int     // PCM only; MP3 uses the stream's own rate
	Channels   int     // PCM only; MP3 decodes to stereo
	Volume     float64 // 0.0 to 1.0
	BufferSize time.Duration
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		Format:     FormatMP3,
		SampleRate: 44100,
		Channels:   1, // Mono for TTS
		Volume:     1.0,
		BufferSize: 100 * time.Millisecond,
	}
}

// validateConfig validates the player configuration.
func validateConfig(config PlayerConfig) error {
	switch config.Format {
	case FormatMP3:
	case FormatPCM:
		switch config.SampleRate {
		case 8000, 16000, 22050, 24000, 44100, 48000:
		default:
			return fmt.Errorf("unsupported PCM sample rate %d Hz", config.SampleRate)
		}
		if config.Channels != 1 && config.Channels != 2 {
			return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
		}
	default:
		return fmt.Errorf("unsupported audio format %q", config.Format)
	}

	if config.Volume < 0.0 || config.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", config.Volume)
	}
	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// Play decodes r and plays it on the default output device, returning once
// every sample has been handed to the device. Only one oto context may exist
// per process, so Play is meant to run once inside a player process.
func Play(r io.Reader, config PlayerConfig) error {
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	pcm, sampleRate, channels, err := decoderFor(r, config)
	if err != nil {
		return err
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	player := ctx.NewPlayer(pcm)
	defer player.Close()

	player.SetVolume(config.Volume)
	player.Play()

	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	if err := player.Err(); err != nil {
		return fmt.Errorf("playback error: %w", err)
	}

	// Let the device drain what oto already handed over.
	time.Sleep(config.BufferSize)
	return nil
}

// decoderFor returns a PCM reader for r plus its sample rate and channels.
func decoderFor(r io.Reader, config PlayerConfig) (io.Reader, int, int, error) {
	if config.Format == FormatPCM {
		return r, config.SampleRate, config.Channels, nil
	}

	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode error: %w", err)
	}
	return d, d.SampleRate(), 2, nil
}
