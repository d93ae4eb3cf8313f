package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxline/internal/audio"
	"github.com/dgnsrekt/voxline/internal/cache"
	"github.com/dgnsrekt/voxline/internal/config"
	"github.com/dgnsrekt/voxline/internal/queue"
	"github.com/dgnsrekt/voxline/internal/text"
	"github.com/dgnsrekt/voxline/internal/tts"
	"github.com/dgnsrekt/voxline/internal/voice"
	gap "github.com/muesli/go-app-paths"
)

// app wires the configured voices, the playback sink and the queue.
type app struct {
	handler    *voice.Handler
	elevenlabs *tts.ElevenLabs
	google     *tts.Google

	store   *cache.Store
	watcher *text.Watcher
}

// appOptions are per-command overrides of the loaded config.
type appOptions struct {
	noFallback bool

	// quietQueue keeps failed actions out of the log; the command reports
	// them itself.
	quietQueue bool
}

func newApp(ctx context.Context, c config.Config, opts appOptions) (*app, error) {
	a := &app{}

	spawner, err := playerSpawner(c.Player)
	if err != nil {
		return nil, err
	}
	sink := audio.NewSink(spawner, log.Default())

	normalizer, err := text.NewNormalizer(c.Text.Language, nil, log.Default())
	if err != nil {
		return nil, err
	}
	if c.Text.ReplacementsFile != "" {
		if c.Text.Watch {
			a.watcher, err = text.Watch(c.Text.ReplacementsFile, normalizer, log.Default())
			if err != nil {
				log.Warn("Could not watch replacements file", "path", c.Text.ReplacementsFile, "error", err)
			}
		}
		if a.watcher == nil {
			if err := text.LoadInto(normalizer, c.Text.ReplacementsFile, log.Default()); err != nil {
				log.Warn("Could not load replacements file", "error", err)
			}
		}
	}

	a.elevenlabs = newElevenLabs(c.ElevenLabs)

	googleCfg := tts.GoogleConfig{
		Host:              c.Fallback.Host,
		Language:          c.Fallback.Language,
		RequestsPerMinute: c.Fallback.RequestsPerMinute,
		Logger:            log.Default(),
	}
	if c.Cache.Enabled {
		a.store, err = openCache(c.Cache)
		if err != nil {
			// Synthesis works without the cache.
			log.Warn("Cache disabled", "error", err)
		} else {
			googleCfg.Cache = a.store
		}
	}
	a.google = tts.NewGoogle(googleCfg)

	qlog := log.Default()
	if opts.quietQueue && !c.Debug {
		qlog = log.Default().With()
		qlog.SetLevel(log.FatalLevel)
	}
	q := queue.NewActionQueue(queue.WithContext(ctx), queue.WithLogger(qlog))
	a.handler = voice.NewHandler(q, sink,
		voice.WithSpeaker(a.elevenlabs),
		voice.WithFallback(a.google, c.Fallback.Language),
		voice.WithAutoFallback(c.Fallback.Enabled && !opts.noFallback, c.Fallback.OnUnauthorized),
		voice.WithNormalizer(normalizer),
		voice.WithTimeout(c.ActionTimeout),
		voice.WithLogger(log.Default()),
	)
	return a, nil
}

// Close waits for queued speech to finish, then releases the cache and the
// replacements watcher.
func (a *app) Close(ctx context.Context) error {
	err := a.handler.Close(ctx)
	if a.watcher != nil {
		err = errors.Join(err, a.watcher.Close())
	}
	if a.store != nil {
		err = errors.Join(err, a.store.Close())
	}
	return err
}

func newElevenLabs(c config.ElevenLabsConfig) *tts.ElevenLabs {
	return tts.NewElevenLabs(tts.ElevenLabsConfig{
		APIKey:  c.APIKey,
		VoiceID: c.VoiceID,
		ModelID: c.Model,
		Settings: tts.VoiceSettings{
			Stability:       c.Stability,
			SimilarityBoost: c.SimilarityBoost,
		},
		OutputFormat: c.OutputFormat,
		BaseURL:      c.BaseURL,
		Logger:       log.Default(),
	})
}

// playerSpawner returns the configured playback command, or voxline's own
// player subcommand when none is set.
func playerSpawner(p config.PlayerConfig) (audio.Spawner, error) {
	if p.Command != "" {
		return audio.ExecSpawner{
			Command:     p.Command,
			Args:        p.Args,
			GracePeriod: p.GracePeriod,
		}, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("unable to locate voxline executable: %w", err)
	}
	return audio.ExecSpawner{
		Command:     exe,
		Args:        []string{"player", "--volume", strconv.FormatFloat(p.Volume, 'f', -1, 64)},
		GracePeriod: p.GracePeriod,
	}, nil
}

func openCache(c config.CacheConfig) (*cache.Store, error) {
	dir := c.Dir
	if dir == "" {
		dirs, err := gap.NewScope(gap.User, "voxline").DataDirs()
		if err != nil {
			return nil, fmt.Errorf("could not get data directory: %w", err)
		}
		dir = filepath.Join(dirs[0], "cache")
	}

	cc := cache.DefaultConfig(dir)
	cc.Capacity = int64(c.MaxSizeMB) * 1024 * 1024
	cc.TTL = c.TTL
	cc.Logger = log.Default()
	return cache.Open(cc)
}
