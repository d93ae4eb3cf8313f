package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# ElevenLabs voice. The API key is best kept in ELEVENLABS_APIKEY.
elevenlabs:
  # api_key: ""
  voice_id: ""
  stability: 0.5
  similarity_boost: 0.5
  model: "eleven_multilingual_v1"
  output_format: "mp3_44100_128"

# Google Translate voice, used by --fallback and when ElevenLabs fails
fallback:
  enabled: true
  # also fall back when the API key is rejected
  on_unauthorized: false
  language: "fr"
  requests_per_minute: 50

# Text rewriting before synthesis
text:
  # language numbers are spelled in: fr or en
  language: "fr"
  # JSON object of case-insensitive replacements
  # replacements_file: "~/.config/voxline/replacements.json"
  # reload the replacements file when it changes
  watch: true

# Playback executable: reads audio on stdin, diagnostics on stderr.
# Empty means voxline's built-in player.
player:
  command: ""
  args: []
  grace_period: "500ms"
  volume: 1.0

# Disk cache for fallback clips
cache:
  enabled: true
  # dir: "~/.local/share/voxline/cache"
  max_size: 64
  ttl: "168h"

# HTTP surface for "voxline serve"
server:
  addr: "127.0.0.1:7878"

# Upper bound for one generate-and-play cycle (0 disables)
action_timeout: "0s"

debug: false
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the voxline config file",
	Long:    paragraph(fmt.Sprintf("\n%s the voxline config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("voxline config\nvoxline config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// The file may not parse yet; editing it must still work.
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return nil
	},
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("voxline", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
