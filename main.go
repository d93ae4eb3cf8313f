// Package main provides the entry point for the voxline CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxline/internal/audio"
	"github.com/dgnsrekt/voxline/internal/config"
	"github.com/dgnsrekt/voxline/internal/tts"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool

	// cfg is loaded before any subcommand runs.
	cfg config.Config

	closeLog = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "voxline",
		Short: "Speak text out loud, one line at a time",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text out loud through %s, one line at a time.", keyword("ElevenLabs")),
		),
		SilenceErrors:    true,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}
)

// loadConfig reads the config file, overlays the environment and applies
// the global flags, then configures logging.
func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debug
	}

	closer, err := setupLog(cfg.Debug)
	if err != nil {
		return err
	}
	closeLog = closer
	return nil
}

// userMessage turns an error into the line shown to the user. Rejected
// credentials get a fixed message and failed playback shows the player's
// own diagnostics.
func userMessage(err error) string {
	var failed *audio.PlaybackFailedError
	switch {
	case errors.Is(err, tts.ErrUnauthorized):
		return tts.ErrUnauthorized.Error()
	case errors.As(err, &failed) && failed.Diagnostics != "":
		return failed.Diagnostics
	case errors.Is(err, tts.ErrNoAPIKey):
		return err.Error() + " (set ELEVENLABS_APIKEY)"
	case errors.Is(err, tts.ErrNoVoiceID):
		return err.Error() + " (set ELEVENLABS_VOICEID)"
	default:
		return err.Error()
	}
}

func main() {
	err := rootCmd.Execute()
	_ = closeLog()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), userMessage(err))
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs to "+logFileName)

	rootCmd.AddCommand(sayCmd, playCmd, voicesCmd, serveCmd, configCmd, manCmd, playerCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "voxline")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "voxline")}, dirs...)
	}

	if c := os.Getenv("VOXLINE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("voxline")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], "voxline.yml")
}
