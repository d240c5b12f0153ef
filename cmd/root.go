package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"media-relay/infrastructure/config"
	"media-relay/infrastructure/logging"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "media-relay",
	Short: "Copy media files from a Google Drive folder into a storage bucket",
	Long: `media-relay copies every audio file in a Google Drive folder into a
cloud storage bucket:

  - List the folder (folder ID or share URL)
  - Stream each file through a local staging area
  - Write it to the bucket under a destination prefix
  - Report a per-file result

Example:
  media-relay transfer https://drive.google.com/drive/folders/<id> --dest sermons/2025`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error (overrides log.level)")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = "config/config.yaml"
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		// Config file is optional for some commands (like help and setup)
		cfg = nil
	}
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// newLogger builds the diagnostic logger. Logs go to stderr so stdout
// stays usable for --json output.
func newLogger(c *config.Config) (*slog.Logger, error) {
	name := c.Log.Level
	if logLevel != "" {
		name = logLevel
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return logging.New(os.Stderr, level, c.Log.Format)
}
