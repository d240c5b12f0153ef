package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"media-relay/infrastructure/config"

	"github.com/spf13/cobra"
)

// DefaultOutput is the default output writer for config commands
var DefaultOutput io.Writer = os.Stdout

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change configuration settings",
	Long: `Show and change individual settings in the configuration file.

Examples:
  media-relay config list
  media-relay config get sink.bucket_url
  media-relay config set transfer.concurrency 8
  media-relay config set source.mime_types audio/,application/octet-stream`,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigListWithDependencies(cfg, cfgFile, DefaultOutput)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigGetWithDependencies(cfg, cfgFile, args[0], DefaultOutput)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and save the file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigSetWithDependencies(cfg, cfgFile, args[0], args[1], DefaultOutput)
	},
}

func requireConfig() (*config.Config, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("config file not found. Run 'media-relay setup' first")
	}
	return cfg, nil
}

// RunConfigListWithDependencies prints every setting as a table
func RunConfigListWithDependencies(cfg *config.Config, configPath string, out io.Writer) error {
	mgr := config.NewManager(cfg, configPath)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, e := range mgr.List() {
		fmt.Fprintf(w, "%s\t%s\n", e.Key, e.Value)
	}
	return w.Flush()
}

// RunConfigGetWithDependencies prints the value of key
func RunConfigGetWithDependencies(cfg *config.Config, configPath, key string, out io.Writer) error {
	value, err := config.NewManager(cfg, configPath).Get(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

// RunConfigSetWithDependencies updates key and saves the configuration
func RunConfigSetWithDependencies(cfg *config.Config, configPath, key, value string, out io.Writer) error {
	if err := config.NewManager(cfg, configPath).Set(key, value); err != nil {
		return err
	}
	fmt.Fprintf(out, "Set %s = %s\n", key, value)
	return nil
}
