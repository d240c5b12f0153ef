package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"media-relay/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command asks for the destination bucket, how to authenticate with
Google Drive, and how files should be transferred. Every other setting
keeps its default and can be changed later with 'media-relay config set'.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = "config/config.yaml"
	}
	return RunSetupWithPrompter(DefaultPrompter, path)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return nil
		}
	}

	fmt.Println("Welcome to media-relay setup!")
	fmt.Println()

	cfg := config.Default()

	if err := promptSink(prompter, cfg); err != nil {
		return err
	}

	if err := promptGoogle(prompter, cfg); err != nil {
		return err
	}

	if err := promptTransfer(prompter, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to %s\n", configPath)
	if cfg.Google.Auth == config.AuthOAuth {
		fmt.Println("Run 'media-relay auth' to authorize Google Drive access.")
	}
	return nil
}

func promptSink(prompter Prompter, cfg *config.Config) error {
	bucket, err := prompter.Input("Bucket URL (gs://bucket, s3://bucket, file:///path)?", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if bucket == "" {
		return fmt.Errorf("bucket URL is required")
	}
	cfg.Sink.BucketURL = bucket

	prefix, err := prompter.Input("Destination prefix inside the bucket?", config.DefaultSinkPrefix)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if prefix != "" {
		cfg.Sink.Prefix = prefix
	}

	public, err := prompter.Confirm("Make transferred files publicly readable?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Sink.Public = public

	return nil
}

func promptGoogle(prompter Prompter, cfg *config.Config) error {
	serviceAccount, err := prompter.Confirm("Use a service account key instead of your Google account?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if serviceAccount {
		cfg.Google.Auth = config.AuthServiceAccount
	}

	credentials, err := prompter.Input("Path to Google credentials file?", config.DefaultCredentials)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if credentials != "" {
		cfg.Google.CredentialsFile = credentials
	}

	return nil
}

func promptTransfer(prompter Prompter, cfg *config.Config) error {
	concurrency, err := prompter.Input("How many files should transfer in parallel?", strconv.Itoa(config.DefaultConcurrency))
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if concurrency != "" {
		n, err := strconv.Atoi(concurrency)
		if err != nil || n < 1 {
			return fmt.Errorf("concurrency must be a positive number, got %q", concurrency)
		}
		cfg.Transfer.Concurrency = n
	}

	binary, err := prompter.Confirm("Also copy files typed application/octet-stream?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if binary {
		cfg.Source.MimeTypes = []string{"audio/", "application/octet-stream"}
	}

	memory, err := prompter.Confirm("Stage files in memory instead of a temp directory?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if memory {
		cfg.Staging.Mode = config.StagingMemory
	}

	return nil
}
