package cmd

import (
	"fmt"
	"os"

	"media-relay/infrastructure/config"
	"media-relay/infrastructure/drive"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize read-only access to Google Drive",
	Long: `Opens the Google consent page in a browser and stores the resulting
token in google.token_file. Later transfers refresh the stored token
automatically.

Only needed when google.auth is "oauth".`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded; run 'media-relay setup' first")
	}
	if cfg.Google.Auth != config.AuthOAuth {
		return fmt.Errorf("google.auth is %q; the browser flow only applies to %q", cfg.Google.Auth, config.AuthOAuth)
	}

	_, err := drive.Authorize(cmd.Context(), drive.OAuthConfig{
		CredentialsFile: cfg.Google.CredentialsFile,
		TokenFile:       cfg.Google.TokenFile,
		RedirectPort:    cfg.Google.RedirectPort,
		Output:          os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	fmt.Printf("Token saved to %s\n", cfg.Google.TokenFile)
	return nil
}
