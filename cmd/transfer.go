package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	apptransfer "media-relay/application/transfer"
	"media-relay/domain/transfer"
	"media-relay/infrastructure/blobstore"
	"media-relay/infrastructure/config"
	"media-relay/infrastructure/drive"
	"media-relay/infrastructure/staging"

	"github.com/spf13/cobra"
)

// AccessTokenEnv supplies an access token when --access-token is not given
const AccessTokenEnv = "MEDIA_RELAY_ACCESS_TOKEN"

var (
	transferDest        string
	transferConcurrency int
	transferAccessToken string
	transferJSON        bool
	transferPublic      bool
	transferMimeTypes   []string
)

var transferCmd = &cobra.Command{
	Use:   "transfer <folder-id-or-url>",
	Short: "Copy every matching file of a Drive folder into the bucket",
	Long: `Lists the Drive folder and copies each selected file into the configured
bucket under the destination prefix. Files are processed in parallel up
to the configured concurrency; one failed file never stops the others.

The Drive credential is, in order of preference: --access-token, the
MEDIA_RELAY_ACCESS_TOKEN environment variable, or the google.auth mode in
the config file (cached OAuth user token or service account key).

Interrupting the command (Ctrl-C) cancels files still in flight; they are
reported as cancelled.

Example:
  media-relay transfer 1AbCdEfGhIjKlMnOpQrStUvWxYz012345
  media-relay transfer https://drive.google.com/drive/folders/<id>?usp=sharing --dest sermons/2025
  media-relay transfer <id> --access-token "$(gcloud auth print-access-token)" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().StringVar(&transferDest, "dest", "", "Destination prefix in the bucket (defaults to sink.prefix, \"/\" for the bucket root)")
	transferCmd.Flags().IntVar(&transferConcurrency, "concurrency", 0, "Files transferred in parallel (defaults to transfer.concurrency)")
	transferCmd.Flags().StringVar(&transferAccessToken, "access-token", "", "OAuth access token for Drive")
	transferCmd.Flags().BoolVar(&transferJSON, "json", false, "Print the report as JSON")
	transferCmd.Flags().BoolVar(&transferPublic, "public", false, "Make written objects publicly readable (overrides sink.public)")
	transferCmd.Flags().StringSliceVar(&transferMimeTypes, "mime", nil, "MIME type patterns to copy (overrides source.mime_types)")
}

func runTransfer(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded; run 'media-relay setup' or pass --config")
	}

	if cmd.Flags().Changed("concurrency") {
		cfg.Transfer.Concurrency = transferConcurrency
	}
	if cmd.Flags().Changed("public") {
		cfg.Sink.Public = transferPublic
	}
	if cmd.Flags().Changed("mime") {
		cfg.Source.MimeTypes = transferMimeTypes
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cred, err := resolveCredential(ctx, cfg, transferAccessToken)
	if err != nil {
		return err
	}

	sink, err := openSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	stager, err := newStager(cfg, logger)
	if err != nil {
		return err
	}

	// keep stdout clean for the JSON report
	var progress io.Writer = os.Stdout
	if transferJSON {
		progress = os.Stderr
	}

	svc := apptransfer.NewService(
		drive.NewConnector(drive.WithOrderBy(cfg.Source.OrderBy)),
		sink,
		stager,
		ServiceOptions(cfg, logger),
		progress,
	)

	req := apptransfer.Request{
		FolderRef:         args[0],
		DestinationPrefix: transferDest,
		Credential:        cred,
	}
	return RunTransferWithDependencies(ctx, svc, req, os.Stdout, transferJSON)
}

// ServiceOptions maps the configuration onto coordinator options
func ServiceOptions(cfg *config.Config, logger *slog.Logger) apptransfer.Options {
	return apptransfer.Options{
		Concurrency:        cfg.Transfer.Concurrency,
		Filter:             transfer.ContentTypeFilter{Patterns: cfg.Source.MimeTypes},
		Public:             cfg.Sink.Public,
		DefaultPrefix:      cfg.Sink.Prefix,
		DefaultContentType: cfg.Transfer.DefaultContentType,
		OpenRetries:        cfg.Transfer.OpenRetries,
		Logger:             logger,
	}
}

// resolveCredential picks the Drive credential for this run
func resolveCredential(ctx context.Context, cfg *config.Config, accessToken string) (transfer.Credential, error) {
	if accessToken == "" {
		accessToken = os.Getenv(AccessTokenEnv)
	}
	if accessToken != "" {
		return accessToken, nil
	}

	switch cfg.Google.Auth {
	case config.AuthServiceAccount:
		ts, err := drive.ServiceAccountTokenSource(ctx, cfg.Google.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load service account: %w", err)
		}
		return ts, nil
	default:
		ts, err := drive.UserTokenSource(ctx, drive.OAuthConfig{
			CredentialsFile: cfg.Google.CredentialsFile,
			TokenFile:       cfg.Google.TokenFile,
			RedirectPort:    cfg.Google.RedirectPort,
			Output:          os.Stderr,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to authorize with Google: %w", err)
		}
		return ts, nil
	}
}

func openSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*blobstore.Sink, error) {
	opts := []blobstore.SinkOption{blobstore.WithLogger(logger)}
	if cfg.Sink.PublicBaseURL != "" {
		opts = append(opts, blobstore.WithPublicBaseURL(cfg.Sink.PublicBaseURL))
	}
	sink, err := blobstore.Open(ctx, cfg.Sink.BucketURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return sink, nil
}

func newStager(cfg *config.Config, logger *slog.Logger) (transfer.Stager, error) {
	if cfg.Staging.Mode == config.StagingMemory {
		return staging.NewMemoryStore(cfg.Staging.MemoryLimit, staging.WithLogger(logger)), nil
	}
	store, err := staging.NewDiskStore(cfg.Staging.Dir, staging.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Transferrer runs one folder transfer
type Transferrer interface {
	Transfer(ctx context.Context, req apptransfer.Request) (*transfer.Report, error)
}

// ErrFilesFailed is returned when the report holds at least one failure
var ErrFilesFailed = errors.New("some files failed to transfer")

// RunTransferWithDependencies runs the transfer command with injected dependencies (for testing)
func RunTransferWithDependencies(
	ctx context.Context,
	svc Transferrer,
	req apptransfer.Request,
	output io.Writer,
	asJSON bool,
) error {
	report, err := svc.Transfer(ctx, req)
	if err != nil {
		if asJSON {
			var batchErr *transfer.BatchError
			if errors.As(err, &batchErr) {
				_ = writeJSON(output, batchErr)
			}
		}
		return err
	}

	if asJSON {
		if err := writeJSON(output, report); err != nil {
			return err
		}
	} else {
		printReport(output, report)
	}

	if report.Failed() > 0 {
		return fmt.Errorf("%w: %d of %d", ErrFilesFailed, report.Failed(), report.Total())
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

func printReport(output io.Writer, report *transfer.Report) {
	fmt.Fprintln(output)
	if report.Total() == 0 {
		fmt.Fprintln(output, "No matching files found.")
		return
	}
	fmt.Fprintf(output, "Transfer complete: %d succeeded, %d failed\n", report.Succeeded(), report.Failed())
	for _, o := range report.Outcomes {
		if !o.OK() {
			continue
		}
		if o.Location.URL != "" {
			fmt.Fprintf(output, "  %s\n    %s\n", o.Name, o.Location.URL)
		} else {
			fmt.Fprintf(output, "  %s -> %s\n", o.Name, o.Location.Path)
		}
	}
	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Failed:")
		for _, o := range failures {
			fmt.Fprintf(output, "  %s: %s: %s\n", o.Name, o.Kind, o.Detail)
		}
	}
}
