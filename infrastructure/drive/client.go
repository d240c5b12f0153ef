package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"media-relay/domain/transfer"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// FolderMimeType is the MIME type Drive uses for folders
const FolderMimeType = "application/vnd.google-apps.folder"

const listFields = "id, name, mimeType, size"

// DriveService defines the interface for Google Drive API operations
// This allows mocking the Google Drive API in tests
type DriveService interface {
	ListFiles(ctx context.Context, query string, fields string, orderBy string) ([]*drive.File, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// GoogleDriveService is the production implementation using the Google Drive API
type GoogleDriveService struct {
	service *drive.Service
}

// ListFiles lists every file matching the query, following page tokens
func (s *GoogleDriveService) ListFiles(ctx context.Context, query string, fields string, orderBy string) ([]*drive.File, error) {
	var files []*drive.File
	pageFields := googleapi.Field("nextPageToken, files(" + fields + ")")
	err := s.service.Files.List().
		Q(query).
		Fields(pageFields).
		OrderBy(orderBy).
		PageSize(1000).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *drive.FileList) error {
			files = append(files, page.Files...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Download opens the file's content stream
func (s *GoogleDriveService) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := s.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Client implements transfer.Source using Google Drive API
type Client struct {
	driveService DriveService
	orderBy      string
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithDriveService sets a custom drive service (for testing)
func WithDriveService(svc DriveService) ClientOption {
	return func(c *Client) {
		c.driveService = svc
	}
}

// WithOrderBy sets the listing sort order (Drive orderBy syntax)
func WithOrderBy(orderBy string) ClientOption {
	return func(c *Client) {
		c.orderBy = orderBy
	}
}

// NewClient creates a new Google Drive client
// If no drive service is provided, it builds a real one authorized by ts
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...ClientOption) (*Client, error) {
	c := &Client{orderBy: "name"}

	for _, opt := range opts {
		opt(c)
	}

	if c.driveService == nil {
		if ts == nil {
			return nil, fmt.Errorf("unable to create drive service: no token source")
		}
		srv, err := drive.NewService(ctx, option.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("unable to create drive service: %w", err)
		}
		c.driveService = &GoogleDriveService{service: srv}
	}

	return c, nil
}

// List implements transfer.Source
func (c *Client) List(ctx context.Context, folderID string, filter transfer.ContentTypeFilter) ([]transfer.FileDescriptor, error) {
	query := buildQuery(folderID, filter)
	files, err := c.driveService.ListFiles(ctx, query, listFields, c.orderBy)
	if err != nil {
		return nil, transfer.NewError(transfer.KindUpstreamQuery, "list", fmt.Errorf("failed to list files: %w", err))
	}

	result := make([]transfer.FileDescriptor, 0, len(files))
	for _, f := range files {
		if f == nil || f.MimeType == FolderMimeType {
			continue
		}
		// the query already filters, this guards against loose "contains" matches
		if f.MimeType != "" && !filter.Matches(f.MimeType) {
			continue
		}
		result = append(result, transfer.FileDescriptor{
			ID:          f.Id,
			Name:        f.Name,
			ContentType: f.MimeType,
			Size:        f.Size,
		})
	}
	return result, nil
}

// Open implements transfer.Source
func (c *Client) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	body, err := c.driveService.Download(ctx, id)
	if err != nil {
		return nil, transfer.NewError(transfer.KindUpstreamRead, "open", fmt.Errorf("failed to download %s: %w", id, err))
	}
	return &streamReader{ReadCloser: body}, nil
}

// streamReader tags mid-stream failures so a broken download is reported
// as an interruption rather than an open failure
type streamReader struct {
	io.ReadCloser
}

func (r *streamReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, transfer.NewError(transfer.KindStreamInterrupted, "read", err)
	}
	return n, err
}

// buildQuery renders the Drive search query for a folder and filter
func buildQuery(folderID string, filter transfer.ContentTypeFilter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s' in parents and trashed = false and mimeType != '%s'", escapeQuery(folderID), FolderMimeType)
	if len(filter.Patterns) > 0 {
		clauses := make([]string, 0, len(filter.Patterns))
		for _, p := range filter.Patterns {
			clauses = append(clauses, fmt.Sprintf("mimeType contains '%s'", escapeQuery(p)))
		}
		fmt.Fprintf(&b, " and (%s)", strings.Join(clauses, " or "))
	}
	return b.String()
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// Ensure Client implements transfer.Source
var _ transfer.Source = (*Client)(nil)
