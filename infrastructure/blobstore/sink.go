package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"media-relay/domain/transfer"
	"media-relay/infrastructure/logging"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// GCSPublicBaseURL is where public objects of a gs:// bucket are served
const GCSPublicBaseURL = "https://storage.googleapis.com"

// Sink writes transferred files into a gocloud blob bucket
type Sink struct {
	bucket        *blob.Bucket
	baseURL       string // scheme://bucket used for non-public locations
	publicBaseURL string
	bufferSize    int
	log           *slog.Logger
}

// SinkOption configures a Sink
type SinkOption func(*Sink)

// WithLogger sets the sink's logger
func WithLogger(l *slog.Logger) SinkOption {
	return func(s *Sink) {
		s.log = l
	}
}

// WithPublicBaseURL sets the URL prefix reported for public objects
func WithPublicBaseURL(u string) SinkOption {
	return func(s *Sink) {
		s.publicBaseURL = strings.TrimSuffix(u, "/")
	}
}

// WithBufferSize sets the upload chunk size passed to the driver
func WithBufferSize(n int) SinkOption {
	return func(s *Sink) {
		s.bufferSize = n
	}
}

// WithBaseURL sets the URL prefix reported for private objects
func WithBaseURL(u string) SinkOption {
	return func(s *Sink) {
		s.baseURL = strings.TrimSuffix(u, "/")
	}
}

// NewSink wraps an already opened bucket
func NewSink(b *blob.Bucket, opts ...SinkOption) *Sink {
	s := &Sink{bucket: b}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDisabled(s.log)
	return s
}

// Open opens the bucket at bucketURL (gs://, s3://, file://, mem://).
// For gs:// buckets the public base URL defaults to storage.googleapis.com.
func Open(ctx context.Context, bucketURL string, opts ...SinkOption) (*Sink, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bucket url %q: %w", bucketURL, err)
	}
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("unable to open bucket %q: %w", bucketURL, err)
	}
	defaults := []SinkOption{WithBaseURL(u.Scheme + "://" + u.Host + u.Path)}
	if u.Scheme == "gs" {
		defaults = append(defaults, WithPublicBaseURL(GCSPublicBaseURL+"/"+u.Host))
	}
	return NewSink(b, append(defaults, opts...)...), nil
}

// Close closes the underlying bucket
func (s *Sink) Close() error {
	return s.bucket.Close()
}

// Write implements transfer.Sink. The content is streamed to the bucket;
// an existing object at path is overwritten.
func (s *Sink) Write(ctx context.Context, path string, r io.Reader, contentType string, public bool) (transfer.Location, error) {
	s.log.DebugContext(ctx, "write object", "path", path, "contentType", contentType, "public", public)
	opts := &blob.WriterOptions{
		ContentType: contentType,
		BufferSize:  s.bufferSize,
		BeforeWrite: func(as func(any) bool) error {
			if public {
				makePublic(as)
			}
			return nil
		},
	}
	// cancelling the writer's context aborts the upload instead of committing
	// a partial object
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := s.bucket.NewWriter(wctx, path, opts)
	if err != nil {
		return transfer.Location{}, transfer.NewError(transfer.KindUpstreamWrite, "write", err)
	}
	n, writeErr := w.ReadFrom(r)
	if writeErr != nil {
		cancel()
	}
	closeErr := w.Close()
	if writeErr != nil {
		return transfer.Location{}, transfer.NewError(transfer.KindUpstreamWrite, "write", writeErr)
	}
	if closeErr != nil {
		return transfer.Location{}, transfer.NewError(transfer.KindUpstreamWrite, "commit", closeErr)
	}
	s.log.DebugContext(ctx, "object written", "path", path, "bytes", n)
	return transfer.Location{Path: path, URL: s.url(path, public)}, nil
}

// makePublic applies a public-read ACL on drivers that support one
func makePublic(as func(any) bool) {
	var gw *storage.Writer
	if as(&gw) {
		gw.PredefinedACL = "publicRead"
		return
	}
	var put *s3.PutObjectInput
	if as(&put) {
		put.ACL = s3types.ObjectCannedACLPublicRead
	}
}

func (s *Sink) url(path string, public bool) string {
	base := s.baseURL
	if public && s.publicBaseURL != "" {
		base = s.publicBaseURL
	}
	if base == "" {
		return ""
	}
	return base + "/" + escapePath(path)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

var _ transfer.Sink = (*Sink)(nil)
