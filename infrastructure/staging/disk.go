package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"media-relay/domain/transfer"
	"media-relay/infrastructure/logging"

	"github.com/google/uuid"
)

// DefaultDirName is the directory created under os.TempDir when no staging
// directory is configured
const DefaultDirName = "media-relay-staging"

// Option configures a store
type Option func(*options)

type options struct {
	buffers *BufferPool
	logger  *slog.Logger
}

// WithBufferPool shares a copy buffer pool across stores
func WithBufferPool(p *BufferPool) Option {
	return func(o *options) {
		o.buffers = p
	}
}

// WithLogger sets the logger used for slot lifecycle events
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.buffers == nil {
		o.buffers = NewBufferPool(DefaultBufferSize)
	}
	o.logger = logging.OrDisabled(o.logger)
	return o
}

// DiskStore stages each transfer in its own temporary file
type DiskStore struct {
	dir string
	options
}

// NewDiskStore creates a store rooted at dir, creating it if needed.
// An empty dir uses DefaultDirName under the system temp directory.
func NewDiskStore(dir string, opts ...Option) (*DiskStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), DefaultDirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &DiskStore{dir: dir, options: newOptions(opts)}, nil
}

// Dir returns the staging directory
func (s *DiskStore) Dir() string {
	return s.dir
}

// Acquire creates a fresh staging file. The hint only decorates the file
// name; uniqueness comes from a random UUID.
func (s *DiskStore) Acquire(ctx context.Context, hint string) (transfer.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := uuid.NewString() + "-" + sanitizeHint(hint)
	p := filepath.Join(s.dir, name)
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, transfer.NewError(transfer.KindStagingWrite, "acquire", err)
	}
	s.logger.DebugContext(ctx, "staging slot acquired", "path", p)
	return &diskSlot{f: f, path: p, buffers: s.buffers, logger: s.logger}, nil
}

var _ transfer.Stager = (*DiskStore)(nil)

type diskSlot struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	size     int64
	released bool
	buffers  *BufferPool
	logger   *slog.Logger
}

func (s *diskSlot) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return 0, transfer.NewError(transfer.KindStagingWrite, "stage", transfer.ErrSlotReleased)
	}
	n, err := s.f.Write(p)
	s.size += int64(n)
	if err != nil {
		return n, transfer.NewError(transfer.KindStagingWrite, "stage", err)
	}
	return n, nil
}

func (s *diskSlot) ReadFrom(r io.Reader) (int64, error) {
	return copyInto(s, r, s.buffers)
}

func (s *diskSlot) Reader() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, transfer.NewError(transfer.KindStagingWrite, "reopen", transfer.ErrSlotReleased)
	}
	return io.NopCloser(io.NewSectionReader(s.f, 0, s.size)), nil
}

func (s *diskSlot) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *diskSlot) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	closeErr := s.f.Close()
	rmErr := os.Remove(s.path)
	if errors.Is(rmErr, fs.ErrNotExist) {
		rmErr = nil
	}
	s.logger.Debug("staging slot released", "path", s.path, "bytes", s.size)
	return errors.Join(closeErr, rmErr)
}

// writerOnly hides ReadFrom so io.CopyBuffer uses the pooled buffer
type writerOnly struct {
	io.Writer
}

func copyInto(w io.Writer, r io.Reader, buffers *BufferPool) (int64, error) {
	buf := buffers.Get()
	defer buffers.Put(buf)
	return io.CopyBuffer(writerOnly{w}, r, *buf)
}

func sanitizeHint(hint string) string {
	hint = filepath.Base(hint)
	hint = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, hint)
	if len(hint) > 64 {
		hint = hint[len(hint)-64:]
	}
	if hint == "" || hint == "." {
		return "file"
	}
	return hint
}
