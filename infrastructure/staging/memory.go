package staging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"media-relay/domain/transfer"
)

// ErrCapacity is returned when a memory slot would grow past its limit
var ErrCapacity = errors.New("staging capacity exceeded")

// MemoryStore stages each transfer in its own in-memory buffer.
// A positive limit caps the bytes any single slot may hold.
type MemoryStore struct {
	limit int64
	options
}

// NewMemoryStore creates a memory store. limit <= 0 means unbounded.
func NewMemoryStore(limit int64, opts ...Option) *MemoryStore {
	return &MemoryStore{limit: limit, options: newOptions(opts)}
}

func (s *MemoryStore) Acquire(ctx context.Context, hint string) (transfer.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "memory slot acquired", "hint", hint)
	return &memSlot{limit: s.limit, buffers: s.buffers}, nil
}

var _ transfer.Stager = (*MemoryStore)(nil)

type memSlot struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int64
	released bool
	buffers  *BufferPool
}

func (s *memSlot) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return 0, transfer.NewError(transfer.KindStagingWrite, "stage", transfer.ErrSlotReleased)
	}
	if s.limit > 0 && int64(s.buf.Len())+int64(len(p)) > s.limit {
		room := int(s.limit) - s.buf.Len()
		n, _ := s.buf.Write(p[:room])
		return n, transfer.NewError(transfer.KindStagingWrite, "stage", ErrCapacity)
	}
	return s.buf.Write(p)
}

func (s *memSlot) ReadFrom(r io.Reader) (int64, error) {
	return copyInto(s, r, s.buffers)
}

func (s *memSlot) Reader() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, transfer.NewError(transfer.KindStagingWrite, "reopen", transfer.ErrSlotReleased)
	}
	return io.NopCloser(bytes.NewReader(s.buf.Bytes())), nil
}

func (s *memSlot) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.buf.Len())
}

func (s *memSlot) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.buf = bytes.Buffer{}
	return nil
}
