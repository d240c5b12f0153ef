package staging

import "sync"

// DefaultBufferSize is the copy buffer size used when staging a file
const DefaultBufferSize = 256 * 1024

// BufferPool hands out reusable copy buffers so concurrent stagings don't
// each allocate their own.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a pool of size-byte buffers.
// If size is <= 0, DefaultBufferSize is used.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Get retrieves a buffer. Return it with Put once the copy is done.
func (bp *BufferPool) Get() *[]byte {
	return bp.pool.Get().(*[]byte)
}

// Put returns b to the pool
func (bp *BufferPool) Put(b *[]byte) {
	if b != nil {
		bp.pool.Put(b)
	}
}
