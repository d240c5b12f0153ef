package transfer

import (
	"context"
	"io"
)

// Credential is an opaque, already-authorized handle supplied by the caller.
// Only the SourceConnector knows how to use it.
type Credential any

// Source lists and reads files held by the source provider.
// Implementations must be safe for concurrent calls.
type Source interface {
	// List returns the files in folderID selected by filter.
	// An empty folder is an empty slice, not an error.
	List(ctx context.Context, folderID string, filter ContentTypeFilter) ([]FileDescriptor, error)

	// Open returns a single-pass stream of the file's bytes
	Open(ctx context.Context, id string) (io.ReadCloser, error)
}

// SourceConnector turns a request credential into a usable Source
type SourceConnector interface {
	Connect(ctx context.Context, cred Credential) (Source, error)
}

// Sink accepts streamed files and stores them durably.
// Implementations must be safe for concurrent calls.
type Sink interface {
	Write(ctx context.Context, path string, r io.Reader, contentType string, public bool) (Location, error)
}

// Slot is a task-exclusive staging area between a source read and a sink write
type Slot interface {
	io.Writer
	io.ReaderFrom

	// Reader returns a reader over everything staged so far
	Reader() (io.ReadCloser, error)

	// Size is the number of bytes staged
	Size() int64

	// Release deletes the staged bytes. Safe to call more than once.
	Release() error
}

// Stager hands out independent staging slots. Acquire must be safe for
// concurrent use.
type Stager interface {
	Acquire(ctx context.Context, hint string) (Slot, error)
}
