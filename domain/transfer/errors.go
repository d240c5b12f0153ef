package transfer

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a task (or a batch) failed
type ErrorKind string

const (
	KindInvalidDescriptor ErrorKind = "invalid_descriptor"
	KindUpstreamQuery     ErrorKind = "upstream_query"
	KindUpstreamRead      ErrorKind = "upstream_read"
	KindStreamInterrupted ErrorKind = "stream_interrupted"
	KindStagingWrite      ErrorKind = "staging_write"
	KindUpstreamWrite     ErrorKind = "upstream_write"
	KindCancelled         ErrorKind = "cancelled"
)

var (
	// ErrMissingFolderRef is returned when a request names no folder
	ErrMissingFolderRef = errors.New("folder reference is required")

	// ErrUnsupportedCredential is returned when a connector cannot use the
	// credential it was handed
	ErrUnsupportedCredential = errors.New("unsupported credential")

	// ErrSlotReleased is returned when a staging slot is used after release
	ErrSlotReleased = errors.New("staging slot already released")
)

// Error is a failure tagged with its kind
type Error struct {
	Kind ErrorKind
	Op   string // step that failed, e.g. "open", "stage", "write"
	Err  error
}

// NewError wraps err with a kind and the failing step
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind carried by err. Context cancellation maps to
// KindCancelled; untagged errors return fallback.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return fallback
}

// BatchError reports that a transfer could not start at all. It never
// carries per-file results.
type BatchError struct {
	Message string
	Err     error
}

func (e *BatchError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
