package transfer

import "strings"

// DefaultContentType is used when a listed file carries no MIME type
const DefaultContentType = "audio/mpeg"

// FileDescriptor describes one file discovered in the source folder
type FileDescriptor struct {
	ID          string // provider-scoped identifier
	Name        string // display name, not guaranteed unique
	ContentType string // advisory, may be empty
	Size        int64  // advisory only, never used to size buffers
}

// Valid reports whether the descriptor carries both an identifier and a name
func (d FileDescriptor) Valid() bool {
	return d.ID != "" && d.Name != ""
}

// ContentTypeOr returns the descriptor's content type, or fallback when absent
func (d FileDescriptor) ContentTypeOr(fallback string) string {
	if ct := strings.TrimSpace(d.ContentType); ct != "" {
		return ct
	}
	if fallback == "" {
		return DefaultContentType
	}
	return fallback
}

// Task binds a descriptor to its destination path and its position in the
// discovery order.
type Task struct {
	Index       int
	Descriptor  FileDescriptor
	Destination string
}

// NewTask builds the task for the descriptor found at position index
func NewTask(index int, d FileDescriptor, prefix string) Task {
	return Task{
		Index:       index,
		Descriptor:  d,
		Destination: DestinationPath(prefix, d.Name),
	}
}

// DestinationPath joins a sink prefix and a display name.
// The name is kept verbatim; an empty prefix yields the bare name.
func DestinationPath(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// ContentTypeFilter selects which listed files are transfer candidates.
// A file matches when its MIME type contains any of the patterns.
type ContentTypeFilter struct {
	Patterns []string
}

// AudioOnly matches audio/* files only
var AudioOnly = ContentTypeFilter{Patterns: []string{"audio/"}}

// AudioOrBinary matches audio/* files and generic octet streams
var AudioOrBinary = ContentTypeFilter{Patterns: []string{"audio/", "application/octet-stream"}}

// Matches reports whether contentType is selected by the filter.
// An empty filter matches everything.
func (f ContentTypeFilter) Matches(contentType string) bool {
	if len(f.Patterns) == 0 {
		return true
	}
	for _, p := range f.Patterns {
		if strings.Contains(contentType, p) {
			return true
		}
	}
	return false
}
