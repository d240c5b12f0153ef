package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDestinationPath(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{"audio", "a.mp3", "audio/a.mp3"},
		{"audio/", "a.mp3", "audio/a.mp3"},
		{"/audio/2025/", "a.mp3", "audio/2025/a.mp3"},
		{"", "a.mp3", "a.mp3"},
		{"/", "a.mp3", "a.mp3"},
		{"audio", "sermon 01.mp3", "audio/sermon 01.mp3"},
	}

	for _, tt := range tests {
		got := DestinationPath(tt.prefix, tt.name)
		if got != tt.want {
			t.Errorf("DestinationPath(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestFileDescriptor_Valid(t *testing.T) {
	tests := []struct {
		name string
		d    FileDescriptor
		want bool
	}{
		{"complete", FileDescriptor{ID: "id", Name: "a.mp3"}, true},
		{"missing id", FileDescriptor{Name: "a.mp3"}, false},
		{"missing name", FileDescriptor{ID: "id"}, false},
		{"empty", FileDescriptor{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Valid(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFileDescriptor_ContentTypeOr(t *testing.T) {
	if got := (FileDescriptor{ContentType: "audio/wav"}).ContentTypeOr("audio/mpeg"); got != "audio/wav" {
		t.Errorf("expected audio/wav, got %q", got)
	}
	if got := (FileDescriptor{}).ContentTypeOr("application/octet-stream"); got != "application/octet-stream" {
		t.Errorf("expected fallback, got %q", got)
	}
	if got := (FileDescriptor{ContentType: "  "}).ContentTypeOr(""); got != DefaultContentType {
		t.Errorf("expected %q, got %q", DefaultContentType, got)
	}
}

func TestContentTypeFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter ContentTypeFilter
		ct     string
		want   bool
	}{
		{"audio only matches mp3", AudioOnly, "audio/mpeg", true},
		{"audio only rejects octet stream", AudioOnly, "application/octet-stream", false},
		{"audio or binary matches octet stream", AudioOrBinary, "application/octet-stream", true},
		{"audio or binary rejects video", AudioOrBinary, "video/mp4", false},
		{"empty filter matches anything", ContentTypeFilter{}, "video/mp4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.ct); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tagged := NewError(KindUpstreamWrite, "write", errors.New("quota"))

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"tagged", tagged, KindUpstreamWrite},
		{"wrapped tagged", fmt.Errorf("outer: %w", tagged), KindUpstreamWrite},
		{"context canceled", fmt.Errorf("read: %w", context.Canceled), KindCancelled},
		{"deadline", context.DeadlineExceeded, KindCancelled},
		{"untagged", errors.New("boom"), KindStagingWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err, KindStagingWrite); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := NewError(KindUpstreamRead, "open", errors.New("404"))
	if err.Error() != "upstream_read: open: 404" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Error("expected error to unwrap to its cause")
	}
}
