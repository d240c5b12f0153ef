package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Sink.BucketURL = "gs://audios.appspot.com"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	return NewManager(cfg, path), path
}

func TestManager_Get(t *testing.T) {
	mgr, _ := newTestManager(t)

	tests := []struct {
		key  string
		want string
	}{
		{key: "sink.bucket_url", want: "gs://audios.appspot.com"},
		{key: "transfer.concurrency", want: "4"},
		{key: "sink.public", want: "false"},
		{key: "source.mime_types", want: "audio/"},
		{key: " Staging.Mode ", want: "disk"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := mgr.Get(tt.key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := mgr.Get("email.from"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
}

func TestManager_Set(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
		check   func(*Config) bool
	}{
		{
			name:  "concurrency",
			key:   "transfer.concurrency",
			value: "8",
			check: func(c *Config) bool { return c.Transfer.Concurrency == 8 },
		},
		{
			name:  "public flag",
			key:   "sink.public",
			value: "true",
			check: func(c *Config) bool { return c.Sink.Public },
		},
		{
			name:  "mime types list",
			key:   "source.mime_types",
			value: "audio/, application/octet-stream,",
			check: func(c *Config) bool {
				return len(c.Source.MimeTypes) == 2 && c.Source.MimeTypes[1] == "application/octet-stream"
			},
		},
		{
			name:  "memory staging",
			key:   "staging.mode",
			value: "memory",
			check: func(c *Config) bool { return c.Staging.Mode == StagingMemory },
		},
		{
			name:  "disable open retries",
			key:   "transfer.open_retries",
			value: "-1",
			check: func(c *Config) bool { return c.Transfer.OpenRetries == -1 },
		},
		{
			name:  "zero open retries survives reload",
			key:   "transfer.open_retries",
			value: "0",
			check: func(c *Config) bool { return c.Transfer.OpenRetries == 0 },
		},
		{
			name:  "log level",
			key:   "log.level",
			value: "DEBUG",
			check: func(c *Config) bool { return c.Log.Level == "debug" },
		},
		{
			name:  "log format",
			key:   "log.format",
			value: "json",
			check: func(c *Config) bool { return c.Log.Format == "json" },
		},
		{name: "zero concurrency", key: "transfer.concurrency", value: "0", wantErr: ErrInvalidValue},
		{name: "not a bool", key: "sink.public", value: "maybe", wantErr: ErrInvalidValue},
		{name: "bad staging mode", key: "staging.mode", value: "tape", wantErr: ErrInvalidStagingMode},
		{name: "bad auth mode", key: "google.auth", value: "basic", wantErr: ErrInvalidAuthMode},
		{name: "empty bucket", key: "sink.bucket_url", value: "", wantErr: ErrMissingBucket},
		{name: "negative memory limit", key: "staging.memory_limit", value: "-5", wantErr: ErrInvalidValue},
		{name: "bad log level", key: "log.level", value: "verbose", wantErr: ErrInvalidValue},
		{name: "bad log format", key: "log.format", value: "xml", wantErr: ErrInvalidValue},
		{name: "unknown key", key: "paths.audio", value: "x", wantErr: ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, path := newTestManager(t)

			err := mgr.Set(tt.key, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			saved, err := Load(path)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if !tt.check(saved) {
				t.Errorf("saved config does not reflect %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestManager_SetRejectedValueNotSaved(t *testing.T) {
	mgr, path := newTestManager(t)

	if err := mgr.Set("log.format", "xml"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	saved, err := Load(path)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if saved.Log.Format != DefaultLogFormat {
		t.Errorf("expected format %q to be kept, got %q", DefaultLogFormat, saved.Log.Format)
	}
}

func TestManager_List(t *testing.T) {
	mgr, _ := newTestManager(t)

	entries := mgr.List()
	if len(entries) != len(Keys()) {
		t.Fatalf("expected %d entries, got %d", len(Keys()), len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Key >= entries[i].Key {
			t.Errorf("entries not sorted: %s before %s", entries[i-1].Key, entries[i].Key)
		}
	}
}
