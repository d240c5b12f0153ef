package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"media-relay/infrastructure/logging"
)

// Errors for config management
var (
	ErrUnknownKey   = errors.New("unknown config key")
	ErrInvalidValue = errors.New("invalid value")
)

// Manager reads and updates individual settings by their dotted key
// (for example "sink.bucket_url") and persists every change
type Manager struct {
	config     *Config
	configPath string
}

// NewManager creates a new config manager
func NewManager(cfg *Config, configPath string) *Manager {
	return &Manager{
		config:     cfg,
		configPath: configPath,
	}
}

// Entry is one setting and its current value
type Entry struct {
	Key   string
	Value string
}

type field struct {
	get func(*Config) string
	set func(*Config, string) error
}

var fields = map[string]field{
	"google.auth": {
		get: func(c *Config) string { return c.Google.Auth },
		set: func(c *Config, v string) error {
			if v != AuthOAuth && v != AuthServiceAccount {
				return ErrInvalidAuthMode
			}
			c.Google.Auth = v
			return nil
		},
	},
	"google.credentials_file": stringField(func(c *Config) *string { return &c.Google.CredentialsFile }),
	"google.token_file":       stringField(func(c *Config) *string { return &c.Google.TokenFile }),
	"google.redirect_port":    intField(func(c *Config) *int { return &c.Google.RedirectPort }, 1),
	"source.mime_types": {
		get: func(c *Config) string { return strings.Join(c.Source.MimeTypes, ",") },
		set: func(c *Config, v string) error {
			c.Source.MimeTypes = splitList(v)
			return nil
		},
	},
	"source.order_by": stringField(func(c *Config) *string { return &c.Source.OrderBy }),
	"sink.bucket_url": {
		get: func(c *Config) string { return c.Sink.BucketURL },
		set: func(c *Config, v string) error {
			if strings.TrimSpace(v) == "" {
				return ErrMissingBucket
			}
			c.Sink.BucketURL = strings.TrimSpace(v)
			return nil
		},
	},
	"sink.prefix":                   stringField(func(c *Config) *string { return &c.Sink.Prefix }),
	"sink.public":                   boolField(func(c *Config) *bool { return &c.Sink.Public }),
	"sink.public_base_url":          stringField(func(c *Config) *string { return &c.Sink.PublicBaseURL }),
	"transfer.concurrency":          intField(func(c *Config) *int { return &c.Transfer.Concurrency }, 1),
	"transfer.default_content_type": stringField(func(c *Config) *string { return &c.Transfer.DefaultContentType }),
	"transfer.open_retries":         intField(func(c *Config) *int { return &c.Transfer.OpenRetries }, -1),
	"staging.mode": {
		get: func(c *Config) string { return c.Staging.Mode },
		set: func(c *Config, v string) error {
			if v != StagingDisk && v != StagingMemory {
				return ErrInvalidStagingMode
			}
			c.Staging.Mode = v
			return nil
		},
	},
	"staging.dir": stringField(func(c *Config) *string { return &c.Staging.Dir }),
	"staging.memory_limit": {
		get: func(c *Config) string { return strconv.FormatInt(c.Staging.MemoryLimit, 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: %q is not a byte count", ErrInvalidValue, v)
			}
			c.Staging.MemoryLimit = n
			return nil
		},
	},
	"log.level": {
		get: func(c *Config) string { return c.Log.Level },
		set: func(c *Config, v string) error {
			v = strings.ToLower(strings.TrimSpace(v))
			if _, err := logging.ParseLevel(v); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			c.Log.Level = v
			return nil
		},
	},
	"log.format": {
		get: func(c *Config) string { return c.Log.Format },
		set: func(c *Config, v string) error {
			f, err := logging.ParseFormat(v)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			c.Log.Format = f
			return nil
		},
	},
}

func stringField(ref func(*Config) *string) field {
	return field{
		get: func(c *Config) string { return *ref(c) },
		set: func(c *Config, v string) error {
			*ref(c) = strings.TrimSpace(v)
			return nil
		},
	}
}

func intField(ref func(*Config) *int, min int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*ref(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < min {
				return fmt.Errorf("%w: %q must be an integer >= %d", ErrInvalidValue, v, min)
			}
			*ref(c) = n
			return nil
		},
	}
}

func boolField(ref func(*Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*ref(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, v)
			}
			*ref(c) = b
			return nil
		},
	}
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Keys returns every settable key in sorted order
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// List returns every setting in key order
func (m *Manager) List() []Entry {
	keys := Keys()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Value: fields[k].get(m.config)})
	}
	return entries
}

// Get returns the current value of key
func (m *Manager) Get(key string) (string, error) {
	f, ok := fields[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return f.get(m.config), nil
}

// Set parses value into key and saves the configuration
func (m *Manager) Set(key, value string) error {
	f, ok := fields[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := f.set(m.config, value); err != nil {
		return fmt.Errorf("cannot set %s: %w", key, err)
	}
	return Save(m.config, m.configPath)
}
