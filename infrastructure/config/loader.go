package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"media-relay/infrastructure/logging"

	"gopkg.in/yaml.v3"
)

// Errors for config validation
var (
	ErrMissingBucket      = errors.New("sink.bucket_url is required")
	ErrInvalidConcurrency = errors.New("transfer.concurrency must be at least 1")
	ErrInvalidStagingMode = errors.New("staging.mode must be \"disk\" or \"memory\"")
	ErrInvalidAuthMode    = errors.New("google.auth must be \"oauth\" or \"service_account\"")
	ErrInvalidLogSettings = errors.New("invalid log settings")
)

// Auth modes
const (
	AuthOAuth          = "oauth"
	AuthServiceAccount = "service_account"
)

// Staging modes
const (
	StagingDisk   = "disk"
	StagingMemory = "memory"
)

// Defaults applied by Load
const (
	DefaultConcurrency  = 4
	DefaultOpenRetries  = 2
	DefaultContentType  = "audio/mpeg"
	DefaultTokenFile    = "config/token.json"
	DefaultCredentials  = "config/credentials.json"
	DefaultSinkPrefix   = "audio"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultRedirectPort = 8085
)

// Config represents the complete application configuration
type Config struct {
	Google   GoogleConfig   `yaml:"google"`
	Source   SourceConfig   `yaml:"source"`
	Sink     SinkConfig     `yaml:"sink"`
	Transfer TransferConfig `yaml:"transfer"`
	Staging  StagingConfig  `yaml:"staging"`
	Log      LogConfig      `yaml:"log"`
}

// GoogleConfig contains Google API settings
type GoogleConfig struct {
	Auth            string `yaml:"auth"`
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	RedirectPort    int    `yaml:"redirect_port"`
}

// SourceConfig selects which files in a Drive folder are transferred
type SourceConfig struct {
	MimeTypes []string `yaml:"mime_types"`
	OrderBy   string   `yaml:"order_by"`
}

// SinkConfig describes the destination bucket
type SinkConfig struct {
	BucketURL     string `yaml:"bucket_url"`
	Prefix        string `yaml:"prefix"`
	Public        bool   `yaml:"public"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// TransferConfig tunes the transfer pipeline
type TransferConfig struct {
	Concurrency        int    `yaml:"concurrency"`
	DefaultContentType string `yaml:"default_content_type"`
	OpenRetries        int    `yaml:"open_retries"` // 0 or negative disables retries
}

// StagingConfig selects where files are staged between download and upload
type StagingConfig struct {
	Mode        string `yaml:"mode"`
	Dir         string `yaml:"dir"`
	MemoryLimit int64  `yaml:"memory_limit"`
}

// LogConfig controls diagnostic logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{Transfer: TransferConfig{OpenRetries: DefaultOpenRetries}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in unset values. OpenRetries is left alone because
// zero is a meaningful setting; Default and Load seed it instead.
func (c *Config) ApplyDefaults() {
	if c.Google.Auth == "" {
		c.Google.Auth = AuthOAuth
	}
	if c.Google.CredentialsFile == "" {
		c.Google.CredentialsFile = DefaultCredentials
	}
	if c.Google.TokenFile == "" {
		c.Google.TokenFile = DefaultTokenFile
	}
	if c.Google.RedirectPort == 0 {
		c.Google.RedirectPort = DefaultRedirectPort
	}
	if c.Source.MimeTypes == nil {
		c.Source.MimeTypes = []string{"audio/"}
	}
	if c.Source.OrderBy == "" {
		c.Source.OrderBy = "name"
	}
	if c.Sink.Prefix == "" {
		c.Sink.Prefix = DefaultSinkPrefix
	}
	if c.Transfer.Concurrency == 0 {
		c.Transfer.Concurrency = DefaultConcurrency
	}
	if c.Transfer.DefaultContentType == "" {
		c.Transfer.DefaultContentType = DefaultContentType
	}
	if c.Staging.Mode == "" {
		c.Staging.Mode = StagingDisk
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sink.BucketURL) == "" {
		return ErrMissingBucket
	}
	if c.Transfer.Concurrency < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidConcurrency, c.Transfer.Concurrency)
	}
	switch c.Staging.Mode {
	case StagingDisk, StagingMemory:
	default:
		return fmt.Errorf("%w, got %q", ErrInvalidStagingMode, c.Staging.Mode)
	}
	switch c.Google.Auth {
	case AuthOAuth, AuthServiceAccount:
	default:
		return fmt.Errorf("%w, got %q", ErrInvalidAuthMode, c.Google.Auth)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogSettings, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogSettings, err)
	}
	return nil
}

// Load reads and parses the configuration from the specified YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// keys missing from the file keep their defaults
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
