// Package config provides loading and parsing of bulkload.yaml configuration files.
// The configuration names the backend, the worker pool, the retry policy, the
// checkpoint store and the log output. Every value has a default, so an empty
// file (or none at all) is a valid configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a bulkload.yaml configuration file.
type Config struct {
	Backend    *BackendConfig    `yaml:"backend,omitempty"`
	Worker     *WorkerConfig     `yaml:"worker,omitempty"`
	Retry      *RetryConfig      `yaml:"retry,omitempty"`
	Checkpoint *CheckpointConfig `yaml:"checkpoint,omitempty"`
	Log        *LogConfig        `yaml:"log,omitempty"`
}

// BackendConfig locates the store records are loaded into.
type BackendConfig struct {
	// URL is the backend root, e.g. "http://localhost:3333".
	URL string `yaml:"url,omitempty"`

	// Token is sent as a bearer token.
	Token string `yaml:"token,omitempty"`

	// Timeout bounds a single request.
	// Format: Go duration string (e.g., "30s", "1m")
	// Default: 60s
	Timeout string `yaml:"timeout,omitempty"`
}

// GetTimeout parses the request timeout and returns a duration.
// Returns the default value if not set or invalid.
func (b *BackendConfig) GetTimeout() time.Duration {
	return parseDuration(b.timeout(), 60*time.Second)
}

func (b *BackendConfig) timeout() string {
	if b == nil {
		return ""
	}
	return b.Timeout
}

// GetURL returns the backend URL or "".
func (b *BackendConfig) GetURL() string {
	if b == nil {
		return ""
	}
	return b.URL
}

// GetToken returns the token or "".
func (b *BackendConfig) GetToken() string {
	if b == nil {
		return ""
	}
	return b.Token
}

// WorkerConfig sizes the pools used for creation and reinsertion.
type WorkerConfig struct {
	// Concurrency is the number of records created (or values written back)
	// at the same time.
	// Default: 4
	Concurrency int `yaml:"concurrency,omitempty"`
}

// GetConcurrency returns the configured concurrency or the default value.
func (w *WorkerConfig) GetConcurrency() int {
	if w == nil || w.Concurrency <= 0 {
		return 4
	}
	return w.Concurrency
}

// RetryConfig is the policy for transient backend failures.
type RetryConfig struct {
	// MaxAttempts bounds the attempts per call, the first one included.
	// Default: 7
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// BaseDelay is the wait after the first failed attempt; it doubles after
	// every further failure.
	// Default: 1s
	BaseDelay string `yaml:"base_delay,omitempty"`

	// MaxDelay caps the wait between attempts.
	// Default: 300s
	MaxDelay string `yaml:"max_delay,omitempty"`
}

// GetMaxAttempts returns the attempt bound or the default value.
func (r *RetryConfig) GetMaxAttempts() int {
	if r == nil || r.MaxAttempts <= 0 {
		return 7
	}
	return r.MaxAttempts
}

// GetBaseDelay returns the first backoff delay or the default value.
func (r *RetryConfig) GetBaseDelay() time.Duration {
	if r == nil {
		return time.Second
	}
	return parseDuration(r.BaseDelay, time.Second)
}

// GetMaxDelay returns the backoff cap or the default value.
func (r *RetryConfig) GetMaxDelay() time.Duration {
	if r == nil {
		return 300 * time.Second
	}
	return parseDuration(r.MaxDelay, 300*time.Second)
}

// CheckpointConfig enables resumable uploads.
type CheckpointConfig struct {
	// RedisURL is the Redis connection string. Checkpointing is off when empty.
	RedisURL string `yaml:"redis_url,omitempty"`

	// KeyPrefix namespaces the Redis keys.
	// Default: "bulkload"
	KeyPrefix string `yaml:"key_prefix,omitempty"`

	// BatchKey identifies the batch across reruns. When empty the CLI derives
	// it from the batch file name.
	BatchKey string `yaml:"batch_key,omitempty"`

	// TTL expires saved progress after the last write.
	// Format: Go duration string (e.g., "72h"). Default: no expiry.
	TTL string `yaml:"ttl,omitempty"`
}

// Enabled reports whether a checkpoint store is configured.
func (c *CheckpointConfig) Enabled() bool {
	return c != nil && c.RedisURL != ""
}

// GetKeyPrefix returns the key prefix or the default value.
func (c *CheckpointConfig) GetKeyPrefix() string {
	if c == nil || c.KeyPrefix == "" {
		return "bulkload"
	}
	return c.KeyPrefix
}

// GetBatchKey returns the batch key, falling back to fallback.
func (c *CheckpointConfig) GetBatchKey(fallback string) string {
	if c == nil || c.BatchKey == "" {
		return fallback
	}
	return c.BatchKey
}

// GetTTL returns the expiry of saved progress, zero for none.
func (c *CheckpointConfig) GetTTL() time.Duration {
	if c == nil {
		return 0
	}
	return parseDuration(c.TTL, 0)
}

// LogConfig selects the log output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level,omitempty"`

	// Format is json or text.
	// Default: json
	Format string `yaml:"format,omitempty"`
}

// GetLevel returns the slog level or info.
func (l *LogConfig) GetLevel() slog.Level {
	if l == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetFormat returns "json" or "text".
func (l *LogConfig) GetFormat() string {
	if l != nil && strings.EqualFold(l.Format, "text") {
		return "text"
	}
	return "json"
}

// NewLogger builds a logger writing to w with the configured level and format.
func (l *LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.GetLevel()}
	if l.GetFormat() == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// Default returns an empty configuration; every accessor yields its default.
func Default() *Config {
	return &Config{}
}

// Load reads and parses a bulkload.yaml file from the given path.
// If the path is a directory, it looks for bulkload.yaml or bulkload.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var configPath string
	if info.IsDir() {
		// Try bulkload.yaml first, then bulkload.yml
		yamlPath := filepath.Join(path, "bulkload.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "bulkload.yml")
			if _, err := os.Stat(ymlPath); err == nil {
				configPath = ymlPath
			} else {
				return nil, fmt.Errorf("no bulkload.yaml or bulkload.yml found in %s", path)
			}
		}
	} else {
		configPath = path
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadFromDir searches for bulkload.yaml starting from the given directory
// and walking up to parent directories until found or root is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		config, err := Load(absDir)
		if err == nil {
			return config, nil
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("no bulkload.yaml found in %s or parent directories", dir)
		}
		absDir = parent
	}
}
