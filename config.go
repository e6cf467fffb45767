package editforge

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFilePermissions = 0644
	DefaultMaxFileSize     = 1_000_000
	DefaultMaxResults      = 100
	DefaultContextLines    = 2
	DefaultDiffContext     = 3
	DefaultLockTimeout     = 5 * time.Second
)

type Config struct {
	ExcludeDirs        []string `yaml:"exclude_dirs"`
	MaxFileSize        int64    `yaml:"max_file_size"`
	MaxResults         int      `yaml:"max_results"`
	ContextLines       int      `yaml:"context_lines"`
	DiffContextLines   int      `yaml:"diff_context_lines"`
	CreateBackups      bool     `yaml:"create_backups"`
	LockTimeoutSeconds int      `yaml:"lock_timeout_seconds"`
	HistoryDB          string   `yaml:"history_db"`
	LogFile            string   `yaml:"log_file"`
	LogLevel           string   `yaml:"log_level"`
}

// LockTimeout is the configured write-lock timeout as a duration.
func (c *Config) LockTimeout() time.Duration {
	if c.LockTimeoutSeconds <= 0 {
		return DefaultLockTimeout
	}
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

func DefaultConfig() *Config {
	return &Config{
		ExcludeDirs:      []string{"node_modules", ".git", "dist", "build"},
		MaxFileSize:      DefaultMaxFileSize,
		MaxResults:       DefaultMaxResults,
		ContextLines:     DefaultContextLines,
		DiffContextLines: DefaultDiffContext,
		CreateBackups:    true,
		LogLevel:         "info",
	}
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}
