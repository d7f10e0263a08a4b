package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultDotEnv is the .env file read when no other path is given
const DefaultDotEnv = ".env"

// fileConfig mirrors Config for YAML decoding. Pointer fields tell an absent
// key apart from a zero value.
type fileConfig struct {
	BaseURL         *string `yaml:"base_url"`
	Verbosity       *string `yaml:"verbosity"`
	StateDir        *string `yaml:"state_dir"`
	RunTimeout      *int    `yaml:"run_timeout"`
	RequestTimeout  *int    `yaml:"request_timeout"`
	ChunkSize       *int    `yaml:"chunk_size"`
	AutoRetry       *int    `yaml:"auto_retry"`
	RetryBackoffMS  *int    `yaml:"retry_backoff_ms"`
	ShowLogs        *bool   `yaml:"show_logs"`
	CopyResponse    *bool   `yaml:"copy_response"`
	TerminateOnQuit *bool   `yaml:"terminate_on_quit"`
}

// LoadFile applies the YAML file at path on top of c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.BaseURL != nil {
		c.BaseURL = *fc.BaseURL
	}
	if fc.Verbosity != nil {
		c.Verbosity = Verbosity(*fc.Verbosity)
	}
	if fc.StateDir != nil {
		c.StateDir = *fc.StateDir
	}
	if fc.RunTimeout != nil {
		c.RunTimeout = time.Duration(*fc.RunTimeout) * time.Second
	}
	if fc.RequestTimeout != nil {
		if *fc.RequestTimeout <= 0 {
			return fmt.Errorf("request_timeout must be positive, got: %d", *fc.RequestTimeout)
		}
		c.RequestTimeout = time.Duration(*fc.RequestTimeout) * time.Second
	}
	if fc.ChunkSize != nil {
		c.ChunkSize = *fc.ChunkSize
	}
	if fc.AutoRetry != nil {
		c.AutoRetry = *fc.AutoRetry
	}
	if fc.RetryBackoffMS != nil {
		if *fc.RetryBackoffMS <= 0 {
			return fmt.Errorf("retry_backoff_ms must be positive, got: %d", *fc.RetryBackoffMS)
		}
		c.RetryBackoff = time.Duration(*fc.RetryBackoffMS) * time.Millisecond
	}
	if fc.ShowLogs != nil {
		c.ShowLogs = *fc.ShowLogs
	}
	if fc.CopyResponse != nil {
		c.CopyResponse = *fc.CopyResponse
	}
	if fc.TerminateOnQuit != nil {
		c.TerminateOnQuit = *fc.TerminateOnQuit
	}
	return nil
}

// LoadDotEnv loads variables from a .env file without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = DefaultDotEnv
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
