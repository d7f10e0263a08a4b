// Package config provides configuration management for the reportrun CLI.
// Values come from defaults, an optional YAML file, a .env file and the
// process environment, in increasing order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Verbosity represents the output verbosity level
type Verbosity string

const (
	// VerbosityNormal shows only essential output
	VerbosityNormal Verbosity = "normal"
	// VerbosityVerbose includes request details and timing
	VerbosityVerbose Verbosity = "verbose"
	// VerbosityDebug provides full debug logging
	VerbosityDebug Verbosity = "debug"
)

// Defaults
const (
	DefaultBaseURL        = "http://localhost:5001"
	DefaultRequestTimeout = 10 * time.Second
	DefaultChunkSize      = 4096
	DefaultRetryBackoff   = 500 * time.Millisecond
	MaxAutoRetry          = 10
	ContextFileName       = "run_context.json"
)

// Config holds all configuration for the reportrun CLI
type Config struct {
	// BaseURL is the root of the report service, e.g. http://localhost:5001
	BaseURL string

	// Verbosity controls diagnostic output
	Verbosity Verbosity

	// StateDir holds the remembered run contexts
	StateDir string

	// RunTimeout bounds a whole run; zero means no deadline
	RunTimeout time.Duration

	// RequestTimeout bounds non-streaming calls (history, terminate)
	RequestTimeout time.Duration

	// ChunkSize is the read size for the response stream
	ChunkSize int

	// AutoRetry is how many times a failed run is retried automatically
	AutoRetry int

	// RetryBackoff is the initial wait between automatic retries
	RetryBackoff time.Duration

	// ShowLogs controls whether streamed log lines are printed
	ShowLogs bool

	// CopyResponse copies a successful response to the clipboard
	CopyResponse bool

	// TerminateOnQuit sends POST /terminate when the CLI is asked to quit
	TerminateOnQuit bool
}

// Default returns the built-in configuration
func Default() *Config {
	stateDir := ".reportrun"
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		stateDir = filepath.Join(home, ".reportrun")
	}
	return &Config{
		BaseURL:         DefaultBaseURL,
		Verbosity:       VerbosityNormal,
		StateDir:        stateDir,
		RequestTimeout:  DefaultRequestTimeout,
		ChunkSize:       DefaultChunkSize,
		RetryBackoff:    DefaultRetryBackoff,
		ShowLogs:        true,
		TerminateOnQuit: true,
	}
}

// New creates a Config from defaults and environment variables
func New() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds the configuration: defaults, then the YAML file at configFile
// (if non-empty), then the .env file at dotEnv (if present), then the
// environment.
func Load(configFile, dotEnv string) (*Config, error) {
	if err := LoadDotEnv(dotEnv); err != nil {
		return nil, err
	}

	cfg := Default()
	if configFile == "" {
		configFile = os.Getenv("REPORTRUN_CONFIG")
	}
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("REPORTRUN_BASE_URL"); v != "" {
		c.BaseURL = v
	}

	if v := os.Getenv("REPORTRUN_VERBOSITY"); v != "" {
		c.Verbosity = Verbosity(v)
	}

	if v, exists := os.LookupEnv("REPORTRUN_STATE_DIR"); exists {
		if v == "" {
			return fmt.Errorf("REPORTRUN_STATE_DIR cannot be empty")
		}
		c.StateDir = v
	}

	if err := parseSecondsEnv("REPORTRUN_RUN_TIMEOUT", 0, &c.RunTimeout); err != nil {
		return err
	}
	if err := parseSecondsEnv("REPORTRUN_REQUEST_TIMEOUT", 1, &c.RequestTimeout); err != nil {
		return err
	}

	if err := parseIntEnv("REPORTRUN_CHUNK_SIZE", 1, 1<<20, &c.ChunkSize); err != nil {
		return err
	}
	if err := parseIntEnv("REPORTRUN_AUTO_RETRY", 0, MaxAutoRetry, &c.AutoRetry); err != nil {
		return err
	}

	backoffMS := int(c.RetryBackoff / time.Millisecond)
	if err := parseIntEnv("REPORTRUN_RETRY_BACKOFF_MS", 1, 60_000, &backoffMS); err != nil {
		return err
	}
	c.RetryBackoff = time.Duration(backoffMS) * time.Millisecond

	var err error
	if c.ShowLogs, err = parseBoolEnv("REPORTRUN_SHOW_LOGS", c.ShowLogs); err != nil {
		return err
	}
	if c.CopyResponse, err = parseBoolEnv("REPORTRUN_COPY_RESPONSE", c.CopyResponse); err != nil {
		return err
	}
	if c.TerminateOnQuit, err = parseBoolEnv("REPORTRUN_TERMINATE_ON_QUIT", c.TerminateOnQuit); err != nil {
		return err
	}
	return nil
}

// Validate checks values that may come from any source
func (c *Config) Validate() error {
	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}

	switch c.Verbosity {
	case VerbosityNormal, VerbosityVerbose, VerbosityDebug:
	default:
		return fmt.Errorf("verbosity must be one of: normal, verbose, debug; got: %s", c.Verbosity)
	}

	if c.StateDir == "" {
		return fmt.Errorf("state directory cannot be empty")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got: %d", c.ChunkSize)
	}
	if c.AutoRetry < 0 || c.AutoRetry > MaxAutoRetry {
		return fmt.Errorf("auto retry must be between 0 and %d, got: %d", MaxAutoRetry, c.AutoRetry)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run timeout cannot be negative")
	}
	return nil
}

// IsVerbose returns true if verbosity is verbose or debug
func (c *Config) IsVerbose() bool {
	return c.Verbosity == VerbosityVerbose || c.Verbosity == VerbosityDebug
}

// IsDebug returns true if verbosity is debug
func (c *Config) IsDebug() bool {
	return c.Verbosity == VerbosityDebug
}

// ContextFile is where remembered run contexts are persisted
func (c *Config) ContextFile() string {
	return filepath.Join(c.StateDir, ContextFileName)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("base URL must be absolute, got: %s", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL scheme must be http or https, got: %s", u.Scheme)
	}
	return nil
}

// parseBoolEnv parses a boolean environment variable with a default value
func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	switch value {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be true or false, got: %s", key, value)
	}
}

// parseIntEnv parses an integer environment variable into dst when set
func parseIntEnv(key string, min, max int, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < min || n > max {
		return fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, n)
	}
	*dst = n
	return nil
}

// parseSecondsEnv parses a whole number of seconds into dst when set
func parseSecondsEnv(key string, min int, dst *time.Duration) error {
	secs := -1
	if err := parseIntEnv(key, min, 24*60*60, &secs); err != nil {
		return err
	}
	if secs >= 0 {
		*dst = time.Duration(secs) * time.Second
	}
	return nil
}
