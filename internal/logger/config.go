package logger

import (
	"os"
	"strings"
)

// Config holds logger configuration
type Config struct {
	Level      Level
	Format     string // "console" or "json"
	Caller     bool   // Include caller information
	Stacktrace string // Level at which to include stack traces
}

// ConfigFromEnv reads REPORTRUN_LOG_* variables. REPORTRUN_VERBOSITY is used
// as a fallback for the level.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Level:      WarnLevel,
		Format:     "console",
		Stacktrace: "panic",
	}

	if levelStr := os.Getenv("REPORTRUN_LOG_LEVEL"); levelStr != "" {
		cfg.Level = LevelFromString(levelStr)
	} else {
		cfg.Level = levelForVerbosity(os.Getenv("REPORTRUN_VERBOSITY"))
	}

	if format := os.Getenv("REPORTRUN_LOG_FORMAT"); format != "" {
		cfg.Format = strings.ToLower(format)
	}

	cfg.Caller = os.Getenv("REPORTRUN_LOG_CALLER") == "true"

	if stacktrace := os.Getenv("REPORTRUN_LOG_STACKTRACE"); stacktrace != "" {
		cfg.Stacktrace = strings.ToLower(stacktrace)
	}

	return cfg
}

// IsDevelopment returns true if the logger is configured for development mode
func (c *Config) IsDevelopment() bool {
	return c.Format != "json"
}

func levelForVerbosity(verbosity string) Level {
	switch verbosity {
	case "debug":
		return DebugLevel
	case "verbose":
		return InfoLevel
	default:
		return WarnLevel
	}
}

func hasExplicitLevel() bool {
	return os.Getenv("REPORTRUN_LOG_LEVEL") != ""
}
