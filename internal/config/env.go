package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"audioscribe/internal/domain"
)

// LoadDotenv reads a .env file from the working directory when present.
// A missing file is not an error; shell environment always wins.
func LoadDotenv() {
	_ = godotenv.Load()
}

// ApplyEnv overlays environment variables onto file-based settings.
// Environment values take precedence over the settings file.
func ApplyEnv(cfg domain.Settings) domain.Settings {
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		cfg.FFmpegPath = v
	}
	if v := os.Getenv("FFPROBE_PATH"); v != "" {
		cfg.FFprobePath = v
	}
	if v := os.Getenv("AUDIOSCRIBE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("WHISPER_MODEL"); v != "" {
		cfg.WhisperModel = v
	}
	if v := os.Getenv("CLEANUP_MODEL"); v != "" {
		cfg.CleanupModel = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("AUDIOSCRIBE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retries = n
		}
	}
	return cfg
}

// APIKey returns the OpenAI API key from the environment. The key is
// never read from or written to the settings file.
func APIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// SentryDSN returns the optional error-reporting DSN.
func SentryDSN() string {
	return os.Getenv("SENTRY_DSN")
}

// Validate checks the effective configuration and collects all problems
// into a single error so the operator sees everything at once.
func Validate(cfg domain.Settings) error {
	var problems []string

	if cfg.FFmpegPath == "" {
		problems = append(problems, "ffmpegPath is required (settings file or FFMPEG_PATH)")
	}
	if cfg.FFprobePath == "" {
		problems = append(problems, "ffprobePath is required (settings file or FFPROBE_PATH)")
	}
	if cfg.DataDir == "" {
		problems = append(problems, "dataDir must not be empty")
	}
	if cfg.MaxSplitSizeMB <= 0 {
		problems = append(problems, fmt.Sprintf("maxSplitSizeMB must be positive, got %d", cfg.MaxSplitSizeMB))
	}
	if cfg.MaxSplitDurationSec <= 0 {
		problems = append(problems, fmt.Sprintf("maxSplitDurationSec must be positive, got %g", cfg.MaxSplitDurationSec))
	}
	if cfg.Retries <= 0 {
		problems = append(problems, fmt.Sprintf("retries must be positive, got %d", cfg.Retries))
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level: %s", cfg.Log.Level))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format: %s", cfg.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
