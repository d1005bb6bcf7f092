package config

import (
	"strings"

	"audioscribe/internal/domain"
)

// Remote upload hard limit imposed by the transcription service. Segment
// planning keeps segments well under this, but the transcription stage
// re-checks it per file.
const MaxUploadBytes = 25 * 1024 * 1024

// DefaultSettings returns baseline configuration for a first run.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		DataDir:             "data",
		WhisperModel:        "whisper-1",
		CleanupModel:        "gpt-3.5-turbo",
		MaxSplitSizeMB:      5,
		MaxSplitDurationSec: 600,
		Retries:             3,
		Log: domain.LogSettings{
			Level:  "info",
			Format: "console",
		},
	}
}

// SupportedFormats lists accepted input extensions. Anything else is
// rejected before processing begins. m4a inputs are normalized to mp3
// ahead of splitting.
var SupportedFormats = []string{".mp3", ".wav", ".m4a"}

// IsSupportedFormat reports whether ext (including the leading dot,
// case-insensitive) is an accepted input format.
func IsSupportedFormat(ext string) bool {
	for _, supported := range SupportedFormats {
		if strings.EqualFold(ext, supported) {
			return true
		}
	}
	return false
}
