package domain

import (
	"path/filepath"
	"strings"
)

// Settings contains user-editable runtime configuration.
type Settings struct {
	// Absolute paths to the external audio tools. The pipeline never
	// mutates PATH; both tools must be configured explicitly.
	FFmpegPath  string `yaml:"ffmpegPath"`
	FFprobePath string `yaml:"ffprobePath"`

	// DataDir is the base directory holding original/, splits/ and
	// transcripts/ subdirectories.
	DataDir string `yaml:"dataDir"`

	// WhisperModel is the remote speech-to-text model identifier.
	WhisperModel string `yaml:"whisperModel"`
	// CleanupModel is the chat model used for transcript cleanup.
	CleanupModel string `yaml:"cleanupModel"`

	// MaxSplitSizeMB caps the byte size of one audio segment.
	MaxSplitSizeMB int `yaml:"maxSplitSizeMB"`
	// MaxSplitDurationSec caps the duration of one audio segment.
	MaxSplitDurationSec float64 `yaml:"maxSplitDurationSec"`

	// Retries bounds remote-call attempts per segment.
	Retries int `yaml:"retries"`

	Log LogSettings `yaml:"log"`
}

// LogSettings configures the slog handler and optional rotating run log.
type LogSettings struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	File   string `yaml:"file"`   // optional rotating log file path
}

// OriginalDir returns the directory scanned for source recordings.
func (s Settings) OriginalDir() string {
	return filepath.Join(s.DataDir, "original")
}

// SplitsDir returns the directory holding physical audio segments.
func (s Settings) SplitsDir() string {
	return filepath.Join(s.DataDir, "splits")
}

// TranscriptsDir returns the directory holding transcript artifacts.
func (s Settings) TranscriptsDir() string {
	return filepath.Join(s.DataDir, "transcripts")
}

// AudioMetadata holds the probed properties the segment planner needs.
type AudioMetadata struct {
	// BitRate is the stream bit rate in bits per second. Always positive
	// once validated; a zero or missing value is rejected by the prober.
	BitRate int
	// Duration is the recording length in seconds.
	Duration float64
}

// Stem returns the file name with exactly one final extension stripped.
// Embedded periods are preserved: "A.b.wav" yields "A.b".
func Stem(path string) string {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	if ext == "" {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// SeriesName returns the logical series a segment belongs to by stripping
// a trailing _part<NNN> suffix from the stem. Unsplit files are a series
// of one and keep their stem unchanged.
func SeriesName(stem string) string {
	idx := strings.LastIndex(stem, "_part")
	if idx < 0 {
		return stem
	}
	suffix := stem[idx+len("_part"):]
	if suffix == "" {
		return stem
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return stem
		}
	}
	return stem[:idx]
}
