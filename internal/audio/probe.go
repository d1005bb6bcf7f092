package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"audioscribe/internal/domain"
)

// ErrInvalidBitrate marks probe output without a positive bit rate.
// Validation happens before the segment duration formula ever divides
// by the bit rate.
var ErrInvalidBitrate = errors.New("invalid bit rate: not a positive number")

// ErrInvalidDuration marks probe output without a positive duration.
var ErrInvalidDuration = errors.New("invalid duration: not a positive number")

// Prober reads audio metadata through ffprobe.
type Prober struct {
	ffprobePath string
	runner      commandRunner
	stat        func(string) (os.FileInfo, error)
}

// NewProber builds a prober invoking the configured ffprobe binary.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		runner:      &execRunner{},
		stat:        os.Stat,
	}
}

// numeric accepts JSON numbers and numeric strings; ffprobe emits both
// depending on the field and container format.
type numeric string

// UnmarshalJSON stores the raw token with surrounding quotes stripped.
func (n *numeric) UnmarshalJSON(data []byte) error {
	*n = numeric(strings.Trim(string(data), `"`))
	return nil
}

// probeOutput mirrors the ffprobe JSON schema for the queried entries.
type probeOutput struct {
	Streams []struct {
		BitRate numeric `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		Duration numeric `json:"duration"`
	} `json:"format"`
}

// Probe returns validated bit rate and duration for an audio file.
func (p *Prober) Probe(ctx context.Context, path string) (domain.AudioMetadata, error) {
	if _, err := p.stat(path); err != nil {
		return domain.AudioMetadata{}, fmt.Errorf("audio file not found: %s: %w", path, err)
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration:stream=bit_rate",
		"-of", "json",
		path,
	}

	result, err := p.runner.Run(ctx, p.ffprobePath, args...)
	if err != nil {
		return domain.AudioMetadata{}, &ToolError{
			Op:      "probe",
			Message: "ffprobe failed",
			CommandLog: CommandLog{
				Command:  p.ffprobePath,
				Args:     args,
				ExitCode: result.ExitCode,
				Stdout:   result.Stdout,
				Stderr:   result.Stderr,
			},
			Err: err,
		}
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(result.Stdout), &out); err != nil {
		return domain.AudioMetadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	return validateMetadata(out)
}

// validateMetadata enforces positive numeric bit rate and duration.
func validateMetadata(out probeOutput) (domain.AudioMetadata, error) {
	if len(out.Streams) == 0 {
		return domain.AudioMetadata{}, fmt.Errorf("%w: no streams reported", ErrInvalidBitrate)
	}

	bitRate, err := strconv.Atoi(string(out.Streams[0].BitRate))
	if err != nil {
		return domain.AudioMetadata{}, fmt.Errorf("%w: %q", ErrInvalidBitrate, out.Streams[0].BitRate)
	}
	if bitRate <= 0 {
		return domain.AudioMetadata{}, fmt.Errorf("%w: %d", ErrInvalidBitrate, bitRate)
	}

	duration, err := strconv.ParseFloat(string(out.Format.Duration), 64)
	if err != nil {
		return domain.AudioMetadata{}, fmt.Errorf("%w: %q", ErrInvalidDuration, out.Format.Duration)
	}
	if duration <= 0 {
		return domain.AudioMetadata{}, fmt.Errorf("%w: %g", ErrInvalidDuration, duration)
	}

	return domain.AudioMetadata{BitRate: bitRate, Duration: duration}, nil
}

// NewProberForTests creates a prober with injectable dependencies.
func NewProberForTests(
	ffprobePath string,
	runner commandRunner,
	stat func(string) (os.FileInfo, error),
) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		runner:      runner,
		stat:        stat,
	}
}
