package audio

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// statOK fakes a successful stat for any path.
func statOK(string) (os.FileInfo, error) {
	return fakeFileInfo{}, nil
}

// fakeFileInfo is a minimal os.FileInfo for stat fakes.
type fakeFileInfo struct{ size int64 }

func (f fakeFileInfo) Name() string { return "fake" }
func (f fakeFileInfo) Size() int64 { return f.size }
func (f fakeFileInfo) Mode() os.FileMode { return 0o644 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool { return false }
func (f fakeFileInfo) Sys() any { return nil }

// TestProbeParsesStringAndNumberTokens checks both ffprobe encodings.
func TestProbeParsesStringAndNumberTokens(t *testing.T) {
	tests := []struct {
		name         string
		stdout       string
		wantBitRate  int
		wantDuration float64
	}{
		{
			name:         "quoted values",
			stdout:       `{"streams":[{"bit_rate":"128000"}],"format":{"duration":"3600.5"}}`,
			wantBitRate:  128000,
			wantDuration: 3600.5,
		},
		{
			name:         "bare numbers",
			stdout:       `{"streams":[{"bit_rate":64000}],"format":{"duration":120}}`,
			wantBitRate:  64000,
			wantDuration: 120,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{result: commandResult{Stdout: tt.stdout}}
			p := NewProberForTests("ffprobe", runner, statOK)

			meta, err := p.Probe(context.Background(), "/audio/a.mp3")
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if meta.BitRate != tt.wantBitRate {
				t.Fatalf("BitRate = %d, want %d", meta.BitRate, tt.wantBitRate)
			}
			if meta.Duration != tt.wantDuration {
				t.Fatalf("Duration = %g, want %g", meta.Duration, tt.wantDuration)
			}
		})
	}
}

// TestProbeRejectsInvalidMetadata checks validation of probe output.
func TestProbeRejectsInvalidMetadata(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		wantErr error
	}{
		{"no streams", `{"streams":[],"format":{"duration":"60"}}`, ErrInvalidBitrate},
		{"zero bit rate", `{"streams":[{"bit_rate":"0"}],"format":{"duration":"60"}}`, ErrInvalidBitrate},
		{"missing bit rate", `{"streams":[{}],"format":{"duration":"60"}}`, ErrInvalidBitrate},
		{"garbage bit rate", `{"streams":[{"bit_rate":"N/A"}],"format":{"duration":"60"}}`, ErrInvalidBitrate},
		{"zero duration", `{"streams":[{"bit_rate":"128000"}],"format":{"duration":"0"}}`, ErrInvalidDuration},
		{"missing duration", `{"streams":[{"bit_rate":"128000"}],"format":{}}`, ErrInvalidDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{result: commandResult{Stdout: tt.stdout}}
			p := NewProberForTests("ffprobe", runner, statOK)

			_, err := p.Probe(context.Background(), "/audio/a.mp3")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Probe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestProbeWrapsCommandFailure checks ffprobe failures carry the command log.
func TestProbeWrapsCommandFailure(t *testing.T) {
	runner := &fakeRunner{
		result: commandResult{ExitCode: 1, Stderr: "moov atom not found"},
		err:    errors.New("exit status 1"),
	}
	p := NewProberForTests("ffprobe", runner, statOK)

	_, err := p.Probe(context.Background(), "/audio/a.mp3")
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("Probe() error = %v, want ToolError", err)
	}
	if toolErr.Op != "probe" {
		t.Fatalf("Op = %q, want probe", toolErr.Op)
	}
	if toolErr.CommandLog.ExitCode != 1 {
		t.Fatalf("ExitCode = %d, want 1", toolErr.CommandLog.ExitCode)
	}
	if toolErr.CommandLog.Stderr != "moov atom not found" {
		t.Fatalf("Stderr = %q", toolErr.CommandLog.Stderr)
	}
}

// TestProbeMissingFile checks a nonexistent path fails before ffprobe runs.
func TestProbeMissingFile(t *testing.T) {
	runner := &fakeRunner{}
	p := NewProberForTests("ffprobe", runner, os.Stat)

	_, err := p.Probe(context.Background(), "/nonexistent/a.mp3")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if runner.calls != 0 {
		t.Fatalf("runner invoked %d times, want 0", runner.calls)
	}
}
