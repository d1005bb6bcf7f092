package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/singleflight"

	"audioscribe/internal/domain"
)

// ErrNoSegments marks a segmenter run that exited successfully but
// produced no output files. It is surfaced distinctly from an explicit
// segmenter failure.
var ErrNoSegments = errors.New("no segment files were created")

// metadataProber abstracts ffprobe access for testability.
type metadataProber interface {
	Probe(ctx context.Context, path string) (domain.AudioMetadata, error)
}

// SplitterConfig carries the ceilings and tool paths for segment planning.
type SplitterConfig struct {
	FFmpegPath     string
	SplitDir       string
	MaxSizeMB      int
	MaxDurationSec float64
}

// Splitter plans and performs physical audio segmentation. Segments are
// stream-copied, never re-encoded, into <stem>_part<NNN>.mp3 files.
type Splitter struct {
	cfg    SplitterConfig
	prober metadataProber
	runner commandRunner

	// group serializes check-then-split per source stem so concurrent
	// callers cannot produce duplicate segment sets. It is advisory
	// only and does not survive a restart.
	group singleflight.Group

	glob     func(pattern string) ([]string, error)
	stat     func(string) (os.FileInfo, error)
	remove   func(string) error
	mkdirAll func(string, os.FileMode) error
}

// NewSplitter constructs the production splitter with OS dependencies.
func NewSplitter(cfg SplitterConfig, prober metadataProber) *Splitter {
	return &Splitter{
		cfg:      cfg,
		prober:   prober,
		runner:   &execRunner{},
		glob:     filepath.Glob,
		stat:     os.Stat,
		remove:   os.Remove,
		mkdirAll: os.MkdirAll,
	}
}

// SegmentSeconds returns the planned segment duration for a bit rate:
// the tighter of the size-derived duration and the duration ceiling.
func (s *Splitter) SegmentSeconds(bitRate int) float64 {
	sizeBased := float64(s.cfg.MaxSizeMB) * 8 * 1024 * 1024 / float64(bitRate)
	return min(sizeBased, s.cfg.MaxDurationSec)
}

// ExistingSegments returns already-produced segments for a source file,
// sorted lexicographically (index order, given zero-padded names). Every
// call re-reads the directory; there is no in-process cache.
func (s *Splitter) ExistingSegments(path string) ([]string, error) {
	matches, err := s.glob(s.segmentPattern(domain.Stem(path)))
	if err != nil {
		return nil, fmt.Errorf("scan split directory: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Split cuts one source file into API-compliant segments. When segments
// for the file's stem already exist the split is a no-op and the existing
// list is returned unchanged.
func (s *Splitter) Split(ctx context.Context, path string) ([]string, error) {
	v, err, _ := s.group.Do(domain.Stem(path), func() (interface{}, error) {
		return s.split(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// split performs the guarded check-then-split sequence.
func (s *Splitter) split(ctx context.Context, path string) ([]string, error) {
	path, err := s.Normalize(ctx, path)
	if err != nil {
		return nil, err
	}

	existing, err := s.ExistingSegments(path)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	info, err := s.stat(path)
	if err != nil {
		return nil, fmt.Errorf("audio file not found: %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}

	meta, err := s.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	segmentSeconds := s.SegmentSeconds(meta.BitRate)
	stem := domain.Stem(path)

	if err := s.mkdirAll(s.cfg.SplitDir, 0o755); err != nil {
		return nil, fmt.Errorf("create split directory: %w", err)
	}

	template := filepath.Join(s.cfg.SplitDir, stem+"_part%03d.mp3")
	args := []string{
		"-i", path,
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%g", segmentSeconds),
		"-c", "copy",
		template,
	}

	result, runErr := s.runner.Run(ctx, s.cfg.FFmpegPath, args...)
	if runErr != nil {
		s.cleanupPartials(stem)
		return nil, &ToolError{
			Op:      "split",
			Message: "ffmpeg segmenting failed",
			CommandLog: CommandLog{
				Command:  s.cfg.FFmpegPath,
				Args:     args,
				ExitCode: result.ExitCode,
				Stdout:   result.Stdout,
				Stderr:   result.Stderr,
			},
			Err: runErr,
		}
	}

	segments, err := s.ExistingSegments(path)
	if err != nil {
		s.cleanupPartials(stem)
		return nil, err
	}
	if len(segments) == 0 {
		s.cleanupPartials(stem)
		return nil, fmt.Errorf("%w for %s", ErrNoSegments, path)
	}

	return segments, nil
}

// Normalize converts m4a inputs to mp3 so segmenting and naming stay
// uniform. Other formats pass through untouched. An already-converted
// sibling is reused.
func (s *Splitter) Normalize(ctx context.Context, path string) (string, error) {
	if ext := filepath.Ext(path); ext != ".m4a" && ext != ".M4A" {
		return path, nil
	}

	target := filepath.Join(filepath.Dir(path), domain.Stem(path)+".mp3")
	if _, err := s.stat(target); err == nil {
		return target, nil
	}

	args := []string{
		"-i", path,
		"-codec:a", "libmp3lame",
		"-q:a", "2",
		target,
	}

	result, runErr := s.runner.Run(ctx, s.cfg.FFmpegPath, args...)
	if runErr != nil {
		_ = s.remove(target)
		return "", &ToolError{
			Op:      "convert",
			Message: "ffmpeg m4a conversion failed",
			CommandLog: CommandLog{
				Command:  s.cfg.FFmpegPath,
				Args:     args,
				ExitCode: result.ExitCode,
				Stdout:   result.Stdout,
				Stderr:   result.Stderr,
			},
			Err: runErr,
		}
	}

	return target, nil
}

// segmentPattern returns the glob matching all segments of one stem.
func (s *Splitter) segmentPattern(stem string) string {
	return filepath.Join(s.cfg.SplitDir, stem+"_part*.mp3")
}

// cleanupPartials removes partial segment output after a failed split.
// Deletion errors are swallowed; the forward error is the one reported.
func (s *Splitter) cleanupPartials(stem string) {
	matches, err := s.glob(s.segmentPattern(stem))
	if err != nil {
		return
	}
	for _, match := range matches {
		_ = s.remove(match)
	}
}

// NewSplitterForTests constructs a splitter with injectable dependencies.
func NewSplitterForTests(
	cfg SplitterConfig,
	prober metadataProber,
	runner commandRunner,
	glob func(pattern string) ([]string, error),
	stat func(string) (os.FileInfo, error),
	remove func(string) error,
) *Splitter {
	return &Splitter{
		cfg:      cfg,
		prober:   prober,
		runner:   runner,
		glob:     glob,
		stat:     stat,
		remove:   remove,
		mkdirAll: os.MkdirAll,
	}
}
