package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"audioscribe/internal/domain"
)

// ErrVerifyTranscript marks an artifact that failed post-write
// verification. It signals a local storage problem, not a remote one.
var ErrVerifyTranscript = errors.New("transcript artifact failed post-write verification")

// Store persists transcript artifacts in a flat directory. Every
// existence query re-stats the filesystem; nothing is cached.
type Store struct {
	dir  string
	stat func(string) (os.FileInfo, error)
}

// NewStore builds a store rooted at dir, creating it when missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	return &Store{dir: dir, stat: os.Stat}, nil
}

// Dir returns the transcript directory path.
func (s *Store) Dir() string {
	return s.dir
}

// BaseName derives the artifact base name from an audio path.
func (s *Store) BaseName(audioPath string) string {
	return domain.Stem(audioPath)
}

// TextPath returns the raw transcript path for a base name.
func (s *Store) TextPath(base string) string {
	return filepath.Join(s.dir, base+".txt")
}

// MetadataPath returns the JSON metadata path for a base name.
func (s *Store) MetadataPath(base string) string {
	return filepath.Join(s.dir, base+".json")
}

// CleanPath returns the cleaned transcript path for a base name.
func (s *Store) CleanPath(base string) string {
	return filepath.Join(s.dir, base+".clean.txt")
}

// HasCompleteTranscript reports whether both the text and metadata
// artifacts exist with non-zero size. A zero-byte file counts as not
// done; it marks a crash mid-write, not a completion.
func (s *Store) HasCompleteTranscript(base string) bool {
	return s.nonEmpty(s.TextPath(base)) && s.nonEmpty(s.MetadataPath(base))
}

// HasCleanTranscript reports whether a non-empty cleaned artifact exists.
func (s *Store) HasCleanTranscript(base string) bool {
	return s.nonEmpty(s.CleanPath(base))
}

// Save writes the raw transcript and its metadata durably, then
// verifies both artifacts landed with non-zero size.
func (s *Store) Save(base, text string, metadata map[string]any) error {
	if err := s.writeDurable(s.TextPath(base), []byte(text)); err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript metadata: %w", err)
	}
	if err := s.writeDurable(s.MetadataPath(base), encoded); err != nil {
		return err
	}

	for _, path := range []string{s.TextPath(base), s.MetadataPath(base)} {
		if !s.nonEmpty(path) {
			return fmt.Errorf("%w: %s", ErrVerifyTranscript, path)
		}
	}
	return nil
}

// SaveClean writes the cleaned transcript durably and verifies it.
func (s *Store) SaveClean(base, text string) error {
	path := s.CleanPath(base)
	if err := s.writeDurable(path, []byte(text)); err != nil {
		return err
	}
	if !s.nonEmpty(path) {
		return fmt.Errorf("%w: %s", ErrVerifyTranscript, path)
	}
	return nil
}

// ReadText returns the raw transcript content for a base name.
func (s *Store) ReadText(base string) (string, error) {
	data, err := os.ReadFile(s.TextPath(base))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

// writeDurable writes a file and forces it to storage before returning.
func (s *Store) writeDurable(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// nonEmpty reports whether path exists as a file with size above zero.
func (s *Store) nonEmpty(path string) bool {
	info, err := s.stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
