package transcript

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Filename grammar of per-segment transcripts. Series identity is the
// name with the part suffix stripped; the clean marker distinguishes
// the two variants of the same segment.
var (
	seriesSuffixRe = regexp.MustCompile(`_part\d+\.(clean\.)?txt$`)
	partNumberRe   = regexp.MustCompile(`part(\d+)`)
)

// Merger combines per-segment transcripts into one ordered document per
// series and variant.
type Merger struct {
	dir string
	log *slog.Logger
}

// NewMerger builds a merger over one transcript directory.
func NewMerger(dir string, log *slog.Logger) *Merger {
	if log == nil {
		log = slog.Default()
	}
	return &Merger{dir: dir, log: log}
}

// MergeAll merges every series found in the transcript directory. Only
// top-level files are considered; nested directories are invisible to
// the flat glob. Individual series failures are logged and do not stop
// the remaining series.
func (m *Merger) MergeAll() error {
	matches, err := filepath.Glob(filepath.Join(m.dir, "*part*.txt"))
	if err != nil {
		return fmt.Errorf("scan transcript directory: %w", err)
	}

	series := map[string]bool{}
	for _, match := range matches {
		name := filepath.Base(match)
		if !seriesSuffixRe.MatchString(name) {
			continue
		}
		series[seriesSuffixRe.ReplaceAllString(name, "")] = true
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var firstErr error
	for _, name := range names {
		if err := m.mergeSeries(name); err != nil {
			m.log.Error("series merge failed", "series", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// MergedPath returns the merged raw document path for a series.
func (m *Merger) MergedPath(series string) string {
	return filepath.Join(m.dir, series+".txt")
}

// MergedCleanPath returns the merged cleaned document path for a series.
func (m *Merger) MergedCleanPath(series string) string {
	return filepath.Join(m.dir, series+".clean.txt")
}

// mergeSeries merges the raw and cleaned variants of one series
// independently.
func (m *Merger) mergeSeries(series string) error {
	if err := m.mergeVariant(series, false); err != nil {
		return err
	}
	return m.mergeVariant(series, true)
}

// mergeVariant orders one variant's segment files by part number, joins
// their stripped contents, and overwrites the merged document. With no
// surviving content the merged file is not written at all.
func (m *Merger) mergeVariant(series string, clean bool) error {
	pattern := filepath.Join(m.dir, series+"_part*.txt")
	if clean {
		pattern = filepath.Join(m.dir, series+"_part*.clean.txt")
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("scan series %s: %w", series, err)
	}

	var files []string
	for _, match := range matches {
		isClean := strings.HasSuffix(match, ".clean.txt")
		if isClean == clean {
			files = append(files, match)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return partNumber(files[i]) < partNumber(files[j])
	})

	var contents []string
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read segment transcript %s: %w", file, err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		contents = append(contents, text)
	}
	if len(contents) == 0 {
		return nil
	}

	out := m.MergedPath(series)
	if clean {
		out = m.MergedCleanPath(series)
	}
	if err := os.WriteFile(out, []byte(strings.Join(contents, "\n\n")), 0o644); err != nil {
		return fmt.Errorf("write merged document %s: %w", out, err)
	}

	m.log.Info("series merged", "series", series, "clean", clean, "segments", len(contents))
	return nil
}

// partNumber extracts the segment index from a filename. A name without
// a parseable part token sorts first.
func partNumber(path string) int {
	match := partNumberRe.FindStringSubmatch(filepath.Base(path))
	if match == nil {
		return -1
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return -1
	}
	return n
}
