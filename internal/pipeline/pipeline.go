package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getsentry/sentry-go"

	"audioscribe/internal/config"
	"audioscribe/internal/domain"
	"audioscribe/internal/transcribe"
)

// ErrUnsupportedFormat marks an input extension outside the whitelist.
// The file is rejected before any processing begins.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// segmentSplitter produces ordered audio segments for one source file.
type segmentSplitter interface {
	Split(ctx context.Context, path string) ([]string, error)
}

// transcriber turns one audio segment into text plus metadata.
type transcriber interface {
	Transcribe(ctx context.Context, path string) (transcribe.Result, error)
}

// textCleaner rewrites one raw transcript.
type textCleaner interface {
	Clean(ctx context.Context, rawText string) (string, error)
}

// artifactStore persists and queries transcript artifacts.
type artifactStore interface {
	Dir() string
	BaseName(audioPath string) string
	HasCompleteTranscript(base string) bool
	HasCleanTranscript(base string) bool
	Save(base, text string, metadata map[string]any) error
	SaveClean(base, text string) error
	ReadText(base string) (string, error)
}

// seriesMerger builds merged documents from per-segment transcripts.
type seriesMerger interface {
	MergeAll() error
	MergedPath(series string) string
}

// Orchestrator drives the batch: split, transcribe, clean, merge. One
// source file at a time, segments in order; failures are isolated per
// item and never abort the batch.
type Orchestrator struct {
	originalsDir string
	splitter     segmentSplitter
	transcriber  transcriber
	cleaner      textCleaner
	store        artifactStore
	merger       seriesMerger
	report       *Reporter
	log          *slog.Logger
}

// NewOrchestrator wires the batch pipeline.
func NewOrchestrator(
	originalsDir string,
	splitter segmentSplitter,
	transcriber transcriber,
	cleaner textCleaner,
	store artifactStore,
	merger seriesMerger,
	report *Reporter,
	log *slog.Logger,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		originalsDir: originalsDir,
		splitter:     splitter,
		transcriber:  transcriber,
		cleaner:      cleaner,
		store:        store,
		merger:       merger,
		report:       report,
		log:          log,
	}
}

// Run processes every supported file in the originals directory and
// finishes with an unconditional merge pass. The returned summary
// reflects per-item outcomes; only discovery and merge infrastructure
// failures surface as the error.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	files, err := o.discover()
	if err != nil {
		return o.report.Summary(), err
	}
	if len(files) == 0 {
		o.log.Info("no supported audio files found", "dir", o.originalsDir)
	}

	var seriesNames []string
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return o.report.Summary(), err
		}

		o.report.Record(EventFileStarted, filepath.Base(file), "", nil)
		if err := o.ProcessFile(ctx, file); err != nil {
			o.report.Record(EventFileFailed, filepath.Base(file), "", err)
			sentry.CaptureException(err)
			continue
		}
		seriesNames = append(seriesNames, domain.SeriesName(domain.Stem(file)))
	}

	// Merge runs over whatever artifacts exist, regardless of upstream
	// failures.
	if err := o.merger.MergeAll(); err != nil {
		o.log.Error("merge pass reported failures", "error", err)
		sentry.CaptureException(err)
	}
	o.verifyMerged(seriesNames)

	return o.report.Summary(), nil
}

// ProcessFile runs one source file through split, transcribe, and clean.
// Per-segment failures are recorded and do not stop later segments; the
// file-level error reflects the first fatal step.
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) error {
	if !config.IsSupportedFormat(filepath.Ext(path)) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("source file not found: %s: %w", path, err)
	}

	segments := []string{path}
	if info.Size() > config.MaxUploadBytes {
		segments, err = o.splitter.Split(ctx, path)
		if err != nil {
			return err
		}
	}

	var firstErr error
	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.processSegment(ctx, segment); err != nil {
			o.report.Record(EventSegmentFailed, filepath.Base(path), filepath.Base(segment), err)
			sentry.CaptureException(err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		o.report.Record(EventSegmentDone, filepath.Base(path), filepath.Base(segment), nil)
	}
	return firstErr
}

// processSegment transcribes and cleans one segment, skipping work whose
// artifacts already exist.
func (o *Orchestrator) processSegment(ctx context.Context, segment string) error {
	base := o.store.BaseName(segment)

	if o.store.HasCompleteTranscript(base) {
		o.report.Record(EventSegmentSkipped, "", filepath.Base(segment), nil)
	} else {
		result, err := o.transcriber.Transcribe(ctx, segment)
		if err != nil {
			return err
		}
		if err := o.store.Save(base, result.Text, result.Metadata); err != nil {
			return err
		}
	}

	return o.cleanBase(ctx, base)
}

// cleanBase produces the cleaned artifact for one base name. An existing
// cleaned artifact short-circuits without a remote call.
func (o *Orchestrator) cleanBase(ctx context.Context, base string) error {
	if o.store.HasCleanTranscript(base) {
		return nil
	}

	raw, err := o.store.ReadText(base)
	if err != nil {
		return err
	}
	cleaned, err := o.cleaner.Clean(ctx, raw)
	if err != nil {
		return err
	}
	return o.store.SaveClean(base, cleaned)
}

// RecleanAll re-runs the cleanup stage over every raw transcript in the
// store, skipping those already cleaned. Failures are isolated per file.
func (o *Orchestrator) RecleanAll(ctx context.Context) (Summary, error) {
	matches, err := filepath.Glob(filepath.Join(o.store.Dir(), "*.txt"))
	if err != nil {
		return o.report.Summary(), fmt.Errorf("scan transcript directory: %w", err)
	}
	sort.Strings(matches)

	for _, match := range matches {
		if strings.HasSuffix(match, ".clean.txt") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return o.report.Summary(), err
		}

		base := strings.TrimSuffix(filepath.Base(match), ".txt")
		if o.store.HasCleanTranscript(base) {
			o.report.Record(EventSegmentSkipped, "", filepath.Base(match), nil)
			continue
		}
		if err := o.cleanBase(ctx, base); err != nil {
			o.report.Record(EventSegmentFailed, "", filepath.Base(match), err)
			sentry.CaptureException(err)
			continue
		}
		o.report.Record(EventSegmentDone, "", filepath.Base(match), nil)
	}

	return o.report.Summary(), nil
}

// MergeOnly runs just the merge pass over existing artifacts.
func (o *Orchestrator) MergeOnly() (Summary, error) {
	if err := o.merger.MergeAll(); err != nil {
		return o.report.Summary(), err
	}
	return o.report.Summary(), nil
}

// discover lists supported audio files in the originals directory,
// sorted by name.
func (o *Orchestrator) discover() ([]string, error) {
	entries, err := os.ReadDir(o.originalsDir)
	if err != nil {
		return nil, fmt.Errorf("read originals directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if config.IsSupportedFormat(filepath.Ext(entry.Name())) {
			files = append(files, filepath.Join(o.originalsDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// verifyMerged confirms a merged document exists for every series that
// completed processing. A missing merged artifact is a batch-level
// defect recorded in the report.
func (o *Orchestrator) verifyMerged(seriesNames []string) {
	seen := map[string]bool{}
	for _, series := range seriesNames {
		if seen[series] {
			continue
		}
		seen[series] = true

		merged := o.merger.MergedPath(series)
		info, err := os.Stat(merged)
		if err != nil || info.Size() == 0 {
			// Single-segment sources keep their transcript under the
			// segment name; only split series produce a merged doc.
			if !o.store.HasCompleteTranscript(series) {
				o.report.Record(EventMergeMissing, series, "", fmt.Errorf("no merged document for series %s", series))
				continue
			}
		}
		o.report.Record(EventSeriesMerged, series, "", nil)
	}
}
