package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audioscribe/internal/transcribe"
	"audioscribe/internal/transcript"
)

// fakeSplitter returns canned segments per source path.
type fakeSplitter struct {
	calls    int
	segments map[string][]string
	err      error
}

// Split returns the canned segment list for a path.
func (f *fakeSplitter) Split(_ context.Context, path string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.segments[path], nil
}

// fakeTranscriber records calls and can fail specific segments.
type fakeTranscriber struct {
	calls   []string
	failFor map[string]error
}

// Transcribe returns deterministic text derived from the segment name.
func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (transcribe.Result, error) {
	f.calls = append(f.calls, filepath.Base(path))
	if err, ok := f.failFor[filepath.Base(path)]; ok {
		return transcribe.Result{}, err
	}
	return transcribe.Result{
		Text:     "text of " + filepath.Base(path),
		Metadata: map[string]any{"source": filepath.Base(path)},
	}, nil
}

// fakeCleaner records calls and uppercases input.
type fakeCleaner struct {
	calls int
	err   error
}

// Clean returns the input with a cleaned marker.
func (f *fakeCleaner) Clean(_ context.Context, raw string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "cleaned: " + raw, nil
}

// quietLogger drops everything below error.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

// testHarness bundles an orchestrator over real store and merger with
// fake remote stages.
type testHarness struct {
	orch        *Orchestrator
	store       *transcript.Store
	splitter    *fakeSplitter
	transcriber *fakeTranscriber
	cleaner     *fakeCleaner
	originals   string
	splits      string
}

// newHarness builds the pipeline against temp directories.
func newHarness(t *testing.T) *testHarness {
	t.Helper()

	originals := t.TempDir()
	splits := t.TempDir()
	transcripts := t.TempDir()

	store, err := transcript.NewStore(transcripts)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	merger := transcript.NewMerger(transcripts, quietLogger())

	splitter := &fakeSplitter{segments: map[string][]string{}}
	trans := &fakeTranscriber{failFor: map[string]error{}}
	cleaner := &fakeCleaner{}

	orch := NewOrchestrator(
		originals, splitter, trans, cleaner, store, merger,
		NewReporter(quietLogger()), quietLogger(),
	)
	return &testHarness{
		orch:        orch,
		store:       store,
		splitter:    splitter,
		transcriber: trans,
		cleaner:     cleaner,
		originals:   originals,
		splits:      splits,
	}
}

// addOriginal drops a source file of the given size into the originals dir.
func (h *testHarness) addOriginal(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(h.originals, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// addSegment creates a physical segment file in the splits dir.
func (h *testHarness) addSegment(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(h.splits, name)
	if err := os.WriteFile(path, []byte("seg"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// TestRunSmallFileIsSeriesOfOne checks a file under the upload limit is
// transcribed directly without splitting.
func TestRunSmallFileIsSeriesOfOne(t *testing.T) {
	h := newHarness(t)
	h.addOriginal(t, "memo.mp3", 100)

	sum, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.splitter.calls != 0 {
		t.Fatalf("splitter invoked %d times, want 0", h.splitter.calls)
	}
	if sum.SegmentsDone != 1 || sum.FilesAttempted != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if !h.store.HasCompleteTranscript("memo") {
		t.Fatal("transcript artifacts missing")
	}
	if !h.store.HasCleanTranscript("memo") {
		t.Fatal("cleaned artifact missing")
	}
}

// TestRunOversizedFileIsSplit checks the split path and per-segment
// artifact creation plus the final merge.
func TestRunOversizedFileIsSplit(t *testing.T) {
	h := newHarness(t)
	src := h.addOriginal(t, "lecture.mp3", 26*1024*1024)
	segs := []string{
		h.addSegment(t, "lecture_part000.mp3"),
		h.addSegment(t, "lecture_part001.mp3"),
	}
	h.splitter.segments[src] = segs

	sum, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.splitter.calls != 1 {
		t.Fatalf("splitter invoked %d times, want 1", h.splitter.calls)
	}
	if sum.SegmentsDone != 2 {
		t.Fatalf("SegmentsDone = %d, want 2", sum.SegmentsDone)
	}

	merged, err := os.ReadFile(filepath.Join(h.store.Dir(), "lecture.txt"))
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	if want := "text of lecture_part000.mp3\n\ntext of lecture_part001.mp3"; string(merged) != want {
		t.Fatalf("merged = %q, want %q", merged, want)
	}
}

// TestRunSkipsCompletedSegments checks resume behavior: complete
// artifacts short-circuit transcription but cleanup still runs.
func TestRunSkipsCompletedSegments(t *testing.T) {
	h := newHarness(t)
	src := h.addOriginal(t, "talk.mp3", 26*1024*1024)
	segs := []string{
		h.addSegment(t, "talk_part000.mp3"),
		h.addSegment(t, "talk_part001.mp3"),
	}
	h.splitter.segments[src] = segs

	if err := h.store.Save("talk_part000", "prior text", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}
	if err := h.store.SaveClean("talk_part000", "prior clean"); err != nil {
		t.Fatalf("seed clean: %v", err)
	}

	sum, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.transcriber.calls) != 1 || h.transcriber.calls[0] != "talk_part001.mp3" {
		t.Fatalf("transcriber calls = %v, want only talk_part001.mp3", h.transcriber.calls)
	}
	if h.cleaner.calls != 1 {
		t.Fatalf("cleaner invoked %d times, want 1", h.cleaner.calls)
	}
	if sum.SegmentsSkipped != 1 || sum.SegmentsDone != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

// TestRunIsolatesSegmentFailures checks one failing segment does not
// stop the rest of the batch or the merge.
func TestRunIsolatesSegmentFailures(t *testing.T) {
	h := newHarness(t)
	src := h.addOriginal(t, "talk.mp3", 26*1024*1024)
	segs := []string{
		h.addSegment(t, "talk_part000.mp3"),
		h.addSegment(t, "talk_part001.mp3"),
		h.addSegment(t, "talk_part002.mp3"),
	}
	h.splitter.segments[src] = segs
	h.transcriber.failFor["talk_part001.mp3"] = errors.New("remote outage")

	sum, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.SegmentsDone != 2 || sum.SegmentsFailed != 1 || sum.FilesFailed != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	merged, readErr := os.ReadFile(filepath.Join(h.store.Dir(), "talk.txt"))
	if readErr != nil {
		t.Fatalf("read merged: %v", readErr)
	}
	if strings.Contains(string(merged), "part001") {
		t.Fatalf("merged contains failed segment: %q", merged)
	}
	if !strings.Contains(string(merged), "talk_part000.mp3") || !strings.Contains(string(merged), "talk_part002.mp3") {
		t.Fatalf("merged missing surviving segments: %q", merged)
	}
}

// TestRunIsolatesFileFailures checks a split failure on one file leaves
// the next file processed.
func TestRunIsolatesFileFailures(t *testing.T) {
	h := newHarness(t)
	h.addOriginal(t, "bad.mp3", 26*1024*1024) // no segments registered
	h.addOriginal(t, "good.mp3", 100)
	h.splitter.err = errors.New("segmenter failed")

	// Only the oversized file consults the splitter, so the error hits
	// bad.mp3 alone.
	sum, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.FilesFailed != 1 {
		t.Fatalf("FilesFailed = %d, want 1", sum.FilesFailed)
	}
	if !h.store.HasCompleteTranscript("good") {
		t.Fatal("good.mp3 transcript missing")
	}
}

// TestProcessFileRejectsUnsupportedFormat checks the whitelist guard.
func TestProcessFileRejectsUnsupportedFormat(t *testing.T) {
	h := newHarness(t)
	path := h.addOriginal(t, "notes.flac", 100)

	err := h.orch.ProcessFile(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("ProcessFile() error = %v, want ErrUnsupportedFormat", err)
	}
	if len(h.transcriber.calls) != 0 {
		t.Fatalf("transcriber invoked for unsupported format")
	}
}

// TestRecleanAllSkipsCleaned checks the corpus-wide cleanup pass only
// touches transcripts without a cleaned sibling.
func TestRecleanAllSkipsCleaned(t *testing.T) {
	h := newHarness(t)

	if err := h.store.Save("a_part000", "alpha raw", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := h.store.Save("b_part000", "beta raw", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := h.store.SaveClean("a_part000", "alpha clean"); err != nil {
		t.Fatalf("seed clean: %v", err)
	}

	sum, err := h.orch.RecleanAll(context.Background())
	if err != nil {
		t.Fatalf("RecleanAll() error = %v", err)
	}
	if h.cleaner.calls != 1 {
		t.Fatalf("cleaner invoked %d times, want 1", h.cleaner.calls)
	}
	if sum.SegmentsDone != 1 || sum.SegmentsSkipped != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if !h.store.HasCleanTranscript("b_part000") {
		t.Fatal("b_part000 not cleaned")
	}
}

// TestReporterSequencesEvents checks ordering and counter aggregation.
func TestReporterSequencesEvents(t *testing.T) {
	r := NewReporter(quietLogger())

	r.Record(EventFileStarted, "a.mp3", "", nil)
	r.Record(EventSegmentDone, "a.mp3", "a_part000.mp3", nil)
	r.Record(EventSegmentFailed, "a.mp3", "a_part001.mp3", errors.New("boom"))

	events := r.Events()
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, event := range events {
		if event.Seq != uint64(i+1) {
			t.Fatalf("event[%d].Seq = %d", i, event.Seq)
		}
		if event.RunID != r.RunID() {
			t.Fatalf("event[%d].RunID = %q", i, event.RunID)
		}
	}

	sum := r.Summary()
	if sum.FilesAttempted != 1 || sum.SegmentsDone != 1 || sum.SegmentsFailed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}
