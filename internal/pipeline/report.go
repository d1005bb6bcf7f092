package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind labels one observable moment in a batch run.
type EventKind string

const (
	EventFileStarted    EventKind = "file_started"
	EventFileFailed     EventKind = "file_failed"
	EventSegmentSkipped EventKind = "segment_skipped"
	EventSegmentDone    EventKind = "segment_done"
	EventSegmentFailed  EventKind = "segment_failed"
	EventSeriesMerged   EventKind = "series_merged"
	EventMergeMissing   EventKind = "merge_missing"
)

// Bounded event history. Reporting only; completion state stays on the
// filesystem.
const maxEvents = 1024

// Event is one sequenced run occurrence.
type Event struct {
	Seq     uint64    `json:"seq"`
	RunID   string    `json:"runId"`
	Kind    EventKind `json:"kind"`
	File    string    `json:"file,omitempty"`
	Segment string    `json:"segment,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Summary aggregates one batch run for the operator.
type Summary struct {
	RunID           string `json:"runId"`
	FilesAttempted  int    `json:"filesAttempted"`
	FilesFailed     int    `json:"filesFailed"`
	SegmentsDone    int    `json:"segmentsDone"`
	SegmentsSkipped int    `json:"segmentsSkipped"`
	SegmentsFailed  int    `json:"segmentsFailed"`
	SeriesMerged    int    `json:"seriesMerged"`
	MergeMissing    int    `json:"mergeMissing"`
}

// Reporter accumulates sequenced run events and mirrors each one to the
// structured log. Oldest events are dropped past the buffer bound.
type Reporter struct {
	mu     sync.Mutex
	runID  string
	seq    uint64
	events []Event
	sum    Summary
	log    *slog.Logger
	now    func() time.Time
}

// NewReporter creates a reporter with a fresh run ID.
func NewReporter(log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	runID := uuid.NewString()
	return &Reporter{
		runID: runID,
		sum:   Summary{RunID: runID},
		log:   log.With("runId", runID),
		now:   time.Now,
	}
}

// RunID returns the identifier attached to every event of this run.
func (r *Reporter) RunID() string {
	return r.runID
}

// Record appends one event, updates counters, and logs it.
func (r *Reporter) Record(kind EventKind, file, segment string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	event := Event{
		Seq:     r.seq,
		RunID:   r.runID,
		Kind:    kind,
		File:    file,
		Segment: segment,
		At:      r.now(),
	}
	if err != nil {
		event.Error = err.Error()
	}

	r.events = append(r.events, event)
	if len(r.events) > maxEvents {
		r.events = r.events[len(r.events)-maxEvents:]
	}

	switch kind {
	case EventFileStarted:
		r.sum.FilesAttempted++
	case EventFileFailed:
		r.sum.FilesFailed++
	case EventSegmentDone:
		r.sum.SegmentsDone++
	case EventSegmentSkipped:
		r.sum.SegmentsSkipped++
	case EventSegmentFailed:
		r.sum.SegmentsFailed++
	case EventSeriesMerged:
		r.sum.SeriesMerged++
	case EventMergeMissing:
		r.sum.MergeMissing++
	}

	attrs := []any{"seq", event.Seq, "kind", string(kind)}
	if file != "" {
		attrs = append(attrs, "file", file)
	}
	if segment != "" {
		attrs = append(attrs, "segment", segment)
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
		r.log.Error("run event", attrs...)
		return
	}
	r.log.Info("run event", attrs...)
}

// Events returns a copy of the retained event history in order.
func (r *Reporter) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Summary returns the aggregated counters for this run.
func (r *Reporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sum
}
