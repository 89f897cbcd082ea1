package testutil

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RecordedEvent is one call captured by Recorder.
type RecordedEvent struct {
	Kind   string
	Detail string
}

// Recorder keeps audit events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(_ context.Context, kind, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordedEvent{Kind: kind, Detail: detail})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Has reports whether an event of kind with a detail containing substr exists.
func (r *Recorder) Has(kind, substr string) bool {
	for _, e := range r.Events() {
		if e.Kind == kind && strings.Contains(e.Detail, substr) {
			return true
		}
	}
	return false
}

// SnapshotSource is a scripted evidence source. With IgnoreCancel set, a
// delayed capture still returns its file after the context is done.
type SnapshotSource struct {
	Filename     string
	OK           bool
	Delay        time.Duration
	IgnoreCancel bool

	calls     atomic.Int32
	mu        sync.Mutex
	discarded []string
}

func (s *SnapshotSource) Capture(ctx context.Context, _ string) (string, bool) {
	s.calls.Add(1)
	if s.Delay > 0 {
		if s.IgnoreCancel {
			time.Sleep(s.Delay)
		} else {
			select {
			case <-time.After(s.Delay):
			case <-ctx.Done():
				return "", false
			}
		}
	}
	if !s.OK {
		return "", false
	}
	return s.Filename, true
}

func (s *SnapshotSource) Discard(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = append(s.discarded, filename)
}

// Discarded returns the file names passed to Discard so far.
func (s *SnapshotSource) Discarded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.discarded...)
}

// Calls reports how many captures were attempted.
func (s *SnapshotSource) Calls() int {
	return int(s.calls.Load())
}
