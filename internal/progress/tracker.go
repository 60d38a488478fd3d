// Package progress tracks the live state of an acquisition run for the
// status endpoint and the end-of-run summary.
package progress

import (
	"sync"
	"time"
)

// Source outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCapped    = "capped"
	OutcomeAbandoned = "abandoned"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// SourceStatus is the record of one drained or in-flight source.
type SourceStatus struct {
	Kind     string    `json:"kind"`
	Source   string    `json:"source"`
	Lines    int       `json:"lines"`
	Pages    int       `json:"pages"`
	Outcome  string    `json:"outcome,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
}

// Status is a point-in-time copy of a run.
type Status struct {
	RunID     string         `json:"run_id"`
	Command   string         `json:"command"`
	Started   time.Time      `json:"started"`
	Lines     int            `json:"lines"`
	Current   *SourceStatus  `json:"current,omitempty"`
	Sources   []SourceStatus `json:"sources"`
	Done      bool           `json:"done"`
	LastError string         `json:"last_error,omitempty"`
}

// Clock provides timestamps.
type Clock interface {
	Now() time.Time
}

// Tracker is safe for concurrent use; the run loop writes while the status
// listener reads.
type Tracker struct {
	mu      sync.Mutex
	clock   Clock
	status  Status
	current *SourceStatus
}

// NewTracker starts tracking a run.
func NewTracker(runID, command string, clock Clock) *Tracker {
	return &Tracker{
		clock: clock,
		status: Status{
			RunID:   runID,
			Command: command,
			Started: clock.Now(),
			Sources: []SourceStatus{},
		},
	}
}

// Begin marks source as in flight. A previous unfinished source is closed
// as canceled.
func (t *Tracker) Begin(kind, source string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.closeLocked(OutcomeCanceled)
	}
	t.current = &SourceStatus{Kind: kind, Source: source, Started: t.clock.Now()}
}

// AddLines counts lines written for the current source.
func (t *Tracker) AddLines(n int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Lines += n
	if t.current != nil {
		t.current.Lines += n
	}
}

// AddPages counts pages or works handled for the current source.
func (t *Tracker) AddPages(n int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Pages += n
	}
}

// End closes the current source with outcome.
func (t *Tracker) End(outcome string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked(outcome)
}

// Fail records err against the run without closing it.
func (t *Tracker) Fail(err error) {
	if t == nil || err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastError = err.Error()
}

// Finish marks the whole run done.
func (t *Tracker) Finish() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.closeLocked(OutcomeCanceled)
	}
	t.status.Done = true
}

// Snapshot returns a deep copy of the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.status
	out.Sources = append([]SourceStatus(nil), t.status.Sources...)
	if t.current != nil {
		cur := *t.current
		out.Current = &cur
	}
	return out
}

func (t *Tracker) closeLocked(outcome string) {
	if t.current == nil {
		return
	}
	t.current.Outcome = outcome
	t.current.Finished = t.clock.Now()
	t.status.Sources = append(t.status.Sources, *t.current)
	t.current = nil
}
