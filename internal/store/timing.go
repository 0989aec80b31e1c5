package store

import (
	"fmt"
	"sync"
	"time"
)

// TimingEntry records how long one stage of one chapter took.
type TimingEntry struct {
	Stage    string    `json:"stage"`
	Chapter  string    `json:"chapter,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
	Duration string    `json:"duration,omitempty"`
	Failed   bool      `json:"failed,omitempty"`
}

// Timing is the per-course stage ledger persisted with the record.
type Timing struct {
	mu      sync.Mutex
	Entries []TimingEntry `json:"entries"`
}

// AddStart appends a new open entry.
func (t *Timing) AddStart(stage, chapter string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Entries = append(t.Entries, TimingEntry{
		Stage:   stage,
		Chapter: chapter,
		Start:   time.Now(),
	})
}

// AddEnd closes the most recent open entry for stage and chapter.
func (t *Timing) AddEnd(stage, chapter string, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.Entries) - 1; i >= 0; i-- {
		e := &t.Entries[i]
		if e.Stage == stage && e.Chapter == chapter && e.End.IsZero() {
			e.End = time.Now()
			e.Duration = formatDuration(e.End.Sub(e.Start))
			e.Failed = failed
			break
		}
	}
}

// Last returns the duration of the latest finished entry for stage and
// chapter, or "".
func (t *Timing) Last(stage, chapter string) string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.Entries) - 1; i >= 0; i-- {
		e := t.Entries[i]
		if e.Stage == stage && e.Chapter == chapter && e.Duration != "" {
			return e.Duration
		}
	}
	return ""
}

func formatDuration(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}
