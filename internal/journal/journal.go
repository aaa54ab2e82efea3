// Package journal records every transaction the orchestrator submits.
package journal

import (
	"sync"
	"time"
)

const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Entry is one submitted (or skipped) pipeline step.
type Entry struct {
	Session   string        `json:"session"`
	Operation string        `json:"operation"`
	Step      string        `json:"step"`
	Signature string        `json:"signature,omitempty"`
	Status    string        `json:"status"`
	Kind      string        `json:"kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	At        time.Time     `json:"at"`
}

// Recorder captures journal entries.
type Recorder interface {
	Record(Entry)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(Entry) {}

// Multi fans an entry out to every recorder in order.
type Multi []Recorder

func (m Multi) Record(e Entry) {
	for _, r := range m {
		if r != nil {
			r.Record(e)
		}
	}
}

// Ledger stores entries in memory for quick inspection.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{entries: make([]Entry, 0, capacity)}
}

// Record appends an entry to the ledger.
func (l *Ledger) Record(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded entries.
func (l *Ledger) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Session returns the entries of one session, oldest first.
func (l *Ledger) Session(id string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Session == id {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears all stored entries.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.entries = l.entries[:0]
	l.mu.Unlock()
}
