// Package eventlog keeps the operator-facing record of system events.
package eventlog

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies a log entry for presentation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DefaultCapacity is the number of entries kept when no capacity is configured.
const DefaultCapacity = 50

// Entry is immutable once appended.
type Entry struct {
	ID          string   `json:"id"`
	TimestampMs int64    `json:"timestamp"`
	Severity    Severity `json:"type"`
	Text        string   `json:"content"`
}

// Observer is notified after each append.
type Observer func(Entry)

// Log is a fixed-capacity ring. Appending to a full log evicts the oldest
// entry in the same call, so the length never exceeds the capacity.
type Log struct {
	buf       []Entry
	start     int
	size      int
	now       func() time.Time
	observers []Observer
}

// New creates a log holding at most capacity entries.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf: make([]Entry, capacity),
		now: time.Now,
	}
}

// SetClock replaces the timestamp source.
func (l *Log) SetClock(now func() time.Time) {
	l.now = now
}

// Subscribe registers an observer.
func (l *Log) Subscribe(o Observer) {
	l.observers = append(l.observers, o)
}

// Append records text at the given severity and returns the stored entry.
func (l *Log) Append(text string, severity Severity) Entry {
	entry := Entry{
		ID:          uuid.NewString(),
		TimestampMs: l.now().UnixMilli(),
		Severity:    severity,
		Text:        text,
	}

	capacity := len(l.buf)
	if l.size < capacity {
		l.buf[(l.start+l.size)%capacity] = entry
		l.size++
	} else {
		l.buf[l.start] = entry
		l.start = (l.start + 1) % capacity
	}

	for _, o := range l.observers {
		o(entry)
	}
	return entry
}

// Info appends an info entry.
func (l *Log) Info(text string) Entry { return l.Append(text, SeverityInfo) }

// Success appends a success entry.
func (l *Log) Success(text string) Entry { return l.Append(text, SeveritySuccess) }

// Warning appends a warning entry.
func (l *Log) Warning(text string) Entry { return l.Append(text, SeverityWarning) }

// Error appends an error entry.
func (l *Log) Error(text string) Entry { return l.Append(text, SeverityError) }

// Entries returns a copy in insertion order, oldest first.
func (l *Log) Entries() []Entry {
	out := make([]Entry, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (l *Log) Recent(limit int) []Entry {
	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = l.buf[(l.start+l.size-1-i)%len(l.buf)]
	}
	return out
}

// Len returns the number of stored entries.
func (l *Log) Len() int { return l.size }

// Cap returns the capacity.
func (l *Log) Cap() int { return len(l.buf) }
