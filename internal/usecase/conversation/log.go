package conversation

import (
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/message"
)

// Log is an append-only, ordered chat history. Safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	messages []message.Message
	nextID   int64
	now      func() time.Time
}

// NewLog creates an empty log. The first appended message gets id 1.
func NewLog() *Log {
	return &Log{nextID: 1, now: time.Now}
}

// WithClock replaces the timestamp source.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	return l
}

// Append adds drafts as one contiguous block with strictly increasing ids.
// Drafts with an invalid role are skipped.
func (l *Log) Append(drafts ...message.Draft) []message.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now().UTC()
	out := make([]message.Message, 0, len(drafts))
	for _, d := range drafts {
		if !d.Role.IsValid() {
			continue
		}
		m := message.New(l.nextID, d, ts)
		l.nextID++
		l.messages = append(l.messages, m)
		out = append(out, m)
	}
	return out
}

// All returns a lazy view of the log in append order.
// Each iteration sees the messages present when it starts; it can be ranged over repeatedly.
func (l *Log) All() iter.Seq[message.Message] {
	return func(yield func(message.Message) bool) {
		l.mu.RLock()
		view := l.messages[:len(l.messages):len(l.messages)]
		l.mu.RUnlock()

		for _, m := range view {
			if !yield(m) {
				return
			}
		}
	}
}

// After returns a lazy view of messages with id greater than afterID.
func (l *Log) After(afterID int64) iter.Seq[message.Message] {
	return func(yield func(message.Message) bool) {
		for m := range l.All() {
			if m.ID() <= afterID {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Snapshot returns a copy of every message.
func (l *Log) Snapshot() []message.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.messages)
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
