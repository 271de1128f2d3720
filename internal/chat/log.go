// Package chat keeps the bounded chat history replayed to newly joined
// participants.
package chat

import (
	"time"

	"github.com/Tyrowin/gamechat/internal/presence"
	"github.com/google/uuid"
)

// DefaultMaxHistory is the number of events kept when no bound is given.
const DefaultMaxHistory = 50

// Kind distinguishes user messages from system notices.
type Kind string

const (
	KindUser   Kind = "user"
	KindSystem Kind = "system"
)

// SystemAuthor is the synthetic author attached to system notices.
var SystemAuthor = presence.Snapshot{ID: "system", Name: "System"}

// Event is one entry of the chat history.
type Event struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"type"`
	Text      string            `json:"text"`
	Timestamp time.Time         `json:"timestamp"`
	Author    presence.Snapshot `json:"user"`
}

// Log is an append-only FIFO of at most max events. It is not safe for
// concurrent use.
type Log struct {
	events []Event
	max    int
	now    func() time.Time
	newID  func() string
}

// NewLog returns an empty log holding at most maxHistory events.
func NewLog(maxHistory int) *Log {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Log{
		events: make([]Event, 0, maxHistory+1),
		max:    maxHistory,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// SetClock replaces time.Now for event timestamps.
func (l *Log) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Append inserts e at the end, evicting the oldest entry past the bound.
func (l *Log) Append(e Event) {
	l.events = append(l.events, e)
	if len(l.events) > l.max {
		l.events[0] = Event{}
		l.events = l.events[1:]
	}
}

// Snapshot returns a copy of the history, oldest first.
func (l *Log) Snapshot() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of stored events.
func (l *Log) Len() int {
	return len(l.events)
}

// RecordUserMessage appends a user message. Text is stored verbatim.
func (l *Log) RecordUserMessage(author presence.Snapshot, text string) Event {
	e := Event{
		ID:        l.newID(),
		Kind:      KindUser,
		Text:      text,
		Timestamp: l.now(),
		Author:    author,
	}
	l.Append(e)
	return e
}

// RecordSystemNotice appends a notice authored by SystemAuthor.
func (l *Log) RecordSystemNotice(text string) Event {
	e := Event{
		ID:        l.newID(),
		Kind:      KindSystem,
		Text:      text,
		Timestamp: l.now(),
		Author:    SystemAuthor,
	}
	l.Append(e)
	return e
}
