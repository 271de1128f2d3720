package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/Tyrowin/gamechat/internal/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_EvictsOldestPastBound(t *testing.T) {
	log := NewLog(50)

	for i := 1; i <= 51; i++ {
		log.Append(Event{ID: fmt.Sprintf("event-%d", i), Kind: KindUser})
	}

	history := log.Snapshot()
	require.Len(t, history, 50)
	for i, e := range history {
		assert.Equal(t, fmt.Sprintf("event-%d", i+2), e.ID)
	}
}

func TestLog_LongRunKeepsOrder(t *testing.T) {
	log := NewLog(5)

	for i := 1; i <= 1000; i++ {
		log.Append(Event{ID: fmt.Sprintf("%d", i)})
	}

	history := log.Snapshot()
	require.Len(t, history, 5)
	assert.Equal(t, []string{"996", "997", "998", "999", "1000"}, ids(history))
}

func TestLog_DefaultBound(t *testing.T) {
	log := NewLog(0)
	for i := 0; i < DefaultMaxHistory+10; i++ {
		log.RecordSystemNotice("tick")
	}
	assert.Equal(t, DefaultMaxHistory, log.Len())
}

func TestLog_SnapshotIsDetached(t *testing.T) {
	log := NewLog(10)
	log.RecordSystemNotice("hello")

	snap := log.Snapshot()
	snap[0].Text = "mutated"

	assert.Equal(t, "hello", log.Snapshot()[0].Text)
}

func TestLog_RecordUserMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log := NewLog(10)
	log.SetClock(func() time.Time { return at })

	author := presence.Snapshot{ID: "p1", Name: "alice", Avatar: "https://example.test/a.png"}
	e := log.RecordUserMessage(author, "hi there")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, KindUser, e.Kind)
	assert.Equal(t, "hi there", e.Text)
	assert.Equal(t, at, e.Timestamp)
	assert.Equal(t, author, e.Author)
	assert.Equal(t, []Event{e}, log.Snapshot())
}

func TestLog_RecordUserMessageAcceptsEmptyText(t *testing.T) {
	log := NewLog(10)

	e := log.RecordUserMessage(presence.Snapshot{ID: "p1", Name: "alice"}, "")

	assert.Equal(t, "", e.Text)
	assert.Equal(t, 1, log.Len())
}

func TestLog_RecordSystemNotice(t *testing.T) {
	log := NewLog(10)

	e := log.RecordSystemNotice("alice has joined the chat")

	assert.Equal(t, KindSystem, e.Kind)
	assert.Equal(t, SystemAuthor, e.Author)
	assert.Equal(t, "alice has joined the chat", e.Text)
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}
