package presence

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%08d", n)
	}
}

func TestRegistry_JoinDistinctConnections(t *testing.T) {
	r := NewRegistry()

	const n = 25
	for i := 0; i < n; i++ {
		_, err := r.Join(fmt.Sprintf("conn-%d", i), "", "")
		require.NoError(t, err)
	}

	all := r.List()
	require.Len(t, all, n)

	seen := make(map[string]bool, n)
	for i, p := range all {
		assert.Equal(t, fmt.Sprintf("conn-%d", i), p.ConnectionID, "insertion order")
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestRegistry_JoinDefaults(t *testing.T) {
	r := NewRegistry(WithIDGenerator(func() string { return "abcdef123456" }))

	p, err := r.Join("conn-1", "", "")
	require.NoError(t, err)

	assert.Equal(t, "abcdef123456", p.ID)
	assert.Equal(t, "User-abcdef", p.Name)
	assert.Equal(t, "https://api.dicebear.com/7.x/avataaars/svg?seed=abcdef123456", p.Avatar)
	assert.Equal(t, "conn-1", p.ConnectionID)
	assert.False(t, p.JoinedAt.IsZero())
}

func TestRegistry_JoinKeepsRequestedIdentity(t *testing.T) {
	joined := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRegistry(
		WithAvatarTemplate("https://avatars.test/%s.png"),
		WithClock(func() time.Time { return joined }),
	)

	p, err := r.Join("conn-1", "alice", "https://example.test/a.png")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, "https://example.test/a.png", p.Avatar)
	assert.Equal(t, joined, p.JoinedAt)

	q, err := r.Join("conn-2", "bob", "")
	require.NoError(t, err)
	assert.Equal(t, "https://avatars.test/"+q.ID+".png", q.Avatar)
}

func TestRegistry_JoinTwiceFails(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("conn-1", "alice", "")
	require.NoError(t, err)

	_, err = r.Join("conn-1", "alice again", "")
	assert.True(t, errors.Is(err, ErrAlreadyJoined))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Lookups(t *testing.T) {
	r := NewRegistry(WithIDGenerator(sequentialIDs()))

	alice, err := r.Join("conn-a", "alice", "")
	require.NoError(t, err)

	byConn, err := r.ByConnection("conn-a")
	require.NoError(t, err)
	assert.Equal(t, alice, byConn)

	byID, err := r.ByID(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, byID)

	_, err = r.ByConnection("missing")
	assert.True(t, errors.Is(err, ErrConnectionNotFound))

	_, err = r.ByID("missing")
	assert.True(t, errors.Is(err, ErrParticipantNotFound))
}

func TestRegistry_Leave(t *testing.T) {
	r := NewRegistry(WithIDGenerator(sequentialIDs()))

	alice, _ := r.Join("conn-a", "alice", "")
	bob, _ := r.Join("conn-b", "bob", "")
	carol, _ := r.Join("conn-c", "carol", "")

	_, err := r.SetTyping(bob.ID, true)
	require.NoError(t, err)

	left, err := r.Leave("conn-b")
	require.NoError(t, err)
	assert.Equal(t, bob, left)

	assert.Equal(t, []Participant{alice, carol}, r.List())
	assert.False(t, r.Typing(bob.ID))

	_, err = r.ByID(bob.ID)
	assert.True(t, errors.Is(err, ErrParticipantNotFound))

	_, err = r.Leave("conn-b")
	assert.True(t, errors.Is(err, ErrConnectionNotFound))
}

func TestRegistry_SetTyping(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Join("conn-a", "alice", "")

	changed, err := r.SetTyping(p.ID, true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, r.Typing(p.ID))

	changed, err = r.SetTyping(p.ID, true)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = r.SetTyping(p.ID, false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, r.Typing(p.ID))

	_, err = r.SetTyping("ghost", true)
	assert.True(t, errors.Is(err, ErrParticipantNotFound))
}

func TestParticipantSnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Join("conn-a", "alice", "https://example.test/a.png")

	snap := p.Snapshot()
	p.Name = "renamed"

	assert.Equal(t, Snapshot{ID: p.ID, Name: "alice", Avatar: "https://example.test/a.png"}, snap)
}
