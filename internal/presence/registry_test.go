package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJoinAndLeave(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, Unregistered, r.State("c1"))

	cameOnline := r.Join(Entry{UserID: "u1", ConnectionID: "c1", DisplayName: "Ada"})
	require.True(t, cameOnline)
	require.Equal(t, Joined, r.State("c1"))
	require.True(t, r.IsOnline("u1"))

	e, wentOffline, ok := r.Leave("c1")
	require.True(t, ok)
	require.True(t, wentOffline)
	require.Equal(t, "Ada", e.DisplayName)
	require.Equal(t, Unregistered, r.State("c1"))
	require.False(t, r.IsOnline("u1"))

	_, _, ok = r.Leave("c1")
	require.False(t, ok)
}

func TestStaleDisconnectDoesNotClobberNewerJoin(t *testing.T) {
	r := NewRegistry()
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	r.Join(Entry{UserID: "u1", ConnectionID: "old", DisplayName: "Laptop", JoinedAt: t0})
	cameOnline := r.Join(Entry{UserID: "u1", ConnectionID: "new", DisplayName: "Phone", JoinedAt: t0.Add(time.Minute)})
	require.False(t, cameOnline)

	current, ok := r.Current("u1")
	require.True(t, ok)
	require.Equal(t, "new", current.ConnectionID)

	_, wentOffline, ok := r.Leave("old")
	require.True(t, ok)
	require.False(t, wentOffline)

	current, ok = r.Current("u1")
	require.True(t, ok)
	require.Equal(t, "Phone", current.DisplayName)
	require.True(t, r.IsOnline("u1"))
}

func TestLeavingLatestFallsBackToNewestRemaining(t *testing.T) {
	r := NewRegistry()
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	r.Join(Entry{UserID: "u1", ConnectionID: "a", DisplayName: "A", JoinedAt: t0})
	r.Join(Entry{UserID: "u1", ConnectionID: "b", DisplayName: "B", JoinedAt: t0.Add(time.Minute)})
	r.Join(Entry{UserID: "u1", ConnectionID: "c", DisplayName: "C", JoinedAt: t0.Add(2 * time.Minute)})

	r.Leave("c")
	current, _ := r.Current("u1")
	require.Equal(t, "B", current.DisplayName)
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Join(Entry{UserID: "u2", ConnectionID: "c2"})
	r.Join(Entry{UserID: "u1", ConnectionID: "c1"})
	r.Join(Entry{UserID: "u1", ConnectionID: "c3", DisplayName: "latest"})

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "u1", string(snap[0].UserID))
	require.Equal(t, "latest", snap[0].DisplayName)
	require.Equal(t, 2, r.OnlineCount())
}

func TestRejoinAsDifferentUserReleasesPreviousUser(t *testing.T) {
	r := NewRegistry()
	r.Join(Entry{UserID: "u1", ConnectionID: "c1"})
	r.Join(Entry{UserID: "u2", ConnectionID: "c1"})

	require.False(t, r.IsOnline("u1"))
	require.True(t, r.IsOnline("u2"))
}
