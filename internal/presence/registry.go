// Package presence tracks which users hold a live realtime connection.
//
// A Registry is owned by the hub's event loop and is not safe for concurrent
// use. Every join, leave and snapshot must happen on that loop.
package presence

import (
	"sort"
	"time"

	"workforce-chat/internal/identity"
)

type ConnState int

const (
	Unregistered ConnState = iota
	Joined
)

func (s ConnState) String() string {
	if s == Joined {
		return "joined"
	}
	return "unregistered"
}

// Entry is the presence record for one connection.
type Entry struct {
	UserID       identity.UserID `json:"userId"`
	ConnectionID string          `json:"-"`
	DisplayName  string          `json:"name"`
	Role         string          `json:"role"`
	Avatar       *string         `json:"avatar"`
	JoinedAt     time.Time       `json:"-"`
}

type Registry struct {
	byUser map[identity.UserID]map[string]Entry
	latest map[identity.UserID]string
	owner  map[string]identity.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[identity.UserID]map[string]Entry),
		latest: make(map[identity.UserID]string),
		owner:  make(map[string]identity.UserID),
	}
}

// Join moves a connection to the joined state and makes its entry the
// current one for the user. It reports whether the user was offline before.
func (r *Registry) Join(e Entry) (cameOnline bool) {
	if prev, ok := r.owner[e.ConnectionID]; ok && prev != e.UserID {
		r.Leave(e.ConnectionID)
	}

	conns, ok := r.byUser[e.UserID]
	if !ok {
		conns = make(map[string]Entry)
		r.byUser[e.UserID] = conns
	}
	cameOnline = len(conns) == 0

	conns[e.ConnectionID] = e
	r.latest[e.UserID] = e.ConnectionID
	r.owner[e.ConnectionID] = e.UserID
	return cameOnline
}

// Leave removes the connection. The user's current entry only changes if it
// belonged to this connection, so a stale disconnect cannot clobber a newer
// join. wentOffline is true when the user has no connections left.
func (r *Registry) Leave(connectionID string) (e Entry, wentOffline bool, ok bool) {
	userID, ok := r.owner[connectionID]
	if !ok {
		return Entry{}, false, false
	}
	delete(r.owner, connectionID)

	conns := r.byUser[userID]
	e = conns[connectionID]
	delete(conns, connectionID)

	if len(conns) == 0 {
		delete(r.byUser, userID)
		delete(r.latest, userID)
		return e, true, true
	}

	if r.latest[userID] == connectionID {
		r.latest[userID] = newestConnection(conns)
	}
	return e, false, true
}

func newestConnection(conns map[string]Entry) string {
	var (
		best   string
		bestAt time.Time
	)
	for id, e := range conns {
		if best == "" || e.JoinedAt.After(bestAt) || (e.JoinedAt.Equal(bestAt) && id > best) {
			best, bestAt = id, e.JoinedAt
		}
	}
	return best
}

func (r *Registry) State(connectionID string) ConnState {
	if _, ok := r.owner[connectionID]; ok {
		return Joined
	}
	return Unregistered
}

// Current returns the entry from the user's most recent join.
func (r *Registry) Current(userID identity.UserID) (Entry, bool) {
	connID, ok := r.latest[userID]
	if !ok {
		return Entry{}, false
	}
	e, ok := r.byUser[userID][connID]
	return e, ok
}

func (r *Registry) IsOnline(userID identity.UserID) bool {
	return len(r.byUser[userID]) > 0
}

// Snapshot lists the current entry of every online user, ordered by user id.
func (r *Registry) Snapshot() []Entry {
	out := make([]Entry, 0, len(r.latest))
	for userID := range r.latest {
		if e, ok := r.Current(userID); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Registry) OnlineCount() int {
	return len(r.byUser)
}
