package repository

import (
	"context"
	"sort"
	"sync"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	chat_errors "workforce-chat/pkg/errors"
)

// MemoryDirectory is an in-process user and team directory for the memory
// store driver and for tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[identity.UserID]domain.UserProfile
	teams    map[string]domain.Team
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		profiles: make(map[identity.UserID]domain.UserProfile),
		teams:    make(map[string]domain.Team),
	}
}

func (d *MemoryDirectory) PutProfile(p domain.UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

func (d *MemoryDirectory) PutTeam(t domain.Team) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t.Members = append([]identity.UserID(nil), t.Members...)
	d.teams[t.ID] = t
}

func (d *MemoryDirectory) GetProfile(ctx context.Context, id identity.UserID) (*domain.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[id]
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	return &p, nil
}

func (d *MemoryDirectory) GetProfiles(ctx context.Context, ids []identity.UserID) (map[identity.UserID]*domain.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[identity.UserID]*domain.UserProfile, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			p := p
			out[id] = &p
		}
	}
	return out, nil
}

func (d *MemoryDirectory) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.teams[teamID]
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	t.Members = append([]identity.UserID(nil), t.Members...)
	return &t, nil
}

func (d *MemoryDirectory) ListTeamsForUser(ctx context.Context, userID identity.UserID) ([]domain.Team, error) {
	teams, _ := d.ListTeams(ctx)
	out := teams[:0]
	for _, t := range teams {
		for _, m := range t.Roster() {
			if m == userID {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (d *MemoryDirectory) ListTeams(ctx context.Context) ([]domain.Team, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Team, 0, len(d.teams))
	for _, t := range d.teams {
		t.Members = append([]identity.UserID(nil), t.Members...)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
