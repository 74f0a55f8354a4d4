package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	chat_errors "workforce-chat/pkg/errors"
)

// MemoryConversationRepository keeps everything in process memory. It backs
// the "memory" store driver and the service tests. Values are deep-copied
// in and out so callers never share state with the store.
type MemoryConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	messages      map[string][]domain.Message
	seq           int64
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		conversations: make(map[string]*domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

func (r *MemoryConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[c.ID]; ok {
		return chat_errors.ErrAlreadyExists
	}
	r.insertLocked(c)
	return nil
}

func (r *MemoryConversationRepository) insertLocked(c *domain.Conversation) {
	stored := c.Clone()
	stored.Messages = nil
	stored.SetRoster(stored.GroupMembers)
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	for i := range stored.ParticipantStates {
		stored.ParticipantStates[i].ConversationID = stored.ID
	}
	r.conversations[c.ID] = stored
}

func (r *MemoryConversationRepository) SaveRoster(ctx context.Context, c *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.conversations[c.ID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	incoming := c.Clone()
	stored.GroupName = incoming.GroupName
	stored.GroupAvatar = incoming.GroupAvatar
	stored.SetRoster(incoming.GroupMembers)
	stored.TeamID = incoming.TeamID
	stored.Participants = incoming.Participants
	stored.ParticipantDetails = incoming.ParticipantDetails
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryConversationRepository) Append(ctx context.Context, c *domain.Conversation, msg *domain.Message, opts AppendOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.conversations[c.ID]
	switch {
	case !ok && !opts.Create:
		return chat_errors.ErrNotFound
	case !ok:
		r.insertLocked(c)
		stored = r.conversations[c.ID]
	case opts.SaveParticipants || opts.Create:
		incoming := c.Clone()
		stored.Participants = incoming.Participants
		stored.ParticipantDetails = incoming.ParticipantDetails
	}

	r.seq++
	msg.ConversationID = c.ID
	msg.Seq = r.seq
	r.messages[c.ID] = append(r.messages[c.ID], msg.Clone())

	if msg.Timestamp.After(stored.LastMessageAt) {
		stored.LastMessageAt = msg.Timestamp
	}
	stored.UpdatedAt = time.Now().UTC()
	stored.UpdateParticipantState(msg.SenderID, msg.Timestamp)
	return nil
}

func (r *MemoryConversationRepository) UpsertParticipantState(ctx context.Context, conversationID string, userID identity.UserID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.conversations[conversationID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	stored.UpdateParticipantState(userID, at)
	return nil
}

func (r *MemoryConversationRepository) ListForUser(ctx context.Context, userID identity.UserID) ([]domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Conversation
	for _, c := range r.conversations {
		if c.HasMember(userID) {
			out = append(out, *c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryConversationRepository) FindByMemberKey(ctx context.Context, kind domain.ConversationKind, memberKey string) ([]domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Conversation
	for _, c := range r.conversations {
		if c.Kind == kind && c.MemberKey == memberKey {
			out = append(out, *c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryConversationRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	log := r.messages[conversationID]
	start := 0
	if limit > 0 && len(log) > limit {
		start = len(log) - limit
	}
	out := make([]domain.Message, 0, len(log)-start)
	for _, m := range log[start:] {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (r *MemoryConversationRepository) CountUnread(ctx context.Context, conversationID string, userID identity.UserID, since *time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.CountUnread(r.messages[conversationID], userID, since), nil
}

func (r *MemoryConversationRepository) ListIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conversations))
	for id := range r.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemoryConversationRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return chat_errors.ErrNotFound
	}
	delete(r.conversations, id)
	delete(r.messages, id)
	return nil
}
