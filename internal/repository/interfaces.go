package repository

import (
	"context"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
)

// AppendOptions tells Append which roster writes go with the message.
type AppendOptions struct {
	// Create inserts the conversation row if it does not exist yet.
	Create bool
	// SaveParticipants writes participants and participantDetails.
	SaveParticipants bool
}

// ConversationRepository persists conversation rosters, their message logs
// and read watermarks. Loaded conversations carry ParticipantStates but not
// Messages.
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	Create(ctx context.Context, c *domain.Conversation) error
	SaveRoster(ctx context.Context, c *domain.Conversation) error
	// Append stores msg and bumps lastMessageAt and the sender's watermark in
	// one transaction.
	Append(ctx context.Context, c *domain.Conversation, msg *domain.Message, opts AppendOptions) error
	// UpsertParticipantState never moves a watermark backwards.
	UpsertParticipantState(ctx context.Context, conversationID string, userID identity.UserID, at time.Time) error
	ListForUser(ctx context.Context, userID identity.UserID) ([]domain.Conversation, error)
	FindByMemberKey(ctx context.Context, kind domain.ConversationKind, memberKey string) ([]domain.Conversation, error)
	// ListMessages returns the most recent limit messages, oldest first. A
	// non-positive limit returns the whole log.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	CountUnread(ctx context.Context, conversationID string, userID identity.UserID, since *time.Time) (int, error)
	ListIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}
