package events

import (
	"context"
	"testing"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	chat_errors "workforce-chat/pkg/errors"

	"github.com/stretchr/testify/require"
)

type recordingSyncer struct {
	synced  []domain.Team
	removed []string
}

func (s *recordingSyncer) Sync(ctx context.Context, team domain.Team) (*domain.Conversation, error) {
	s.synced = append(s.synced, team)
	c := &domain.Conversation{ID: identity.TeamConversationID(team.ID), Kind: domain.ConversationKindTeam}
	c.SetRoster(team.Roster())
	return c, nil
}

func (s *recordingSyncer) Remove(ctx context.Context, teamID string) error {
	s.removed = append(s.removed, teamID)
	return nil
}

func TestTeamEventConsumer_HandleTeamEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("should sync the team on a member change", func(t *testing.T) {
		req := require.New(t)
		syncer := &recordingSyncer{}
		consumer := NewTeamEventConsumer(nil, "teams.events", syncer, nil)

		payload := `{"type":"team.member_added","team":{"id":"t1","name":"Launch Team","members":["u2","u3"],"createdBy":"u1"}}`
		req.NoError(consumer.HandleTeamEvent(ctx, []byte(payload)))

		req.Len(syncer.synced, 1)
		req.Equal("Launch Team", syncer.synced[0].Name)
		req.Equal([]identity.UserID{"u1", "u2", "u3"}, syncer.synced[0].Roster())
		req.Empty(syncer.removed)
	})

	t.Run("should remove the conversation when the team is deleted", func(t *testing.T) {
		req := require.New(t)
		syncer := &recordingSyncer{}
		consumer := NewTeamEventConsumer(nil, "teams.events", syncer, nil)

		req.NoError(consumer.HandleTeamEvent(ctx, []byte(`{"type":"team.deleted","team":{"id":"t1"}}`)))
		req.Equal([]string{"t1"}, syncer.removed)
		req.Empty(syncer.synced)
	})

	t.Run("should reject malformed events", func(t *testing.T) {
		req := require.New(t)
		syncer := &recordingSyncer{}
		consumer := NewTeamEventConsumer(nil, "teams.events", syncer, nil)

		req.ErrorIs(consumer.HandleTeamEvent(ctx, []byte(`{`)), chat_errors.ErrInvalidPayload)
		req.ErrorIs(consumer.HandleTeamEvent(ctx, []byte(`{"type":"team.renamed","team":{"id":"t1"}}`)), chat_errors.ErrInvalidPayload)
		req.ErrorIs(consumer.HandleTeamEvent(ctx, []byte(`{"type":"team.updated","team":{"name":"x"}}`)), chat_errors.ErrInvalidPayload)
		req.Empty(syncer.synced)
		req.Empty(syncer.removed)
	})
}
