package services

import (
	"context"
	"testing"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	"workforce-chat/internal/repository"
	chat_errors "workforce-chat/pkg/errors"

	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newQueryFixture(c *clock) (*QueryService, *MessageService, *repository.MemoryConversationRepository) {
	repo := repository.NewMemoryConversationRepository()
	msgs := newTestMessageService(repo, nil)
	msgs.now = c.Now
	query := NewQueryService(repo, nil, nil, 0, nil)
	query.now = c.Now
	return query, msgs, repo
}

func TestQueryService_UnreadLifecycle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	c := &clock{now: t0}
	query, msgs, repo := newQueryFixture(c)

	_, err := msgs.Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u2", Message: "opening"})
	req.NoError(err)
	req.NoError(repo.UpsertParticipantState(ctx, "u1_u2", "u2", t0))

	for i := 1; i <= 3; i++ {
		c.now = t0.Add(time.Duration(i) * time.Minute)
		_, err := msgs.Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u2", Message: "update"})
		req.NoError(err)
	}

	summaries, err := query.ListForUser(ctx, "u2")
	req.NoError(err)
	req.Len(summaries, 1)
	req.Equal(3, summaries[0].UnreadCount)
	req.False(summaries[0].Read)

	c.now = t0.Add(4 * time.Minute)
	res, err := query.MarkRead(ctx, "u2", "u1_u2")
	req.NoError(err)
	req.Equal(3, res.MarkedCount)
	req.Equal([]identity.UserID{"u1"}, res.Notify)

	summaries, err = query.ListForUser(ctx, "u2")
	req.NoError(err)
	req.Equal(0, summaries[0].UnreadCount)
	req.True(summaries[0].Read)

	c.now = t0.Add(5 * time.Minute)
	_, err = msgs.Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u2", Message: "one more"})
	req.NoError(err)

	summaries, err = query.ListForUser(ctx, "u2")
	req.NoError(err)
	req.Equal(1, summaries[0].UnreadCount)

	again, err := query.MarkRead(ctx, "u2", "u1_u2")
	req.NoError(err)
	req.Equal(1, again.MarkedCount)
}

func TestQueryService_MarkReadUsesStoredPrecision(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	c := &clock{now: t0.Add(1500 * time.Nanosecond)}
	query, msgs, repo := newQueryFixture(c)

	sent, err := msgs.Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u2", Message: "tick"})
	req.NoError(err)
	req.Equal(t0.Add(time.Microsecond), sent.Message.Timestamp)

	c.now = t0.Add(1900 * time.Nanosecond)
	res, err := query.MarkRead(ctx, "u2", "u1_u2")
	req.NoError(err)
	req.Equal(1, res.MarkedCount)
	req.Equal(t0.Add(time.Microsecond), res.ReadAt)

	stored, err := repo.GetByID(ctx, "u1_u2")
	req.NoError(err)
	req.Equal(res.ReadAt, *stored.LastReadAt("u2"))

	summaries, err := query.ListForUser(ctx, "u2")
	req.NoError(err)
	req.Zero(summaries[0].UnreadCount)
}

func TestQueryService_NullWatermarkCountsEverything(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := &clock{now: fixedNow}
	query, msgs, _ := newQueryFixture(c)

	for i := 0; i < 4; i++ {
		c.now = fixedNow.Add(time.Duration(i) * time.Second)
		_, err := msgs.Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u2", Message: "ping"})
		req.NoError(err)
	}
	summary, err := query.UnreadSummary(ctx, "u2")
	req.NoError(err)
	req.Equal(4, summary.TotalUnread)
	req.Equal(map[string]int{"u1": 4}, summary.UnreadBySender)

	summary, err = query.UnreadSummary(ctx, "u1")
	req.NoError(err)
	req.Equal(0, summary.TotalUnread)
	req.Empty(summary.UnreadBySender)
}

func TestQueryService_ListForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("should build direct and group summaries newest first", func(t *testing.T) {
		req := require.New(t)
		c := &clock{now: fixedNow}
		query, msgs, _ := newQueryFixture(c)

		_, err := msgs.Submit(ctx, SendMessageInput{SenderID: "u2", ReceiverID: "u1", Message: "direct"})
		req.NoError(err)

		c.now = fixedNow.Add(time.Minute)
		group, err := msgs.Submit(ctx, SendMessageInput{
			SenderID:       "u1",
			IsGroup:        true,
			GroupName:      "Platform",
			GroupMemberIDs: []any{"u2", "u3"},
			Attachments:    []*domain.RawAttachment{{MimeType: "image/png", URL: "https://cdn.example.com/a.png"}},
		})
		req.NoError(err)

		summaries, err := query.ListForUser(ctx, "u1")
		req.NoError(err)
		req.Len(summaries, 2)

		g := summaries[0]
		req.Equal(group.Conversation.ID, g.ConversationID)
		req.Equal(group.Conversation.ID, g.PartnerID)
		req.Equal("Platform", g.PartnerName)
		req.Equal(domain.GroupPartnerRole, g.PartnerRole)
		req.Equal("Shared a photo", g.LastMessage)
		req.Equal(domain.MessageTypeImage, g.LastMessageType)
		req.Equal(1, g.AttachmentsCount)
		req.True(g.IsMeSend)
		req.Equal([]string{"u1", "u2", "u3"}, g.Members)
		req.Equal("Platform", *g.GroupName)

		d := summaries[1]
		req.Equal("u1_u2", d.ConversationID)
		req.Equal("u2", d.PartnerID)
		req.Equal("Grace", d.PartnerName)
		req.Equal("manager", d.PartnerRole)
		req.Equal("direct", d.LastMessage)
		req.False(d.IsMeSend)
		req.Equal(1, d.UnreadCount)
		req.Equal([]string{"u2"}, d.Members)
		req.Nil(d.GroupName)
	})

	t.Run("should heal missing team conversations before listing", func(t *testing.T) {
		req := require.New(t)
		repo := repository.NewMemoryConversationRepository()
		dir := seededDirectory()
		dir.PutTeam(domain.Team{ID: "t1", Name: "Support", Members: []identity.UserID{"u2", "u3"}, CreatedBy: "u1"})
		sync := NewTeamSyncService(repo, dir, nil, nil)
		query := NewQueryService(repo, dir, sync, 0, nil)

		summaries, err := query.ListForUser(ctx, "u3")
		req.NoError(err)
		req.Len(summaries, 1)
		req.Equal("team:t1", summaries[0].ConversationID)
		req.Equal(domain.ConversationKindTeam, summaries[0].Kind)
		req.Equal("Support", summaries[0].PartnerName)
		req.Equal(0, summaries[0].UnreadCount)
	})
}

func TestQueryService_History(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: fixedNow}
	query, msgs, _ := newQueryFixture(c)

	for i, body := range []string{"one", "two", "three"} {
		c.now = fixedNow.Add(time.Duration(i) * time.Second)
		_, err := msgs.Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u2", Message: body})
		require.NoError(t, err)
	}

	t.Run("should return the most recent messages oldest first", func(t *testing.T) {
		req := require.New(t)
		history, err := query.History(ctx, "u2", "u1_u2", 2)
		req.NoError(err)
		req.Len(history, 2)
		req.Equal("two", history[0].Message)
		req.Equal("three", history[1].Message)
		req.False(history[1].SeenByReceiver)
	})

	t.Run("should mark messages seen once the receiver read them", func(t *testing.T) {
		req := require.New(t)
		c.now = fixedNow.Add(time.Second)
		_, err := query.MarkRead(ctx, "u2", "u1_u2")
		req.NoError(err)

		history, err := query.History(ctx, "u1", "u1_u2", 0)
		req.NoError(err)
		req.Len(history, 3)
		req.True(history[0].SeenByReceiver)
		req.True(history[1].SeenByReceiver)
		req.False(history[2].SeenByReceiver)
	})

	t.Run("should return nothing for a conversation that does not exist", func(t *testing.T) {
		req := require.New(t)
		history, err := query.History(ctx, "u1", "u1_u9", 0)
		req.NoError(err)
		req.Empty(history)
	})

	t.Run("should refuse non participants", func(t *testing.T) {
		_, err := query.History(ctx, "u3", "u1_u2", 0)
		require.ErrorIs(t, err, chat_errors.ErrUnauthorized)

		_, err = query.MarkRead(ctx, "u3", "u1_u2")
		require.ErrorIs(t, err, chat_errors.ErrUnauthorized)
	})
}
