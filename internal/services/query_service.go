package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	"workforce-chat/internal/repository"
	chat_errors "workforce-chat/pkg/errors"
	"workforce-chat/pkg/logger"

	"go.uber.org/zap"
)

const maxHistoryLimit = 500

// QueryService answers the read side: conversation lists, history, unread
// counts and mark-as-read.
type QueryService struct {
	repo         repository.ConversationRepository
	teams        domain.TeamDirectory
	teamSync     *TeamSyncService
	historyLimit int
	log          *logger.Logger
	now          func() time.Time
}

// NewQueryService wires the read side. teams and teamSync may be nil, which
// disables team self-healing on listing.
func NewQueryService(repo repository.ConversationRepository, teams domain.TeamDirectory, teamSync *TeamSyncService, historyLimit int, log *logger.Logger) *QueryService {
	if log == nil {
		log = logger.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &QueryService{
		repo:         repo,
		teams:        teams,
		teamSync:     teamSync,
		historyLimit: historyLimit,
		log:          log.Named("query_service"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ListForUser returns the user's conversations, most recent activity first.
func (s *QueryService) ListForUser(ctx context.Context, userID identity.UserID) ([]ConversationSummary, error) {
	if userID.IsZero() {
		return nil, chat_errors.ErrInvalidIdentifier
	}
	s.healTeams(ctx, userID)

	convs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]ConversationSummary, 0, len(convs))
	for i := range convs {
		summary, err := s.summarize(ctx, &convs[i], userID)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// healTeams re-syncs every team the user belongs to so that a missed
// lifecycle event cannot hide a team conversation.
func (s *QueryService) healTeams(ctx context.Context, userID identity.UserID) {
	if s.teams == nil || s.teamSync == nil {
		return
	}
	teams, err := s.teams.ListTeamsForUser(ctx, userID)
	if err != nil {
		s.log.WarnCtx(ctx, "list teams for user failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	for _, t := range teams {
		if _, err := s.teamSync.Sync(ctx, t); err != nil {
			s.log.WarnCtx(ctx, "team self-heal failed", zap.String("team_id", t.ID), zap.Error(err))
		}
	}
}

func (s *QueryService) summarize(ctx context.Context, c *domain.Conversation, userID identity.UserID) (ConversationSummary, error) {
	last, err := s.repo.ListMessages(ctx, c.ID, 1)
	if err != nil {
		return ConversationSummary{}, fmt.Errorf("load last message of %s: %w", c.ID, err)
	}
	unread, err := s.repo.CountUnread(ctx, c.ID, userID, c.LastReadAt(userID))
	if err != nil {
		return ConversationSummary{}, fmt.Errorf("count unread of %s: %w", c.ID, err)
	}

	summary := ConversationSummary{
		ConversationID:  c.ID,
		Kind:            c.Kind,
		Timestamp:       c.LastMessageAt,
		LastMessageType: domain.MessageTypeText,
		UnreadCount:     unread,
		Read:            unread == 0,
		GroupMembers:    append([]identity.UserID{}, c.GroupMembers...),
	}

	if c.IsGroupLike() {
		name := c.GroupName
		if name == "" {
			name = domain.DefaultGroupName
		}
		summary.PartnerID = c.ID
		summary.PartnerName = name
		summary.PartnerAvatar = c.GroupAvatar
		summary.PartnerRole = domain.GroupPartnerRole
		summary.Members = identity.Strings(c.GroupMembers)
		summary.GroupName = &name
		summary.GroupAvatar = c.GroupAvatar
	} else {
		partnerID := directPartner(c, userID)
		summary.PartnerID = partnerID.String()
		summary.PartnerName = domain.UnknownMemberName
		if d := c.Detail(partnerID); d != nil {
			if d.Name != "" {
				summary.PartnerName = d.Name
			}
			summary.PartnerAvatar = d.Avatar
			summary.PartnerRole = d.Role
		}
		summary.Members = []string{partnerID.String()}
	}

	if len(last) > 0 {
		m := last[len(last)-1]
		summary.LastMessage = domain.PreviewText(m.Body, m.Attachments)
		summary.LastMessageType = m.MessageType
		summary.AttachmentsCount = len(m.Attachments)
		summary.Timestamp = m.Timestamp
		summary.IsMeSend = m.SenderID == userID
	}
	return summary, nil
}

func directPartner(c *domain.Conversation, userID identity.UserID) identity.UserID {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	if a, b, ok := identity.PairMembers(c.ID); ok {
		if a == userID {
			return b
		}
		return a
	}
	return userID
}

// MarkRead moves the user's watermark to now and returns how many messages
// were unread under the previous watermark.
func (s *QueryService) MarkRead(ctx context.Context, userID identity.UserID, conversationID string) (*MarkReadResult, error) {
	c, err := s.loadForMember(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	prior, err := s.repo.CountUnread(ctx, c.ID, userID, c.LastReadAt(userID))
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	now := s.now().Truncate(time.Microsecond)
	if err := s.repo.UpsertParticipantState(ctx, c.ID, userID, now); err != nil {
		return nil, fmt.Errorf("update read state: %w", err)
	}

	notify := make([]identity.UserID, 0, len(c.Recipients()))
	for _, r := range c.Recipients() {
		if r != userID {
			notify = append(notify, r)
		}
	}
	return &MarkReadResult{
		ConversationID: c.ID,
		MarkedCount:    prior,
		ReadAt:         now,
		Notify:         notify,
	}, nil
}

// History returns the most recent messages, oldest first. A conversation
// that does not exist yet has an empty history.
func (s *QueryService) History(ctx context.Context, userID identity.UserID, conversationID string, limit int) ([]MessageView, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	c, err := s.loadForMember(ctx, userID, conversationID)
	if errors.Is(err, chat_errors.ErrNotFound) {
		return []MessageView{}, nil
	}
	if err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, c.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewMessageView(msgs[i], seenByReceiver(c, &msgs[i])))
	}
	return out, nil
}

// seenByReceiver is true for a direct message once the receiver's watermark
// reaches it, and for a group message once every other member's does.
func seenByReceiver(c *domain.Conversation, m *domain.Message) bool {
	seen := func(id identity.UserID) bool {
		at := c.LastReadAt(id)
		return at != nil && !at.Before(m.Timestamp)
	}
	if !m.IsGroup {
		return m.ReceiverID != nil && seen(*m.ReceiverID)
	}
	others := 0
	for _, member := range m.GroupMembers {
		if member == m.SenderID {
			continue
		}
		others++
		if !seen(member) {
			return false
		}
	}
	return others > 0
}

// UnreadSummary totals unread messages across every conversation of the
// user, keyed by partner id (the conversation id for groups).
func (s *QueryService) UnreadSummary(ctx context.Context, userID identity.UserID) (*UnreadSummary, error) {
	if userID.IsZero() {
		return nil, chat_errors.ErrInvalidIdentifier
	}
	convs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := &UnreadSummary{UnreadBySender: map[string]int{}}
	for i := range convs {
		c := &convs[i]
		n, err := s.repo.CountUnread(ctx, c.ID, userID, c.LastReadAt(userID))
		if err != nil {
			return nil, fmt.Errorf("count unread of %s: %w", c.ID, err)
		}
		if n == 0 {
			continue
		}
		key := c.ID
		if !c.IsGroupLike() {
			key = directPartner(c, userID).String()
		}
		out.UnreadBySender[key] += n
		out.TotalUnread += n
	}
	return out, nil
}

func (s *QueryService) loadForMember(ctx context.Context, userID identity.UserID, conversationID string) (*domain.Conversation, error) {
	if userID.IsZero() || conversationID == "" {
		return nil, chat_errors.ErrInvalidIdentifier
	}
	c, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, chat_errors.ErrNotFound)
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !c.HasMember(userID) {
		return nil, fmt.Errorf("user %s is not a participant of %s: %w", userID, conversationID, chat_errors.ErrUnauthorized)
	}
	return c, nil
}

// Recipients lists the other members of a conversation the user belongs to.
// It backs typing relays.
func (s *QueryService) Recipients(ctx context.Context, userID identity.UserID, conversationID string) ([]identity.UserID, error) {
	c, err := s.loadForMember(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]identity.UserID, 0, len(c.Recipients()))
	for _, r := range c.Recipients() {
		if r != userID {
			out = append(out, r)
		}
	}
	return out, nil
}
