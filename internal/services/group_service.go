package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	"workforce-chat/internal/metrics"
	"workforce-chat/internal/repository"
	chat_errors "workforce-chat/pkg/errors"
	"workforce-chat/pkg/logger"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// GroupLimiter throttles group creation per user.
type GroupLimiter interface {
	AllowCreateGroup(ctx context.Context, userID identity.UserID) (bool, error)
}

type CreateGroupInput struct {
	Name        string  `json:"name" validate:"required,max=120"`
	MemberIDs   []any   `json:"memberIds"`
	GroupAvatar *string `json:"groupAvatar"`
}

// GroupService creates manual group conversations and refuses member sets
// that already have a team or group conversation.
type GroupService struct {
	repo      repository.ConversationRepository
	users     domain.UserDirectory
	teams     domain.TeamDirectory
	limiter   GroupLimiter
	validator *validator.Validate
	log       *logger.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

func NewGroupService(repo repository.ConversationRepository, users domain.UserDirectory, teams domain.TeamDirectory, limiter GroupLimiter, log *logger.Logger, m *metrics.Collector) *GroupService {
	if log == nil {
		log = logger.NewNop()
	}
	return &GroupService{
		repo:      repo,
		users:     users,
		teams:     teams,
		limiter:   limiter,
		validator: validator.New(),
		log:       log.Named("group_service"),
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *GroupService) CreateGroup(ctx context.Context, creatorID identity.UserID, in CreateGroupInput) (*domain.Conversation, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", chat_errors.ErrInvalidPayload, err)
	}
	if _, ok := identity.ToStorageID(creatorID); !ok {
		return nil, fmt.Errorf("creator id: %w", chat_errors.ErrInvalidIdentifier)
	}

	members, invalid := identity.NormalizeSet(append([]any{creatorID}, in.MemberIDs...))
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%d member ids do not normalize: %w", len(invalid), chat_errors.ErrInvalidIdentifier)
	}
	if len(members) < 2 {
		return nil, fmt.Errorf("group needs at least two distinct members: %w", chat_errors.ErrInsufficientMembers)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.AllowCreateGroup(ctx, creatorID)
		if err != nil {
			s.log.WarnCtx(ctx, "rate limiter unavailable", zap.String("user_id", creatorID.String()), zap.Error(err))
		} else if !allowed {
			return nil, chat_errors.ErrRateLimited
		}
	}

	profiles, err := s.users.GetProfiles(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("resolve members: %w", err)
	}
	for _, m := range members {
		if _, ok := profiles[m]; !ok {
			return nil, fmt.Errorf("member %s: %w", m, chat_errors.ErrUnresolvableMember)
		}
	}

	if err := s.CheckConflicts(ctx, members); err != nil {
		var conflict *chat_errors.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.GroupConflict(conflict.Type)
		}
		return nil, err
	}

	now := s.now()
	creator := creatorID
	conv := &domain.Conversation{
		ID:            identity.NewGroupConversationID(),
		Kind:          domain.ConversationKindGroup,
		GroupName:     in.Name,
		GroupAvatar:   in.GroupAvatar,
		CreatedBy:     &creator,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	conv.SetRoster(members)
	for _, m := range members {
		conv.EnsureParticipant(m, profiles[m], domain.DefaultMemberName)
	}
	conv.InitParticipantStates(members)

	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.log.InfoCtx(ctx, "group conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("created_by", creatorID.String()),
		zap.Int("members", len(members)),
	)
	s.metrics.GroupCreated()
	return conv, nil
}

// CheckConflicts rejects exact member-set matches. Team matches are
// re-checked against the team's current roster because the stored copy may
// be stale.
func (s *GroupService) CheckConflicts(ctx context.Context, members []identity.UserID) error {
	key := identity.MemberKey(members)

	teamConvs, err := s.repo.FindByMemberKey(ctx, domain.ConversationKindTeam, key)
	if err != nil {
		return fmt.Errorf("find team conversations: %w", err)
	}
	for _, c := range teamConvs {
		teamID, ok := teamIDOf(&c)
		if !ok {
			continue
		}
		team, err := s.teams.GetTeam(ctx, teamID)
		if errors.Is(err, chat_errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load team %s: %w", teamID, err)
		}
		if !identity.SameSet(team.Roster(), members) {
			continue
		}
		return &chat_errors.ConflictError{
			Type:           chat_errors.ConflictTypeTeam,
			TeamName:       team.Name,
			TeamID:         team.ID,
			ConversationID: c.ID,
			Members:        identity.Strings(members),
		}
	}

	groups, err := s.repo.FindByMemberKey(ctx, domain.ConversationKindGroup, key)
	if err != nil {
		return fmt.Errorf("find group conversations: %w", err)
	}
	for _, g := range groups {
		if identity.SameSet(g.GroupMembers, members) {
			return &chat_errors.ConflictError{
				Type:           chat_errors.ConflictTypeDuplicateGroup,
				GroupName:      g.GroupName,
				ConversationID: g.ID,
				Members:        identity.Strings(members),
			}
		}
	}
	return nil
}

func teamIDOf(c *domain.Conversation) (string, bool) {
	if c.TeamID != nil && *c.TeamID != "" {
		return *c.TeamID, true
	}
	return identity.TeamIDFromConversation(c.ID)
}
