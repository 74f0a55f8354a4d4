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

	"go.uber.org/zap"
)

// TeamSyncService keeps each team's conversation roster identical to the
// team aggregate. Every call fully replaces the roster.
type TeamSyncService struct {
	repo    repository.ConversationRepository
	users   domain.UserDirectory
	log     *logger.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewTeamSyncService(repo repository.ConversationRepository, users domain.UserDirectory, log *logger.Logger, m *metrics.Collector) *TeamSyncService {
	if log == nil {
		log = logger.NewNop()
	}
	return &TeamSyncService{
		repo:    repo,
		users:   users,
		log:     log.Named("team_sync"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Sync creates or replaces the team conversation. Members whose profile
// cannot be found stay in groupMembers but get no participantDetails entry
// until a later sync resolves them.
func (s *TeamSyncService) Sync(ctx context.Context, team domain.Team) (*domain.Conversation, error) {
	teamID := strings.TrimSpace(team.ID)
	if teamID == "" {
		return nil, fmt.Errorf("team id: %w", chat_errors.ErrInvalidIdentifier)
	}
	team.ID = teamID

	roster := team.Roster()
	profiles, err := s.users.GetProfiles(ctx, roster)
	if err != nil {
		s.metrics.TeamSynced("error")
		return nil, fmt.Errorf("resolve team members: %w", err)
	}
	details := make([]domain.ParticipantDetail, 0, len(roster))
	for _, id := range roster {
		p, ok := profiles[id]
		if !ok {
			s.log.WarnCtx(ctx, "team member profile not found", zap.String("team_id", teamID), zap.String("user_id", id.String()))
			continue
		}
		details = append(details, domain.ParticipantDetail{
			UserID: id,
			Name:   p.DisplayName(),
			Role:   p.Role,
			Avatar: p.Avatar,
		})
	}

	conversationID := identity.TeamConversationID(teamID)
	existing, err := s.repo.GetByID(ctx, conversationID)
	switch {
	case errors.Is(err, chat_errors.ErrNotFound):
		created, createErr := s.create(ctx, team, roster, details)
		if !errors.Is(createErr, chat_errors.ErrAlreadyExists) {
			return created, createErr
		}
		// A concurrent sync created it first.
		if existing, err = s.repo.GetByID(ctx, conversationID); err != nil {
			s.metrics.TeamSynced("error")
			return nil, fmt.Errorf("reload team conversation: %w", err)
		}
	case err != nil:
		s.metrics.TeamSynced("error")
		return nil, fmt.Errorf("load team conversation: %w", err)
	}

	if team.Name != "" {
		existing.GroupName = team.Name
	}
	existing.SetRoster(roster)
	existing.TeamID = &teamID
	existing.Participants = append([]identity.UserID(nil), roster...)
	existing.ParticipantDetails = details
	if err := s.repo.SaveRoster(ctx, existing); err != nil {
		s.metrics.TeamSynced("error")
		return nil, fmt.Errorf("save team conversation: %w", err)
	}
	s.metrics.TeamSynced("updated")
	return existing, nil
}

func (s *TeamSyncService) create(ctx context.Context, team domain.Team, roster []identity.UserID, details []domain.ParticipantDetail) (*domain.Conversation, error) {
	now := s.now()
	name := team.Name
	if name == "" {
		name = "Team " + team.ID
	}
	teamID := team.ID
	c := &domain.Conversation{
		ID:                 identity.TeamConversationID(teamID),
		Kind:               domain.ConversationKindTeam,
		GroupName:          name,
		TeamID:             &teamID,
		Participants:       append([]identity.UserID(nil), roster...),
		ParticipantDetails: details,
		LastMessageAt:      now,
		CreatedAt:          now,
	}
	if !team.CreatedBy.IsZero() {
		creator := team.CreatedBy
		c.CreatedBy = &creator
	}
	c.SetRoster(roster)
	c.InitParticipantStates(roster)

	if err := s.repo.Create(ctx, c); err != nil {
		if !errors.Is(err, chat_errors.ErrAlreadyExists) {
			s.metrics.TeamSynced("error")
		}
		return nil, err
	}
	s.log.InfoCtx(ctx, "team conversation created", zap.String("conversation_id", c.ID), zap.Int("members", len(roster)))
	s.metrics.TeamSynced("created")
	return c, nil
}

// Remove deletes the team conversation. Removing a team that never had one
// is not an error.
func (s *TeamSyncService) Remove(ctx context.Context, teamID string) error {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return fmt.Errorf("team id: %w", chat_errors.ErrInvalidIdentifier)
	}
	err := s.repo.Delete(ctx, identity.TeamConversationID(teamID))
	if err != nil && !errors.Is(err, chat_errors.ErrNotFound) {
		s.metrics.TeamSynced("error")
		return fmt.Errorf("delete team conversation: %w", err)
	}
	s.metrics.TeamSynced("removed")
	return nil
}

// SyncAll runs Sync for every team the directory knows about and returns
// the number synced. Individual failures are logged and skipped.
func (s *TeamSyncService) SyncAll(ctx context.Context, teams domain.TeamDirectory) (int, error) {
	all, err := teams.ListTeams(ctx)
	if err != nil {
		return 0, fmt.Errorf("list teams: %w", err)
	}
	synced := 0
	for _, t := range all {
		if _, err := s.Sync(ctx, t); err != nil {
			s.log.ErrorCtx(ctx, "team sync failed", zap.String("team_id", t.ID), zap.Error(err))
			continue
		}
		synced++
	}
	return synced, nil
}
