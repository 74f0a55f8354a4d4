package services

import (
	"context"
	"errors"
	"testing"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	"workforce-chat/internal/mocks"
	"workforce-chat/internal/repository"
	chat_errors "workforce-chat/pkg/errors"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTeamSyncService_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("should be idempotent for an unchanged team", func(t *testing.T) {
		req := require.New(t)
		repo := repository.NewMemoryConversationRepository()
		svc := NewTeamSyncService(repo, seededDirectory(), nil, nil)
		team := domain.Team{ID: "t1", Name: "Launch Team", Members: []identity.UserID{"u3", "u2"}, CreatedBy: "u1"}

		first, err := svc.Sync(ctx, team)
		req.NoError(err)
		second, err := svc.Sync(ctx, team)
		req.NoError(err)

		req.Equal(first.GroupMembers, second.GroupMembers)
		req.Equal(first.GroupName, second.GroupName)
		req.Equal(first.Participants, second.Participants)

		stored, err := repo.GetByID(ctx, "team:t1")
		req.NoError(err)
		req.Equal([]identity.UserID{"u1", "u2", "u3"}, stored.GroupMembers)
		req.Equal("Launch Team", stored.GroupName)
		req.Len(stored.ParticipantDetails, 3)
		req.Equal("t1", *stored.TeamID)
		req.Len(stored.ParticipantStates, 3)
	})

	t.Run("should fully replace the roster on change", func(t *testing.T) {
		req := require.New(t)
		repo := repository.NewMemoryConversationRepository()
		svc := NewTeamSyncService(repo, seededDirectory(), nil, nil)

		_, err := svc.Sync(ctx, domain.Team{ID: "t1", Name: "Launch Team", Members: []identity.UserID{"u2", "u3"}, CreatedBy: "u1"})
		req.NoError(err)
		_, err = svc.Sync(ctx, domain.Team{ID: "t1", Name: "Launch Crew", Members: []identity.UserID{"u4"}, CreatedBy: "u1"})
		req.NoError(err)

		stored, err := repo.GetByID(ctx, "team:t1")
		req.NoError(err)
		req.Equal("Launch Crew", stored.GroupName)
		req.Equal([]identity.UserID{"u1", "u4"}, stored.GroupMembers)
		req.Equal([]identity.UserID{"u1", "u4"}, stored.Participants)
		req.Len(stored.ParticipantDetails, 2)
		req.False(stored.HasMember("u2"))
	})

	t.Run("should keep members without a profile out of the details only", func(t *testing.T) {
		req := require.New(t)
		repo := repository.NewMemoryConversationRepository()
		svc := NewTeamSyncService(repo, seededDirectory(), nil, nil)

		conv, err := svc.Sync(ctx, domain.Team{ID: "t2", Name: "Night Shift", Members: []identity.UserID{"u2", "ghost"}, CreatedBy: "u1"})
		req.NoError(err)
		req.Equal([]identity.UserID{"ghost", "u1", "u2"}, conv.GroupMembers)
		req.Len(conv.ParticipantDetails, 2)
		req.Nil(conv.Detail("ghost"))
	})

	t.Run("should name an unnamed team after its id", func(t *testing.T) {
		req := require.New(t)
		repo := repository.NewMemoryConversationRepository()
		svc := NewTeamSyncService(repo, seededDirectory(), nil, nil)

		conv, err := svc.Sync(ctx, domain.Team{ID: "t3", Members: []identity.UserID{"u2"}, CreatedBy: "u1"})
		req.NoError(err)
		req.Equal("Team t3", conv.GroupName)
	})

	t.Run("should not touch storage when the profile lookup fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserDirectory(ctrl)
		users.EXPECT().GetProfiles(gomock.Any(), gomock.Any()).Return(nil, errors.New("directory offline"))

		repo := repository.NewMemoryConversationRepository()
		svc := NewTeamSyncService(repo, users, nil, nil)

		_, err := svc.Sync(ctx, domain.Team{ID: "t1", Name: "Launch Team", Members: []identity.UserID{"u2"}, CreatedBy: "u1"})
		req.Error(err)

		ids, err := repo.ListIDs(ctx)
		req.NoError(err)
		req.Empty(ids)
	})
}

func TestTeamSyncService_RemoveAndSyncAll(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := repository.NewMemoryConversationRepository()
	dir := seededDirectory()
	dir.PutTeam(domain.Team{ID: "t1", Name: "Alpha", Members: []identity.UserID{"u2"}, CreatedBy: "u1"})
	dir.PutTeam(domain.Team{ID: "t2", Name: "Beta", Members: []identity.UserID{"u3"}, CreatedBy: "u1"})
	svc := NewTeamSyncService(repo, dir, nil, nil)

	n, err := svc.SyncAll(ctx, dir)
	req.NoError(err)
	req.Equal(2, n)

	req.NoError(svc.Remove(ctx, "t1"))
	req.NoError(svc.Remove(ctx, "t1"))
	req.ErrorIs(svc.Remove(ctx, " "), chat_errors.ErrInvalidIdentifier)

	ids, err := repo.ListIDs(ctx)
	req.NoError(err)
	req.Equal([]string{"team:t2"}, ids)
}
