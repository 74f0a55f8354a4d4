package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	"workforce-chat/internal/mocks"
	"workforce-chat/internal/repository"
	chat_errors "workforce-chat/pkg/errors"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func profilesFor(ids ...identity.UserID) map[identity.UserID]*domain.UserProfile {
	out := make(map[identity.UserID]*domain.UserProfile, len(ids))
	for _, id := range ids {
		out[id] = &domain.UserProfile{ID: id, Name: "User " + id.String(), Role: "engineer"}
	}
	return out
}

func seedTeamConversation(t *testing.T, repo *repository.MemoryConversationRepository, teamID string, members ...identity.UserID) {
	t.Helper()
	id := teamID
	c := &domain.Conversation{
		ID:        identity.TeamConversationID(teamID),
		Kind:      domain.ConversationKindTeam,
		GroupName: "Launch Team",
		TeamID:    &id,
	}
	c.SetRoster(members)
	require.NoError(t, repo.Create(context.Background(), c))
}

func TestGroupService_CreateGroup(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("should reject a member set that matches a team roster", func(t *testing.T) {
		req := require.New(t)
		users := mocks.NewMockUserDirectory(ctrl)
		teams := mocks.NewMockTeamDirectory(ctrl)
		repo := repository.NewMemoryConversationRepository()
		seedTeamConversation(t, repo, "t1", "u1", "u2", "u3")
		svc := NewGroupService(repo, users, teams, nil, nil, nil)

		users.EXPECT().
			GetProfiles(gomock.Any(), []identity.UserID{"u1", "u2", "u3"}).
			Return(profilesFor("u1", "u2", "u3"), nil).
			Times(1)
		teams.EXPECT().
			GetTeam(gomock.Any(), "t1").
			Return(&domain.Team{ID: "t1", Name: "Launch Team", Members: []identity.UserID{"u2", "u3"}, CreatedBy: "u1"}, nil).
			Times(1)

		conv, err := svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "Launch Team", MemberIDs: []any{"u2", "u3"}})
		req.Nil(conv)
		req.ErrorIs(err, chat_errors.ErrConflict)

		var conflict *chat_errors.ConflictError
		req.True(errors.As(err, &conflict))
		req.Equal(chat_errors.ConflictTypeTeam, conflict.Type)
		req.Equal("Launch Team", conflict.TeamName)
		req.Equal("t1", conflict.TeamID)
		req.Equal([]string{"u1", "u2", "u3"}, conflict.Members)

		found, err := repo.FindByMemberKey(ctx, domain.ConversationKindGroup, "u1,u2,u3")
		req.NoError(err)
		req.Empty(found)
	})

	t.Run("should allow the set when the team has since changed", func(t *testing.T) {
		req := require.New(t)
		users := mocks.NewMockUserDirectory(ctrl)
		teams := mocks.NewMockTeamDirectory(ctrl)
		repo := repository.NewMemoryConversationRepository()
		seedTeamConversation(t, repo, "t1", "u1", "u2", "u3")
		svc := NewGroupService(repo, users, teams, nil, nil, nil)

		users.EXPECT().GetProfiles(gomock.Any(), gomock.Any()).Return(profilesFor("u1", "u2", "u3"), nil)
		teams.EXPECT().
			GetTeam(gomock.Any(), "t1").
			Return(&domain.Team{ID: "t1", Name: "Launch Team", Members: []identity.UserID{"u2", "u3", "u4"}, CreatedBy: "u1"}, nil)

		conv, err := svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "Launch Team", MemberIDs: []any{"u2", "u3"}})
		req.NoError(err)
		req.Equal(domain.ConversationKindGroup, conv.Kind)
	})

	t.Run("should reject an exact duplicate of a manual group", func(t *testing.T) {
		req := require.New(t)
		users := mocks.NewMockUserDirectory(ctrl)
		teams := mocks.NewMockTeamDirectory(ctrl)
		repo := repository.NewMemoryConversationRepository()
		svc := NewGroupService(repo, users, teams, nil, nil, nil)

		users.EXPECT().GetProfiles(gomock.Any(), gomock.Any()).Return(profilesFor("u1", "u2", "u3"), nil).Times(2)
		teams.EXPECT().GetTeam(gomock.Any(), gomock.Any()).Times(0)

		first, err := svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "Design", MemberIDs: []any{"u2", "u3"}})
		req.NoError(err)

		_, err = svc.CreateGroup(ctx, "u3", CreateGroupInput{Name: "Design again", MemberIDs: []any{"u1", "u2"}})
		var conflict *chat_errors.ConflictError
		req.True(errors.As(err, &conflict))
		req.Equal(chat_errors.ConflictTypeDuplicateGroup, conflict.Type)
		req.Equal(first.ID, conflict.ConversationID)
		req.Equal("Design", conflict.GroupName)
	})

	t.Run("should allow strict subsets and supersets of an existing group", func(t *testing.T) {
		req := require.New(t)
		users := mocks.NewMockUserDirectory(ctrl)
		teams := mocks.NewMockTeamDirectory(ctrl)
		repo := repository.NewMemoryConversationRepository()
		svc := NewGroupService(repo, users, teams, nil, nil, nil)

		users.EXPECT().GetProfiles(gomock.Any(), gomock.Any()).Return(profilesFor("u1", "u2", "u3", "u4"), nil).Times(3)

		_, err := svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "Core", MemberIDs: []any{"u2", "u3"}})
		req.NoError(err)
		_, err = svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "Pair", MemberIDs: []any{"u2"}})
		req.NoError(err)
		_, err = svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "Everyone", MemberIDs: []any{"u2", "u3", "u4"}})
		req.NoError(err)

		ids, err := repo.ListIDs(ctx)
		req.NoError(err)
		req.Len(ids, 3)
	})

	t.Run("should initialize null watermarks and details for every member", func(t *testing.T) {
		req := require.New(t)
		users := mocks.NewMockUserDirectory(ctrl)
		teams := mocks.NewMockTeamDirectory(ctrl)
		repo := repository.NewMemoryConversationRepository()
		svc := NewGroupService(repo, users, teams, nil, nil, nil)
		svc.now = func() time.Time { return fixedNow }

		users.EXPECT().GetProfiles(gomock.Any(), gomock.Any()).Return(profilesFor("u1", "u2"), nil)

		avatar := "https://cdn.example.com/g.png"
		conv, err := svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "  Ops  ", MemberIDs: []any{"u2"}, GroupAvatar: &avatar})
		req.NoError(err)

		stored, err := repo.GetByID(ctx, conv.ID)
		req.NoError(err)
		req.Equal("Ops", stored.GroupName)
		req.Equal(avatar, *stored.GroupAvatar)
		req.Equal(identity.UserID("u1"), *stored.CreatedBy)
		req.Len(stored.ParticipantStates, 2)
		for _, s := range stored.ParticipantStates {
			req.Nil(s.LastReadAt)
		}
		req.Equal("User u2", stored.Detail("u2").Name)
		req.Equal(fixedNow, stored.LastMessageAt)
	})

	t.Run("should validate before touching the directory", func(t *testing.T) {
		req := require.New(t)
		users := mocks.NewMockUserDirectory(ctrl)
		teams := mocks.NewMockTeamDirectory(ctrl)
		svc := NewGroupService(repository.NewMemoryConversationRepository(), users, teams, nil, nil, nil)

		users.EXPECT().GetProfiles(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "", MemberIDs: []any{"u2"}})
		req.ErrorIs(err, chat_errors.ErrInvalidPayload)

		_, err = svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "Solo", MemberIDs: []any{"u1", map[string]any{"id": "u1"}}})
		req.ErrorIs(err, chat_errors.ErrInsufficientMembers)
	})

	t.Run("should reject members without a profile", func(t *testing.T) {
		req := require.New(t)
		users := mocks.NewMockUserDirectory(ctrl)
		teams := mocks.NewMockTeamDirectory(ctrl)
		repo := repository.NewMemoryConversationRepository()
		svc := NewGroupService(repo, users, teams, nil, nil, nil)

		users.EXPECT().GetProfiles(gomock.Any(), gomock.Any()).Return(profilesFor("u1"), nil)

		_, err := svc.CreateGroup(ctx, "u1", CreateGroupInput{Name: "Ghosts", MemberIDs: []any{"ghost"}})
		req.ErrorIs(err, chat_errors.ErrUnresolvableMember)

		ids, err := repo.ListIDs(ctx)
		req.NoError(err)
		req.Empty(ids)
	})
}
