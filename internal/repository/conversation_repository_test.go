package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	chat_errors "workforce-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testDSNEnv names a disposable postgres database. The postgres tests are
// skipped when it is unset.
const testDSNEnv = "CHAT_TEST_POSTGRES_DSN"

func TestTranslate(t *testing.T) {
	req := require.New(t)

	req.NoError(translate(nil))
	req.ErrorIs(translate(gorm.ErrRecordNotFound), chat_errors.ErrNotFound)
	req.ErrorIs(translate(gorm.ErrDuplicatedKey), chat_errors.ErrAlreadyExists)
	req.ErrorIs(translate(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})), chat_errors.ErrAlreadyExists)

	other := &pgconn.PgError{Code: "23503"}
	req.Same(other, translate(other))
	boom := errors.New("boom")
	req.Equal(boom, translate(boom))
}

func TestContainsJSON(t *testing.T) {
	require.Equal(t, `["u1"]`, containsJSON("u1"))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, InitSchema(db, false))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// testUsers returns ids unique to one test run so runs can share a database.
func testUsers(n int) []identity.UserID {
	run := uuid.NewString()[:8]
	out := make([]identity.UserID, n)
	for i := range out {
		out[i] = identity.UserID(fmt.Sprintf("u%d%s", i+1, run))
	}
	return out
}

func pgMessage(from identity.UserID, to *identity.UserID, at time.Time, body string) *domain.Message {
	return &domain.Message{
		ID:          uuid.NewString(),
		SenderID:    from,
		ReceiverID:  to,
		Body:        body,
		MessageType: domain.MessageTypeText,
		Timestamp:   at,
	}
}

func TestPostgresRepository_Append(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should create the conversation on first append", func(t *testing.T) {
		req := require.New(t)
		users := testUsers(2)
		id, ok := identity.PairConversationID(users[0], users[1])
		req.True(ok)
		c := &domain.Conversation{ID: id, Kind: domain.ConversationKindDirect, Participants: users}

		req.NoError(repo.Append(ctx, c, pgMessage(users[0], &users[1], t0, "m1"), AppendOptions{Create: true}))

		stored, err := repo.GetByID(ctx, id)
		req.NoError(err)
		req.True(t0.Equal(stored.LastMessageAt))
		req.True(t0.Equal(*stored.LastReadAt(users[0])))
		req.Nil(stored.LastReadAt(users[1]))
		req.Equal(users, stored.Participants)

		msgs, err := repo.ListMessages(ctx, id, 0)
		req.NoError(err)
		req.Len(msgs, 1)
		req.Equal(id, msgs[0].ConversationID)
	})

	t.Run("should fail without create when the conversation is missing", func(t *testing.T) {
		users := testUsers(2)
		c := &domain.Conversation{ID: string(users[0]) + "_" + string(users[1])}
		err := repo.Append(ctx, c, pgMessage(users[0], &users[1], t0, "m1"), AppendOptions{})
		require.ErrorIs(t, err, chat_errors.ErrNotFound)

		msgs, err := repo.ListMessages(ctx, c.ID, 0)
		require.NoError(t, err)
		require.Empty(t, msgs)
	})

	t.Run("should write our roster when another writer created the row first", func(t *testing.T) {
		req := require.New(t)
		users := testUsers(2)
		id, _ := identity.PairConversationID(users[0], users[1])

		first := &domain.Conversation{ID: id, Kind: domain.ConversationKindDirect, Participants: users[:1]}
		req.NoError(repo.Append(ctx, first, pgMessage(users[0], &users[1], t0, "first"), AppendOptions{Create: true}))

		second := &domain.Conversation{
			ID:           id,
			Kind:         domain.ConversationKindDirect,
			Participants: users,
			ParticipantDetails: []domain.ParticipantDetail{
				{UserID: users[0], Name: "Ada"},
				{UserID: users[1], Name: "Grace"},
			},
		}
		req.NoError(repo.Append(ctx, second, pgMessage(users[1], &users[0], t0.Add(time.Second), "second"), AppendOptions{Create: true}))

		stored, err := repo.GetByID(ctx, id)
		req.NoError(err)
		req.Equal(users, stored.Participants)
		req.Len(stored.ParticipantDetails, 2)

		msgs, err := repo.ListMessages(ctx, id, 0)
		req.NoError(err)
		req.Len(msgs, 2)
	})

	t.Run("should keep the log ordered and lastMessageAt monotonic", func(t *testing.T) {
		req := require.New(t)
		users := testUsers(2)
		id, _ := identity.PairConversationID(users[0], users[1])
		c := &domain.Conversation{ID: id, Kind: domain.ConversationKindDirect, Participants: users}

		req.NoError(repo.Append(ctx, c, pgMessage(users[0], &users[1], t0.Add(time.Minute), "a"), AppendOptions{Create: true}))
		req.NoError(repo.Append(ctx, c, pgMessage(users[1], &users[0], t0, "b"), AppendOptions{}))
		req.NoError(repo.Append(ctx, c, pgMessage(users[0], &users[1], t0.Add(2*time.Minute), "c"), AppendOptions{}))

		stored, err := repo.GetByID(ctx, id)
		req.NoError(err)
		req.True(t0.Add(2 * time.Minute).Equal(stored.LastMessageAt))

		msgs, err := repo.ListMessages(ctx, id, 2)
		req.NoError(err)
		req.Len(msgs, 2)
		req.Equal("b", msgs[0].Body)
		req.Equal("c", msgs[1].Body)
	})
}

func TestPostgresRepository_ReadState(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should never move a watermark backwards", func(t *testing.T) {
		req := require.New(t)
		users := testUsers(2)
		id := "group:" + uuid.NewString()
		c := &domain.Conversation{ID: id, Kind: domain.ConversationKindGroup}
		c.SetRoster(users)
		req.NoError(repo.Create(ctx, c))

		req.NoError(repo.UpsertParticipantState(ctx, id, users[0], t0.Add(time.Hour)))
		req.NoError(repo.UpsertParticipantState(ctx, id, users[0], t0))

		stored, err := repo.GetByID(ctx, id)
		req.NoError(err)
		req.True(t0.Add(time.Hour).Equal(*stored.LastReadAt(users[0])))
	})

	t.Run("should count only messages addressed to the reader after the watermark", func(t *testing.T) {
		req := require.New(t)
		users := testUsers(3)
		id := "group:" + uuid.NewString()
		c := &domain.Conversation{ID: id, Kind: domain.ConversationKindGroup}
		c.SetRoster(users)
		req.NoError(repo.Create(ctx, c))

		for i, sender := range []identity.UserID{users[0], users[1], users[0]} {
			msg := pgMessage(sender, nil, t0.Add(time.Duration(i+1)*time.Minute), "g")
			msg.IsGroup = true
			msg.GroupMembers = users[:2]
			req.NoError(repo.Append(ctx, c, msg, AppendOptions{}))
		}

		n, err := repo.CountUnread(ctx, id, users[1], nil)
		req.NoError(err)
		req.Equal(2, n)

		since := t0.Add(time.Minute)
		n, err = repo.CountUnread(ctx, id, users[1], &since)
		req.NoError(err)
		req.Equal(1, n)

		// Not in the member snapshot.
		n, err = repo.CountUnread(ctx, id, users[2], nil)
		req.NoError(err)
		req.Zero(n)
	})
}

func TestPostgresRepository_Lookups(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()
	users := testUsers(2)

	teamID := uuid.NewString()
	team := &domain.Conversation{ID: identity.TeamConversationID(teamID), Kind: domain.ConversationKindTeam, TeamID: &teamID}
	team.SetRoster([]identity.UserID{users[1], users[0]})
	team.Participants = users
	req.NoError(repo.Create(ctx, team))

	group := &domain.Conversation{ID: "group:" + uuid.NewString(), Kind: domain.ConversationKindGroup, LastMessageAt: time.Now().UTC()}
	group.SetRoster(users)
	group.Participants = users
	req.NoError(repo.Create(ctx, group))
	req.ErrorIs(repo.Create(ctx, group), chat_errors.ErrAlreadyExists)

	found, err := repo.FindByMemberKey(ctx, domain.ConversationKindTeam, identity.MemberKey(users))
	req.NoError(err)
	req.Len(found, 1)
	req.Equal(team.ID, found[0].ID)

	listed, err := repo.ListForUser(ctx, users[1])
	req.NoError(err)
	req.Len(listed, 2)
	req.Equal(group.ID, listed[0].ID)

	team.GroupName = "Platform"
	team.SetRoster(users[:1])
	req.NoError(repo.SaveRoster(ctx, team))
	reloaded, err := repo.GetByID(ctx, team.ID)
	req.NoError(err)
	req.Equal("Platform", reloaded.GroupName)
	req.Equal(users[:1], reloaded.GroupMembers)

	req.NoError(repo.Delete(ctx, team.ID))
	req.ErrorIs(repo.Delete(ctx, team.ID), chat_errors.ErrNotFound)
	_, err = repo.GetByID(ctx, team.ID)
	req.ErrorIs(err, chat_errors.ErrNotFound)

	ids, err := repo.ListIDs(ctx)
	req.NoError(err)
	req.Contains(ids, group.ID)
	req.NotContains(ids, team.ID)
}
