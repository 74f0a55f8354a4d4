package repository

import (
	"context"
	"fmt"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	chat_errors "workforce-chat/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("ParticipantStates").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return err
		}
		if len(c.ParticipantStates) == 0 {
			return nil
		}
		for i := range c.ParticipantStates {
			c.ParticipantStates[i].ConversationID = c.ID
		}
		return tx.Create(&c.ParticipantStates).Error
	})
	return translate(err)
}

func (r *PostgresConversationRepository) SaveRoster(ctx context.Context, c *domain.Conversation) error {
	c.SetRoster(c.GroupMembers)
	res := r.db.WithContext(ctx).
		Model(c).
		Select("group_name", "group_avatar", "group_members", "member_key", "team_id", "participants", "participant_details", "updated_at").
		Omit(clause.Associations).
		Updates(c)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) Append(ctx context.Context, c *domain.Conversation, msg *domain.Message, opts AppendOptions) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		saveParticipants := opts.SaveParticipants
		if opts.Create {
			res := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(c)
			if res.Error != nil {
				return res.Error
			}
			// Lost the creation race; our roster replaces the winner's. Both
			// writers derive it from the same pair of profiles.
			if res.RowsAffected == 0 {
				saveParticipants = true
			}
		}
		if saveParticipants {
			res := tx.Model(c).
				Select("participants", "participant_details", "updated_at").
				Omit(clause.Associations).
				Updates(c)
			if res.Error != nil {
				return res.Error
			}
		}

		msg.ConversationID = c.ID
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		res := tx.Model(&domain.Conversation{}).
			Where("id = ?", c.ID).
			UpdateColumns(map[string]any{
				"last_message_at": gorm.Expr("GREATEST(last_message_at, ?)", msg.Timestamp),
				"updated_at":      time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrNotFound
		}

		return upsertState(tx, c.ID, msg.SenderID, msg.Timestamp)
	})
	return translate(err)
}

func (r *PostgresConversationRepository) UpsertParticipantState(ctx context.Context, conversationID string, userID identity.UserID, at time.Time) error {
	return translate(upsertState(r.db.WithContext(ctx), conversationID, userID, at))
}

func upsertState(tx *gorm.DB, conversationID string, userID identity.UserID, at time.Time) error {
	ts := at
	state := domain.ParticipantState{
		ConversationID: conversationID,
		UserID:         userID,
		LastReadAt:     &ts,
		UpdatedAt:      at,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_read_at": gorm.Expr("GREATEST(participant_states.last_read_at, excluded.last_read_at)"),
			"updated_at":   gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&state).Error
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID identity.UserID) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	member := containsJSON(userID)
	err := r.db.WithContext(ctx).
		Preload("ParticipantStates").
		Where("participants @> ?::jsonb OR group_members @> ?::jsonb", member, member).
		Order("last_message_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, translate(err)
	}
	return conversations, nil
}

func (r *PostgresConversationRepository) FindByMemberKey(ctx context.Context, kind domain.ConversationKind, memberKey string) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.db.WithContext(ctx).
		Where("kind = ? AND member_key = ?", kind, memberKey).
		Order("created_at ASC").
		Find(&conversations).Error
	if err != nil {
		return nil, translate(err)
	}
	return conversations, nil
}

func (r *PostgresConversationRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, translate(err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *PostgresConversationRepository) CountUnread(ctx context.Context, conversationID string, userID identity.UserID, since *time.Time) (int, error) {
	var count int64
	q := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID).
		Where("(is_group = FALSE AND receiver_id = ?) OR (is_group = TRUE AND group_members @> ?::jsonb)", userID, containsJSON(userID))
	if since != nil {
		q = q.Where(`"timestamp" > ?`, *since)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, translate(err)
	}
	return int(count), nil
}

func (r *PostgresConversationRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&domain.Conversation{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

func (r *PostgresConversationRepository) Delete(ctx context.Context, id string) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.ParticipantState{}).Error; err != nil {
			return fmt.Errorf("delete participant states: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&domain.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrNotFound
		}
		return nil
	}))
}
