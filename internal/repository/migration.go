package repository

import (
	"fmt"

	"workforce-chat/internal/domain"

	"gorm.io/gorm"
)

// InitSchema creates the chat tables and the jsonb membership indexes.
// withDirectory also creates the users and teams tables, which are normally
// owned by the wider application.
func InitSchema(db *gorm.DB, withDirectory bool) error {
	models := []any{
		&domain.Conversation{},
		&domain.ParticipantState{},
		&domain.Message{},
	}
	if withDirectory {
		models = append(models, &domain.UserProfile{}, &domain.Team{})
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_conversations_participants_gin ON conversations USING gin (participants jsonb_path_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_group_members_gin ON conversations USING gin (group_members jsonb_path_ops);`,
	}
	if withDirectory {
		indexes = append(indexes,
			`CREATE INDEX IF NOT EXISTS idx_teams_members_gin ON teams USING gin (members jsonb_path_ops);`)
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
