package repository

import (
	"context"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"

	"gorm.io/gorm"
)

// PostgresUserDirectory reads profiles from the application's users table.
type PostgresUserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *PostgresUserDirectory {
	return &PostgresUserDirectory{db: db}
}

func (r *PostgresUserDirectory) GetProfile(ctx context.Context, id identity.UserID) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PostgresUserDirectory) GetProfiles(ctx context.Context, ids []identity.UserID) (map[identity.UserID]*domain.UserProfile, error) {
	out := make(map[identity.UserID]*domain.UserProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []domain.UserProfile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, translate(err)
	}
	for i := range profiles {
		out[profiles[i].ID] = &profiles[i]
	}
	return out, nil
}

// PostgresTeamDirectory reads the teams table.
type PostgresTeamDirectory struct {
	db *gorm.DB
}

func NewTeamDirectory(db *gorm.DB) *PostgresTeamDirectory {
	return &PostgresTeamDirectory{db: db}
}

func (r *PostgresTeamDirectory) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	var t domain.Team
	if err := r.db.WithContext(ctx).Where("id = ?", teamID).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *PostgresTeamDirectory) ListTeamsForUser(ctx context.Context, userID identity.UserID) ([]domain.Team, error) {
	var teams []domain.Team
	err := r.db.WithContext(ctx).
		Where("created_by = ? OR members @> ?::jsonb", userID, containsJSON(userID)).
		Order("id").
		Find(&teams).Error
	if err != nil {
		return nil, translate(err)
	}
	return teams, nil
}

func (r *PostgresTeamDirectory) ListTeams(ctx context.Context) ([]domain.Team, error) {
	var teams []domain.Team
	if err := r.db.WithContext(ctx).Order("id").Find(&teams).Error; err != nil {
		return nil, translate(err)
	}
	return teams, nil
}
