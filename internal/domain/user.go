//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user.go -package=mocks
package domain

import (
	"context"

	"workforce-chat/internal/identity"
)

// UserProfile is read from the employee directory owned by the wider
// application.
type UserProfile struct {
	ID     identity.UserID `gorm:"type:text;primaryKey" json:"id"`
	Name   string          `gorm:"type:text" json:"name"`
	Email  string          `gorm:"type:text" json:"email"`
	Avatar *string         `gorm:"type:text" json:"avatar"`
	Role   string          `gorm:"type:text" json:"role"`
}

func (UserProfile) TableName() string { return "users" }

// DisplayName falls back to the email when no name is set.
func (p *UserProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// Team is the organizational team aggregate that team conversations mirror.
type Team struct {
	ID        string            `gorm:"type:text;primaryKey" json:"id" validate:"required"`
	Name      string            `gorm:"type:text" json:"name"`
	Members   []identity.UserID `gorm:"type:jsonb;serializer:json" json:"members"`
	CreatedBy identity.UserID   `gorm:"type:text" json:"createdBy"`
}

func (Team) TableName() string { return "teams" }

// Roster is members plus the creator, de-duplicated and sorted.
func (t *Team) Roster() []identity.UserID {
	values := make([]any, 0, len(t.Members)+1)
	for _, m := range t.Members {
		values = append(values, m)
	}
	if !t.CreatedBy.IsZero() {
		values = append(values, t.CreatedBy)
	}
	ids, _ := identity.NormalizeSet(values)
	return ids
}

// UserDirectory resolves user profiles. Missing users are absent from the
// result of GetProfiles and ErrNotFound for GetProfile.
type UserDirectory interface {
	GetProfile(ctx context.Context, id identity.UserID) (*UserProfile, error)
	GetProfiles(ctx context.Context, ids []identity.UserID) (map[identity.UserID]*UserProfile, error)
}

// TeamDirectory reads the team aggregates.
type TeamDirectory interface {
	GetTeam(ctx context.Context, teamID string) (*Team, error)
	ListTeamsForUser(ctx context.Context, userID identity.UserID) ([]Team, error)
	ListTeams(ctx context.Context) ([]Team, error)
}
