package repository

import (
	"encoding/json"
	"errors"

	"workforce-chat/internal/identity"
	chat_errors "workforce-chat/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// translate maps driver errors onto the shared error taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return chat_errors.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return chat_errors.ErrAlreadyExists
	default:
		return err
	}
}

// containsJSON builds the right-hand side of a jsonb @> membership test.
func containsJSON(userID identity.UserID) string {
	raw, _ := json.Marshal([]identity.UserID{userID})
	return string(raw)
}
