package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"workforce-chat/internal/identity"
	chat_errors "workforce-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Caller is the authenticated identity supplied by the session collaborator.
// It is trusted as-is.
type Caller struct {
	UserID identity.UserID
	Name   string
	Role   string
}

type AccessClaims struct {
	UserID string `json:"sub"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthService verifies access tokens minted by the session service. Chat
// never issues tokens for end users.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{jwtSecret: []byte(secret)}
}

func (s *AuthService) ParseAccessToken(tokenString string) (Caller, error) {
	if tokenString == "" {
		return Caller{}, chat_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chat_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Caller{}, chat_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return Caller{}, chat_errors.ErrUnauthorized
	}

	userID, ok := identity.ToStorageID(claims.UserID)
	if !ok {
		return Caller{}, chat_errors.ErrUnauthorized
	}
	return Caller{UserID: userID, Name: claims.Name, Role: claims.Role}, nil
}

// IssueAccessToken signs a token for operator tooling and tests.
func (s *AuthService) IssueAccessToken(caller Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: string(caller.UserID),
		Name:   caller.Name,
		Role:   caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, chat_errors.ErrInvalidIdentifier),
		errors.Is(err, chat_errors.ErrInvalidPayload),
		errors.Is(err, chat_errors.ErrInsufficientMembers),
		errors.Is(err, chat_errors.ErrUnresolvableMember):
		return http.StatusBadRequest
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, chat_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat_errors.ErrAlreadyExists), errors.Is(err, chat_errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, chat_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, chat_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type ctxKey string

var callerKey ctxKey = "caller"

func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}
