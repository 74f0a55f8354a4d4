package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	chat_errors "workforce-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestAuthService_ParseAccessToken(t *testing.T) {
	svc := NewAuthService("test-secret")

	t.Run("should accept a token it issued", func(t *testing.T) {
		req := require.New(t)
		token, err := svc.IssueAccessToken(Caller{UserID: "u1", Name: "Ada", Role: "engineer"}, time.Hour)
		req.NoError(err)

		caller, err := svc.ParseAccessToken(token)
		req.NoError(err)
		req.Equal(Caller{UserID: "u1", Name: "Ada", Role: "engineer"}, caller)
	})

	t.Run("should reject expired tokens", func(t *testing.T) {
		token, err := svc.IssueAccessToken(Caller{UserID: "u1"}, -time.Minute)
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		require.ErrorIs(t, err, chat_errors.ErrUnauthorized)
	})

	t.Run("should reject tokens signed with another secret", func(t *testing.T) {
		token, err := NewAuthService("other").IssueAccessToken(Caller{UserID: "u1"}, time.Hour)
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		require.ErrorIs(t, err, chat_errors.ErrUnauthorized)
	})

	t.Run("should reject a subject that is not a storage id", func(t *testing.T) {
		claims := AccessClaims{UserID: "u1_u2", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		require.ErrorIs(t, err, chat_errors.ErrUnauthorized)
	})

	t.Run("should reject an empty token", func(t *testing.T) {
		_, err := svc.ParseAccessToken("")
		require.ErrorIs(t, err, chat_errors.ErrUnauthorized)
	})
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", chat_errors.ErrInvalidIdentifier), http.StatusBadRequest},
		{chat_errors.ErrInsufficientMembers, http.StatusBadRequest},
		{chat_errors.ErrUnresolvableMember, http.StatusBadRequest},
		{chat_errors.ErrUnauthorized, http.StatusUnauthorized},
		{chat_errors.ErrNotFound, http.StatusNotFound},
		{&chat_errors.ConflictError{Type: chat_errors.ConflictTypeTeam}, http.StatusConflict},
		{chat_errors.ErrRateLimited, http.StatusTooManyRequests},
		{chat_errors.ErrDeliveryFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			require.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestCallerContext(t *testing.T) {
	req := require.New(t)
	_, ok := CallerFromContext(context.Background())
	req.False(ok)

	ctx := WithCaller(context.Background(), Caller{UserID: "u1"})
	caller, ok := CallerFromContext(ctx)
	req.True(ok)
	req.Equal("u1", caller.UserID.String())
}
