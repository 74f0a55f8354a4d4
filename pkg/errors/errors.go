package chat_errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrInvalidIdentifier   = errors.New("invalid identifier")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrInsufficientMembers = errors.New("insufficient members")
	ErrUnresolvableMember  = errors.New("unresolvable member")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrAlreadyExists       = errors.New("already exists")
	ErrRateLimited         = errors.New("rate limited")
	ErrDeliveryFailed      = errors.New("failed to send message")
	ErrServiceUnavailable  = errors.New("service unavailable")
)

const (
	ConflictTypeTeam           = "team"
	ConflictTypeDuplicateGroup = "duplicate-group"
)

// ConflictError is returned by group creation when the requested member set
// already has a conversation.
type ConflictError struct {
	Type           string
	TeamName       string
	TeamID         string
	GroupName      string
	ConversationID string
	Members        []string
}

func (e *ConflictError) Error() string {
	switch e.Type {
	case ConflictTypeTeam:
		if e.TeamName != "" {
			return fmt.Sprintf("selected members already share the team conversation %q", e.TeamName)
		}
		return "selected members already share a team conversation"
	case ConflictTypeDuplicateGroup:
		if e.GroupName != "" {
			return fmt.Sprintf("the group chat %q already has the same members", e.GroupName)
		}
		return "a group chat with the same members already exists"
	default:
		return fmt.Sprintf("conflict for members %s", strings.Join(e.Members, ","))
	}
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
