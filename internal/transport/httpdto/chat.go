package httpdto

import (
	"errors"

	chat_errors "workforce-chat/pkg/errors"
)

// ConflictResponse is the 409 body of group creation. It names the existing
// conversation so clients can jump to it.
type ConflictResponse struct {
	Success        bool     `json:"success"`
	Error          string   `json:"error"`
	Code           string   `json:"code"`
	ConflictType   string   `json:"conflictType"`
	TeamName       string   `json:"teamName,omitempty"`
	TeamID         string   `json:"teamId,omitempty"`
	GroupName      string   `json:"groupName,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
	Members        []string `json:"members"`
}

// FromConflict returns the conflict body when err carries a conflict.
func FromConflict(err error) (ConflictResponse, bool) {
	var conflict *chat_errors.ConflictError
	if !errors.As(err, &conflict) {
		return ConflictResponse{}, false
	}
	members := conflict.Members
	if members == nil {
		members = []string{}
	}
	return ConflictResponse{
		Success:        false,
		Error:          conflict.Error(),
		Code:           "CONFLICT",
		ConflictType:   conflict.Type,
		TeamName:       conflict.TeamName,
		TeamID:         conflict.TeamID,
		GroupName:      conflict.GroupName,
		ConversationID: conflict.ConversationID,
		Members:        members,
	}, true
}

type MarkReadResponse struct {
	ConversationID string `json:"conversationId"`
	MarkedCount    int    `json:"markedCount"`
	ReadAt         string `json:"readAt"`
}

type TeamEventAccepted struct {
	Type   string `json:"type"`
	TeamID string `json:"teamId"`
}
