package domain

import (
	"time"

	"workforce-chat/internal/identity"

	"gorm.io/gorm"
)

// Conversation is the roster aggregate. Its message log lives in the
// messages table and is only populated when loaded explicitly.
type Conversation struct {
	ID                 string              `gorm:"type:text;primaryKey" json:"conversationId"`
	Kind               ConversationKind    `gorm:"type:text;not null;index:idx_conversations_member_key,priority:1" json:"kind"`
	GroupName          string              `gorm:"type:text" json:"groupName,omitempty"`
	GroupAvatar        *string             `gorm:"type:text" json:"groupAvatar"`
	GroupMembers       []identity.UserID   `gorm:"type:jsonb;serializer:json" json:"groupMembers"`
	MemberKey          string              `gorm:"type:text;index:idx_conversations_member_key,priority:2" json:"-"`
	TeamID             *string             `gorm:"type:text;uniqueIndex" json:"teamId,omitempty"`
	CreatedBy          *identity.UserID    `gorm:"type:text" json:"createdBy,omitempty"`
	Participants       []identity.UserID   `gorm:"type:jsonb;serializer:json" json:"participants"`
	ParticipantDetails []ParticipantDetail `gorm:"type:jsonb;serializer:json" json:"participantDetails"`
	LastMessageAt      time.Time           `gorm:"index:idx_conversations_last_message,sort:desc" json:"lastMessageAt"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`

	// Relations
	ParticipantStates []ParticipantState `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"participantStates"`
	Messages          []Message          `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

type ParticipantDetail struct {
	UserID identity.UserID `json:"userId"`
	Name   string          `json:"name"`
	Role   string          `json:"role"`
	Avatar *string         `json:"avatar"`
}

type ParticipantState struct {
	ConversationID string          `gorm:"type:text;primaryKey" json:"-"`
	UserID         identity.UserID `gorm:"type:text;primaryKey;index:idx_participant_states_user" json:"userId"`
	LastReadAt     *time.Time      `json:"lastReadAt"`
	UpdatedAt      time.Time       `json:"-"`
}

func (c *Conversation) BeforeSave(tx *gorm.DB) error {
	c.MemberKey = identity.MemberKey(c.GroupMembers)
	return nil
}

// SetRoster replaces the group member list.
func (c *Conversation) SetRoster(members []identity.UserID) {
	c.GroupMembers = append([]identity.UserID(nil), members...)
	c.MemberKey = identity.MemberKey(c.GroupMembers)
}

func (c *Conversation) IsGroupLike() bool {
	return c.Kind.IsGroupLike()
}

// HasMember reports whether userID may act in the conversation.
func (c *Conversation) HasMember(userID identity.UserID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	if c.IsGroupLike() {
		for _, m := range c.GroupMembers {
			if m == userID {
				return true
			}
		}
	}
	return false
}

// Recipients lists everyone a message in this conversation reaches,
// sender included.
func (c *Conversation) Recipients() []identity.UserID {
	if c.IsGroupLike() {
		return append([]identity.UserID(nil), c.GroupMembers...)
	}
	return append([]identity.UserID(nil), c.Participants...)
}

func (c *Conversation) Detail(userID identity.UserID) *ParticipantDetail {
	for i := range c.ParticipantDetails {
		if c.ParticipantDetails[i].UserID == userID {
			return &c.ParticipantDetails[i]
		}
	}
	return nil
}

// EnsureParticipant adds userID to the roster and detail list if missing.
// For an existing entry only non-empty profile fields are applied, so a
// sparse profile never blanks stored data.
func (c *Conversation) EnsureParticipant(userID identity.UserID, profile *UserProfile, fallbackName string) {
	if userID.IsZero() {
		return
	}

	found := false
	for _, p := range c.Participants {
		if p == userID {
			found = true
			break
		}
	}
	if !found {
		c.Participants = append(c.Participants, userID)
	}

	if existing := c.Detail(userID); existing != nil {
		if profile == nil {
			return
		}
		if name := profile.DisplayName(); name != "" {
			existing.Name = name
		}
		if profile.Role != "" {
			existing.Role = profile.Role
		}
		if profile.Avatar != nil && *profile.Avatar != "" {
			existing.Avatar = profile.Avatar
		}
		return
	}

	detail := ParticipantDetail{UserID: userID, Name: fallbackName}
	if profile != nil {
		if name := profile.DisplayName(); name != "" {
			detail.Name = name
		}
		detail.Role = profile.Role
		detail.Avatar = profile.Avatar
	}
	c.ParticipantDetails = append(c.ParticipantDetails, detail)
}

func (c *Conversation) State(userID identity.UserID) *ParticipantState {
	for i := range c.ParticipantStates {
		if c.ParticipantStates[i].UserID == userID {
			return &c.ParticipantStates[i]
		}
	}
	return nil
}

// LastReadAt returns userID's watermark, nil when nothing was read.
func (c *Conversation) LastReadAt(userID identity.UserID) *time.Time {
	if s := c.State(userID); s != nil {
		return s.LastReadAt
	}
	return nil
}

// UpdateParticipantState upserts userID's watermark. The watermark never
// moves backwards.
func (c *Conversation) UpdateParticipantState(userID identity.UserID, at time.Time) {
	if userID.IsZero() {
		return
	}
	if s := c.State(userID); s != nil {
		if s.LastReadAt == nil || at.After(*s.LastReadAt) {
			ts := at
			s.LastReadAt = &ts
		}
		s.UpdatedAt = at
		return
	}
	ts := at
	c.ParticipantStates = append(c.ParticipantStates, ParticipantState{
		ConversationID: c.ID,
		UserID:         userID,
		LastReadAt:     &ts,
		UpdatedAt:      at,
	})
}

// InitParticipantStates gives every member a null watermark.
func (c *Conversation) InitParticipantStates(members []identity.UserID) {
	for _, m := range members {
		if c.State(m) != nil {
			continue
		}
		c.ParticipantStates = append(c.ParticipantStates, ParticipantState{
			ConversationID: c.ID,
			UserID:         m,
		})
	}
}

// UnreadCount needs Messages to be loaded.
func (c *Conversation) UnreadCount(userID identity.UserID) int {
	return CountUnread(c.Messages, userID, c.LastReadAt(userID))
}

func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.GroupMembers = append([]identity.UserID(nil), c.GroupMembers...)
	out.Participants = append([]identity.UserID(nil), c.Participants...)
	out.ParticipantDetails = append([]ParticipantDetail(nil), c.ParticipantDetails...)
	out.ParticipantStates = make([]ParticipantState, len(c.ParticipantStates))
	for i, s := range c.ParticipantStates {
		out.ParticipantStates[i] = s
		if s.LastReadAt != nil {
			ts := *s.LastReadAt
			out.ParticipantStates[i].LastReadAt = &ts
		}
	}
	out.Messages = make([]Message, len(c.Messages))
	for i := range c.Messages {
		out.Messages[i] = c.Messages[i].Clone()
	}
	return &out
}

func (m Message) Clone() Message {
	out := m
	out.Attachments = append([]Attachment(nil), m.Attachments...)
	out.GroupMembers = append([]identity.UserID(nil), m.GroupMembers...)
	if m.ReceiverID != nil {
		r := *m.ReceiverID
		out.ReceiverID = &r
	}
	return out
}
