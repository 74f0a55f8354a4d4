package domain

import (
	"time"

	"workforce-chat/internal/identity"
)

// Message is immutable once appended.
type Message struct {
	ID             string `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID string `gorm:"type:text;not null;index:idx_messages_history,priority:1" json:"conversationId"`
	// Seq is assigned by the database and orders the log by commit.
	Seq          int64             `gorm:"autoIncrement;<-:false;index:idx_messages_history,priority:2" json:"-"`
	SenderID     identity.UserID   `gorm:"type:text;not null" json:"senderId"`
	ReceiverID   *identity.UserID  `gorm:"type:text;index:idx_messages_receiver" json:"receiverId"`
	SenderName   string            `gorm:"type:text" json:"senderName"`
	ReceiverName string            `gorm:"type:text" json:"receiverName"`
	Body         string            `gorm:"type:text" json:"message"`
	MessageType  MessageType       `gorm:"type:text;not null;default:'text'" json:"messageType"`
	Attachments  []Attachment      `gorm:"type:jsonb;serializer:json" json:"attachments"`
	Timestamp    time.Time         `gorm:"not null" json:"timestamp"`
	IsGroup      bool              `gorm:"default:false" json:"isGroup"`
	GroupMembers []identity.UserID `gorm:"type:jsonb;serializer:json" json:"groupMembers"`
}

// AddressedTo reports whether the message counts toward userID's unread
// total. Direct messages are addressed to their receiver; group messages to
// every member of the snapshot except the sender.
func (m *Message) AddressedTo(userID identity.UserID) bool {
	if m.SenderID == userID {
		return false
	}
	if !m.IsGroup {
		return m.ReceiverID != nil && *m.ReceiverID == userID
	}
	for _, member := range m.GroupMembers {
		if member == userID {
			return true
		}
	}
	return false
}

// UnreadAfter reports whether the message is past the read watermark. A nil
// watermark means nothing has been read.
func (m *Message) UnreadAfter(lastReadAt *time.Time) bool {
	return lastReadAt == nil || m.Timestamp.After(*lastReadAt)
}

// CountUnread counts messages addressed to userID that are past the
// watermark.
func CountUnread(messages []Message, userID identity.UserID, lastReadAt *time.Time) int {
	count := 0
	for i := range messages {
		if messages[i].AddressedTo(userID) && messages[i].UnreadAfter(lastReadAt) {
			count++
		}
	}
	return count
}
