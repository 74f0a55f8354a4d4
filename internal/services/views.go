package services

import (
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/events"
	"workforce-chat/internal/identity"
)

// MessageView is the client-facing shape of a message.
type MessageView struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversationId"`
	SenderID       identity.UserID     `json:"senderId"`
	ReceiverID     *identity.UserID    `json:"receiverId"`
	SenderName     string              `json:"senderName"`
	ReceiverName   string              `json:"receiverName"`
	Message        string              `json:"message"`
	MessageType    domain.MessageType  `json:"messageType"`
	Attachments    []domain.Attachment `json:"attachments"`
	SeenByReceiver bool                `json:"seenByReceiver"`
	Timestamp      time.Time           `json:"timestamp"`
	IsGroup        bool                `json:"isGroup"`
	GroupMembers   []identity.UserID   `json:"groupMembers"`
}

func NewMessageView(m domain.Message, seenByReceiver bool) MessageView {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	members := m.GroupMembers
	if members == nil {
		members = []identity.UserID{}
	}
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		SenderName:     m.SenderName,
		ReceiverName:   m.ReceiverName,
		Message:        m.Body,
		MessageType:    m.MessageType,
		Attachments:    attachments,
		SeenByReceiver: seenByReceiver,
		Timestamp:      m.Timestamp,
		IsGroup:        m.IsGroup,
		GroupMembers:   members,
	}
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ConversationID   string                  `json:"conversationId"`
	Kind             domain.ConversationKind `json:"kind"`
	PartnerID        string                  `json:"partnerId"`
	PartnerName      string                  `json:"partnerName"`
	PartnerAvatar    *string                 `json:"partnerAvatar"`
	PartnerRole      string                  `json:"partnerRole"`
	LastMessage      string                  `json:"lastMessage"`
	LastMessageType  domain.MessageType      `json:"lastMessageType"`
	AttachmentsCount int                     `json:"attachmentsCount"`
	Timestamp        time.Time               `json:"timestamp"`
	IsMeSend         bool                    `json:"isMeSend"`
	Read             bool                    `json:"read"`
	UnreadCount      int                     `json:"unreadCount"`
	Members          []string                `json:"members"`
	GroupMembers     []identity.UserID       `json:"groupMembers"`
	GroupName        *string                 `json:"groupName"`
	GroupAvatar      *string                 `json:"groupAvatar"`
}

type UnreadSummary struct {
	TotalUnread    int            `json:"totalUnread"`
	UnreadBySender map[string]int `json:"unreadBySender"`
}

// ReadReceipt is sent to the other participants after a mark-read.
type ReadReceipt struct {
	ConversationID string          `json:"conversationId"`
	ReadBy         identity.UserID `json:"readBy"`
	Count          int             `json:"count"`
}

type MarkReadResult struct {
	ConversationID string            `json:"conversationId"`
	MarkedCount    int               `json:"markedCount"`
	ReadAt         time.Time         `json:"readAt"`
	Notify         []identity.UserID `json:"-"`
}

// Deliveries addresses a messagesRead event to every user in Notify.
func (r *MarkReadResult) Deliveries(readBy identity.UserID) []events.Delivery {
	env, err := events.NewEnvelope(events.EventMessagesRead, ReadReceipt{
		ConversationID: r.ConversationID,
		ReadBy:         readBy,
		Count:          r.MarkedCount,
	})
	if err != nil {
		return nil
	}
	out := make([]events.Delivery, 0, len(r.Notify))
	for _, id := range r.Notify {
		out = append(out, events.Delivery{UserID: id.String(), Envelope: env})
	}
	return out
}
