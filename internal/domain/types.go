package domain

type ConversationKind string

const (
	ConversationKindDirect ConversationKind = "direct"
	ConversationKindGroup  ConversationKind = "group"
	ConversationKindTeam   ConversationKind = "team"
)

func (k ConversationKind) IsGroupLike() bool {
	return k == ConversationKindGroup || k == ConversationKindTeam
}

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
	MessageTypeMixed MessageType = "mixed"
)

type AttachmentKind string

const (
	AttachmentKindImage AttachmentKind = "image"
	AttachmentKindFile  AttachmentKind = "file"
)

const (
	DefaultGroupName  = "Group chat"
	DefaultMemberName = "Member"
	UnknownMemberName = "Unknown member"
	GroupPartnerRole  = "group"
)
