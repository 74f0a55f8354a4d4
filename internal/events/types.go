package events

// Realtime events sent to clients.
const (
	EventReceiveMessage    = "receiveMessage"
	EventMessageConfirmed  = "messageConfirmed"
	EventMessageError      = "messageError"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventUserOnline        = "userOnline"
	EventUserOffline       = "userOffline"
	EventOnlineUsers       = "onlineUsers"
	EventMessagesRead      = "messagesRead"
)

// Realtime events received from clients.
const (
	InboundJoin           = "join"
	InboundSendMessage    = "sendMessage"
	InboundTyping         = "typing"
	InboundStopTyping     = "stopTyping"
	InboundMarkAsRead     = "markAsRead"
	InboundGetOnlineUsers = "getOnlineUsers"
)

// Team lifecycle event types published by team management.
const (
	TeamCreated       = "team.created"
	TeamUpdated       = "team.updated"
	TeamMemberAdded   = "team.member_added"
	TeamMemberRemoved = "team.member_removed"
	TeamDeleted       = "team.deleted"
)

// Redis channel prefixes
const (
	ChannelPrefixUser  = "channel:user:"
	ChannelPatternUser = ChannelPrefixUser + "*"
)
