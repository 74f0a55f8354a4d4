package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"workforce-chat/internal/events"
	"workforce-chat/internal/identity"
	"workforce-chat/internal/presence"
	"workforce-chat/internal/services"
	chat_errors "workforce-chat/pkg/errors"
	"workforce-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBufferSize = 256
)

// Rate limits per minute for events that never reach the send limiter.
type RateLimits struct {
	MaxTypingEvents    int
	MaxReadReceipts    int
	MaxPresenceQueries int
}

var DefaultRateLimits = RateLimits{
	MaxTypingEvents:    60,
	MaxReadReceipts:    120,
	MaxPresenceQueries: 30,
}

// ClientRateLimiter is a per-connection token bucket refilled every minute.
type ClientRateLimiter struct {
	typingTokens      int
	readReceiptTokens int
	presenceTokens    int
	lastRefill        time.Time
	mu                sync.Mutex
}

func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{
		typingTokens:      DefaultRateLimits.MaxTypingEvents,
		readReceiptTokens: DefaultRateLimits.MaxReadReceipts,
		presenceTokens:    DefaultRateLimits.MaxPresenceQueries,
		lastRefill:        time.Now(),
	}
}

func (rl *ClientRateLimiter) Allow(event string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.typingTokens = DefaultRateLimits.MaxTypingEvents
		rl.readReceiptTokens = DefaultRateLimits.MaxReadReceipts
		rl.presenceTokens = DefaultRateLimits.MaxPresenceQueries
		rl.lastRefill = now
	}

	var tokens *int
	switch event {
	case events.InboundTyping, events.InboundStopTyping:
		tokens = &rl.typingTokens
	case events.InboundMarkAsRead:
		tokens = &rl.readReceiptTokens
	case events.InboundGetOnlineUsers:
		tokens = &rl.presenceTokens
	default:
		return true
	}
	if *tokens <= 0 {
		return false
	}
	*tokens--
	return true
}

// Client is one websocket connection. It starts unregistered and moves to
// joined after a successful join handshake.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	caller       services.Caller
	clientID     string
	joined       atomic.Bool
	displayName  string
	rateLimiter  *ClientRateLimiter
	connectedAt  time.Time
	lastActivity atomic.Int64
	logger       *WebSocketLogger
}

type joinPayload struct {
	UserID      any     `json:"userId"`
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName"`
	Role        string  `json:"role"`
	Avatar      *string `json:"avatar"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     any    `json:"receiverId"`
	IsGroup        bool   `json:"isGroup"`
}

type typingEvent struct {
	ConversationID string          `json:"conversationId"`
	UserID         identity.UserID `json:"userId"`
	Name           string          `json:"name"`
	IsGroup        bool            `json:"isGroup"`
}

type markReadPayload struct {
	ConversationID string `json:"conversationId"`
}

type sendMessageExtras struct {
	TempID string `json:"tempId"`
}

type confirmedMessage struct {
	services.MessageView
	TempID string `json:"tempId,omitempty"`
}

type messageError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	TempID  string `json:"tempId,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, caller services.Caller, logger *WebSocketLogger) *Client {
	now := time.Now()
	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		caller:      caller,
		clientID:    uuid.NewString(),
		rateLimiter: NewClientRateLimiter(),
		connectedAt: now,
		logger:      logger,
	}
	c.lastActivity.Store(now.UnixNano())
	return c
}

func (c *Client) context() (context.Context, context.CancelFunc) {
	ctx := context.WithValue(context.Background(), logger.UserIdKey, c.caller.UserID.String())
	ctx = context.WithValue(ctx, logger.RequestIdKey, c.clientID)
	ctx = services.WithCaller(ctx, c.caller)
	return context.WithCancel(ctx)
}

func (c *Client) readPump() {
	ctx, cancel := c.context()
	defer func() {
		cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity.Store(time.Now().UnixNano())
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.caller.UserID, c.clientID, err)
			}
			return
		}
		c.lastActivity.Store(time.Now().UnixNano())
		c.handleMessage(ctx, message)
	}
}

// handleMessage processes one inbound frame. Failures are answered with a
// messageError to this connection only.
func (c *Client) handleMessage(ctx context.Context, raw []byte) {
	var env events.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		c.sendError(chat_errors.ErrInvalidPayload, "")
		return
	}

	if !c.rateLimiter.Allow(env.Event) {
		c.logger.Warn("rate limit exceeded", c.caller.UserID, c.clientID, zap.String("event", env.Event))
		return
	}

	switch env.Event {
	case events.InboundJoin:
		c.handleJoin(env)
		return
	case events.InboundGetOnlineUsers:
		c.handleGetOnlineUsers(ctx)
		return
	}

	if !c.joined.Load() {
		c.sendError(chat_errors.ErrUnauthorized, "")
		return
	}

	switch env.Event {
	case events.InboundSendMessage:
		c.handleSendMessage(ctx, env)
	case events.InboundTyping:
		c.handleTyping(ctx, env, events.EventUserTyping)
	case events.InboundStopTyping:
		c.handleTyping(ctx, env, events.EventUserStoppedTyping)
	case events.InboundMarkAsRead:
		c.handleMarkAsRead(ctx, env)
	default:
		c.logger.Warn("unknown event", c.caller.UserID, c.clientID, zap.String("event", env.Event))
	}
}

func (c *Client) handleJoin(env events.Envelope) {
	var p joinPayload
	if err := env.Decode(&p); err != nil {
		c.sendError(chat_errors.ErrInvalidPayload, "")
		return
	}
	userID := c.caller.UserID
	if p.UserID != nil {
		claimed, ok := identity.ToStorageID(p.UserID)
		if !ok {
			c.sendError(chat_errors.ErrInvalidIdentifier, "")
			return
		}
		if claimed != userID {
			c.logger.Warn("join identity mismatch", userID, c.clientID, zap.String("claimed", claimed.String()))
			c.sendError(chat_errors.ErrUnauthorized, "")
			return
		}
	}

	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = strings.TrimSpace(p.Name)
	}
	if name == "" {
		name = c.caller.Name
	}
	role := p.Role
	if role == "" {
		role = c.caller.Role
	}

	c.displayName = name
	c.hub.join(c, presence.Entry{
		UserID:      userID,
		DisplayName: name,
		Role:        role,
		Avatar:      p.Avatar,
	})
}

func (c *Client) handleGetOnlineUsers(ctx context.Context) {
	entries, err := c.hub.OnlineUsers(ctx)
	if err != nil {
		return
	}
	env, err := events.NewEnvelope(events.EventOnlineUsers, entries)
	if err != nil {
		return
	}
	c.hub.sendTo(c, env)
}

func (c *Client) handleSendMessage(ctx context.Context, env events.Envelope) {
	var in services.SendMessageInput
	var extras sendMessageExtras
	if err := env.Decode(&in); err != nil {
		c.sendError(chat_errors.ErrInvalidPayload, "")
		return
	}
	_ = env.Decode(&extras)

	if in.SenderID == nil {
		in.SenderID = c.caller.UserID.String()
	}
	if in.SenderName == "" {
		in.SenderName = c.displayName
	}

	res, err := c.hub.messages.Submit(ctx, in)
	if err != nil {
		c.logger.Warn("send message rejected", c.caller.UserID, c.clientID, zap.Error(err))
		c.sendError(err, extras.TempID)
		return
	}

	deliveries := res.Deliveries
	if extras.TempID != "" {
		confirmed, err := events.NewEnvelope(events.EventMessageConfirmed, confirmedMessage{
			MessageView: services.NewMessageView(*res.Message, false),
			TempID:      extras.TempID,
		})
		if err == nil {
			for i := range deliveries {
				if deliveries[i].Envelope.Event == events.EventMessageConfirmed {
					deliveries[i].Envelope = confirmed
				}
			}
		}
	}
	c.hub.Dispatch(ctx, deliveries)
}

func (c *Client) handleTyping(ctx context.Context, env events.Envelope, outbound string) {
	var p typingPayload
	if err := env.Decode(&p); err != nil {
		c.sendError(chat_errors.ErrInvalidPayload, "")
		return
	}

	var recipients []identity.UserID
	if p.ConversationID != "" {
		ids, err := c.hub.queries.Recipients(ctx, c.caller.UserID, p.ConversationID)
		if err != nil && !errors.Is(err, chat_errors.ErrNotFound) {
			c.sendError(err, "")
			return
		}
		recipients = ids
	}
	if len(recipients) == 0 && !p.IsGroup {
		if receiver, ok := identity.ToStorageID(p.ReceiverID); ok && receiver != c.caller.UserID {
			recipients = []identity.UserID{receiver}
		}
	}
	if len(recipients) == 0 {
		return
	}

	out, err := events.NewEnvelope(outbound, typingEvent{
		ConversationID: p.ConversationID,
		UserID:         c.caller.UserID,
		Name:           c.displayName,
		IsGroup:        p.IsGroup,
	})
	if err != nil {
		return
	}
	deliveries := make([]events.Delivery, 0, len(recipients))
	for _, r := range recipients {
		deliveries = append(deliveries, events.Delivery{UserID: r.String(), Envelope: out})
	}
	c.hub.Dispatch(ctx, deliveries)
}

func (c *Client) handleMarkAsRead(ctx context.Context, env events.Envelope) {
	var p markReadPayload
	if err := env.Decode(&p); err != nil {
		c.sendError(chat_errors.ErrInvalidPayload, "")
		return
	}
	res, err := c.hub.queries.MarkRead(ctx, c.caller.UserID, p.ConversationID)
	if err != nil {
		c.sendError(err, "")
		return
	}
	c.hub.Dispatch(ctx, res.Deliveries(c.caller.UserID))
}

func (c *Client) sendError(err error, tempID string) {
	code, message := errorCode(err)
	env, encErr := events.NewEnvelope(events.EventMessageError, messageError{Message: message, Code: code, TempID: tempID})
	if encErr != nil {
		return
	}
	c.hub.sendTo(c, env)
}

// errorCode maps a failure to the code and message a client sees. Anything
// unclassified is reported as a generic delivery failure.
func errorCode(err error) (string, string) {
	var conflict *chat_errors.ConflictError
	switch {
	case errors.As(err, &conflict):
		return "conflict", conflict.Error()
	case errors.Is(err, chat_errors.ErrInvalidIdentifier):
		return "invalid_identifier", chat_errors.ErrInvalidIdentifier.Error()
	case errors.Is(err, chat_errors.ErrInvalidPayload):
		return "invalid_payload", chat_errors.ErrInvalidPayload.Error()
	case errors.Is(err, chat_errors.ErrInsufficientMembers):
		return "insufficient_members", chat_errors.ErrInsufficientMembers.Error()
	case errors.Is(err, chat_errors.ErrUnresolvableMember):
		return "unresolvable_member", chat_errors.ErrUnresolvableMember.Error()
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return "unauthorized", chat_errors.ErrUnauthorized.Error()
	case errors.Is(err, chat_errors.ErrNotFound):
		return "not_found", chat_errors.ErrNotFound.Error()
	case errors.Is(err, chat_errors.ErrRateLimited):
		return "rate_limited", chat_errors.ErrRateLimited.Error()
	default:
		return "delivery_failed", chat_errors.ErrDeliveryFailed.Error()
	}
}

// writePump sends one frame per envelope and keeps the connection alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if time.Since(time.Unix(0, c.lastActivity.Load())) > pongWait*2 {
				c.logger.Info("client idle timeout", c.caller.UserID, c.clientID)
				return
			}
		}
	}
}
