package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/events"
	"workforce-chat/internal/identity"
	"workforce-chat/internal/metrics"
	"workforce-chat/internal/repository"
	chat_errors "workforce-chat/pkg/errors"
	"workforce-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendLimiter throttles message sends per user.
type SendLimiter interface {
	AllowSend(ctx context.Context, userID identity.UserID) (bool, error)
}

// SendMessageInput is the raw sendMessage payload. Ids arrive loosely typed
// and are normalized before anything else happens.
type SendMessageInput struct {
	SenderID       any                     `json:"senderId"`
	ReceiverID     any                     `json:"receiverId"`
	ConversationID string                  `json:"conversationId"`
	Message        string                  `json:"message"`
	Attachments    []*domain.RawAttachment `json:"attachments"`
	IsGroup        bool                    `json:"isGroup"`
	GroupMemberIDs []any                   `json:"groupMemberIds"`
	GroupName      string                  `json:"groupName"`
	GroupAvatar    *string                 `json:"groupAvatar"`
	SenderName     string                  `json:"senderName"`
	ReceiverName   string                  `json:"receiverName"`
}

type SendResult struct {
	Conversation *domain.Conversation
	Message      *domain.Message
	Deliveries   []events.Delivery
}

// GroupGuard rejects member sets that already have a team or group
// conversation.
type GroupGuard interface {
	CheckConflicts(ctx context.Context, members []identity.UserID) error
}

type MessageService struct {
	repo    repository.ConversationRepository
	users   domain.UserDirectory
	limiter SendLimiter
	guard   GroupGuard
	log     *logger.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewMessageService(repo repository.ConversationRepository, users domain.UserDirectory, limiter SendLimiter, log *logger.Logger, m *metrics.Collector) *MessageService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MessageService{
		repo:    repo,
		users:   users,
		limiter: limiter,
		log:     log.Named("message_service"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithGroupGuard runs groups created by a first send through the same
// duplicate checks as explicit group creation.
func (s *MessageService) WithGroupGuard(guard GroupGuard) *MessageService {
	s.guard = guard
	return s
}

// Submit validates, persists and plans delivery of one message. Nothing is
// written unless every check passes; the returned deliveries are for the
// caller to push.
func (s *MessageService) Submit(ctx context.Context, in SendMessageInput) (*SendResult, error) {
	senderID, ok := identity.ToStorageID(in.SenderID)
	if !ok {
		s.metrics.MessageFailed("invalid_identifier")
		return nil, fmt.Errorf("sender id: %w", chat_errors.ErrInvalidIdentifier)
	}
	if caller, ok := CallerFromContext(ctx); ok && caller.UserID != senderID {
		s.metrics.MessageFailed("unauthorized")
		return nil, fmt.Errorf("sender does not match caller: %w", chat_errors.ErrUnauthorized)
	}

	body := strings.TrimSpace(in.Message)
	attachments := domain.NormalizeAttachments(in.Attachments)
	if body == "" && len(attachments) == 0 {
		s.metrics.MessageFailed("invalid_payload")
		return nil, fmt.Errorf("empty message: %w", chat_errors.ErrInvalidPayload)
	}

	target, err := s.resolveTarget(senderID, in)
	if err != nil {
		s.metrics.MessageFailed("invalid_identifier")
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.AllowSend(ctx, senderID)
		if err != nil {
			s.log.WarnCtx(ctx, "rate limiter unavailable", zap.String("user_id", senderID.String()), zap.Error(err))
		} else if !allowed {
			s.metrics.MessageFailed("rate_limited")
			return nil, chat_errors.ErrRateLimited
		}
	}

	conv, opts, err := s.loadOrPrepare(ctx, senderID, target, in)
	if err != nil {
		s.metrics.MessageFailed(failureReason(err))
		return nil, err
	}

	msg := s.buildMessage(conv, senderID, target, body, attachments, in)

	if err := s.repo.Append(ctx, conv, msg, opts); err != nil {
		s.log.ErrorCtx(ctx, "failed to persist message",
			zap.String("conversation_id", conv.ID),
			zap.String("sender_id", senderID.String()),
			zap.Error(err),
		)
		s.metrics.MessageFailed("persistence")
		return nil, fmt.Errorf("%w: %v", chat_errors.ErrDeliveryFailed, err)
	}
	conv.UpdateParticipantState(senderID, msg.Timestamp)

	deliveries, err := PlanDeliveries(conv, msg)
	if err != nil {
		return nil, err
	}
	s.metrics.MessageSent(string(conv.Kind))
	return &SendResult{Conversation: conv, Message: msg, Deliveries: deliveries}, nil
}

type sendTarget struct {
	conversationID string
	kind           identity.Kind
	receiverID     identity.UserID
}

func (s *MessageService) resolveTarget(senderID identity.UserID, in SendMessageInput) (sendTarget, error) {
	if !in.IsGroup {
		receiverID, ok := identity.ToStorageID(in.ReceiverID)
		if !ok {
			return sendTarget{}, fmt.Errorf("receiver id: %w", chat_errors.ErrInvalidIdentifier)
		}
		pairID, _ := identity.PairConversationID(senderID, receiverID)
		if provided := strings.TrimSpace(in.ConversationID); provided != "" && provided != pairID {
			return sendTarget{}, fmt.Errorf("conversation id %q does not match the pair: %w", provided, chat_errors.ErrInvalidIdentifier)
		}
		return sendTarget{conversationID: pairID, kind: identity.KindDirect, receiverID: receiverID}, nil
	}

	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		conversationID = identity.NewGroupConversationID()
	}
	kind, ok := identity.KindOf(conversationID)
	if !ok || (kind != identity.KindGroup && kind != identity.KindTeam) {
		return sendTarget{}, fmt.Errorf("conversation id %q is not a group: %w", conversationID, chat_errors.ErrInvalidIdentifier)
	}
	return sendTarget{conversationID: conversationID, kind: kind}, nil
}

func (s *MessageService) loadOrPrepare(ctx context.Context, senderID identity.UserID, target sendTarget, in SendMessageInput) (*domain.Conversation, repository.AppendOptions, error) {
	conv, err := s.repo.GetByID(ctx, target.conversationID)
	switch {
	case err == nil:
	case errors.Is(err, chat_errors.ErrNotFound):
		return s.prepareNew(ctx, senderID, target, in)
	default:
		return nil, repository.AppendOptions{}, fmt.Errorf("load conversation: %w", err)
	}

	if target.kind == identity.KindDirect {
		s.ensureParticipants(ctx, conv, map[identity.UserID]string{
			senderID:          in.SenderName,
			target.receiverID: in.ReceiverName,
		})
		return conv, repository.AppendOptions{SaveParticipants: true}, nil
	}

	if !conv.HasMember(senderID) {
		return nil, repository.AppendOptions{}, fmt.Errorf("sender is not a member of %s: %w", conv.ID, chat_errors.ErrUnauthorized)
	}
	if conv.Detail(senderID) != nil {
		return conv, repository.AppendOptions{}, nil
	}
	s.ensureParticipants(ctx, conv, map[identity.UserID]string{senderID: in.SenderName})
	return conv, repository.AppendOptions{SaveParticipants: true}, nil
}

func (s *MessageService) prepareNew(ctx context.Context, senderID identity.UserID, target sendTarget, in SendMessageInput) (*domain.Conversation, repository.AppendOptions, error) {
	now := s.now()
	opts := repository.AppendOptions{Create: true, SaveParticipants: true}

	switch target.kind {
	case identity.KindTeam:
		// Team conversations only come into existence through team sync.
		return nil, opts, fmt.Errorf("team conversation %s: %w", target.conversationID, chat_errors.ErrNotFound)

	case identity.KindGroup:
		values := append([]any{senderID}, in.GroupMemberIDs...)
		members, _ := identity.NormalizeSet(values)
		if len(members) < 2 {
			return nil, opts, fmt.Errorf("group needs at least two members: %w", chat_errors.ErrInsufficientMembers)
		}
		if s.guard != nil {
			if err := s.guard.CheckConflicts(ctx, members); err != nil {
				var conflict *chat_errors.ConflictError
				if errors.As(err, &conflict) {
					s.metrics.GroupConflict(conflict.Type)
				}
				return nil, opts, err
			}
		}
		name := strings.TrimSpace(in.GroupName)
		if name == "" {
			name = domain.DefaultGroupName
		}
		creator := senderID
		conv := &domain.Conversation{
			ID:            target.conversationID,
			Kind:          domain.ConversationKindGroup,
			GroupName:     name,
			GroupAvatar:   in.GroupAvatar,
			CreatedBy:     &creator,
			LastMessageAt: now,
			CreatedAt:     now,
		}
		conv.SetRoster(members)
		conv.InitParticipantStates(members)
		fallbacks := make(map[identity.UserID]string, len(members))
		for _, m := range members {
			fallbacks[m] = ""
		}
		fallbacks[senderID] = in.SenderName
		s.ensureParticipants(ctx, conv, fallbacks)
		s.metrics.GroupCreated()
		return conv, opts, nil

	default:
		conv := &domain.Conversation{
			ID:            target.conversationID,
			Kind:          domain.ConversationKindDirect,
			LastMessageAt: now,
			CreatedAt:     now,
		}
		s.ensureParticipants(ctx, conv, map[identity.UserID]string{
			senderID:          in.SenderName,
			target.receiverID: in.ReceiverName,
		})
		return conv, opts, nil
	}
}

// ensureParticipants resolves profiles in one batch and upserts each user.
// A failed lookup degrades to the supplied fallback names.
func (s *MessageService) ensureParticipants(ctx context.Context, conv *domain.Conversation, fallbacks map[identity.UserID]string) {
	ids := make([]identity.UserID, 0, len(fallbacks))
	for id := range fallbacks {
		ids = append(ids, id)
	}
	identity.SortIDs(ids)

	profiles, err := s.users.GetProfiles(ctx, ids)
	if err != nil {
		s.log.WarnCtx(ctx, "profile lookup failed", zap.String("conversation_id", conv.ID), zap.Error(err))
		profiles = nil
	}
	for _, id := range ids {
		fallback := strings.TrimSpace(fallbacks[id])
		if fallback == "" {
			fallback = domain.DefaultMemberName
		}
		conv.EnsureParticipant(id, profiles[id], fallback)
	}
}

func (s *MessageService) buildMessage(conv *domain.Conversation, senderID identity.UserID, target sendTarget, body string, attachments []domain.Attachment, in SendMessageInput) *domain.Message {
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		SenderName:     nameOf(conv, senderID, in.SenderName),
		Body:           body,
		MessageType:    domain.ResolveMessageType(body, attachments),
		Attachments:    attachments,
		Timestamp:      s.now().Truncate(time.Microsecond),
		IsGroup:        conv.IsGroupLike(),
	}
	if msg.Attachments == nil {
		msg.Attachments = []domain.Attachment{}
	}
	if conv.IsGroupLike() {
		msg.ReceiverName = conv.GroupName
		msg.GroupMembers = append([]identity.UserID(nil), conv.GroupMembers...)
		return msg
	}
	receiverID := target.receiverID
	msg.ReceiverID = &receiverID
	msg.ReceiverName = nameOf(conv, receiverID, in.ReceiverName)
	msg.GroupMembers = []identity.UserID{}
	return msg
}

func nameOf(conv *domain.Conversation, userID identity.UserID, fallback string) string {
	if d := conv.Detail(userID); d != nil && d.Name != "" {
		return d.Name
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return domain.DefaultMemberName
}

// PlanDeliveries maps a stored message to the events its recipients get.
// The sender gets messageConfirmed; everyone else receiveMessage.
func PlanDeliveries(conv *domain.Conversation, msg *domain.Message) ([]events.Delivery, error) {
	view := NewMessageView(*msg, false)
	if view.ConversationID == "" {
		view.ConversationID = conv.ID
	}

	confirmed, err := events.NewEnvelope(events.EventMessageConfirmed, view)
	if err != nil {
		return nil, err
	}
	received, err := events.NewEnvelope(events.EventReceiveMessage, view)
	if err != nil {
		return nil, err
	}

	out := []events.Delivery{{UserID: msg.SenderID.String(), Envelope: confirmed}}
	if !msg.IsGroup {
		if msg.ReceiverID != nil && *msg.ReceiverID != msg.SenderID {
			out = append(out, events.Delivery{UserID: msg.ReceiverID.String(), Envelope: received})
		}
		return out, nil
	}

	recipients := msg.GroupMembers
	if len(recipients) == 0 {
		recipients = conv.GroupMembers
	}
	for _, member := range recipients {
		if member == msg.SenderID {
			continue
		}
		out = append(out, events.Delivery{UserID: member.String(), Envelope: received})
	}
	return out, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, chat_errors.ErrInsufficientMembers):
		return "insufficient_members"
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, chat_errors.ErrNotFound):
		return "not_found"
	case errors.Is(err, chat_errors.ErrConflict):
		return "conflict"
	default:
		return "persistence"
	}
}
