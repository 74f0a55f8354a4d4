package events

import (
	"context"
	"encoding/json"
	"fmt"

	"workforce-chat/internal/domain"
	chat_errors "workforce-chat/pkg/errors"
	"workforce-chat/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const teamSyncQueue = "chat-team-sync"

// TeamEvent is one team lifecycle notification. Every type except deletion
// carries the full team aggregate.
type TeamEvent struct {
	Type string      `json:"type" validate:"required,oneof=team.created team.updated team.member_added team.member_removed team.deleted"`
	Team domain.Team `json:"team"`
}

// TeamSyncer applies team aggregates to their conversations.
type TeamSyncer interface {
	Sync(ctx context.Context, team domain.Team) (*domain.Conversation, error)
	Remove(ctx context.Context, teamID string) error
}

// TeamEventConsumer feeds team lifecycle events from NATS into the
// synchronizer. Processes share a queue group so each event is applied once.
type TeamEventConsumer struct {
	conn      *nats.Conn
	subject   string
	syncer    TeamSyncer
	validator *validator.Validate
	log       *logger.Logger
}

func NewTeamEventConsumer(conn *nats.Conn, subject string, syncer TeamSyncer, log *logger.Logger) *TeamEventConsumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &TeamEventConsumer{
		conn:      conn,
		subject:   subject,
		syncer:    syncer,
		validator: validator.New(),
		log:       log.Named("team_events"),
	}
}

// Start subscribes and returns once the subscription is live. It is torn
// down when ctx is cancelled.
func (c *TeamEventConsumer) Start(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(c.subject, teamSyncQueue, func(msg *nats.Msg) {
		if err := c.HandleTeamEvent(ctx, msg.Data); err != nil {
			c.log.ErrorCtx(ctx, "team event failed", zap.String("subject", msg.Subject), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}
	c.log.InfoCtx(ctx, "listening for team events", zap.String("subject", c.subject))

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			c.log.WarnCtx(context.Background(), "unsubscribe team events", zap.Error(err))
		}
	}()
	return nil
}

func (c *TeamEventConsumer) HandleTeamEvent(ctx context.Context, data []byte) error {
	var ev TeamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: %v", chat_errors.ErrInvalidPayload, err)
	}
	return c.Apply(ctx, ev)
}

// Apply validates and applies one event. It is shared by the NATS
// subscription and the internal HTTP endpoint.
func (c *TeamEventConsumer) Apply(ctx context.Context, ev TeamEvent) error {
	if err := c.validator.Struct(ev); err != nil {
		return fmt.Errorf("%w: %v", chat_errors.ErrInvalidPayload, err)
	}
	if ev.Type == TeamDeleted {
		if err := c.syncer.Remove(ctx, ev.Team.ID); err != nil {
			return err
		}
		c.log.InfoCtx(ctx, "team conversation removed", zap.String("team_id", ev.Team.ID))
		return nil
	}

	conv, err := c.syncer.Sync(ctx, ev.Team)
	if err != nil {
		return err
	}
	c.log.InfoCtx(ctx, "team conversation synced",
		zap.String("type", ev.Type),
		zap.String("conversation_id", conv.ID),
		zap.Int("members", len(conv.GroupMembers)),
	)
	return nil
}
