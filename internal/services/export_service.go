package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"workforce-chat/internal/repository"
	"workforce-chat/pkg/logger"

	"go.uber.org/zap"
)

const archivePrefix = "conversations"

// ObjectWriter stores one archive object.
type ObjectWriter interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
}

// ExportService writes full conversation documents, message log included,
// to object storage.
type ExportService struct {
	repo   repository.ConversationRepository
	writer ObjectWriter
	log    *logger.Logger
}

func NewExportService(repo repository.ConversationRepository, writer ObjectWriter, log *logger.Logger) *ExportService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ExportService{repo: repo, writer: writer, log: log.Named("export")}
}

func ArchiveKey(conversationID string) string {
	return path.Join(archivePrefix, conversationID+".json")
}

// Export archives one conversation and returns the object key.
func (s *ExportService) Export(ctx context.Context, conversationID string) (string, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	msgs, err := s.repo.ListMessages(ctx, conversationID, 0)
	if err != nil {
		return "", fmt.Errorf("load messages of %s: %w", conversationID, err)
	}
	conv.Messages = msgs

	body, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", conversationID, err)
	}
	key := ArchiveKey(conversationID)
	if err := s.writer.PutObject(ctx, key, "application/json", body); err != nil {
		return "", err
	}
	s.log.InfoCtx(ctx, "conversation exported", zap.String("conversation_id", conversationID), zap.Int("messages", len(msgs)))
	return key, nil
}

// ExportAll archives the given conversations, or every stored one when ids
// is empty. It stops at the first failure.
func (s *ExportService) ExportAll(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		all, err := s.repo.ListIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}
		ids = all
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		key, err := s.Export(ctx, id)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
