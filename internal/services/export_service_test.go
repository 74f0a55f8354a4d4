package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/repository"
	chat_errors "workforce-chat/pkg/errors"

	"github.com/stretchr/testify/require"
)

type memoryWriter struct {
	objects map[string][]byte
	err     error
}

func (w *memoryWriter) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	if w.err != nil {
		return w.err
	}
	if w.objects == nil {
		w.objects = map[string][]byte{}
	}
	w.objects[key] = body
	return nil
}

func TestExportService(t *testing.T) {
	ctx := context.Background()

	t.Run("should write the conversation with its messages", func(t *testing.T) {
		req := require.New(t)
		repo := repository.NewMemoryConversationRepository()
		msgs := newTestMessageService(repo, nil)
		_, err := msgs.Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u2", Message: "hello"})
		req.NoError(err)
		_, err = msgs.Submit(ctx, SendMessageInput{SenderID: "u2", ReceiverID: "u1", Message: "hi"})
		req.NoError(err)

		writer := &memoryWriter{}
		key, err := NewExportService(repo, writer, nil).Export(ctx, "u1_u2")
		req.NoError(err)
		req.Equal("conversations/u1_u2.json", key)

		var doc domain.Conversation
		req.NoError(json.Unmarshal(writer.objects[key], &doc))
		req.Equal("u1_u2", doc.ID)
		req.Len(doc.Messages, 2)
		req.Equal("hello", doc.Messages[0].Body)
		req.Len(doc.ParticipantDetails, 2)
	})

	t.Run("should export every conversation when no ids are given", func(t *testing.T) {
		req := require.New(t)
		repo := repository.NewMemoryConversationRepository()
		msgs := newTestMessageService(repo, nil)
		_, err := msgs.Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u2", Message: "a"})
		req.NoError(err)
		_, err = msgs.Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u4", Message: "b"})
		req.NoError(err)

		keys, err := NewExportService(repo, &memoryWriter{}, nil).ExportAll(ctx, nil)
		req.NoError(err)
		req.Equal([]string{"conversations/u1_u2.json", "conversations/u1_u4.json"}, keys)
	})

	t.Run("should surface missing conversations and writer failures", func(t *testing.T) {
		req := require.New(t)
		repo := repository.NewMemoryConversationRepository()

		_, err := NewExportService(repo, &memoryWriter{}, nil).Export(ctx, "u1_u2")
		req.ErrorIs(err, chat_errors.ErrNotFound)

		_, err = newTestMessageService(repo, nil).Submit(ctx, SendMessageInput{SenderID: "u1", ReceiverID: "u2", Message: "a"})
		req.NoError(err)
		boom := errors.New("bucket gone")
		_, err = NewExportService(repo, &memoryWriter{err: boom}, nil).Export(ctx, "u1_u2")
		req.ErrorIs(err, boom)
	})
}
