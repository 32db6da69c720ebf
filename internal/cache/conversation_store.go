package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"knowledgehub/internal/model"
)

const (
	maxConversationMessages = 20
	conversationTTL         = 7 * 24 * time.Hour
)

// ConversationStore is a rolling, per-conversation chat history capped
// at maxConversationMessages turns, plus the pointer from a user to
// their current conversation. Conversations live only in Redis; there
// is no relational mirror. Grounded on manshu's ChatHandler
// getOrCreateConversationId/getConversationHistory/
// updateConversationHistory.
type ConversationStore struct {
	client *redisv9.Client
}

func NewConversationStore(client *redisv9.Client) *ConversationStore {
	return &ConversationStore{client: client}
}

func (s *ConversationStore) currentKey(userID uint) string {
	return fmt.Sprintf("user:%d:current_conversation", userID)
}

func (s *ConversationStore) historyKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s", conversationID)
}

func (s *ConversationStore) GetOrCreateConversationID(ctx context.Context, userID uint, newID func() string) (string, error) {
	id, err := s.client.Get(ctx, s.currentKey(userID)).Result()
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && err != redisv9.Nil {
		return "", fmt.Errorf("get current conversation failed: %w", err)
	}
	id = newID()
	if err := s.client.Set(ctx, s.currentKey(userID), id, conversationTTL).Err(); err != nil {
		return "", fmt.Errorf("set current conversation failed: %w", err)
	}
	return id, nil
}

func (s *ConversationStore) History(ctx context.Context, conversationID string) ([]model.ConversationMessage, error) {
	raw, err := s.client.Get(ctx, s.historyKey(conversationID)).Result()
	if err == redisv9.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation history failed: %w", err)
	}
	var messages []model.ConversationMessage
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("unmarshal conversation history failed: %w", err)
	}
	return messages, nil
}

// Append adds a turn to the conversation, trimming to the most recent
// maxConversationMessages entries, and refreshes the TTL.
func (s *ConversationStore) Append(ctx context.Context, conversationID string, msg model.ConversationMessage) error {
	history, err := s.History(ctx, conversationID)
	if err != nil {
		return err
	}
	history = append(history, msg)
	if len(history) > maxConversationMessages {
		history = history[len(history)-maxConversationMessages:]
	}
	payload, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal conversation history failed: %w", err)
	}
	if err := s.client.Set(ctx, s.historyKey(conversationID), payload, conversationTTL).Err(); err != nil {
		return fmt.Errorf("set conversation history failed: %w", err)
	}
	return nil
}
