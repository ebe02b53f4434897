package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
)

// ChatSource delivers raw chat messages. Each message is delivered exactly
// once across successive calls; an empty slice is a normal quiet tick.
// The actual chat-platform integration lives outside this service.
type ChatSource interface {
	FetchRecentMessages(ctx context.Context) ([]model.ChatMessage, error)
}

const chatInboxKey = "stream:chat:incoming"

// fetchBatchSize caps how many messages one tick drains from the inbox.
const fetchBatchSize = 50

// RedisChatSource reads messages that the external chat collaborator pushes
// onto a Redis list. This keeps the platform integration out of process
// while the pipeline stays on its single Redis dependency.
type RedisChatSource struct {
	rdb *redis.Client
}

// NewRedisChatSource wraps an established Redis client.
func NewRedisChatSource(rdb *redis.Client) *RedisChatSource {
	return &RedisChatSource{rdb: rdb}
}

// FetchRecentMessages drains up to fetchBatchSize messages from the inbox.
func (s *RedisChatSource) FetchRecentMessages(ctx context.Context) ([]model.ChatMessage, error) {
	log := logger.WithComponent("chat")

	var messages []model.ChatMessage
	for i := 0; i < fetchBatchSize; i++ {
		raw, err := s.rdb.RPop(ctx, chatInboxKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return messages, fmt.Errorf("failed to read chat inbox: %w", err)
		}
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			log.Debug().Str("raw", raw).Msg("Skipping malformed chat payload")
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
