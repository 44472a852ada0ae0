// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"homesync-go/internal/model"
)

// 会话记录在 Redis 中的保留时间，每次追加时刷新
const conversationTTL = 7 * 24 * time.Hour

// ConversationRepository 定义了会话记录的操作接口。记录只追加，按到达顺序保存。
type ConversationRepository interface {
	// Append 一次写入若干条消息，要么全部写入，要么都不写入。
	Append(ctx context.Context, sessionID string, messages ...model.ChatMessage) error
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个基于 Redis 的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func conversationKey(sessionID string) string {
	return fmt.Sprintf("conversation:%s", sessionID)
}

// Append 在一个事务中用单条 RPUSH 追加所有消息，保证顺序。
func (r *redisConversationRepository) Append(ctx context.Context, sessionID string, messages ...model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal chat message: %w", err)
		}
		values = append(values, data)
	}
	key := conversationKey(sessionID)
	pipe := r.redisClient.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.Expire(ctx, key, conversationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat messages: %w", err)
	}
	return nil
}

// History 从 Redis 获取完整的会话记录。
func (r *redisConversationRepository) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	items, err := r.redisClient.LRange(ctx, conversationKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(items))
	for _, item := range items {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Delete 删除整个会话记录。
func (r *redisConversationRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, conversationKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation history: %w", err)
	}
	return nil
}

type memoryConversationRepository struct {
	mu       sync.RWMutex
	sessions map[string][]model.ChatMessage
}

// NewMemoryConversationRepository 创建进程内的实现，未配置 Redis 时使用。
func NewMemoryConversationRepository() ConversationRepository {
	return &memoryConversationRepository{sessions: make(map[string][]model.ChatMessage)}
}

func (r *memoryConversationRepository) Append(_ context.Context, sessionID string, messages ...model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = append(r.sessions[sessionID], messages...)
	return nil
}

// History 返回副本，调用方修改不会影响已保存的记录。
func (r *memoryConversationRepository) History(_ context.Context, sessionID string) ([]model.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.sessions[sessionID]
	out := make([]model.ChatMessage, len(src))
	copy(out, src)
	return out, nil
}

func (r *memoryConversationRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
