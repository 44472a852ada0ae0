// Package model 包含了应用的数据模型定义。
package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 代表会话记录中的单条消息，创建后不再修改。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage 创建一条用户消息。
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantMessage 创建一条助手消息。
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}
