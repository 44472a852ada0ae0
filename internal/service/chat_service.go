package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"homesync-go/internal/config"
	"homesync-go/internal/model"
	"homesync-go/internal/repository"
	"homesync-go/pkg/events"
	"homesync-go/pkg/llm"
	"homesync-go/pkg/log"
	"homesync-go/pkg/metrics"
)

const defaultFallbackText = "Sorry, I could not understand, try a different query."

// 审计事件发送的超时时间，与请求上下文无关
const auditTimeout = 2 * time.Second

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Ask 处理一条用户消息，返回追加到会话记录中的助手消息。
	Ask(ctx context.Context, sessionID, content string) (model.ChatMessage, error)
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

// AuditPublisher 接收每条被执行的 SQL（可选）。
type AuditPublisher interface {
	PublishQuery(ctx context.Context, event events.QueryAudit) error
}

type chatService struct {
	sessions      SessionService
	repo          repository.ConversationRepository
	querySynth    *QuerySynthesizer
	responseSynth *ResponseSynthesizer
	audit         AuditPublisher
	cfg           config.ChatConfig
}

// NewChatService 创建一个新的 ChatService 实例。audit 可以为 nil。
func NewChatService(sessions SessionService, repo repository.ConversationRepository, llmClient llm.Client, llmCfg config.LLMConfig, chatCfg config.ChatConfig, audit AuditPublisher) ChatService {
	prompts := NewPromptTemplates(llmCfg.Prompt)
	gen := llm.NewGenerationParams(llmCfg.Generation)
	return &chatService{
		sessions:      sessions,
		repo:          repo,
		querySynth:    NewQuerySynthesizer(llmClient, prompts, gen),
		responseSynth: NewResponseSynthesizer(llmClient, prompts, gen),
		audit:         audit,
		cfg:           chatCfg,
	}
}

// Ask 先尝试固定回复；未命中时依次执行 生成 SQL → 执行 → 生成回答。
// 流水线中任何错误都替换为同一条兜底文案。
func (s *chatService) Ask(ctx context.Context, sessionID, content string) (model.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return model.ChatMessage{}, ErrEmptyMessage
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return model.ChatMessage{}, err
	}

	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()
	// 等锁期间会话可能已被关闭
	if sess.closed {
		return model.ChatMessage{}, ErrSessionNotFound
	}
	sess.touch()

	start := time.Now()
	userMsg := model.NewUserMessage(content)

	var answer, outcome string
	if reply, ok := MatchCanned(content); ok {
		answer, outcome = reply, metrics.OutcomeCanned
	} else {
		answer, err = s.runPipeline(ctx, sess, userMsg)
		if err != nil {
			log.Warnw("chat pipeline failed, replying with fallback", "session", sessionID, "error", err)
			answer, outcome = s.fallbackText(), metrics.OutcomeFallback
		} else {
			outcome = metrics.OutcomeAnswered
		}
	}

	// 一问一答在同一次写入中落库，不受请求取消影响
	reply := model.NewAssistantMessage(answer)
	if err := s.repo.Append(context.WithoutCancel(ctx), sessionID, userMsg, reply); err != nil {
		return model.ChatMessage{}, fmt.Errorf("failed to record chat turn: %w", err)
	}
	metrics.ObserveTurn(outcome, time.Since(start))
	return reply, nil
}

// History 返回会话的完整记录。
func (s *chatService) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if _, err := s.sessions.Get(sessionID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, sessionID)
}

func (s *chatService) runPipeline(ctx context.Context, sess *Session, pending model.ChatMessage) (string, error) {
	db := sess.Database()
	if db == nil {
		return "", ErrNotConnected
	}
	question := pending.Content

	history, err := s.promptHistory(ctx, sess.ID, pending)
	if err != nil {
		return "", err
	}

	schema, err := db.SchemaText(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch schema: %w", err)
	}

	query, err := s.querySynth.Synthesize(ctx, schema, history, question)
	if err != nil {
		return "", fmt.Errorf("synthesize sql: %w", err)
	}

	result, err := s.execute(ctx, sess, db, question, query)
	if err != nil {
		return "", fmt.Errorf("execute sql: %w", err)
	}

	answer, err := s.responseSynth.Synthesize(ctx, ResponseInput{
		Schema:   schema,
		History:  history,
		SQL:      query,
		Result:   result,
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return answer, nil
}

func (s *chatService) execute(ctx context.Context, sess *Session, db Database, question, query string) (string, error) {
	start := time.Now()
	result, err := db.Run(ctx, query)
	elapsed := time.Since(start)
	metrics.ObserveQuery(elapsed, err)
	log.Infow("executed synthesized sql", "session", sess.ID, "sql", query, "duration", elapsed.String(), "error", err)

	if s.audit != nil {
		params, _ := sess.Connection()
		event := events.QueryAudit{
			SessionID:  sess.ID,
			Database:   params.Database,
			Question:   question,
			SQL:        query,
			Success:    err == nil,
			DurationMs: elapsed.Milliseconds(),
			ExecutedAt: start.UTC(),
		}
		if err != nil {
			event.Error = err.Error()
		}
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		if pubErr := s.audit.PublishQuery(auditCtx, event); pubErr != nil {
			log.Warnf("发送 SQL 审计事件失败: session=%s, err=%v", sess.ID, pubErr)
		}
		cancel()
	}
	return result, err
}

// promptHistory 把尚未落库的当前问题接在已保存记录之后，
// 取最近 HistoryWindow 条作为提示词上下文，记录本身不截断。
func (s *chatService) promptHistory(ctx context.Context, sessionID string, pending model.ChatMessage) ([]model.ChatMessage, error) {
	history, err := s.repo.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history = append(history, pending)
	if w := s.cfg.HistoryWindow; w > 0 && len(history) > w {
		history = history[len(history)-w:]
	}
	return history, nil
}

func (s *chatService) fallbackText() string {
	if s.cfg.FallbackText != "" {
		return s.cfg.FallbackText
	}
	return defaultFallbackText
}
