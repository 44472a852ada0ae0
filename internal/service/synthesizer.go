package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"homesync-go/internal/model"
	"homesync-go/pkg/llm"
	"homesync-go/pkg/metrics"
)

// QuerySynthesizer 请求 LLM 根据 schema、历史与问题生成一条 SQL。
type QuerySynthesizer struct {
	client  llm.Client
	prompts PromptTemplates
	gen     *llm.GenerationParams
}

// NewQuerySynthesizer 创建 QuerySynthesizer。
func NewQuerySynthesizer(client llm.Client, prompts PromptTemplates, gen *llm.GenerationParams) *QuerySynthesizer {
	return &QuerySynthesizer{client: client, prompts: prompts, gen: gen}
}

// Synthesize 返回模型输出的 SQL 文本，仅去掉空白与 markdown 代码块，不做任何校验。
func (s *QuerySynthesizer) Synthesize(ctx context.Context, schema string, history []model.ChatMessage, question string) (string, error) {
	prompt := s.prompts.SQLPrompt(schema, history, question)

	start := time.Now()
	out, err := s.client.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, s.gen)
	metrics.ObserveLLMCall(metrics.StageSQL, time.Since(start), err)
	if err != nil {
		return "", err
	}

	sql := stripMarkdownSQL(out)
	if sql == "" {
		return "", errors.New("model returned empty SQL")
	}
	return sql, nil
}

// ResponseInput 是生成最终回答所需的全部上下文。
type ResponseInput struct {
	Schema   string
	History  []model.ChatMessage
	SQL      string
	Result   string
	Question string
}

// ResponseSynthesizer 请求 LLM 把 SQL 结果组织成自然语言回答。
type ResponseSynthesizer struct {
	client  llm.Client
	prompts PromptTemplates
	gen     *llm.GenerationParams
}

// NewResponseSynthesizer 创建 ResponseSynthesizer。
func NewResponseSynthesizer(client llm.Client, prompts PromptTemplates, gen *llm.GenerationParams) *ResponseSynthesizer {
	return &ResponseSynthesizer{client: client, prompts: prompts, gen: gen}
}

// Synthesize 不重试，也不校验回答与数据是否一致。
func (s *ResponseSynthesizer) Synthesize(ctx context.Context, in ResponseInput) (string, error) {
	prompt := s.prompts.AnswerPrompt(in)

	start := time.Now()
	out, err := s.client.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, s.gen)
	metrics.ObserveLLMCall(metrics.StageAnswer, time.Since(start), err)
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(out)
	if answer == "" {
		return "", errors.New("model returned empty answer")
	}
	return answer, nil
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```SQL")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
