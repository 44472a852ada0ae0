package service

import (
	"strings"

	"homesync-go/internal/config"
	"homesync-go/internal/model"
)

const defaultSQLTemplate = `You are a data analyst at a company. You are interacting with a user who is asking you questions about the company's database.
Based on the table schema below, write a SQL query that would answer the user's question. Take the conversation history into account.

<SCHEMA>{schema}</SCHEMA>

Conversation History: {chat_history}

Write only the SQL query and nothing else. Do not wrap the SQL query in any other text, not even backticks.

For example:
Question: which 3 artists have the most tracks?
SQL Query: SELECT ArtistId, COUNT(*) as track_count FROM Track GROUP BY ArtistId ORDER BY track_count DESC LIMIT 3;
Question: Name 10 artists
SQL Query: SELECT Name FROM Artist LIMIT 10;

Your turn:

Question: {question}
SQL Query:`

const defaultAnswerTemplate = `You are a data analyst at a company. You are interacting with a user who is asking you questions about the company's database.
Based on the table schema below, question, sql query, and sql response, write a natural language response.
<SCHEMA>{schema}</SCHEMA>

Conversation History: {chat_history}
SQL Query: <SQL>{query}</SQL>
User question: {question}
SQL Response: {response}`

// PromptTemplates 持有两段固定模板，占位符使用 {name} 形式。
type PromptTemplates struct {
	SQL    string
	Answer string
}

// NewPromptTemplates 使用配置覆盖默认模板（为空则使用默认）。
func NewPromptTemplates(cfg config.LLMPromptConfig) PromptTemplates {
	t := PromptTemplates{SQL: defaultSQLTemplate, Answer: defaultAnswerTemplate}
	if strings.TrimSpace(cfg.SQLTemplate) != "" {
		t.SQL = cfg.SQLTemplate
	}
	if strings.TrimSpace(cfg.AnswerTemplate) != "" {
		t.Answer = cfg.AnswerTemplate
	}
	return t
}

// SQLPrompt 填充 SQL 生成模板。
func (t PromptTemplates) SQLPrompt(schema string, history []model.ChatMessage, question string) string {
	return strings.NewReplacer(
		"{schema}", schema,
		"{chat_history}", formatHistory(history),
		"{question}", question,
	).Replace(t.SQL)
}

// AnswerPrompt 填充回答生成模板。
func (t PromptTemplates) AnswerPrompt(in ResponseInput) string {
	return strings.NewReplacer(
		"{schema}", in.Schema,
		"{chat_history}", formatHistory(in.History),
		"{query}", in.SQL,
		"{question}", in.Question,
		"{response}", in.Result,
	).Replace(t.Answer)
}

func formatHistory(history []model.ChatMessage) string {
	if len(history) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, m := range history {
		sb.WriteString("\n")
		if m.Role == model.RoleAssistant {
			sb.WriteString("AI: ")
		} else {
			sb.WriteString("Human: ")
		}
		sb.WriteString(m.Content)
	}
	return sb.String()
}
