package service

import (
	"context"
	"errors"
	"sync"

	"homesync-go/internal/config"
	"homesync-go/internal/model"
	"homesync-go/internal/repository"
	"homesync-go/pkg/events"
	"homesync-go/pkg/llm"
)

// scriptedLLM 依次返回预设的回复，并记录收到的提示词。
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (f *scriptedLLM) Chat(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range messages {
		f.prompts = append(f.prompts, m.Content)
	}
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	out := f.replies[0]
	f.replies = f.replies[1:]
	return out, nil
}

func (f *scriptedLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeDatabase struct {
	mu      sync.Mutex
	schema  string
	result  string
	runErr  error
	queries []string
	schemaN int
	closed  bool
}

func (d *fakeDatabase) SchemaText(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemaN++
	return d.schema, nil
}

func (d *fakeDatabase) Run(_ context.Context, q string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, q)
	return d.result, d.runErr
}

func (d *fakeDatabase) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func connectorFor(db Database, seen *[]model.ConnectionParams) Connector {
	return func(_ context.Context, p model.ConnectionParams) (Database, error) {
		if seen != nil {
			*seen = append(*seen, p)
		}
		return db, nil
	}
}

type recordingAudit struct {
	mu     sync.Mutex
	events []events.QueryAudit
}

func (a *recordingAudit) PublishQuery(_ context.Context, e events.QueryAudit) error {
	a.mu.Lock()
	a.events = append(a.events, e)
	a.mu.Unlock()
	return nil
}

type recordingArchiver struct {
	archived map[string][]model.ChatMessage
}

func (a *recordingArchiver) Archive(_ context.Context, id string, msgs []model.ChatMessage) error {
	if a.archived == nil {
		a.archived = map[string][]model.ChatMessage{}
	}
	a.archived[id] = msgs
	return nil
}

type chatFixture struct {
	sessions SessionService
	repo     repository.ConversationRepository
	llm      *scriptedLLM
	db       *fakeDatabase
	audit    *recordingAudit
	chat     ChatService
}

func newChatFixture(chatCfg config.ChatConfig) *chatFixture {
	f := &chatFixture{
		repo:  repository.NewMemoryConversationRepository(),
		llm:   &scriptedLLM{},
		db:    &fakeDatabase{schema: "CREATE TABLE items (id int, name varchar(64))", result: "count\n4"},
		audit: &recordingAudit{},
	}
	f.sessions = NewSessionService(connectorFor(f.db, nil), config.ConnectionDefaults{}, f.repo, nil)
	f.chat = NewChatService(f.sessions, f.repo, f.llm, config.LLMConfig{}, chatCfg, f.audit)
	return f
}

// flakyRepository 在 failAppend 为 true 时拒绝写入，其余操作透传。
type flakyRepository struct {
	repository.ConversationRepository
	failAppend bool
	appends    int
}

func (r *flakyRepository) Append(ctx context.Context, sessionID string, messages ...model.ChatMessage) error {
	r.appends++
	if r.failAppend {
		return errors.New("redis: connection reset")
	}
	return r.ConversationRepository.Append(ctx, sessionID, messages...)
}
