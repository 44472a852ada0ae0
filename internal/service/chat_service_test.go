package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"homesync-go/internal/config"
	"homesync-go/internal/model"
	"homesync-go/internal/repository"
)

func connectedSession(t *testing.T, f *chatFixture) string {
	t.Helper()
	sess, err := f.sessions.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := f.sessions.Connect(context.Background(), sess.ID, model.ConnectionParams{Host: "localhost", Port: "3306", User: "root", Database: "home"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return sess.ID
}

func TestAskCannedSkipsDatabaseAndModel(t *testing.T) {
	f := newChatFixture(config.ChatConfig{})
	id := connectedSession(t, f)

	reply, err := f.chat.Ask(context.Background(), id, "  Thanks ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.Role != model.RoleAssistant || reply.Content != "You're welcome! If you have any more questions, feel free to ask." {
		t.Fatalf("reply = %+v", reply)
	}
	if f.llm.calls() != 0 {
		t.Fatalf("llm called %d times for canned input", f.llm.calls())
	}
	if f.db.schemaN != 0 || len(f.db.queries) != 0 {
		t.Fatalf("database touched for canned input: schema=%d queries=%v", f.db.schemaN, f.db.queries)
	}
}

func TestAskRunsPipeline(t *testing.T) {
	f := newChatFixture(config.ChatConfig{})
	id := connectedSession(t, f)
	f.llm.replies = []string{"SELECT COUNT(*) AS count FROM items;", "You have 4 items."}

	reply, err := f.chat.Ask(context.Background(), id, "How many items do I have?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.Content != "You have 4 items." {
		t.Fatalf("reply = %q", reply.Content)
	}
	if len(f.db.queries) != 1 || f.db.queries[0] != "SELECT COUNT(*) AS count FROM items;" {
		t.Fatalf("queries = %v", f.db.queries)
	}
	if f.db.schemaN != 1 {
		t.Fatalf("schema fetched %d times, want 1", f.db.schemaN)
	}

	// 回答提示词应包含执行结果与当前问题
	answerPrompt := f.llm.prompts[1]
	if !strings.Contains(answerPrompt, "count\n4") || !strings.Contains(answerPrompt, "Human: How many items do I have?") {
		t.Fatalf("answer prompt = %s", answerPrompt)
	}

	if len(f.audit.events) != 1 {
		t.Fatalf("audit events = %d", len(f.audit.events))
	}
	ev := f.audit.events[0]
	if !ev.Success || ev.SessionID != id || ev.Database != "home" || ev.SQL != "SELECT COUNT(*) AS count FROM items;" {
		t.Fatalf("audit event = %+v", ev)
	}
}

func TestAskFallsBackWhenQueryFails(t *testing.T) {
	f := newChatFixture(config.ChatConfig{})
	id := connectedSession(t, f)
	f.llm.replies = []string{"SELECT * FROM nope", "unused"}
	f.db.runErr = errors.New("Error 1146: Table 'home.nope' doesn't exist")

	reply, err := f.chat.Ask(context.Background(), id, "list everything in the garage")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.Content != defaultFallbackText {
		t.Fatalf("reply = %q", reply.Content)
	}
	if f.llm.calls() != 1 {
		t.Fatalf("llm calls = %d, want 1", f.llm.calls())
	}

	history, err := f.chat.History(context.Background(), id)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Role != model.RoleUser || history[1].Content != defaultFallbackText {
		t.Fatalf("history = %+v", history)
	}
	if len(f.audit.events) != 1 || f.audit.events[0].Success || f.audit.events[0].Error == "" {
		t.Fatalf("audit events = %+v", f.audit.events)
	}
}

func TestAskFallsBackOnModelError(t *testing.T) {
	f := newChatFixture(config.ChatConfig{FallbackText: "custom fallback"})
	id := connectedSession(t, f)
	f.llm.err = errors.New("rate limited")

	reply, err := f.chat.Ask(context.Background(), id, "what is in the attic?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.Content != "custom fallback" {
		t.Fatalf("reply = %q", reply.Content)
	}
	if len(f.db.queries) != 0 {
		t.Fatalf("queries = %v", f.db.queries)
	}
}

func TestAskWithoutConnectionFallsBack(t *testing.T) {
	f := newChatFixture(config.ChatConfig{})
	sess, _ := f.sessions.Create(context.Background())

	reply, err := f.chat.Ask(context.Background(), sess.ID, "how many chairs?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.Content != defaultFallbackText {
		t.Fatalf("reply = %q", reply.Content)
	}
	if f.llm.calls() != 0 {
		t.Fatalf("llm calls = %d", f.llm.calls())
	}

	// 未连接时固定回复仍然可用
	reply, _ = f.chat.Ask(context.Background(), sess.ID, "hello")
	if reply.Content != "Here is your inventory chatbot. How can I help you?" {
		t.Fatalf("reply = %q", reply.Content)
	}
}

func TestAskRejectsBlankInput(t *testing.T) {
	f := newChatFixture(config.ChatConfig{})
	id := connectedSession(t, f)

	if _, err := f.chat.Ask(context.Background(), id, "  \n\t"); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("Ask() error = %v, want ErrEmptyMessage", err)
	}
	history, _ := f.chat.History(context.Background(), id)
	if len(history) != 0 {
		t.Fatalf("history = %+v", history)
	}
}

func TestAskUnknownSession(t *testing.T) {
	f := newChatFixture(config.ChatConfig{})
	if _, err := f.chat.Ask(context.Background(), "missing", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Ask() error = %v", err)
	}
}

func TestAskKeepsInterleavedLog(t *testing.T) {
	f := newChatFixture(config.ChatConfig{})
	id := connectedSession(t, f)
	f.llm.replies = []string{"SELECT 1", "one", "SELECT 2", "two"}

	inputs := []string{"hi", "first question", "bye", "second question"}
	for _, in := range inputs {
		if _, err := f.chat.Ask(context.Background(), id, in); err != nil {
			t.Fatalf("Ask(%q) error = %v", in, err)
		}
	}

	history, _ := f.chat.History(context.Background(), id)
	if len(history) != 2*len(inputs) {
		t.Fatalf("len(history) = %d, want %d", len(history), 2*len(inputs))
	}
	wantReplies := []string{
		"Here is your inventory chatbot. How can I help you?",
		"one",
		"Goodbye! Have a great day!",
		"two",
	}
	for i, in := range inputs {
		user, assistant := history[2*i], history[2*i+1]
		if user.Role != model.RoleUser || user.Content != in {
			t.Fatalf("history[%d] = %+v", 2*i, user)
		}
		if assistant.Role != model.RoleAssistant || assistant.Content != wantReplies[i] {
			t.Fatalf("history[%d] = %+v", 2*i+1, assistant)
		}
	}
}

func TestAskWindowsPromptHistory(t *testing.T) {
	f := newChatFixture(config.ChatConfig{HistoryWindow: 2})
	id := connectedSession(t, f)
	for _, in := range []string{"hi", "thanks"} {
		_, _ = f.chat.Ask(context.Background(), id, in)
	}
	f.llm.replies = []string{"SELECT 1", "ok"}
	if _, err := f.chat.Ask(context.Background(), id, "count boxes"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	sqlPrompt := f.llm.prompts[0]
	if strings.Contains(sqlPrompt, "Human: hi") {
		t.Fatalf("prompt should not include messages outside the window:\n%s", sqlPrompt)
	}
	if !strings.Contains(sqlPrompt, "AI: You're welcome!") || !strings.Contains(sqlPrompt, "Human: count boxes") {
		t.Fatalf("prompt missing windowed history:\n%s", sqlPrompt)
	}

	history, _ := f.chat.History(context.Background(), id)
	if len(history) != 6 {
		t.Fatalf("stored history trimmed: %d", len(history))
	}
}

func TestAskStoresTurnAtomically(t *testing.T) {
	repo := &flakyRepository{ConversationRepository: repository.NewMemoryConversationRepository()}
	sessions := NewSessionService(connectorFor(&fakeDatabase{}, nil), config.ConnectionDefaults{}, repo, nil)
	chat := NewChatService(sessions, repo, &scriptedLLM{}, config.LLMConfig{}, config.ChatConfig{}, nil)
	sess, _ := sessions.Create(context.Background())

	if _, err := chat.Ask(context.Background(), sess.ID, "hi"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if repo.appends != 1 {
		t.Fatalf("appends per turn = %d, want 1", repo.appends)
	}

	repo.failAppend = true
	if _, err := chat.Ask(context.Background(), sess.ID, "thanks"); err == nil {
		t.Fatal("expected error when the turn cannot be stored")
	}

	history, err := chat.History(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2 (failed turn must leave nothing behind)", len(history))
	}
	if history[0].Role != model.RoleUser || history[1].Role != model.RoleAssistant {
		t.Fatalf("history = %+v", history)
	}
}
