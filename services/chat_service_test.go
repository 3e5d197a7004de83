package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"prepai-backend/internal/ai"
	"prepai-backend/models"
)

// scriptedStream yields fragments then EOF, or breaks with err after
// failAfter fragments.
type scriptedStream struct {
	fragments []string
	pos       int
	failAfter int
	err       error
}

func (s *scriptedStream) Next() (string, error) {
	if s.err != nil && s.pos == s.failAfter {
		return "", s.err
	}
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

type scriptedGenerator struct {
	stream   *scriptedStream
	startErr error
	turns    []ai.Turn
}

func (g *scriptedGenerator) StreamChat(ctx context.Context, turns []ai.Turn) (ai.TextStream, error) {
	g.turns = turns
	if g.startErr != nil {
		return nil, g.startErr
	}
	return g.stream, nil
}

func drain(ch <-chan string) []string {
	var out []string
	for f := range ch {
		out = append(out, f)
	}
	return out
}

// waitForPersist lets the deferred append land; the write happens after the
// last fragment is delivered, on a background context.
func waitForPersist(t *testing.T, messages *fakeMessageStore, sessionID string, want int) []models.ChatMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rows := messages.bySession(sessionID)
		if len(rows) >= want {
			return rows
		}
		time.Sleep(10 * time.Millisecond)
	}
	return messages.bySession(sessionID)
}

func TestStreamDeliversAndPersistsWholeResponse(t *testing.T) {
	gen := &scriptedGenerator{stream: &scriptedStream{
		fragments: []string{"The ", "answer ", "is ", "42."},
		failAfter: -1,
	}}
	messages := &fakeMessageStore{}
	svc := NewChatService(testConfig(), gen, messages)

	history := []models.ChatTurn{{Role: models.RoleUser, Content: "what is the answer?"}}
	got := drain(svc.Stream(context.Background(), history, "", "retrieved facts", "sess-7"))

	if strings.Join(got, "") != "The answer is 42." {
		t.Fatalf("fragments = %q", got)
	}

	rows := waitForPersist(t, messages, "sess-7", 1)
	if len(rows) != 1 {
		t.Fatalf("expected exactly one persisted message, got %d", len(rows))
	}
	if rows[0].Role != models.RoleAssistant || rows[0].Content != "The answer is 42." {
		t.Fatalf("persisted row = %+v", rows[0])
	}
}

func TestStreamAbandonmentPersistsNothing(t *testing.T) {
	gen := &scriptedGenerator{stream: &scriptedStream{
		fragments: []string{"part one ", "part two ", "part three"},
		failAfter: -1,
	}}
	messages := &fakeMessageStore{}
	svc := NewChatService(testConfig(), gen, messages)

	ctx, cancel := context.WithCancel(context.Background())
	ch := svc.Stream(ctx, []models.ChatTurn{{Role: models.RoleUser, Content: "hi"}}, "", "", "sess-8")

	// Take one fragment, then walk away
	<-ch
	cancel()

	time.Sleep(100 * time.Millisecond)
	if rows := messages.bySession("sess-8"); len(rows) != 0 {
		t.Fatalf("abandoned stream persisted %d messages", len(rows))
	}
}

func TestStreamModelErrorBecomesTerminalFragment(t *testing.T) {
	gen := &scriptedGenerator{stream: &scriptedStream{
		fragments: []string{"partial "},
		failAfter: 1,
		err:       errors.New("model overloaded"),
	}}
	messages := &fakeMessageStore{}
	svc := NewChatService(testConfig(), gen, messages)

	got := drain(svc.Stream(context.Background(),
		[]models.ChatTurn{{Role: models.RoleUser, Content: "hi"}}, "", "", "sess-9"))

	if len(got) != 2 {
		t.Fatalf("expected partial + error fragment, got %q", got)
	}
	if !strings.HasPrefix(got[1], "Error: ") {
		t.Fatalf("terminal fragment = %q", got[1])
	}

	rows := waitForPersist(t, messages, "sess-9", 1)
	if len(rows) != 1 || !strings.Contains(rows[0].Content, "Error: ") {
		t.Fatalf("error fragment should persist by default, rows = %+v", rows)
	}
}

func TestStreamErrorFragmentExcludedWhenConfigured(t *testing.T) {
	gen := &scriptedGenerator{stream: &scriptedStream{
		fragments: []string{"partial "},
		failAfter: 1,
		err:       errors.New("model overloaded"),
	}}
	messages := &fakeMessageStore{}
	cfg := testConfig()
	cfg.PersistErrorFragments = false
	svc := NewChatService(cfg, gen, messages)

	drain(svc.Stream(context.Background(),
		[]models.ChatTurn{{Role: models.RoleUser, Content: "hi"}}, "", "", "sess-10"))

	rows := waitForPersist(t, messages, "sess-10", 1)
	if len(rows) != 1 {
		t.Fatalf("expected one persisted message, got %d", len(rows))
	}
	if strings.Contains(rows[0].Content, "Error:") {
		t.Fatalf("error text persisted despite config: %q", rows[0].Content)
	}
}

func TestStreamStartupErrorPersistsErrorFragment(t *testing.T) {
	gen := &scriptedGenerator{startErr: errors.New("connection refused")}
	messages := &fakeMessageStore{}
	svc := NewChatService(testConfig(), gen, messages)

	got := drain(svc.Stream(context.Background(),
		[]models.ChatTurn{{Role: models.RoleUser, Content: "hi"}}, "", "", "sess-11"))

	if len(got) != 1 || !strings.HasPrefix(got[0], "Error: ") {
		t.Fatalf("expected a single error fragment, got %q", got)
	}

	// The error fragment is the whole response; once delivered it persists
	// like any other assistant message.
	rows := waitForPersist(t, messages, "sess-11", 1)
	if len(rows) != 1 || rows[0].Content != "Error: connection refused" {
		t.Fatalf("persisted rows = %+v", rows)
	}
}

func TestStreamStartupErrorExcludedWhenConfigured(t *testing.T) {
	gen := &scriptedGenerator{startErr: errors.New("connection refused")}
	messages := &fakeMessageStore{}
	cfg := testConfig()
	cfg.PersistErrorFragments = false
	svc := NewChatService(cfg, gen, messages)

	drain(svc.Stream(context.Background(),
		[]models.ChatTurn{{Role: models.RoleUser, Content: "hi"}}, "", "", "sess-12"))

	// With error fragments excluded the accumulated content is empty, so
	// nothing is written.
	time.Sleep(100 * time.Millisecond)
	if rows := messages.bySession("sess-12"); len(rows) != 0 {
		t.Fatalf("empty-content stream persisted %d rows", len(rows))
	}
}

func TestStatelessStreamPersistsNothing(t *testing.T) {
	gen := &scriptedGenerator{stream: &scriptedStream{
		fragments: []string{"hello"},
		failAfter: -1,
	}}
	messages := &fakeMessageStore{}
	svc := NewChatService(testConfig(), gen, messages)

	drain(svc.Stream(context.Background(),
		[]models.ChatTurn{{Role: models.RoleUser, Content: "hi"}}, "", "", ""))

	time.Sleep(100 * time.Millisecond)
	messages.mu.Lock()
	defer messages.mu.Unlock()
	if len(messages.messages) != 0 {
		t.Fatalf("stateless stream persisted %d rows", len(messages.messages))
	}
}

func TestPromptAssemblyAugmentsLastUserTurn(t *testing.T) {
	gen := &scriptedGenerator{stream: &scriptedStream{failAfter: -1}}
	svc := NewChatService(testConfig(), gen, &fakeMessageStore{})

	history := []models.ChatTurn{
		{Role: models.RoleUser, Content: "first question"},
		{Role: models.RoleAssistant, Content: "first answer"},
		{Role: models.RoleUser, Content: "second question"},
	}
	drain(svc.Stream(context.Background(), history, "my notes", "retrieved docs", ""))

	if gen.turns[0].Role != models.RoleSystem {
		t.Fatalf("first turn should be the system instruction, got %+v", gen.turns[0])
	}
	last := gen.turns[len(gen.turns)-1]
	if last.Role != models.RoleUser {
		t.Fatalf("last turn role = %q", last.Role)
	}
	for _, want := range []string{"my notes", "retrieved docs", "User Question: second question"} {
		if !strings.Contains(last.Content, want) {
			t.Fatalf("augmented turn missing %q:\n%s", want, last.Content)
		}
	}
	// Earlier turns pass through untouched
	if gen.turns[1].Content != "first question" || gen.turns[2].Content != "first answer" {
		t.Fatalf("history turns were mutated: %+v", gen.turns[1:3])
	}
}

func TestPromptAssemblySynthesizesUserTurn(t *testing.T) {
	gen := &scriptedGenerator{stream: &scriptedStream{failAfter: -1}}
	svc := NewChatService(testConfig(), gen, &fakeMessageStore{})

	history := []models.ChatTurn{{Role: models.RoleAssistant, Content: "greeting"}}
	drain(svc.Stream(context.Background(), history, "only context", "", ""))

	last := gen.turns[len(gen.turns)-1]
	if last.Role != models.RoleUser {
		t.Fatalf("synthesized turn role = %q", last.Role)
	}
	if !strings.Contains(last.Content, "only context") || !strings.Contains(last.Content, "Please analyze this.") {
		t.Fatalf("synthesized turn = %q", last.Content)
	}
}
