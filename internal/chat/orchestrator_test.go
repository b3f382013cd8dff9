package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/apperr"
	"github.com/lalith-99/parabrain/internal/llm"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recorder is a fake LLM that captures what it was sent.
type recorder struct {
	mu    sync.Mutex
	calls [][]llm.Message
	reply string
	err   error
}

func (r *recorder) Complete(_ context.Context, messages []llm.Message, _ llm.Options) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]llm.Message(nil), messages...))
	return r.reply, r.err
}

func (r *recorder) last() []llm.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func (f *fixture) orchestrator(client llm.Client) *Orchestrator {
	return NewOrchestrator(f.convs, f.assembler(), client, zap.NewNop())
}

func TestConversationKey(t *testing.T) {
	u := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	p := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	assert.Equal(t, "11111111-1111-1111-1111-111111111111::global", ConversationKey(u, nil))
	assert.Equal(t, "11111111-1111-1111-1111-111111111111::proj::22222222-2222-2222-2222-222222222222", ConversationKey(u, &p))
}

func TestHandleTurnProjectScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t, "Cache service", "Build a cache")
	f.note(t, p.ID, "Eviction", "Use LRU eviction")
	fake := &recorder{reply: "Sure."}

	res, err := f.orchestrator(fake).HandleTurn(ctx, TurnRequest{UserID: f.user.ID, ProjectID: &p.ID, Message: "What eviction policy?"})
	require.NoError(t, err)
	assert.Equal(t, "Sure.", res.Reply)
	assert.Equal(t, ConversationKey(f.user.ID, &p.ID), res.ConversationID)

	sent := fake.last()
	require.Len(t, sent, 2)
	assert.Equal(t, models.RoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].Content, "Build a cache")
	assert.Contains(t, sent[0].Content, "Use LRU eviction")
	assert.Equal(t, llm.Message{Role: models.RoleUser, Content: "What eviction policy?"}, sent[1])

	history, err := f.convs.Read(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.RoleSystem, history[0].Role)
	assert.Equal(t, models.RoleUser, history[1].Role)
	assert.Equal(t, "Sure.", history[2].Content)
}

func TestHandleTurnCarriesHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fake := &recorder{reply: "ok"}
	o := f.orchestrator(fake)

	_, err := o.HandleTurn(ctx, TurnRequest{UserID: f.user.ID, Message: "one"})
	require.NoError(t, err)
	_, err = o.HandleTurn(ctx, TurnRequest{UserID: f.user.ID, Message: "two"})
	require.NoError(t, err)

	sent := fake.last()
	require.Len(t, sent, 4)
	assert.Equal(t, DefaultSystemPrompt, sent[0].Content)
	assert.Equal(t, "one", sent[1].Content)
	assert.Equal(t, "ok", sent[2].Content)
	assert.Equal(t, "two", sent[3].Content)
}

func TestHandleTurnLLMFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fake := &recorder{err: apperr.Upstream("llm completion failed", errors.New("boom"))}

	_, err := f.orchestrator(fake).HandleTurn(ctx, TurnRequest{UserID: f.user.ID, Message: "hello"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	history, err := f.convs.Read(ctx, ConversationKey(f.user.ID, nil))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleSystem, history[0].Role)
	assert.Equal(t, "hello", history[1].Content)
}

func TestHandleTurnProjectContextIsTransient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fake := &recorder{reply: "ok"}

	_, err := f.orchestrator(fake).HandleTurn(ctx, TurnRequest{
		UserID:         f.user.ID,
		Message:        "hi",
		ProjectContext: json.RawMessage(`{"stack":"go","deadline":"friday","team":3}`),
	})
	require.NoError(t, err)

	sent := fake.last()
	require.Len(t, sent, 3)
	assert.Equal(t, models.RoleSystem, sent[1].Role)
	assert.Equal(t, "Additional project context for this message:\n- deadline: friday\n- stack: go\n- team: 3", sent[1].Content)

	history, err := f.convs.Read(ctx, ConversationKey(f.user.ID, nil))
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, m := range history {
		assert.NotContains(t, m.Content, "friday")
	}
}

func TestHandleTurnMalformedProjectContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fake := &recorder{reply: "ok"}

	_, err := f.orchestrator(fake).HandleTurn(ctx, TurnRequest{
		UserID:         f.user.ID,
		Message:        "hi",
		ProjectContext: json.RawMessage(`["not","an","object"]`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed project_context")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Empty(t, fake.calls)

	history, err := f.convs.Read(ctx, ConversationKey(f.user.ID, nil))
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHandleTurnEmptyMessage(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator(&recorder{}).HandleTurn(context.Background(), TurnRequest{UserID: f.user.ID, Message: "   "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestHandleTurnRejectsOtherUsersConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fake := &recorder{reply: "ok"}
	o := f.orchestrator(fake)

	_, err := o.HandleTurn(ctx, TurnRequest{UserID: f.user.ID, ConversationID: "shared", Message: "mine"})
	require.NoError(t, err)

	_, err = o.HandleTurn(ctx, TurnRequest{UserID: uuid.New(), ConversationID: "shared", Message: "theirs"})
	assert.Equal(t, apperr.KindPermissionMismatch, apperr.KindOf(err))

	history, err := f.convs.Read(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestHandleTurnRejectsOtherUsersProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := models.User{ID: uuid.New(), Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, f.store.Users.Create(ctx, &bob))
	secret := "bob private context"
	theirs := models.Project{ID: uuid.New(), UserID: bob.ID, Name: "Theirs", Context: &secret}
	require.NoError(t, f.store.Projects.Create(ctx, &theirs))

	fake := &recorder{reply: "ok"}
	_, err := f.orchestrator(fake).HandleTurn(ctx, TurnRequest{UserID: f.user.ID, ProjectID: &theirs.ID, Message: "leak it"})
	assert.Equal(t, apperr.KindPermissionMismatch, apperr.KindOf(err))
	assert.Empty(t, fake.calls)

	conv, err := f.convs.Get(ctx, ConversationKey(f.user.ID, &theirs.ID))
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestHandleTurnSeparatesProjects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p1 := f.project(t, "Alpha", "first")
	p2 := f.project(t, "Beta", "second")
	fake := &recorder{reply: "ok"}
	o := f.orchestrator(fake)

	r1, err := o.HandleTurn(ctx, TurnRequest{UserID: f.user.ID, ProjectID: &p1.ID, Message: "a"})
	require.NoError(t, err)
	r2, err := o.HandleTurn(ctx, TurnRequest{UserID: f.user.ID, ProjectID: &p2.ID, Message: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, r1.ConversationID, r2.ConversationID)

	sent := fake.last()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Content, "'Beta'")
}

func TestHandleTurnConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.orchestrator(llm.Func(func(context.Context, []llm.Message, llm.Options) (string, error) {
		return "ok", nil
	}))

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.HandleTurn(ctx, TurnRequest{UserID: f.user.ID, Message: "hi"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := f.convs.Read(ctx, ConversationKey(f.user.ID, nil))
	require.NoError(t, err)
	require.Len(t, history, 1+2*turns)
	for i := 1; i < len(history); i += 2 {
		assert.Equal(t, models.RoleUser, history[i].Role)
		assert.Equal(t, models.RoleAssistant, history[i+1].Role)
	}
}

func TestRenderProjectContext(t *testing.T) {
	out, err := renderProjectContext(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = renderProjectContext(json.RawMessage(" null "))
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = renderProjectContext(json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = renderProjectContext(json.RawMessage(`{"tags":["a","b"]}`))
	require.NoError(t, err)
	assert.Contains(t, out, `- tags: ["a","b"]`)
}
