package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/apperr"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/lalith-99/parabrain/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *repository.Store
	convs *memory.ConversationStore
	user  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(), convs: memory.NewConversationStore()}
	f.user = models.User{ID: uuid.New(), Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, f.store.Users.Create(context.Background(), &f.user))
	return f
}

func (f *fixture) project(t *testing.T, name, description string) models.Project {
	t.Helper()
	p := models.Project{ID: uuid.New(), UserID: f.user.ID, Name: name, Description: &description, Priority: 2}
	require.NoError(t, f.store.Projects.Create(context.Background(), &p))
	return p
}

func (f *fixture) note(t *testing.T, projectID uuid.UUID, title, content string) models.Note {
	t.Helper()
	n := models.Note{ID: uuid.New(), UserID: f.user.ID, Title: title, Content: content}
	require.NoError(t, f.store.Notes.Create(context.Background(), &n))
	require.NoError(t, f.store.Notes.AttachProject(context.Background(), n.ID, projectID))
	return n
}

func (f *fixture) assembler() *Assembler {
	return NewAssembler(f.store.Projects, f.store.Notes, f.convs)
}

func TestBuildSystemPromptDefault(t *testing.T) {
	f := newFixture(t)
	a := f.assembler()

	prompt, err := a.BuildSystemPrompt(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, prompt)

	missing := uuid.New()
	prompt, err = a.BuildSystemPrompt(context.Background(), &missing)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, prompt)
}

func TestBuildSystemPromptProject(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Cache service", "Build a cache")
	f.note(t, p.ID, "Eviction", "Use LRU eviction\nsecond line is not in the summary")

	prompt, err := f.assembler().BuildSystemPrompt(context.Background(), &p.ID)
	require.NoError(t, err)

	assert.Contains(t, prompt, "You are the assistant for the project 'Cache service'.")
	assert.Contains(t, prompt, "Description: Build a cache")
	assert.Contains(t, prompt, "Context: (not provided)")
	assert.Contains(t, prompt, "Priority: 2")
	assert.Contains(t, prompt, "- Eviction: Use LRU eviction\n")
	assert.NotContains(t, prompt, "second line")
	assert.NotContains(t, prompt, NoLinkedNotes)
}

func TestBuildSystemPromptNoNotes(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Empty", "")

	prompt, err := f.assembler().BuildSystemPrompt(context.Background(), &p.ID)
	require.NoError(t, err)
	assert.Contains(t, prompt, NoLinkedNotes)
	assert.Contains(t, prompt, "Description: (not provided)")
}

func TestBuildSystemPromptCapsNotes(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Busy", "lots of notes")
	for i := 0; i < MaxPromptNotes+3; i++ {
		f.note(t, p.ID, "n", "body")
	}

	prompt, err := f.assembler().BuildSystemPrompt(context.Background(), &p.ID)
	require.NoError(t, err)
	assert.Equal(t, MaxPromptNotes, strings.Count(prompt, "\n- n: body"))
}

func TestNotePreviewFallsBackToContent(t *testing.T) {
	long := strings.Repeat("x", NotePreviewRunes+50)
	n := models.Note{Content: long}
	assert.Equal(t, NotePreviewRunes, len([]rune(notePreview(n))))

	n = models.Note{Summary: "  ", Content: "a\nb"}
	assert.Equal(t, "a b", notePreview(n))
}

func TestSyncHistoryKeepsOneSystemMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t, "Cache service", "v1")
	a := f.assembler()
	key := ConversationKey(f.user.ID, &p.ID)
	_, err := f.convs.Ensure(ctx, key, f.user.ID, &p.ID)
	require.NoError(t, err)

	history, err := a.SyncHistory(ctx, key, &p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.RoleSystem, history[0].Role)
	assert.Contains(t, history[0].Content, "Description: v1")

	_, err = f.convs.Append(ctx, key, models.RoleUser, "hi")
	require.NoError(t, err)

	desc := "v2"
	_, err = f.store.Projects.Update(ctx, p.ID, models.ProjectPatch{Description: models.Some(&desc)})
	require.NoError(t, err)

	history, err = a.SyncHistory(ctx, key, &p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Contains(t, history[0].Content, "Description: v2")
	assert.Equal(t, models.RoleUser, history[1].Role)

	systems := 0
	for _, m := range history {
		if m.Role == models.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
}

func TestSyncHistoryPrependsWhenFirstMessageIsNotSystem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := ConversationKey(f.user.ID, nil)
	_, err := f.convs.Ensure(ctx, key, f.user.ID, nil)
	require.NoError(t, err)
	_, err = f.convs.Append(ctx, key, models.RoleUser, "earlier")
	require.NoError(t, err)

	history, err := f.assembler().SyncHistory(ctx, key, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, DefaultSystemPrompt, history[0].Content)
	assert.Equal(t, "earlier", history[1].Content)
}

func TestCheckProjectOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.assembler()
	mine := f.project(t, "Cache", "")

	assert.NoError(t, a.CheckProjectOwner(ctx, f.user.ID, nil))
	assert.NoError(t, a.CheckProjectOwner(ctx, f.user.ID, &mine.ID))

	missing := uuid.New()
	assert.NoError(t, a.CheckProjectOwner(ctx, f.user.ID, &missing))

	err := a.CheckProjectOwner(ctx, uuid.New(), &mine.ID)
	assert.Equal(t, apperr.KindPermissionMismatch, apperr.KindOf(err))
}
