package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, store *repository.Store, email string) models.User {
	t.Helper()
	u := models.User{ID: uuid.New(), Name: "Ana", Email: email, PasswordHash: "x"}
	require.NoError(t, store.Users.Create(context.Background(), &u))
	return u
}

func TestUserEmailUnique(t *testing.T) {
	store := NewStore()
	seedUser(t, store, "ana@example.com")

	err := store.Users.Create(context.Background(), &models.User{ID: uuid.New(), Email: "ana@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	store := NewStore()
	p, err := store.Projects.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = store.Projects.Update(context.Background(), uuid.New(), models.ProjectPatch{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, store.Notes.Delete(context.Background(), uuid.New()), repository.ErrNotFound)
}

func TestProjectDefaultsAndNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	u := seedUser(t, store, "a@b.c")

	first := models.Project{ID: uuid.New(), UserID: u.ID, Name: "first"}
	second := models.Project{ID: uuid.New(), UserID: u.ID, Name: "second"}
	require.NoError(t, store.Projects.Create(ctx, &first))
	require.NoError(t, store.Projects.Create(ctx, &second))

	assert.Equal(t, models.ProjectActive, first.Status)
	assert.False(t, first.StartDate.IsZero())

	list, err := store.Projects.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Name)

	empty, err := store.Projects.ListByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListByProjectOrdersPinnedThenRecent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	u := seedUser(t, store, "a@b.c")
	p := models.Project{ID: uuid.New(), UserID: u.ID, Name: "p"}
	require.NoError(t, store.Projects.Create(ctx, &p))

	var ids []uuid.UUID
	for i := 0; i < 10; i++ {
		n := models.Note{ID: uuid.New(), UserID: u.ID, Title: fmt.Sprintf("n%d", i), Pinned: i == 2}
		require.NoError(t, store.Notes.Create(ctx, &n))
		require.NoError(t, store.Notes.AttachProject(ctx, n.ID, p.ID))
		ids = append(ids, n.ID)
	}
	// Touch n0 so it becomes the most recently updated unpinned note.
	_, err := store.Notes.Update(ctx, ids[0], models.NotePatch{Content: models.Some("edited")})
	require.NoError(t, err)

	notes, err := store.Notes.ListByProject(ctx, p.ID, 8)
	require.NoError(t, err)
	require.Len(t, notes, 8)
	assert.Equal(t, "n2", notes[0].Title)
	assert.Equal(t, "n0", notes[1].Title)
	assert.Equal(t, "n9", notes[2].Title)

	all, err := store.Notes.ListByProject(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestAttachIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	u := seedUser(t, store, "a@b.c")
	p := models.Project{ID: uuid.New(), UserID: u.ID, Name: "p"}
	n := models.Note{ID: uuid.New(), UserID: u.ID, Title: "n"}
	require.NoError(t, store.Projects.Create(ctx, &p))
	require.NoError(t, store.Notes.Create(ctx, &n))

	require.NoError(t, store.Notes.AttachProject(ctx, n.ID, p.ID))
	require.NoError(t, store.Notes.AttachProject(ctx, n.ID, p.ID))

	ids, err := store.Notes.ListProjectIDs(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p.ID}, ids)

	require.NoError(t, store.Notes.DetachProject(ctx, n.ID, p.ID))
	require.NoError(t, store.Notes.DetachProject(ctx, n.ID, p.ID))
	ids, err = store.Notes.ListProjectIDs(ctx, n.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTagGetOrCreateReusesByExactName(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	a, err := store.Tags.GetOrCreate(ctx, "python")
	require.NoError(t, err)
	b, err := store.Tags.GetOrCreate(ctx, "python")
	require.NoError(t, err)
	c, err := store.Tags.GetOrCreate(ctx, "Python")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)

	tags, err := store.Tags.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func TestUserDeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	u := seedUser(t, store, "a@b.c")
	other := seedUser(t, store, "other@b.c")

	p := models.Project{ID: uuid.New(), UserID: u.ID, Name: "p"}
	n := models.Note{ID: uuid.New(), UserID: u.ID, Title: "n"}
	keep := models.Note{ID: uuid.New(), UserID: other.ID, Title: "keep"}
	require.NoError(t, store.Projects.Create(ctx, &p))
	require.NoError(t, store.Notes.Create(ctx, &n))
	require.NoError(t, store.Notes.Create(ctx, &keep))
	require.NoError(t, store.Notes.AttachProject(ctx, n.ID, p.ID))
	tag, err := store.Tags.GetOrCreate(ctx, "go")
	require.NoError(t, err)
	require.NoError(t, store.Notes.AttachTag(ctx, n.ID, tag.ID))

	require.NoError(t, store.Users.Delete(ctx, u.ID))

	got, err := store.Notes.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	gotP, err := store.Projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, gotP)

	kept, err := store.Notes.GetByID(ctx, keep.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	tags, err := store.Tags.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 1, "tags are global and survive user deletion")
}

func TestPurgeDataKeepsUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	u := seedUser(t, store, "a@b.c")
	a := models.Area{ID: uuid.New(), UserID: u.ID, Name: "Health"}
	require.NoError(t, store.Areas.Create(ctx, &a))

	require.NoError(t, store.Users.PurgeData(ctx, u.ID))

	got, err := store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	areas, err := store.Areas.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, areas)
}

func TestConversationStoreBasics(t *testing.T) {
	ctx := context.Background()
	cs := NewConversationStore()
	userID := uuid.New()

	_, err := cs.Append(ctx, "missing", models.RoleUser, "hi")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	conv, err := cs.Ensure(ctx, "k", userID, nil)
	require.NoError(t, err)
	again, err := cs.Ensure(ctx, "k", uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, conv.UserID, again.UserID, "ensure must not overwrite an existing conversation")

	msgs, err := cs.Read(ctx, "k")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	_, err = cs.Append(ctx, "k", models.RoleUser, "hello")
	require.NoError(t, err)
	require.NoError(t, cs.ReplaceLeadingSystem(ctx, "k", "sys v1"))
	require.NoError(t, cs.ReplaceLeadingSystem(ctx, "k", "sys v2"))

	msgs, err = cs.Read(ctx, "k")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
	assert.Equal(t, "sys v2", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestConversationListAndDelete(t *testing.T) {
	ctx := context.Background()
	cs := NewConversationStore()
	userID := uuid.New()

	_, err := cs.Ensure(ctx, "old", userID, nil)
	require.NoError(t, err)
	_, err = cs.Ensure(ctx, "new", userID, nil)
	require.NoError(t, err)
	_, err = cs.Ensure(ctx, "someone-else", uuid.New(), nil)
	require.NoError(t, err)
	_, err = cs.Append(ctx, "old", models.RoleUser, "bump")
	require.NoError(t, err)

	convs, err := cs.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "old", convs[0].Key)

	require.NoError(t, cs.Delete(ctx, "old"))
	assert.ErrorIs(t, cs.Delete(ctx, "old"), repository.ErrNotFound)

	require.NoError(t, cs.DeleteByUser(ctx, userID))
	convs, err = cs.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, convs)

	other, err := cs.Get(ctx, "someone-else")
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestConversationConcurrentAppendsSameKey(t *testing.T) {
	ctx := context.Background()
	cs := NewConversationStore()
	_, err := cs.Ensure(ctx, "k", uuid.New(), nil)
	require.NoError(t, err)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := cs.Append(ctx, "k", models.RoleUser, fmt.Sprintf("%d-%d", w, i))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	msgs, err := cs.Read(ctx, "k")
	require.NoError(t, err)
	require.Len(t, msgs, writers*perWriter)

	// Per-writer order is preserved and no message is lost.
	next := map[int]int{}
	for _, m := range msgs {
		var w, i int
		_, err := fmt.Sscanf(m.Content, "%d-%d", &w, &i)
		require.NoError(t, err)
		assert.Equal(t, next[w], i)
		next[w] = i + 1
	}
}

func TestConversationConcurrentAppendsDifferentKeys(t *testing.T) {
	ctx := context.Background()
	cs := NewConversationStore()

	var wg sync.WaitGroup
	for k := 0; k < 10; k++ {
		key := fmt.Sprintf("k%d", k)
		_, err := cs.Ensure(ctx, key, uuid.New(), nil)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, err := cs.Append(ctx, key, models.RoleAssistant, "x")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for k := 0; k < 10; k++ {
		msgs, err := cs.Read(ctx, fmt.Sprintf("k%d", k))
		require.NoError(t, err)
		assert.Len(t, msgs, 20)
	}
}
