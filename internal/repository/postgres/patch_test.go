package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectUpdateOnlyProvidedColumns(t *testing.T) {
	id := uuid.New()
	patch := models.ProjectPatch{
		Name:        models.Some("Cache"),
		Description: models.Some[*string](nil),
	}

	stmt, ok := updateStmt("projects", id, projectSet(patch), true, "id")
	require.True(t, ok)
	query, args, err := stmt.ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE projects SET description = $1, name = $2, updated_at = now() WHERE id = $3 RETURNING id",
		query)
	require.Len(t, args, 3)
	assert.Nil(t, args[0])
	assert.Equal(t, "Cache", args[1])
	assert.Equal(t, id, args[2])
	assert.NotContains(t, query, "context")
	assert.NotContains(t, query, "priority")
}

func TestProjectStatusWrittenAsText(t *testing.T) {
	set := projectSet(models.ProjectPatch{Status: models.Some(models.ProjectPaused)})
	assert.Equal(t, map[string]any{"status": "PAUSED"}, set)
}

func TestNoteUpdateRecomputesDerivedColumns(t *testing.T) {
	set := noteSet(models.NotePatch{Content: models.Some("Heading\nthree more words")})

	assert.Equal(t, "Heading\nthree more words", set["content"])
	assert.Equal(t, "Heading", set["summary"])
	assert.Equal(t, 4, set["word_count"])

	set = noteSet(models.NotePatch{Pinned: models.Some(true)})
	assert.NotContains(t, set, "summary")
}

func TestUserUpdateWithoutFields(t *testing.T) {
	_, ok := updateStmt("users", uuid.New(), userSet(models.UserPatch{}), false, userColumns)
	assert.False(t, ok)
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "n.id, n.title", prefixed("n", "id, title"))
}
