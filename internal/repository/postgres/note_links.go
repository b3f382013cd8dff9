package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/samber/lo"
)

// linkTable describes one of the note join tables: the table name and
// the column pointing at the other side.
type linkTable struct {
	name   string
	column string
}

var (
	projectLinks = linkTable{name: "project_notes", column: "project_id"}
	areaLinks    = linkTable{name: "area_notes", column: "area_id"}
	tagLinks     = linkTable{name: "note_tags", column: "tag_id"}
)

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func (s *NoteStore) link(ctx context.Context, t linkTable, noteID, otherID uuid.UUID) error {
	// ON CONFLICT DO NOTHING: attaching twice is a no-op instead of a
	// primary key violation, so the endpoint is idempotent.
	query := `INSERT INTO ` + t.name + ` (note_id, ` + t.column + `)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, noteID, otherID); err != nil {
		return fmt.Errorf("link %s: %w", t.name, err)
	}
	return nil
}

func (s *NoteStore) unlink(ctx context.Context, t linkTable, noteID, otherID uuid.UUID) error {
	// DELETE is naturally idempotent: a missing link deletes zero rows.
	query := `DELETE FROM ` + t.name + ` WHERE note_id = $1 AND ` + t.column + ` = $2`

	if _, err := s.pool.Exec(ctx, query, noteID, otherID); err != nil {
		return fmt.Errorf("unlink %s: %w", t.name, err)
	}
	return nil
}

// replace swaps the whole link set of a note in one transaction, so a
// reader never sees it half-updated.
func (s *NoteStore) replace(ctx context.Context, t linkTable, noteID uuid.UUID, ids []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace %s: %w", t.name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM `+t.name+` WHERE note_id = $1`, noteID); err != nil {
		return fmt.Errorf("clear %s: %w", t.name, err)
	}

	ids = lo.Uniq(ids)
	if len(ids) > 0 {
		b := psql.Insert(t.name).Columns("note_id", t.column)
		for _, id := range ids {
			b = b.Values(noteID, id)
		}
		query, args, err := b.ToSql()
		if err != nil {
			return fmt.Errorf("build %s insert: %w", t.name, err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", t.name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace %s: %w", t.name, err)
	}
	return nil
}

func (s *NoteStore) linkedIDs(ctx context.Context, t linkTable, noteID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT ` + t.column + ` FROM ` + t.name + ` WHERE note_id = $1 ORDER BY added_at`

	rows, err := s.pool.Query(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}
	return ids, nil
}

func (s *NoteStore) AttachProject(ctx context.Context, noteID, projectID uuid.UUID) error {
	return s.link(ctx, projectLinks, noteID, projectID)
}

func (s *NoteStore) DetachProject(ctx context.Context, noteID, projectID uuid.UUID) error {
	return s.unlink(ctx, projectLinks, noteID, projectID)
}

func (s *NoteStore) ReplaceProjects(ctx context.Context, noteID uuid.UUID, projectIDs []uuid.UUID) error {
	return s.replace(ctx, projectLinks, noteID, projectIDs)
}

func (s *NoteStore) ListProjectIDs(ctx context.Context, noteID uuid.UUID) ([]uuid.UUID, error) {
	return s.linkedIDs(ctx, projectLinks, noteID)
}

func (s *NoteStore) AttachArea(ctx context.Context, noteID, areaID uuid.UUID) error {
	return s.link(ctx, areaLinks, noteID, areaID)
}

func (s *NoteStore) DetachArea(ctx context.Context, noteID, areaID uuid.UUID) error {
	return s.unlink(ctx, areaLinks, noteID, areaID)
}

func (s *NoteStore) ReplaceAreas(ctx context.Context, noteID uuid.UUID, areaIDs []uuid.UUID) error {
	return s.replace(ctx, areaLinks, noteID, areaIDs)
}

func (s *NoteStore) ListAreaIDs(ctx context.Context, noteID uuid.UUID) ([]uuid.UUID, error) {
	return s.linkedIDs(ctx, areaLinks, noteID)
}

func (s *NoteStore) AttachTag(ctx context.Context, noteID, tagID uuid.UUID) error {
	return s.link(ctx, tagLinks, noteID, tagID)
}

func (s *NoteStore) DetachTag(ctx context.Context, noteID, tagID uuid.UUID) error {
	return s.unlink(ctx, tagLinks, noteID, tagID)
}

func (s *NoteStore) ReplaceTags(ctx context.Context, noteID uuid.UUID, tagIDs []uuid.UUID) error {
	return s.replace(ctx, tagLinks, noteID, tagIDs)
}

// ListTags returns the note's tags sorted by name.
func (s *NoteStore) ListTags(ctx context.Context, noteID uuid.UUID) ([]models.Tag, error) {
	query := `
		SELECT t.id, t.name, t.created_at
		FROM tags t
		JOIN note_tags nt ON nt.tag_id = t.id
		WHERE nt.note_id = $1
		ORDER BY t.name`

	rows, err := s.pool.Query(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("list note tags: %w", err)
	}
	defer rows.Close()

	tags := make([]models.Tag, 0)
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note tags: %w", err)
	}
	return tags, nil
}
