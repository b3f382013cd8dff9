package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
)

const noteColumns = "id, user_id, title, content, summary, word_count, pinned, created_at, updated_at"

// NoteStore owns the notes table and the three join tables hanging off
// it (project_notes, area_notes, note_tags). The join methods live in
// note_links.go.
type NoteStore struct {
	pool *pgxpool.Pool
}

func NewNoteStore(pool *pgxpool.Pool) *NoteStore {
	return &NoteStore{pool: pool}
}

func scanNote(row rowScanner) (*models.Note, error) {
	var n models.Note
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Content,
		&n.Summary,
		&n.WordCount,
		&n.Pinned,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func collectNotes(rows pgx.Rows) ([]models.Note, error) {
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// Create inserts n. Summary and word count are recomputed from the
// content here, whatever the caller put in them.
func (s *NoteStore) Create(ctx context.Context, n *models.Note) error {
	n.SetContent(n.Content)

	query := `
		INSERT INTO notes (id, user_id, title, content, summary, word_count, pinned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		n.ID, n.UserID, n.Title, n.Content, n.Summary, n.WordCount, n.Pinned,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *NoteStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1`

	n, err := scanNote(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

func (s *NoteStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return collectNotes(rows)
}

func (s *NoteStore) Update(ctx context.Context, id uuid.UUID, patch models.NotePatch) (*models.Note, error) {
	stmt, _ := updateStmt("notes", id, noteSet(patch), true, noteColumns)
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build note update: %w", err)
	}

	n, err := scanNote(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update note: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("update note: %w", err)
	}
	return n, nil
}

func (s *NoteStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete note: %w", repository.ErrNotFound)
	}
	return nil
}

// ListByProject feeds the chat context: pinned notes first, then the
// most recently edited. limit <= 0 returns every linked note.
func (s *NoteStore) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.Note, error) {
	b := psql.Select(prefixed("n", noteColumns)).
		From("notes n").
		Join("project_notes pn ON pn.note_id = n.id").
		Where("pn.project_id = ?", projectID).
		OrderBy("n.pinned DESC", "n.updated_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build project notes query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list project notes: %w", err)
	}
	return collectNotes(rows)
}

func (s *NoteStore) ListByArea(ctx context.Context, areaID uuid.UUID) ([]models.Note, error) {
	query := `
		SELECT ` + prefixed("n", noteColumns) + `
		FROM notes n
		JOIN area_notes an ON an.note_id = n.id
		WHERE an.area_id = $1
		ORDER BY n.pinned DESC, n.updated_at DESC`

	rows, err := s.pool.Query(ctx, query, areaID)
	if err != nil {
		return nil, fmt.Errorf("list area notes: %w", err)
	}
	return collectNotes(rows)
}
