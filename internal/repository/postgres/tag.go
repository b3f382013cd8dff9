package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/parabrain/internal/models"
)

type TagStore struct {
	pool *pgxpool.Pool
}

func NewTagStore(pool *pgxpool.Pool) *TagStore {
	return &TagStore{pool: pool}
}

// GetOrCreate returns the tag named name, inserting it first if needed.
//
// Why the no-op DO UPDATE instead of DO NOTHING?
//   - DO NOTHING returns no row when the name already exists, which would
//     cost a second SELECT. Setting name to itself makes RETURNING fire on
//     both paths, and two concurrent callers still end up with one row.
func (s *TagStore) GetOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	query := `
		INSERT INTO tags (id, name, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at`

	var t models.Tag
	if err := s.pool.QueryRow(ctx, query, uuid.New(), name).Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("get or create tag: %w", err)
	}
	return &t, nil
}

func (s *TagStore) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	var t models.Tag
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM tags WHERE name = $1`, name).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &t, nil
}

func (s *TagStore) List(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
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
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}
