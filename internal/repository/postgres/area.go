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

const areaColumns = "id, user_id, name, description, color, created_at, updated_at"

type AreaStore struct {
	pool *pgxpool.Pool
}

func NewAreaStore(pool *pgxpool.Pool) *AreaStore {
	return &AreaStore{pool: pool}
}

func scanArea(row rowScanner) (*models.Area, error) {
	var a models.Area
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.Color, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AreaStore) Create(ctx context.Context, a *models.Area) error {
	query := `
		INSERT INTO areas (id, user_id, name, description, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, query, a.ID, a.UserID, a.Name, a.Description, a.Color).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert area: %w", err)
	}
	return nil
}

func (s *AreaStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Area, error) {
	query := `SELECT ` + areaColumns + ` FROM areas WHERE id = $1`

	a, err := scanArea(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get area: %w", err)
	}
	return a, nil
}

func (s *AreaStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Area, error) {
	query := `
		SELECT ` + areaColumns + `
		FROM areas
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	defer rows.Close()

	areas := make([]models.Area, 0)
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan area: %w", err)
		}
		areas = append(areas, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate areas: %w", err)
	}
	return areas, nil
}

func (s *AreaStore) Update(ctx context.Context, id uuid.UUID, patch models.AreaPatch) (*models.Area, error) {
	stmt, _ := updateStmt("areas", id, areaSet(patch), true, areaColumns)
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build area update: %w", err)
	}

	a, err := scanArea(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update area: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("update area: %w", err)
	}
	return a, nil
}

func (s *AreaStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM areas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete area: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete area: %w", repository.ErrNotFound)
	}
	return nil
}
