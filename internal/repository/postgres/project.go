package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
)

const projectColumns = `id, user_id, name, description, context, status, priority,
	start_date, planned_end_date, end_date, color, created_at, updated_at`

type ProjectStore struct {
	pool *pgxpool.Pool
}

func NewProjectStore(pool *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{pool: pool}
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		p      models.Project
		status string
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.Context,
		&status,
		&p.Priority,
		&p.StartDate,
		&p.PlannedEndDate,
		&p.EndDate,
		&p.Color,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = models.ProjectStatus(status)
	return &p, nil
}

// Create inserts p, filling in the ACTIVE status and today's start date
// when the caller left them empty.
func (s *ProjectStore) Create(ctx context.Context, p *models.Project) error {
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	if p.StartDate.IsZero() {
		p.StartDate = time.Now().UTC()
	}

	query := `
		INSERT INTO projects (id, user_id, name, description, context, status, priority,
			start_date, planned_end_date, end_date, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		p.ID, p.UserID, p.Name, p.Description, p.Context, string(p.Status), p.Priority,
		p.StartDate, p.PlannedEndDate, p.EndDate, p.Color,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *ProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *ProjectStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// Update writes only the fields present in patch. updated_at is always
// refreshed, so an empty patch still bumps it.
func (s *ProjectStore) Update(ctx context.Context, id uuid.UUID, patch models.ProjectPatch) (*models.Project, error) {
	stmt, _ := updateStmt("projects", id, projectSet(patch), true, projectColumns)
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build project update: %w", err)
	}

	p, err := scanProject(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update project: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

// Delete removes the project and its note links. Conversations scoped to
// it keep their history with project_id set to NULL.
func (s *ProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete project: %w", repository.ErrNotFound)
	}
	return nil
}
