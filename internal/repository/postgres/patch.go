package postgres

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/parabrain/internal/models"
)

// psql builds Postgres-flavoured statements ($1, $2...).
//
// Why squirrel only for UPDATEs and not everywhere?
//   - Fixed queries read best as plain SQL strings.
//   - A PATCH touches a different column set on every call. Building
//     "SET a = $1, c = $2" by hand means juggling placeholder numbers;
//     squirrel does that for us.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// rowScanner is satisfied by both pgx.Row and pgx.Rows, so one scan
// function serves QueryRow and the loop over Query.
type rowScanner interface {
	Scan(dest ...any) error
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// updateStmt returns an UPDATE for the given columns, or ok=false when
// there is nothing to set. touch adds updated_at = now().
func updateStmt(table string, id uuid.UUID, set map[string]any, touch bool, returning string) (sq.UpdateBuilder, bool) {
	if len(set) == 0 && !touch {
		return sq.UpdateBuilder{}, false
	}
	if touch {
		set["updated_at"] = sq.Expr("now()")
	}
	return psql.Update(table).
		SetMap(set).
		Where("id = ?", id).
		Suffix("RETURNING " + returning), true
}

func userSet(p models.UserPatch) map[string]any {
	set := map[string]any{}
	if v, ok := p.Name.Get(); ok {
		set["name"] = v
	}
	if v, ok := p.AvatarURL.Get(); ok {
		set["avatar_url"] = v
	}
	if v, ok := p.PasswordHash.Get(); ok {
		set["password_hash"] = v
	}
	return set
}

func projectSet(p models.ProjectPatch) map[string]any {
	set := map[string]any{}
	if v, ok := p.Name.Get(); ok {
		set["name"] = v
	}
	if v, ok := p.Description.Get(); ok {
		set["description"] = v
	}
	if v, ok := p.Context.Get(); ok {
		set["context"] = v
	}
	if v, ok := p.Color.Get(); ok {
		set["color"] = v
	}
	if v, ok := p.Priority.Get(); ok {
		set["priority"] = v
	}
	if v, ok := p.Status.Get(); ok {
		set["status"] = string(v)
	}
	if v, ok := p.PlannedEndDate.Get(); ok {
		set["planned_end_date"] = v
	}
	if v, ok := p.EndDate.Get(); ok {
		set["end_date"] = v
	}
	return set
}

func areaSet(p models.AreaPatch) map[string]any {
	set := map[string]any{}
	if v, ok := p.Name.Get(); ok {
		set["name"] = v
	}
	if v, ok := p.Description.Get(); ok {
		set["description"] = v
	}
	if v, ok := p.Color.Get(); ok {
		set["color"] = v
	}
	return set
}

// noteSet keeps summary and word_count in step with content.
func noteSet(p models.NotePatch) map[string]any {
	set := map[string]any{}
	if v, ok := p.Title.Get(); ok {
		set["title"] = v
	}
	if v, ok := p.Content.Get(); ok {
		set["content"] = v
		set["summary"] = models.Summarize(v)
		set["word_count"] = models.WordCount(v)
	}
	if v, ok := p.Pinned.Get(); ok {
		set["pinned"] = v
	}
	return set
}
