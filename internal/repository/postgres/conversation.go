package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
)

// ConversationStore is the durable chat history backing.
//
// Why sqlx here when the entity stores use the pgx pool directly?
//   - Conversations are read as whole structs (history, listings) and
//     sqlx's StructScan/SelectContext keep that short.
//   - It runs over the same pool (db.SQLX() wraps it), so there's still
//     one set of connections.
//   - database/sql is what go-sqlmock speaks, so the locking protocol
//     below is unit-testable without a live Postgres.
type ConversationStore struct {
	db *sqlx.DB
}

func NewConversationStore(db *sqlx.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

type conversationRow struct {
	Key       string     `db:"conversation_id"`
	UserID    uuid.UUID  `db:"user_id"`
	ProjectID *uuid.UUID `db:"project_id"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

func (r conversationRow) model() models.Conversation {
	return models.Conversation{
		Key:       r.Key,
		UserID:    r.UserID,
		ProjectID: r.ProjectID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type messageRow struct {
	ID        int64     `db:"id"`
	Key       string    `db:"conversation_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

func (r messageRow) model() models.ChatMessage {
	return models.ChatMessage{
		ID:              r.ID,
		ConversationKey: r.Key,
		Role:            models.Role(r.Role),
		Content:         r.Content,
		CreatedAt:       r.CreatedAt,
	}
}

var (
	conversationCols = []string{"conversation_id", "user_id", "project_id", "created_at", "updated_at"}
	messageCols      = []string{"id", "conversation_id", "role", "content", "created_at"}
)

func (s *ConversationStore) Ensure(ctx context.Context, key string, userID uuid.UUID, projectID *uuid.UUID) (*models.Conversation, error) {
	query, args, err := psql.Insert("conversations").
		Columns(conversationCols...).
		Values(key, userID, projectID, sq.Expr("now()"), sq.Expr("now()")).
		Suffix("ON CONFLICT (conversation_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ensure conversation: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}

	conv, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		// Deleted between the insert and the read.
		return nil, fmt.Errorf("ensure conversation: %w", repository.ErrNotFound)
	}
	return conv, nil
}

func (s *ConversationStore) Get(ctx context.Context, key string) (*models.Conversation, error) {
	query, args, err := psql.Select(conversationCols...).
		From("conversations").
		Where(sq.Eq{"conversation_id": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get conversation: %w", err)
	}

	var row conversationRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	conv := row.model()
	return &conv, nil
}

// locked runs fn in a transaction holding a row lock on the conversation.
//
// Why SELECT ... FOR UPDATE?
//   - Two turns on the same key (two browser tabs, two server replicas)
//     must not interleave their writes. The row lock makes the second
//     writer wait until the first commits, while writers on other keys
//     never touch this row and proceed in parallel.
func (s *ConversationStore) locked(ctx context.Context, key string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin conversation tx: %w", err)
	}
	defer tx.Rollback()

	query, args, err := psql.Select("conversation_id").
		From("conversations").
		Where(sq.Eq{"conversation_id": key}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build conversation lock: %w", err)
	}
	var locked string
	if err := tx.GetContext(ctx, &locked, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("lock conversation: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	touch, args, err := psql.Update("conversations").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"conversation_id": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build conversation touch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, touch, args...); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversation tx: %w", err)
	}
	return nil
}

func (s *ConversationStore) Append(ctx context.Context, key string, role models.Role, content string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := s.locked(ctx, key, func(tx *sqlx.Tx) error {
		query, args, err := psql.Insert("conversation_messages").
			Columns("conversation_id", "role", "content").
			Values(key, string(role), content).
			Suffix("RETURNING id, conversation_id, role, content, created_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build append message: %w", err)
		}

		var row messageRow
		if err := tx.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		msg = row.model()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *ConversationStore) Read(ctx context.Context, key string) ([]models.ChatMessage, error) {
	conv, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, repository.ErrNotFound
	}

	query, args, err := psql.Select(messageCols...).
		From("conversation_messages").
		Where(sq.Eq{"conversation_id": key}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build read messages: %w", err)
	}

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	messages := make([]models.ChatMessage, 0, len(rows))
	for _, r := range rows {
		messages = append(messages, r.model())
	}
	return messages, nil
}

// ReplaceLeadingSystem rewrites message 0 in place when it is a system
// message. Otherwise it inserts a system message dated just before the
// current first message, so (created_at, id) ordering puts it on top.
func (s *ConversationStore) ReplaceLeadingSystem(ctx context.Context, key string, content string) error {
	return s.locked(ctx, key, func(tx *sqlx.Tx) error {
		query, args, err := psql.Select(messageCols...).
			From("conversation_messages").
			Where(sq.Eq{"conversation_id": key}).
			OrderBy("created_at", "id").
			Limit(1).
			ToSql()
		if err != nil {
			return fmt.Errorf("build first message: %w", err)
		}

		var first messageRow
		err = tx.GetContext(ctx, &first, query, args...)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return insertSystem(ctx, tx, key, content, sq.Expr("clock_timestamp()"))
		case err != nil:
			return fmt.Errorf("read first message: %w", err)
		case models.Role(first.Role) == models.RoleSystem:
			update, args, err := psql.Update("conversation_messages").
				Set("content", content).
				Where("id = ?", first.ID).
				ToSql()
			if err != nil {
				return fmt.Errorf("build system update: %w", err)
			}
			if _, err := tx.ExecContext(ctx, update, args...); err != nil {
				return fmt.Errorf("update system message: %w", err)
			}
			return nil
		default:
			return insertSystem(ctx, tx, key, content, first.CreatedAt.Add(-time.Microsecond))
		}
	})
}

func insertSystem(ctx context.Context, tx *sqlx.Tx, key, content string, createdAt any) error {
	query, args, err := psql.Insert("conversation_messages").
		Columns("conversation_id", "role", "content", "created_at").
		Values(key, string(models.RoleSystem), content, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build system insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert system message: %w", err)
	}
	return nil
}

func (s *ConversationStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	query, args, err := psql.Select(conversationCols...).
		From("conversations").
		Where("user_id = ?", userID).
		OrderBy("updated_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list conversations: %w", err)
	}

	var rows []conversationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	convs := make([]models.Conversation, 0, len(rows))
	for _, r := range rows {
		convs = append(convs, r.model())
	}
	return convs, nil
}

// Delete removes the conversation; its messages go through the cascade.
func (s *ConversationStore) Delete(ctx context.Context, key string) error {
	query, args, err := psql.Delete("conversations").
		Where(sq.Eq{"conversation_id": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete conversation: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *ConversationStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	query, args, err := psql.Delete("conversations").
		Where("user_id = ?", userID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user conversations: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete user conversations: %w", err)
	}
	return nil
}
