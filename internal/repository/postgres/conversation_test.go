package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockConversationStore(t *testing.T) (*ConversationStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConversationStore(sqlx.NewDb(db, "pgx")), mock
}

const lockQuery = `SELECT conversation_id FROM conversations WHERE conversation_id = \$1 FOR UPDATE`

func expectLock(mock sqlmock.Sqlmock, key string) {
	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs(key).
		WillReturnRows(sqlmock.NewRows([]string{"conversation_id"}).AddRow(key))
}

func expectTouchAndCommit(mock sqlmock.Sqlmock, key string) {
	mock.ExpectExec(`UPDATE conversations SET updated_at = now\(\) WHERE conversation_id = \$1`).
		WithArgs(key).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestConversationStoreEnsure(t *testing.T) {
	store, mock := newMockConversationStore(t)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectExec(`INSERT INTO conversations .* ON CONFLICT \(conversation_id\) DO NOTHING`).
		WithArgs("k", userID.String(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT conversation_id, user_id, project_id, created_at, updated_at FROM conversations WHERE conversation_id = \$1`).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows(conversationCols).AddRow("k", userID.String(), nil, now, now))

	conv, err := store.Ensure(context.Background(), "k", userID, nil)
	require.NoError(t, err)
	assert.Equal(t, "k", conv.Key)
	assert.Equal(t, userID, conv.UserID)
	assert.Nil(t, conv.ProjectID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStoreAppendLocksRow(t *testing.T) {
	store, mock := newMockConversationStore(t)
	now := time.Now()

	expectLock(mock, "k")
	mock.ExpectQuery(`INSERT INTO conversation_messages \(conversation_id,role,content\) VALUES \(\$1,\$2,\$3\) RETURNING`).
		WithArgs("k", "user", "hello").
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(int64(7), "k", "user", "hello", now))
	expectTouchAndCommit(mock, "k")

	msg, err := store.Append(context.Background(), "k", models.RoleUser, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(7), msg.ID)
	assert.Equal(t, models.RoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStoreAppendUnknownKey(t *testing.T) {
	store, mock := newMockConversationStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"conversation_id"}))
	mock.ExpectRollback()

	_, err := store.Append(context.Background(), "missing", models.RoleUser, "hello")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStoreReplaceLeadingSystem(t *testing.T) {
	firstQuery := `SELECT id, conversation_id, role, content, created_at FROM conversation_messages WHERE conversation_id = \$1 ORDER BY created_at, id LIMIT 1`
	now := time.Now()

	t.Run("overwrites existing system message", func(t *testing.T) {
		store, mock := newMockConversationStore(t)

		expectLock(mock, "k")
		mock.ExpectQuery(firstQuery).
			WithArgs("k").
			WillReturnRows(sqlmock.NewRows(messageCols).AddRow(int64(1), "k", "system", "old", now))
		mock.ExpectExec(`UPDATE conversation_messages SET content = \$1 WHERE id = \$2`).
			WithArgs("fresh", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectTouchAndCommit(mock, "k")

		require.NoError(t, store.ReplaceLeadingSystem(context.Background(), "k", "fresh"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("prepends before a user message", func(t *testing.T) {
		store, mock := newMockConversationStore(t)

		expectLock(mock, "k")
		mock.ExpectQuery(firstQuery).
			WithArgs("k").
			WillReturnRows(sqlmock.NewRows(messageCols).AddRow(int64(1), "k", "user", "hi", now))
		mock.ExpectExec(`INSERT INTO conversation_messages \(conversation_id,role,content,created_at\)`).
			WithArgs("k", "system", "fresh", now.Add(-time.Microsecond)).
			WillReturnResult(sqlmock.NewResult(2, 1))
		expectTouchAndCommit(mock, "k")

		require.NoError(t, store.ReplaceLeadingSystem(context.Background(), "k", "fresh"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inserts into an empty history", func(t *testing.T) {
		store, mock := newMockConversationStore(t)

		expectLock(mock, "k")
		mock.ExpectQuery(firstQuery).
			WithArgs("k").
			WillReturnRows(sqlmock.NewRows(messageCols))
		mock.ExpectExec(`INSERT INTO conversation_messages .* VALUES \(\$1,\$2,\$3,clock_timestamp\(\)\)`).
			WithArgs("k", "system", "fresh").
			WillReturnResult(sqlmock.NewResult(1, 1))
		expectTouchAndCommit(mock, "k")

		require.NoError(t, store.ReplaceLeadingSystem(context.Background(), "k", "fresh"))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConversationStoreReadUnknownKey(t *testing.T) {
	store, mock := newMockConversationStore(t)

	mock.ExpectQuery(`SELECT .* FROM conversations WHERE conversation_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(conversationCols))

	_, err := store.Read(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStoreReadEmptyHistory(t *testing.T) {
	store, mock := newMockConversationStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM conversations WHERE conversation_id = \$1`).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows(conversationCols).AddRow("k", uuid.NewString(), nil, now, now))
	mock.ExpectQuery(`SELECT .* FROM conversation_messages WHERE conversation_id = \$1 ORDER BY created_at, id`).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows(messageCols))

	msgs, err := store.Read(context.Background(), "k")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStoreDelete(t *testing.T) {
	store, mock := newMockConversationStore(t)

	mock.ExpectExec(`DELETE FROM conversations WHERE conversation_id = \$1`).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM conversations WHERE conversation_id = \$1`).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), "k"))
	assert.ErrorIs(t, store.Delete(context.Background(), "k"), repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
