package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/parabrain/internal/repository"
)

// NewStore bundles the entity stores over one pool.
//
// Assigning to the repository interfaces here also proves at compile time
// that every store implements its interface.
func NewStore(pool *pgxpool.Pool) *repository.Store {
	return &repository.Store{
		Users:    NewUserStore(pool),
		Projects: NewProjectStore(pool),
		Areas:    NewAreaStore(pool),
		Notes:    NewNoteStore(pool),
		Tags:     NewTagStore(pool),
	}
}

var _ repository.ConversationStore = (*ConversationStore)(nil)
