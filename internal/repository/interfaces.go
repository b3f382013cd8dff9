package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/models"
)

// Why context.Context as the first parameter on every method?
//
//   - Anything that does I/O takes ctx. If the HTTP request is cancelled
//     (client disconnected), the query gets cancelled too.
//   - The in-memory stores ignore it, but keeping the same signatures lets
//     either backing sit behind these interfaces.

// Why are relationships explicit methods instead of fields on the models?
//
//   - A Note doesn't carry its projects, areas and tags. Callers ask for
//     exactly the association they need (ListProjectIDs, ListTags...),
//     so nothing is loaded lazily behind their back.

var (
	// ErrNotFound is returned by Update/Delete/Append when the target row
	// does not exist. GetByID-style reads return nil, nil instead.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key (user email) is taken.
	ErrDuplicate = errors.New("duplicate key")
)

// UserRepository handles user data.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error

	// GetByID returns nil, nil if the user doesn't exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail is used by login. Returns nil, nil if not registered.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	List(ctx context.Context) ([]models.User, error)

	Update(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error)

	// Delete removes the user and, through cascades, everything they own.
	Delete(ctx context.Context, id uuid.UUID) error

	// PurgeData deletes every project, area, note and conversation the
	// user owns but keeps the user row and the global tags.
	PurgeData(ctx context.Context, id uuid.UUID) error
}

// ProjectRepository handles projects. Lists are newest first and never nil.
type ProjectRepository interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	Update(ctx context.Context, id uuid.UUID, patch models.ProjectPatch) (*models.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AreaRepository interface {
	Create(ctx context.Context, a *models.Area) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Area, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Area, error)
	Update(ctx context.Context, id uuid.UUID, patch models.AreaPatch) (*models.Area, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// NoteRepository handles notes and their join tables.
//
// Attach methods are idempotent (attaching twice is a no-op) and Detach
// methods don't fail when the link is missing. Ownership checks are the
// caller's job: the store links whatever ids it is given.
type NoteRepository interface {
	Create(ctx context.Context, n *models.Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Note, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Note, error)

	// Update applies the scalar fields of patch. Link lists in the patch
	// are ignored here.
	Update(ctx context.Context, id uuid.UUID, patch models.NotePatch) (*models.Note, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByProject returns the notes linked to a project, pinned first
	// and then most recently updated. limit <= 0 means no limit.
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.Note, error)
	ListByArea(ctx context.Context, areaID uuid.UUID) ([]models.Note, error)

	AttachProject(ctx context.Context, noteID, projectID uuid.UUID) error
	DetachProject(ctx context.Context, noteID, projectID uuid.UUID) error
	ReplaceProjects(ctx context.Context, noteID uuid.UUID, projectIDs []uuid.UUID) error
	ListProjectIDs(ctx context.Context, noteID uuid.UUID) ([]uuid.UUID, error)

	AttachArea(ctx context.Context, noteID, areaID uuid.UUID) error
	DetachArea(ctx context.Context, noteID, areaID uuid.UUID) error
	ReplaceAreas(ctx context.Context, noteID uuid.UUID, areaIDs []uuid.UUID) error
	ListAreaIDs(ctx context.Context, noteID uuid.UUID) ([]uuid.UUID, error)

	AttachTag(ctx context.Context, noteID, tagID uuid.UUID) error
	DetachTag(ctx context.Context, noteID, tagID uuid.UUID) error
	ReplaceTags(ctx context.Context, noteID uuid.UUID, tagIDs []uuid.UUID) error
	ListTags(ctx context.Context, noteID uuid.UUID) ([]models.Tag, error)
}

// TagRepository handles the global tag vocabulary.
type TagRepository interface {
	// GetOrCreate returns the tag with exactly this name, creating it
	// if needed. Concurrent callers with the same name get the same row.
	GetOrCreate(ctx context.Context, name string) (*models.Tag, error)
	GetByName(ctx context.Context, name string) (*models.Tag, error)
	List(ctx context.Context) ([]models.Tag, error)
}

// ConversationStore keeps ordered chat histories keyed by conversation id.
//
// Appends to one key are serialized by the store; appends to different
// keys don't block each other.
type ConversationStore interface {
	// Ensure creates the conversation if it doesn't exist and returns it.
	// An existing conversation is returned unchanged.
	Ensure(ctx context.Context, key string, userID uuid.UUID, projectID *uuid.UUID) (*models.Conversation, error)

	// Get returns nil, nil for an unknown key.
	Get(ctx context.Context, key string) (*models.Conversation, error)

	// Append adds a message at the end. ErrNotFound for an unknown key.
	Append(ctx context.Context, key string, role models.Role, content string) (*models.ChatMessage, error)

	// Read returns the full history, oldest first.
	Read(ctx context.Context, key string) ([]models.ChatMessage, error)

	// ReplaceLeadingSystem overwrites message 0 when it is a system
	// message and otherwise inserts a system message ahead of the rest.
	ReplaceLeadingSystem(ctx context.Context, key string, content string) error

	// ListByUser returns the user's conversations, most recently updated first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)

	Delete(ctx context.Context, key string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// Store bundles the entity repositories so callers can be handed one
// backing (Postgres or memory) as a unit.
type Store struct {
	Users    UserRepository
	Projects ProjectRepository
	Areas    AreaRepository
	Notes    NoteRepository
	Tags     TagRepository
}
