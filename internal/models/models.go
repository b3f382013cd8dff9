package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User owns every project, area, note and conversation in the system.
// There is no tenant above it: a user is the isolation boundary, so every
// list query is scoped by user_id.
//
// PasswordHash is tagged json:"-" so a User can be returned from a handler
// without leaking the bcrypt hash.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    *string   `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectPaused    ProjectStatus = "PAUSED"
	ProjectCompleted ProjectStatus = "COMPLETED"
)

// Valid reports whether s is one of the three known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectPaused, ProjectCompleted:
		return true
	}
	return false
}

// Project is a time-bound effort. Context is free text handed to the LLM
// as grounding when a chat is scoped to the project.
//
// Optional text columns are pointers: nil means NULL in Postgres and null
// in JSON, which is different from an empty string the user typed.
type Project struct {
	ID             uuid.UUID     `json:"id"`
	UserID         uuid.UUID     `json:"user_id"`
	Name           string        `json:"name"`
	Description    *string       `json:"description"`
	Context        *string       `json:"context"`
	Status         ProjectStatus `json:"status"`
	Priority       int           `json:"priority"`
	StartDate      time.Time     `json:"start_date"`
	PlannedEndDate *time.Time    `json:"planned_end_date"`
	EndDate        *time.Time    `json:"end_date"`
	Color          *string       `json:"color"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Area is an ongoing responsibility (health, finances...). Unlike a
// Project it has no status or deadline.
type Area struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Color       *string   `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Note is a resource in PARA terms. Summary and WordCount are derived
// from Content and must never be set independently; use SetContent.
type Note struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	WordCount int       `json:"word_count"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetContent replaces the content and recomputes the derived fields.
func (n *Note) SetContent(content string) {
	n.Content = content
	n.Summary = Summarize(content)
	n.WordCount = WordCount(content)
}

// Tag is global: two users tagging with "python" share one row.
// Names are case-sensitive.
type Tag struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteLink is one row of a note's project or area associations, used by
// the "notes of a project/area" listings.
type NoteLink struct {
	NoteID    uuid.UUID `json:"note_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three chat roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Conversation is an ordered chat history addressed by an opaque string
// key. The key is either supplied by the client or derived from
// (user, project); see chat.ConversationKey.
type Conversation struct {
	Key       string     `json:"conversation_id"`
	UserID    uuid.UUID  `json:"user_id"`
	ProjectID *uuid.UUID `json:"project_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ChatMessage is one turn in a conversation.
//
// ID is a bigserial in Postgres: conversations are append-heavy and a
// monotonically increasing id breaks created_at ties.
type ChatMessage struct {
	ID              int64     `json:"id"`
	ConversationKey string    `json:"conversation_id"`
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}

// AgentResult is the latest payload an external workflow pushed for a
// given kind ("todos", "analysis", ...), optionally scoped to a project.
type AgentResult struct {
	Kind       string          `json:"kind"`
	ProjectID  *uuid.UUID      `json:"project_id"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}
