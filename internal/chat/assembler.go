// Package chat turns a user message into an LLM call grounded in the
// user's project and notes, and keeps the conversation history straight.
package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/apperr"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
)

const (
	// DefaultSystemPrompt is used for conversations not scoped to a project.
	DefaultSystemPrompt = "You are a helpful, concise and friendly assistant."

	// MaxPromptNotes caps how many linked notes go into a project prompt.
	MaxPromptNotes = 8

	// NotePreviewRunes caps the content excerpt used when a note has no summary.
	NotePreviewRunes = 300

	// NoLinkedNotes stands in for the note list of a project with no
	// linked notes.
	NoLinkedNotes = "No linked notes."
	notProvided   = "(not provided)"
)

// Assembler builds system prompts and reconciles them into stored history.
type Assembler struct {
	projects repository.ProjectRepository
	notes    repository.NoteRepository
	convs    repository.ConversationStore
}

func NewAssembler(projects repository.ProjectRepository, notes repository.NoteRepository, convs repository.ConversationStore) *Assembler {
	return &Assembler{projects: projects, notes: notes, convs: convs}
}

// BuildSystemPrompt returns the prompt for projectID. A nil or unknown
// project yields DefaultSystemPrompt; only store failures are errors.
func (a *Assembler) BuildSystemPrompt(ctx context.Context, projectID *uuid.UUID) (string, error) {
	if projectID == nil {
		return DefaultSystemPrompt, nil
	}

	project, err := a.projects.GetByID(ctx, *projectID)
	if err != nil {
		return "", fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return DefaultSystemPrompt, nil
	}

	notes, err := a.notes.ListByProject(ctx, project.ID, MaxPromptNotes)
	if err != nil {
		return "", fmt.Errorf("load project notes: %w", err)
	}
	return renderProjectPrompt(project, notes), nil
}

// CheckProjectOwner fails with PermissionMismatch when projectID names a
// project owned by someone other than userID. A nil or unknown project
// passes; BuildSystemPrompt falls back to the default prompt for it.
func (a *Assembler) CheckProjectOwner(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) error {
	if projectID == nil {
		return nil
	}
	project, err := a.projects.GetByID(ctx, *projectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if project != nil && project.UserID != userID {
		return apperr.PermissionMismatch("project %s belongs to another user", project.ID)
	}
	return nil
}

func renderProjectPrompt(p *models.Project, notes []models.Note) string {
	var b strings.Builder
	b.WriteString("You are the assistant for the project '" + p.Name + "'.\n")
	b.WriteString("Description: " + orNotProvided(p.Description) + "\n")
	b.WriteString("Context: " + orNotProvided(p.Context) + "\n")
	b.WriteString("Priority: " + strconv.Itoa(p.Priority) + "\n")
	b.WriteString("Instruction: answer only about THIS project.\n")
	b.WriteString("Linked notes (pinned first, then most recent):\n")
	if len(notes) == 0 {
		b.WriteString(NoLinkedNotes + "\n")
	}
	for _, n := range notes {
		b.WriteString("- " + n.Title + ": " + notePreview(n) + "\n")
	}
	b.WriteString("If the user drifts off-topic, steer the conversation back to the project.")
	return b.String()
}

func orNotProvided(s *string) string {
	if s == nil {
		return notProvided
	}
	if v := strings.TrimSpace(*s); v != "" {
		return v
	}
	return notProvided
}

// notePreview prefers the summary and falls back to the start of the
// content, flattened to one line.
func notePreview(n models.Note) string {
	preview := n.Summary
	if strings.TrimSpace(preview) == "" {
		preview = models.Truncate(n.Content, NotePreviewRunes)
	}
	preview = strings.ReplaceAll(preview, "\r\n", " ")
	preview = strings.ReplaceAll(preview, "\n", " ")
	return strings.TrimSpace(preview)
}

// SyncHistory makes sure message 0 of the conversation is the current
// system prompt and returns the resulting history.
//
// Why rewrite message 0 instead of appending a new system message?
//   - Project metadata can change between turns. Appending would stack
//     stale prompts; the history must hold exactly one leading system
//     message describing the project as it is now.
func (a *Assembler) SyncHistory(ctx context.Context, key string, projectID *uuid.UUID) ([]models.ChatMessage, error) {
	prompt, err := a.BuildSystemPrompt(ctx, projectID)
	if err != nil {
		return nil, err
	}

	history, err := a.convs.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(history) > 0 && history[0].Role == models.RoleSystem && history[0].Content == prompt {
		return history, nil
	}

	if err := a.convs.ReplaceLeadingSystem(ctx, key, prompt); err != nil {
		return nil, fmt.Errorf("replace system prompt: %w", err)
	}
	history, err = a.convs.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return history, nil
}
