// Package service holds the note workflows that touch more than one
// repository: ownership checks across projects and areas, tag
// get-or-create, and the webhook fired when a note joins a project.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/apperr"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/notify"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// NoteDetail is a note together with its associations.
type NoteDetail struct {
	models.Note
	ProjectIDs []uuid.UUID  `json:"project_ids"`
	AreaIDs    []uuid.UUID  `json:"area_ids"`
	Tags       []models.Tag `json:"tags"`
}

type CreateNoteInput struct {
	UserID     uuid.UUID
	Title      string
	Content    string
	Pinned     bool
	ProjectIDs []uuid.UUID
	AreaIDs    []uuid.UUID
	TagNames   []string
}

type NoteService struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	areas    repository.AreaRepository
	notes    repository.NoteRepository
	tags     repository.TagRepository
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewNoteService(store *repository.Store, notifier notify.Notifier, logger *zap.Logger) *NoteService {
	return &NoteService{
		users:    store.Users,
		projects: store.Projects,
		areas:    store.Areas,
		notes:    store.Notes,
		tags:     store.Tags,
		notifier: notifier,
		logger:   logger,
	}
}

// Create validates every referenced project, area and tag name before
// writing anything, so a rejected request leaves no partial note behind.
func (s *NoteService) Create(ctx context.Context, in CreateNoteInput) (*NoteDetail, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %s not found", in.UserID)
	}

	projectIDs := lo.Uniq(in.ProjectIDs)
	areaIDs := lo.Uniq(in.AreaIDs)
	if err := s.checkProjects(ctx, in.UserID, projectIDs); err != nil {
		return nil, err
	}
	if err := s.checkAreas(ctx, in.UserID, areaIDs); err != nil {
		return nil, err
	}
	if err := checkTagNames(in.TagNames); err != nil {
		return nil, err
	}

	note := models.Note{
		ID:      uuid.New(),
		UserID:  in.UserID,
		Title:   in.Title,
		Content: in.Content,
		Pinned:  in.Pinned,
	}
	if err := s.notes.Create(ctx, &note); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	if len(projectIDs) > 0 {
		if err := s.notes.ReplaceProjects(ctx, note.ID, projectIDs); err != nil {
			return nil, fmt.Errorf("link projects: %w", err)
		}
	}
	if len(areaIDs) > 0 {
		if err := s.notes.ReplaceAreas(ctx, note.ID, areaIDs); err != nil {
			return nil, fmt.Errorf("link areas: %w", err)
		}
	}
	if len(in.TagNames) > 0 {
		if err := s.replaceTags(ctx, note.ID, in.TagNames); err != nil {
			return nil, err
		}
	}

	for _, id := range projectIDs {
		s.notifier.Notify(notify.EventNoteAttachedToProject, id, map[string]any{"note_id": note.ID})
	}
	return s.detail(ctx, &note)
}

// Get returns the note with its associations.
func (s *NoteService) Get(ctx context.Context, id uuid.UUID) (*NoteDetail, error) {
	note, err := s.loadNote(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, note)
}

func (s *NoteService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Note, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %s not found", userID)
	}
	return s.notes.ListByUser(ctx, userID)
}

// Update applies the scalar fields of patch and, for every link list
// present in it, replaces that association set wholesale.
func (s *NoteService) Update(ctx context.Context, id uuid.UUID, patch models.NotePatch) (*NoteDetail, error) {
	current, err := s.loadNote(ctx, id)
	if err != nil {
		return nil, err
	}

	projectIDs, replaceProjects := patch.ProjectIDs.Get()
	areaIDs, replaceAreas := patch.AreaIDs.Get()
	tagNames, replaceTags := patch.TagNames.Get()
	projectIDs, areaIDs = lo.Uniq(projectIDs), lo.Uniq(areaIDs)

	if replaceProjects {
		if err := s.checkProjects(ctx, current.UserID, projectIDs); err != nil {
			return nil, err
		}
	}
	if replaceAreas {
		if err := s.checkAreas(ctx, current.UserID, areaIDs); err != nil {
			return nil, err
		}
	}
	if replaceTags {
		if err := checkTagNames(tagNames); err != nil {
			return nil, err
		}
	}

	var before []uuid.UUID
	if replaceProjects {
		if before, err = s.notes.ListProjectIDs(ctx, id); err != nil {
			return nil, fmt.Errorf("list note projects: %w", err)
		}
	}

	note, err := s.notes.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}

	if replaceProjects {
		if err := s.notes.ReplaceProjects(ctx, id, projectIDs); err != nil {
			return nil, fmt.Errorf("replace projects: %w", err)
		}
		added, _ := lo.Difference(projectIDs, before)
		for _, pid := range added {
			s.notifier.Notify(notify.EventNoteAttachedToProject, pid, map[string]any{"note_id": id})
		}
	}
	if replaceAreas {
		if err := s.notes.ReplaceAreas(ctx, id, areaIDs); err != nil {
			return nil, fmt.Errorf("replace areas: %w", err)
		}
	}
	if replaceTags {
		if err := s.replaceTags(ctx, id, tagNames); err != nil {
			return nil, err
		}
	}
	return s.detail(ctx, note)
}

func (s *NoteService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.notes.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// AttachProject links note and project. Both must exist and share an
// owner. Linking twice is a no-op, but the webhook fires each time.
func (s *NoteService) AttachProject(ctx context.Context, noteID, projectID uuid.UUID) error {
	note, project, err := s.loadNoteAndProject(ctx, noteID, projectID)
	if err != nil {
		return err
	}
	if note.UserID != project.UserID {
		return apperr.PermissionMismatch("note and project belong to different users")
	}
	if err := s.notes.AttachProject(ctx, noteID, projectID); err != nil {
		return fmt.Errorf("attach project: %w", err)
	}

	s.logger.Info("note attached to project",
		zap.String("note_id", noteID.String()),
		zap.String("project_id", projectID.String()),
	)
	s.notifier.Notify(notify.EventNoteAttachedToProject, projectID, map[string]any{"note_id": noteID})
	return nil
}

func (s *NoteService) DetachProject(ctx context.Context, noteID, projectID uuid.UUID) error {
	if _, _, err := s.loadNoteAndProject(ctx, noteID, projectID); err != nil {
		return err
	}
	if err := s.notes.DetachProject(ctx, noteID, projectID); err != nil {
		return fmt.Errorf("detach project: %w", err)
	}
	return nil
}

func (s *NoteService) AttachArea(ctx context.Context, noteID, areaID uuid.UUID) error {
	note, area, err := s.loadNoteAndArea(ctx, noteID, areaID)
	if err != nil {
		return err
	}
	if note.UserID != area.UserID {
		return apperr.PermissionMismatch("note and area belong to different users")
	}
	if err := s.notes.AttachArea(ctx, noteID, areaID); err != nil {
		return fmt.Errorf("attach area: %w", err)
	}
	return nil
}

func (s *NoteService) DetachArea(ctx context.Context, noteID, areaID uuid.UUID) error {
	if _, _, err := s.loadNoteAndArea(ctx, noteID, areaID); err != nil {
		return err
	}
	if err := s.notes.DetachArea(ctx, noteID, areaID); err != nil {
		return fmt.Errorf("detach area: %w", err)
	}
	return nil
}

// AddTag tags the note with name, creating the tag on first use.
func (s *NoteService) AddTag(ctx context.Context, noteID uuid.UUID, name string) (*models.Tag, error) {
	if _, err := s.loadNote(ctx, noteID); err != nil {
		return nil, err
	}
	if err := checkTagNames([]string{name}); err != nil {
		return nil, err
	}
	tag, err := s.tags.GetOrCreate(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get or create tag: %w", err)
	}
	if err := s.notes.AttachTag(ctx, noteID, tag.ID); err != nil {
		return nil, fmt.Errorf("attach tag: %w", err)
	}
	return tag, nil
}

func (s *NoteService) RemoveTag(ctx context.Context, noteID uuid.UUID, name string) error {
	if _, err := s.loadNote(ctx, noteID); err != nil {
		return err
	}
	tag, err := s.tags.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("load tag: %w", err)
	}
	if tag == nil {
		return apperr.NotFound("tag %q not found", name)
	}
	if err := s.notes.DetachTag(ctx, noteID, tag.ID); err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	return nil
}

func (s *NoteService) ListTags(ctx context.Context, noteID uuid.UUID) ([]models.Tag, error) {
	if _, err := s.loadNote(ctx, noteID); err != nil {
		return nil, err
	}
	return s.notes.ListTags(ctx, noteID)
}

// ProjectNotes lists the notes linked to a project, pinned first.
func (s *NoteService) ProjectNotes(ctx context.Context, projectID uuid.UUID) ([]models.NoteLink, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return nil, apperr.NotFound("project %s not found", projectID)
	}
	notes, err := s.notes.ListByProject(ctx, projectID, 0)
	if err != nil {
		return nil, fmt.Errorf("list project notes: %w", err)
	}
	return lo.Map(notes, toNoteLink), nil
}

func (s *NoteService) AreaNotes(ctx context.Context, areaID uuid.UUID) ([]models.NoteLink, error) {
	area, err := s.areas.GetByID(ctx, areaID)
	if err != nil {
		return nil, fmt.Errorf("load area: %w", err)
	}
	if area == nil {
		return nil, apperr.NotFound("area %s not found", areaID)
	}
	notes, err := s.notes.ListByArea(ctx, areaID)
	if err != nil {
		return nil, fmt.Errorf("list area notes: %w", err)
	}
	return lo.Map(notes, toNoteLink), nil
}

func toNoteLink(n models.Note, _ int) models.NoteLink {
	return models.NoteLink{
		NoteID:    n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Pinned:    n.Pinned,
		CreatedAt: n.CreatedAt,
	}
}

func (s *NoteService) loadNote(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	note, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}
	if note == nil {
		return nil, apperr.NotFound("note %s not found", id)
	}
	return note, nil
}

func (s *NoteService) loadNoteAndProject(ctx context.Context, noteID, projectID uuid.UUID) (*models.Note, *models.Project, error) {
	note, err := s.loadNote(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return nil, nil, apperr.NotFound("project %s not found", projectID)
	}
	return note, project, nil
}

func (s *NoteService) loadNoteAndArea(ctx context.Context, noteID, areaID uuid.UUID) (*models.Note, *models.Area, error) {
	note, err := s.loadNote(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}
	area, err := s.areas.GetByID(ctx, areaID)
	if err != nil {
		return nil, nil, fmt.Errorf("load area: %w", err)
	}
	if area == nil {
		return nil, nil, apperr.NotFound("area %s not found", areaID)
	}
	return note, area, nil
}

// checkProjects requires every id to name an existing project owned by
// userID. Unknown ids are 404 rather than silently dropped.
func (s *NoteService) checkProjects(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		p, err := s.projects.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		if p == nil {
			return apperr.NotFound("project %s not found", id)
		}
		if p.UserID != userID {
			return apperr.PermissionMismatch("project %s does not belong to the note's owner", id)
		}
	}
	return nil
}

func (s *NoteService) checkAreas(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		a, err := s.areas.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load area: %w", err)
		}
		if a == nil {
			return apperr.NotFound("area %s not found", id)
		}
		if a.UserID != userID {
			return apperr.PermissionMismatch("area %s does not belong to the note's owner", id)
		}
	}
	return nil
}

func checkTagNames(names []string) error {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return apperr.Validation("tag names must not be empty")
		}
	}
	return nil
}

// replaceTags resolves names to tags (creating missing ones) and makes
// them the note's complete tag set.
func (s *NoteService) replaceTags(ctx context.Context, noteID uuid.UUID, names []string) error {
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range lo.Uniq(names) {
		tag, err := s.tags.GetOrCreate(ctx, name)
		if err != nil {
			return fmt.Errorf("get or create tag %q: %w", name, err)
		}
		ids = append(ids, tag.ID)
	}
	if err := s.notes.ReplaceTags(ctx, noteID, ids); err != nil {
		return fmt.Errorf("replace tags: %w", err)
	}
	return nil
}

func (s *NoteService) detail(ctx context.Context, note *models.Note) (*NoteDetail, error) {
	projectIDs, err := s.notes.ListProjectIDs(ctx, note.ID)
	if err != nil {
		return nil, fmt.Errorf("list note projects: %w", err)
	}
	areaIDs, err := s.notes.ListAreaIDs(ctx, note.ID)
	if err != nil {
		return nil, fmt.Errorf("list note areas: %w", err)
	}
	tags, err := s.notes.ListTags(ctx, note.ID)
	if err != nil {
		return nil, fmt.Errorf("list note tags: %w", err)
	}
	return &NoteDetail{Note: *note, ProjectIDs: projectIDs, AreaIDs: areaIDs, Tags: tags}, nil
}
