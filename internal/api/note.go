package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/middleware"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/lalith-99/parabrain/internal/service"
	"go.uber.org/zap"
)

// NoteHandler serves /v1/notes and /v1/tags. Everything that crosses
// into projects, areas or tags goes through service.NoteService, which
// owns the same-owner rule.
type NoteHandler struct {
	svc    *service.NoteService
	tags   repository.TagRepository
	logger *zap.Logger
}

func NewNoteHandler(svc *service.NoteService, tags repository.TagRepository, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{svc: svc, tags: tags, logger: logger}
}

// createNoteRequest has no summary field: the summary is always derived
// from the content.
type createNoteRequest struct {
	UserID     uuid.UUID   `json:"user_id" binding:"required"`
	Title      string      `json:"title" binding:"required"`
	Content    string      `json:"content"`
	Pinned     bool        `json:"pinned"`
	ProjectIDs []uuid.UUID `json:"project_ids"`
	AreaIDs    []uuid.UUID `json:"area_ids"`
	TagNames   []string    `json:"tag_names"`
}

type addTagRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create handles POST /v1/notes
func (h *NoteHandler) Create(c *gin.Context) {
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), req.UserID) {
		return
	}

	note, err := h.svc.Create(c.Request.Context(), service.CreateNoteInput{
		UserID:     req.UserID,
		Title:      req.Title,
		Content:    req.Content,
		Pinned:     req.Pinned,
		ProjectIDs: req.ProjectIDs,
		AreaIDs:    req.AreaIDs,
		TagNames:   req.TagNames,
	})
	if err != nil {
		respondError(c, h.logger, "failed to create note", err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// ListByUser handles GET /v1/notes/user/:userId
func (h *NoteHandler) ListByUser(c *gin.Context) {
	userID, ok := uuidParam(c, "userId", "user")
	if !ok {
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), userID) {
		return
	}

	notes, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "failed to list notes", err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

// Get handles GET /v1/notes/:id
func (h *NoteHandler) Get(c *gin.Context) {
	note, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, note)
}

// Update handles PUT /v1/notes/:id
//
// project_ids, area_ids and tag_names replace the whole set when present
// (an empty list clears it) and leave it alone when absent.
func (h *NoteHandler) Update(c *gin.Context) {
	existing, ok := h.load(c)
	if !ok {
		return
	}

	var patch models.NotePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if title, set := patch.Title.Get(); set && title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title must not be empty"})
		return
	}

	note, err := h.svc.Update(c.Request.Context(), existing.ID, patch)
	if err != nil {
		respondError(c, h.logger, "failed to update note", err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// Delete handles DELETE /v1/notes/:id
func (h *NoteHandler) Delete(c *gin.Context) {
	note, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), note.ID); err != nil {
		respondError(c, h.logger, "failed to delete note", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AttachProject handles POST /v1/notes/:id/projects/:projectId
func (h *NoteHandler) AttachProject(c *gin.Context) {
	noteID, projectID, ok := h.pair(c, "projectId", "project")
	if !ok {
		return
	}
	if err := h.svc.AttachProject(c.Request.Context(), noteID, projectID); err != nil {
		respondError(c, h.logger, "failed to attach project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "note attached to project"})
}

// DetachProject handles DELETE /v1/notes/:id/projects/:projectId
func (h *NoteHandler) DetachProject(c *gin.Context) {
	noteID, projectID, ok := h.pair(c, "projectId", "project")
	if !ok {
		return
	}
	if err := h.svc.DetachProject(c.Request.Context(), noteID, projectID); err != nil {
		respondError(c, h.logger, "failed to detach project", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AttachArea handles POST /v1/notes/:id/areas/:areaId
func (h *NoteHandler) AttachArea(c *gin.Context) {
	noteID, areaID, ok := h.pair(c, "areaId", "area")
	if !ok {
		return
	}
	if err := h.svc.AttachArea(c.Request.Context(), noteID, areaID); err != nil {
		respondError(c, h.logger, "failed to attach area", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "note attached to area"})
}

// DetachArea handles DELETE /v1/notes/:id/areas/:areaId
func (h *NoteHandler) DetachArea(c *gin.Context) {
	noteID, areaID, ok := h.pair(c, "areaId", "area")
	if !ok {
		return
	}
	if err := h.svc.DetachArea(c.Request.Context(), noteID, areaID); err != nil {
		respondError(c, h.logger, "failed to detach area", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTags handles GET /v1/notes/:id/tags
func (h *NoteHandler) ListTags(c *gin.Context) {
	note, ok := h.load(c)
	if !ok {
		return
	}
	tags, err := h.svc.ListTags(c.Request.Context(), note.ID)
	if err != nil {
		respondError(c, h.logger, "failed to list tags", err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// AddTag handles POST /v1/notes/:id/tags
func (h *NoteHandler) AddTag(c *gin.Context) {
	note, ok := h.load(c)
	if !ok {
		return
	}
	var req addTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := h.svc.AddTag(c.Request.Context(), note.ID, req.Name)
	if err != nil {
		respondError(c, h.logger, "failed to add tag", err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// RemoveTag handles DELETE /v1/notes/:id/tags/:name
func (h *NoteHandler) RemoveTag(c *gin.Context) {
	note, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveTag(c.Request.Context(), note.ID, c.Param("name")); err != nil {
		respondError(c, h.logger, "failed to remove tag", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AllTags handles GET /v1/tags
func (h *NoteHandler) AllTags(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "failed to list tags", err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// load resolves :id to a note the caller owns, or writes the error
// response itself.
func (h *NoteHandler) load(c *gin.Context) (*service.NoteDetail, bool) {
	id, ok := uuidParam(c, "id", "note")
	if !ok {
		return nil, false
	}
	note, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "failed to get note", err)
		return nil, false
	}
	if forbidOtherUser(c, middleware.GetUserID(c), note.UserID) {
		return nil, false
	}
	return note, true
}

// pair parses :id and the named link parameter. The service checks that
// both sides share an owner; the caller is checked against the note here.
func (h *NoteHandler) pair(c *gin.Context, param, label string) (uuid.UUID, uuid.UUID, bool) {
	noteID, ok := uuidParam(c, "id", "note")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	otherID, ok := uuidParam(c, param, label)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	if caller := middleware.GetUserID(c); caller != uuid.Nil {
		note, err := h.svc.Get(c.Request.Context(), noteID)
		if err != nil {
			respondError(c, h.logger, "failed to get note", err)
			return uuid.Nil, uuid.Nil, false
		}
		if forbidOtherUser(c, caller, note.UserID) {
			return uuid.Nil, uuid.Nil, false
		}
	}
	return noteID, otherID, true
}
