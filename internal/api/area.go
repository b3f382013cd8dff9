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

// AreaHandler serves /v1/areas.
type AreaHandler struct {
	users  repository.UserRepository
	repo   repository.AreaRepository
	notes  *service.NoteService
	logger *zap.Logger
}

func NewAreaHandler(users repository.UserRepository, repo repository.AreaRepository, notes *service.NoteService, logger *zap.Logger) *AreaHandler {
	return &AreaHandler{users: users, repo: repo, notes: notes, logger: logger}
}

type createAreaRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	Name        string    `json:"name" binding:"required"`
	Description *string   `json:"description"`
	Color       *string   `json:"color"`
}

// Create handles POST /v1/areas
func (h *AreaHandler) Create(c *gin.Context) {
	var req createAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), req.UserID) {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, h.logger, "failed to create area", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	area := models.Area{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	}
	if err := h.repo.Create(c.Request.Context(), &area); err != nil {
		respondError(c, h.logger, "failed to create area", err)
		return
	}
	c.JSON(http.StatusCreated, area)
}

// ListByUser handles GET /v1/areas/user/:userId
func (h *AreaHandler) ListByUser(c *gin.Context) {
	userID, ok := uuidParam(c, "userId", "user")
	if !ok {
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), userID) {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "failed to list areas", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	areas, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "failed to list areas", err)
		return
	}
	c.JSON(http.StatusOK, areas)
}

// Get handles GET /v1/areas/:id
func (h *AreaHandler) Get(c *gin.Context) {
	area, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, area)
}

// Update handles PUT /v1/areas/:id
func (h *AreaHandler) Update(c *gin.Context) {
	existing, ok := h.load(c)
	if !ok {
		return
	}

	var patch models.AreaPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if name, set := patch.Name.Get(); set && name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}

	area, err := h.repo.Update(c.Request.Context(), existing.ID, patch)
	if err != nil {
		respondError(c, h.logger, "failed to update area", err)
		return
	}
	c.JSON(http.StatusOK, area)
}

// Delete handles DELETE /v1/areas/:id
func (h *AreaHandler) Delete(c *gin.Context) {
	area, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), area.ID); err != nil {
		respondError(c, h.logger, "failed to delete area", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Notes handles GET /v1/areas/:id/notes
func (h *AreaHandler) Notes(c *gin.Context) {
	area, ok := h.load(c)
	if !ok {
		return
	}
	links, err := h.notes.AreaNotes(c.Request.Context(), area.ID)
	if err != nil {
		respondError(c, h.logger, "failed to list area notes", err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// AttachNote handles POST /v1/areas/:id/notes/:noteId
func (h *AreaHandler) AttachNote(c *gin.Context) {
	area, ok := h.load(c)
	if !ok {
		return
	}
	noteID, ok := uuidParam(c, "noteId", "note")
	if !ok {
		return
	}
	if err := h.notes.AttachArea(c.Request.Context(), noteID, area.ID); err != nil {
		respondError(c, h.logger, "failed to attach note", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "note attached to area"})
}

// DetachNote handles DELETE /v1/areas/:id/notes/:noteId
func (h *AreaHandler) DetachNote(c *gin.Context) {
	area, ok := h.load(c)
	if !ok {
		return
	}
	noteID, ok := uuidParam(c, "noteId", "note")
	if !ok {
		return
	}
	if err := h.notes.DetachArea(c.Request.Context(), noteID, area.ID); err != nil {
		respondError(c, h.logger, "failed to detach note", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AreaHandler) load(c *gin.Context) (*models.Area, bool) {
	id, ok := uuidParam(c, "id", "area")
	if !ok {
		return nil, false
	}
	area, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "failed to get area", err)
		return nil, false
	}
	if area == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "area not found"})
		return nil, false
	}
	if forbidOtherUser(c, middleware.GetUserID(c), area.UserID) {
		return nil, false
	}
	return area, true
}
