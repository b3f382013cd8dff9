package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/agentresult"
	"github.com/lalith-99/parabrain/internal/middleware"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/notify"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/lalith-99/parabrain/internal/service"
	"go.uber.org/zap"
)

// ProjectHandler serves /v1/projects. Lifecycle changes are pushed to the
// automation webhook after the write commits.
type ProjectHandler struct {
	users    repository.UserRepository
	repo     repository.ProjectRepository
	notes    *service.NoteService
	results  agentresult.Store
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewProjectHandler(
	users repository.UserRepository,
	repo repository.ProjectRepository,
	notes *service.NoteService,
	results agentresult.Store,
	notifier notify.Notifier,
	logger *zap.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		users:    users,
		repo:     repo,
		notes:    notes,
		results:  results,
		notifier: notifier,
		logger:   logger,
	}
}

// createProjectRequest leaves out id, status and timestamps: a new
// project always starts ACTIVE today.
type createProjectRequest struct {
	UserID         uuid.UUID  `json:"user_id" binding:"required"`
	Name           string     `json:"name" binding:"required"`
	Description    *string    `json:"description"`
	Context        *string    `json:"context"`
	Color          *string    `json:"color"`
	Priority       int        `json:"priority"`
	PlannedEndDate *time.Time `json:"planned_end_date"`
}

// Create handles POST /v1/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), req.UserID) {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, h.logger, "failed to create project", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	project := models.Project{
		ID:             uuid.New(),
		UserID:         req.UserID,
		Name:           req.Name,
		Description:    req.Description,
		Context:        req.Context,
		Color:          req.Color,
		Priority:       req.Priority,
		Status:         models.ProjectActive,
		PlannedEndDate: req.PlannedEndDate,
	}
	if err := h.repo.Create(c.Request.Context(), &project); err != nil {
		respondError(c, h.logger, "failed to create project", err)
		return
	}

	h.notifier.Notify(notify.EventProjectCreated, project.ID, nil)
	c.JSON(http.StatusCreated, project)
}

// ListByUser handles GET /v1/projects/user/:userId
func (h *ProjectHandler) ListByUser(c *gin.Context) {
	userID, ok := uuidParam(c, "userId", "user")
	if !ok {
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), userID) {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "failed to list projects", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	projects, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "failed to list projects", err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Get handles GET /v1/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// Update handles PUT /v1/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	existing, ok := h.load(c)
	if !ok {
		return
	}

	var patch models.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if status, set := patch.Status.Get(); set && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be ACTIVE, PAUSED or COMPLETED"})
		return
	}
	if name, set := patch.Name.Get(); set && name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}

	project, err := h.repo.Update(c.Request.Context(), existing.ID, patch)
	if err != nil {
		respondError(c, h.logger, "failed to update project", err)
		return
	}

	h.notifier.Notify(notify.EventProjectUpdated, project.ID, nil)
	c.JSON(http.StatusOK, project)
}

// Delete handles DELETE /v1/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), project.ID); err != nil {
		respondError(c, h.logger, "failed to delete project", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Notes handles GET /v1/projects/:id/notes
func (h *ProjectHandler) Notes(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	links, err := h.notes.ProjectNotes(c.Request.Context(), project.ID)
	if err != nil {
		respondError(c, h.logger, "failed to list project notes", err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// AttachNote handles POST /v1/projects/:id/notes/:noteId
func (h *ProjectHandler) AttachNote(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	noteID, ok := uuidParam(c, "noteId", "note")
	if !ok {
		return
	}
	if err := h.notes.AttachProject(c.Request.Context(), noteID, project.ID); err != nil {
		respondError(c, h.logger, "failed to attach note", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "note attached to project"})
}

// DetachNote handles DELETE /v1/projects/:id/notes/:noteId
func (h *ProjectHandler) DetachNote(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	noteID, ok := uuidParam(c, "noteId", "note")
	if !ok {
		return
	}
	if err := h.notes.DetachProject(c.Request.Context(), noteID, project.ID); err != nil {
		respondError(c, h.logger, "failed to detach note", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Trigger handles POST /v1/projects/:id/trigger
//
// Asks the automation workflow to (re)run its agents for the project.
// The results come back later through POST /v1/agent/results/:kind.
func (h *ProjectHandler) Trigger(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	h.notifier.Notify(notify.EventProjectTriggered, project.ID, map[string]any{"name": project.Name})
	c.JSON(http.StatusAccepted, gin.H{"message": "workflow triggered", "project_id": project.ID})
}

// AgentResult handles GET /v1/projects/:id/agent/:kind
func (h *ProjectHandler) AgentResult(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	kind := c.Param("kind")
	if !agentresult.ValidKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown result kind"})
		return
	}

	result, err := h.results.Latest(c.Request.Context(), kind, &project.ID)
	if err != nil {
		respondError(c, h.logger, "failed to load agent result", err)
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no result yet"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// load resolves :id to a project the caller owns, or writes the
// 400/403/404/500 itself.
func (h *ProjectHandler) load(c *gin.Context) (*models.Project, bool) {
	id, ok := uuidParam(c, "id", "project")
	if !ok {
		return nil, false
	}
	project, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "failed to get project", err)
		return nil, false
	}
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return nil, false
	}
	if forbidOtherUser(c, middleware.GetUserID(c), project.UserID) {
		return nil, false
	}
	return project, true
}
