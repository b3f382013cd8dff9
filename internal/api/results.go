package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/agentresult"
	"github.com/lalith-99/parabrain/internal/models"
	"go.uber.org/zap"
)

// resultScope is the only part of an agent payload the server reads;
// the rest is stored as-is.
type resultScope struct {
	ProjectID *uuid.UUID `json:"project_id"`
}

// SaveResult handles POST /v1/agent/results/:kind
//
// Called by the automation workflow when an agent finishes. The body is
// any JSON object; an optional "project_id" scopes it to a project.
func (h *AgentHandler) SaveResult(c *gin.Context) {
	kind := c.Param("kind")
	if !agentresult.ValidKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown result kind"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	var scope resultScope
	if err := json.Unmarshal(body, &scope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object: " + err.Error()})
		return
	}

	result := models.AgentResult{
		Kind:       kind,
		ProjectID:  scope.ProjectID,
		Payload:    json.RawMessage(body),
		ReceivedAt: time.Now().UTC(),
	}
	if err := h.results.Save(c.Request.Context(), result); err != nil {
		respondError(c, h.logger, "failed to save agent result", err)
		return
	}

	h.logger.Info("agent result received",
		zap.String("kind", kind),
		zap.Bool("project_scoped", scope.ProjectID != nil),
	)
	c.JSON(http.StatusCreated, result)
}

// LatestResult handles GET /v1/agent/results/:kind/latest?project_id=
func (h *AgentHandler) LatestResult(c *gin.Context) {
	kind := c.Param("kind")
	if !agentresult.ValidKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown result kind"})
		return
	}

	var projectID *uuid.UUID
	if raw := c.Query("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}
		projectID = &id
	}

	result, err := h.results.Latest(c.Request.Context(), kind, projectID)
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
