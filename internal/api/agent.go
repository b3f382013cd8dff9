package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/parabrain/internal/agentresult"
	"github.com/lalith-99/parabrain/internal/apperr"
	"github.com/lalith-99/parabrain/internal/chat"
	"github.com/lalith-99/parabrain/internal/middleware"
	"github.com/lalith-99/parabrain/internal/repository"
	"go.uber.org/zap"
)

// AgentHandler serves /v1/agent: chat turns (HTTP and WebSocket),
// conversation history and the results pushed back by external agents.
type AgentHandler struct {
	orch     *chat.Orchestrator
	convs    repository.ConversationStore
	results  agentresult.Store
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewAgentHandler(
	orch *chat.Orchestrator,
	convs repository.ConversationStore,
	results agentresult.Store,
	allowedOrigins []string,
	logger *zap.Logger,
) *AgentHandler {
	return &AgentHandler{
		orch:     orch,
		convs:    convs,
		results:  results,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin(allowedOrigins)},
		logger:   logger,
	}
}

// ConversationRef is a conversation key as sent by clients. Older
// frontends send it as a number, so both JSON strings and numbers are
// accepted; null and "" mean "derive the key".
type ConversationRef string

func (r *ConversationRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ConversationRef(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("conversation_id must be a string or a number")
	}
	*r = ConversationRef(n.String())
	return nil
}

type chatRequest struct {
	UserID         uuid.UUID       `json:"user_id" binding:"required"`
	ConversationID ConversationRef `json:"conversation_id"`
	ProjectID      *uuid.UUID      `json:"project_id"`
	Message        string          `json:"message" binding:"required"`
	ProjectContext json.RawMessage `json:"project_context"`
	Model          string          `json:"model"`
	Temperature    *float64        `json:"temperature" binding:"omitempty,gte=0,lte=2"`
}

func (r chatRequest) turn() chat.TurnRequest {
	return chat.TurnRequest{
		UserID:         r.UserID,
		ConversationID: string(r.ConversationID),
		ProjectID:      r.ProjectID,
		Message:        r.Message,
		ProjectContext: r.ProjectContext,
		Model:          r.Model,
		Temperature:    r.Temperature,
	}
}

type deleteConversationRequest struct {
	UserID         uuid.UUID       `json:"user_id" binding:"required"`
	ConversationID ConversationRef `json:"conversation_id" binding:"required"`
}

// Chat handles POST /v1/agent/chat
func (h *AgentHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), req.UserID) {
		return
	}

	res, err := h.orch.HandleTurn(c.Request.Context(), req.turn())
	if err != nil {
		c.JSON(chatStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// chatStatus maps a failed turn to a status code.
//
// Why include err.Error() and use 500 for everything that isn't the
// caller's fault?
//   - A chat failure is usually the LLM (quota, key, model name). The
//     frontend shows the cause to the user, who can fix config or retry.
func chatStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPermissionMismatch:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// History handles GET /v1/agent/history/:conversationId
func (h *AgentHandler) History(c *gin.Context) {
	key := c.Param("conversationId")

	conv, err := h.convs.Get(c.Request.Context(), key)
	if err != nil {
		respondError(c, h.logger, "failed to load conversation", err)
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), conv.UserID) {
		return
	}

	messages, err := h.convs.Read(c.Request.Context(), key)
	if err != nil {
		respondError(c, h.logger, "failed to load conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": key, "messages": messages})
}

// Conversations handles GET /v1/agent/conversations/user/:userId
func (h *AgentHandler) Conversations(c *gin.Context) {
	userID, ok := uuidParam(c, "userId", "user")
	if !ok {
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), userID) {
		return
	}

	convs, err := h.convs.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "failed to list conversations", err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// DeleteConversation handles DELETE /v1/agent/conversation
//
// The body names the owner as well as the key, so one user can't wipe
// another's history by guessing keys.
func (h *AgentHandler) DeleteConversation(c *gin.Context) {
	var req deleteConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), req.UserID) {
		return
	}
	key := string(req.ConversationID)

	conv, err := h.convs.Get(c.Request.Context(), key)
	if err != nil {
		respondError(c, h.logger, "failed to delete conversation", err)
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if conv.UserID != req.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "conversation belongs to another user"})
		return
	}

	if err := h.convs.Delete(c.Request.Context(), key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		respondError(c, h.logger, "failed to delete conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}
