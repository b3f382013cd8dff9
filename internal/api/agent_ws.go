package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/parabrain/internal/middleware"
	"go.uber.org/zap"
)

const (
	wsMaxMessageBytes = 64 << 10
	wsWriteTimeout    = 10 * time.Second
)

// wsReply is one outbound frame: either the turn result or an error.
type wsReply struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Reply          string `json:"reply,omitempty"`
	Error          string `json:"error,omitempty"`
}

// checkOrigin applies the CORS origin list to the WebSocket handshake,
// which browsers don't subject to CORS.
func checkOrigin(allowed []string) func(*http.Request) bool {
	if middleware.AllowsAnyOrigin(allowed) {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) || strings.EqualFold(o, u.Scheme+"://"+u.Host) {
				return true
			}
		}
		return false
	}
}

// ChatWS handles GET /v1/agent/ws
//
// Each text frame is a chat request with the same JSON shape as
// POST /v1/agent/chat; each reply frame is a wsReply. Frames on one
// connection are processed in order, one turn at a time.
//
// Why one goroutine per connection and no separate writer?
//   - The protocol is strictly request/response, so there is never more
//     than one outbound frame in flight and gorilla's single-writer rule
//     holds without extra locking.
func (h *AgentHandler) ChatWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageBytes)

	caller := middleware.GetUserID(c)
	ctx := c.Request.Context()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			if err := h.writeFrame(conn, wsReply{Error: "expected a text frame"}); err != nil {
				return
			}
			continue
		}

		if err := h.writeFrame(conn, h.wsTurn(c, caller, data)); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (h *AgentHandler) wsTurn(c *gin.Context, caller uuid.UUID, data []byte) wsReply {
	var req chatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsReply{Error: "invalid request: " + err.Error()}
	}
	if err := validateChatRequest(req); err != nil {
		return wsReply{Error: err.Error()}
	}
	if caller != uuid.Nil && caller != req.UserID {
		return wsReply{Error: "resource belongs to another user"}
	}

	res, err := h.orch.HandleTurn(c.Request.Context(), req.turn())
	if err != nil {
		return wsReply{Error: err.Error()}
	}
	return wsReply{ConversationID: res.ConversationID, Reply: res.Reply}
}

// validateChatRequest mirrors the binding tags of chatRequest for frames
// that don't go through gin's binder.
func validateChatRequest(req chatRequest) error {
	if req.UserID == uuid.Nil {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errors.New("message is required")
	}
	if t := req.Temperature; t != nil && (*t < 0 || *t > 2) {
		return errors.New("temperature must be between 0 and 2")
	}
	return nil
}

func (h *AgentHandler) writeFrame(conn *websocket.Conn, reply wsReply) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(reply)
}
