package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/apperr"
	"github.com/lalith-99/parabrain/internal/llm"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// TurnRequest is one user message plus everything needed to route it.
type TurnRequest struct {
	UserID         uuid.UUID
	ConversationID string
	ProjectID      *uuid.UUID
	Message        string

	// ProjectContext is ad-hoc project metadata (a JSON object) the client
	// wants the model to see for this turn only. It is never stored.
	ProjectContext json.RawMessage

	Model       string
	Temperature *float64
}

type TurnResult struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id"`
}

// Orchestrator runs chat turns end to end.
type Orchestrator struct {
	convs     repository.ConversationStore
	assembler *Assembler
	llm       llm.Client
	locks     *KeyLock
	logger    *zap.Logger
}

func NewOrchestrator(convs repository.ConversationStore, assembler *Assembler, client llm.Client, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		convs:     convs,
		assembler: assembler,
		llm:       client,
		locks:     NewKeyLock(),
		logger:    logger,
	}
}

// ConversationKey derives the key used when the client doesn't name a
// conversation. Each (user, project) pair gets its own thread, so chats
// about different projects never share history.
func ConversationKey(userID uuid.UUID, projectID *uuid.UUID) string {
	if projectID == nil {
		return userID.String() + "::global"
	}
	return userID.String() + "::proj::" + projectID.String()
}

// HandleTurn stores the user message, asks the LLM and stores the reply.
//
// If the LLM call fails the user message stays in the history and no
// assistant message is written, so the client can retry the same turn.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperr.Validation("message is required")
	}

	if err := o.assembler.CheckProjectOwner(ctx, req.UserID, req.ProjectID); err != nil {
		return nil, err
	}

	key := req.ConversationID
	if key == "" {
		key = ConversationKey(req.UserID, req.ProjectID)
	}

	// Turns on one key run one at a time in this process. The durable
	// store's row lock covers concurrent replicas.
	unlock := o.locks.Lock(key)
	defer unlock()

	conv, err := o.convs.Ensure(ctx, key, req.UserID, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}
	if conv.UserID != req.UserID {
		return nil, apperr.PermissionMismatch("conversation %s belongs to another user", key)
	}

	override, err := renderProjectContext(req.ProjectContext)
	if err != nil {
		return nil, err
	}

	history, err := o.assembler.SyncHistory(ctx, key, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("sync history: %w", err)
	}

	if _, err := o.convs.Append(ctx, key, models.RoleUser, req.Message); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	outbound := buildOutbound(history, override, req.Message)
	reply, err := o.llm.Complete(ctx, outbound, llm.Options{Model: req.Model, Temperature: req.Temperature})
	if err != nil {
		o.logger.Error("chat turn failed at llm call",
			zap.String("conversation_id", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("llm call: %w", err)
	}

	if _, err := o.convs.Append(ctx, key, models.RoleAssistant, reply); err != nil {
		return nil, fmt.Errorf("store assistant reply: %w", err)
	}

	o.logger.Info("chat turn completed",
		zap.String("conversation_id", key),
		zap.String("user_id", req.UserID.String()),
		zap.Int("history_len", len(history)+2),
	)
	return &TurnResult{Reply: reply, ConversationID: key}, nil
}

// buildOutbound orders messages for the LLM: every system message first
// (the stored prompt, then the transient override), then the stored
// user/assistant turns, then the new user message.
func buildOutbound(history []models.ChatMessage, override, message string) []llm.Message {
	system, turns := lo.FilterReject(history, func(m models.ChatMessage, _ int) bool {
		return m.Role == models.RoleSystem
	})

	out := make([]llm.Message, 0, len(history)+2)
	for i, m := range system {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
		if i == 0 && override != "" {
			out = append(out, llm.Message{Role: models.RoleSystem, Content: override})
		}
	}
	for _, m := range turns {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(out, llm.Message{Role: models.RoleUser, Content: message})
}

// renderProjectContext turns the client's project_context object into a
// system message. Empty input yields "".
func renderProjectContext(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return "", fmt.Errorf("malformed project_context: %w", err)
	}
	if len(fields) == 0 {
		return "", nil
	}

	keys := lo.Keys(fields)
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Additional project context for this message:")
	for _, k := range keys {
		b.WriteString("\n- " + k + ": " + formatValue(fields[k]))
	}
	return b.String(), nil
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
