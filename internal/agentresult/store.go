// Package agentresult keeps the latest output external agent workflows
// push back (todo lists, analyses, plans...), per kind and optionally per
// project. Only the most recent result of each (kind, project) is kept.
package agentresult

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/models"
)

// Kinds lists the result kinds the API accepts.
var Kinds = []string{"todos", "analysis", "objectives", "advices", "deadlines", "planning"}

func ValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Store interface {
	// Save records r as the latest for (r.Kind, r.ProjectID). A result
	// with a project also becomes the latest unscoped one for its kind.
	Save(ctx context.Context, r models.AgentResult) error

	// Latest returns nil, nil when nothing was saved yet.
	Latest(ctx context.Context, kind string, projectID *uuid.UUID) (*models.AgentResult, error)
}

func scopeKey(kind string, projectID *uuid.UUID) string {
	if projectID == nil {
		return "agent:result:" + kind
	}
	return "agent:result:" + kind + ":" + projectID.String()
}

// MemoryStore is used when no Redis URL is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]models.AgentResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: map[string]models.AgentResult{}}
}

func (s *MemoryStore) Save(_ context.Context, r models.AgentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[scopeKey(r.Kind, nil)] = r
	if r.ProjectID != nil {
		s.results[scopeKey(r.Kind, r.ProjectID)] = r
	}
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, kind string, projectID *uuid.UUID) (*models.AgentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[scopeKey(kind, projectID)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
