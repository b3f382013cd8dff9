package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
)

// ConversationStore is the volatile chat history backing.
//
// Why a lock per conversation on top of the map lock?
//   - The map lock is held only long enough to find (or create) the
//     conversation. Appends then take that conversation's own mutex, so
//     two users chatting at once never wait on each other while writes
//     to the same key stay strictly ordered.
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[string]*conversation
	seq   atomic.Int64
	now   func() time.Time
}

type conversation struct {
	mu       sync.Mutex
	meta     models.Conversation
	messages []models.ChatMessage
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		convs: map[string]*conversation{},
		now:   monotonicNow(),
	}
}

func (s *ConversationStore) lookup(key string) (*conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[key]
	return c, ok
}

func (s *ConversationStore) nextID() int64 {
	return s.seq.Add(1)
}

func (s *ConversationStore) Ensure(_ context.Context, key string, userID uuid.UUID, projectID *uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[key]
	if !ok {
		now := s.now()
		c = &conversation{
			meta: models.Conversation{
				Key:       key,
				UserID:    userID,
				ProjectID: projectID,
				CreatedAt: now,
				UpdatedAt: now,
			},
			messages: make([]models.ChatMessage, 0),
		}
		s.convs[key] = c
	}

	c.mu.Lock()
	meta := c.meta
	c.mu.Unlock()
	return &meta, nil
}

func (s *ConversationStore) Get(_ context.Context, key string) (*models.Conversation, error) {
	c, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	c.mu.Lock()
	meta := c.meta
	c.mu.Unlock()
	return &meta, nil
}

func (s *ConversationStore) Append(_ context.Context, key string, role models.Role, content string) (*models.ChatMessage, error) {
	c, ok := s.lookup(key)
	if !ok {
		return nil, repository.ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msg := models.ChatMessage{
		ID:              s.nextID(),
		ConversationKey: key,
		Role:            role,
		Content:         content,
		CreatedAt:       s.now(),
	}
	c.messages = append(c.messages, msg)
	c.meta.UpdatedAt = msg.CreatedAt
	return &msg, nil
}

func (s *ConversationStore) Read(_ context.Context, key string) ([]models.ChatMessage, error) {
	c, ok := s.lookup(key)
	if !ok {
		return nil, repository.ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out, nil
}

func (s *ConversationStore) ReplaceLeadingSystem(_ context.Context, key string, content string) error {
	c, ok := s.lookup(key)
	if !ok {
		return repository.ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := s.now()
	if len(c.messages) > 0 && c.messages[0].Role == models.RoleSystem {
		c.messages[0].Content = content
	} else {
		msg := models.ChatMessage{
			ID:              s.nextID(),
			ConversationKey: key,
			Role:            models.RoleSystem,
			Content:         content,
			CreatedAt:       now,
		}
		c.messages = append([]models.ChatMessage{msg}, c.messages...)
	}
	c.meta.UpdatedAt = now
	return nil
}

func (s *ConversationStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	s.mu.RLock()
	all := make([]*conversation, 0, len(s.convs))
	for _, c := range s.convs {
		all = append(all, c)
	}
	s.mu.RUnlock()

	convs := make([]models.Conversation, 0)
	for _, c := range all {
		c.mu.Lock()
		meta := c.meta
		c.mu.Unlock()
		if meta.UserID == userID {
			convs = append(convs, meta)
		}
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (s *ConversationStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.convs, key)
	return nil
}

func (s *ConversationStore) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, c := range s.convs {
		c.mu.Lock()
		owner := c.meta.UserID
		c.mu.Unlock()
		if owner == userID {
			delete(s.convs, key)
		}
	}
	return nil
}
