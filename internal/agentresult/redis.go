package agentresult

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps results in Redis so every server replica sees the same
// latest value, and results survive a restart.
//
// Why Redis and not a Postgres table?
//   - It's a "last write wins" cache of opaque JSON blobs. No joins, no
//     history, no relational integrity to enforce. A SET per scope is the
//     whole data model.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects using a redis:// URL and pings the server.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, r models.AgentResult) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal agent result: %w", err)
	}

	// MULTI/EXEC so readers never see the project-scoped key updated
	// without the kind-wide one.
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, scopeKey(r.Kind, nil), b, 0)
	if r.ProjectID != nil {
		pipe.Set(ctx, scopeKey(r.Kind, r.ProjectID), b, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save agent result: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, kind string, projectID *uuid.UUID) (*models.AgentResult, error) {
	b, err := s.rdb.Get(ctx, scopeKey(kind, projectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get agent result: %w", err)
	}

	var r models.AgentResult
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode agent result: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
