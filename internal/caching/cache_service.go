package caching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedisClient accepts either host:port or a redis:// / rediss:// address.
func NewRedisClient(addr, password string, db int) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsedAddr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Str("addr", parsedAddr).Msg("Redis ping failed on initialization")
	} else {
		log.Debug().Str("addr", parsedAddr).Msg("Redis connection established")
	}

	return client
}

// SessionStore keeps per-session state. Only the selected tenant lives here.
type SessionStore interface {
	GetTenant(ctx context.Context, sessionID string) (uuid.UUID, error)
	SetTenant(ctx context.Context, sessionID string, tenantID uuid.UUID) error
	ClearTenant(ctx context.Context, sessionID string) error
}

type redisSessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSessionStore(client redis.Cmdable, ttl time.Duration) SessionStore {
	return &redisSessionStore{client: client, ttl: ttl}
}

func sessionTenantKey(sessionID string) string {
	return fmt.Sprintf("scangate:session:%s:tenant", sessionID)
}

// GetTenant returns uuid.Nil when the session has no tenant selected.
func (s *redisSessionStore) GetTenant(ctx context.Context, sessionID string) (uuid.UUID, error) {
	val, err := s.client.Get(ctx, sessionTenantKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}

	id, err := uuid.Parse(val)
	if err != nil {
		log.Warn().Str("session_id", sessionID).Msg("Discarding malformed tenant id in session")
		return uuid.Nil, nil
	}
	return id, nil
}

func (s *redisSessionStore) SetTenant(ctx context.Context, sessionID string, tenantID uuid.UUID) error {
	return s.client.Set(ctx, sessionTenantKey(sessionID), tenantID.String(), s.ttl).Err()
}

func (s *redisSessionStore) ClearTenant(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionTenantKey(sessionID)).Err()
}
