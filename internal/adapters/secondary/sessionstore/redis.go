package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces session keys in Redis.
const KeyPrefix = "helpdesk:session:"

// Redis keeps the session under one key per profile, so several kiosks
// can share a login. Keys expire with the token.
type Redis struct {
	client *redis.Client
	key    string
	clock  clockwork.Clock
}

var _ ports.SessionStore = (*Redis)(nil)

// NewRedis stores the session of profile through client.
func NewRedis(client *redis.Client, profile string, clk clockwork.Clock) *Redis {
	if profile == "" {
		profile = "default"
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Redis{client: client, key: KeyPrefix + profile, clock: clk}
}

// Key returns the Redis key in use.
func (r *Redis) Key() string {
	return r.key
}

func (r *Redis) Load(ctx context.Context) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", r.key, err)
	}
	return &session, nil
}

func (r *Redis) Save(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return errors.New("nil session")
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(r.clock.Now())
		if ttl <= 0 {
			return r.Clear(ctx)
		}
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
