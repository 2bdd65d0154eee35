package session

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "funnel:session:"

// releaseScript deletes the lock only if it still carries our token,
// so an expired lock taken over by another request is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps sessions in Redis with a sliding idle TTL.
type RedisStore struct {
	rdb     *redis.Client
	idleTTL time.Duration
	lockTTL time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, cfg config.SessionConfig) *RedisStore {
	return &RedisStore{
		rdb:     rdb,
		idleTTL: cfg.GetSessionIdleTTL(),
		lockTTL: cfg.GetInFlightTTL(),
	}
}

// NewRedisClient builds a client from a redis:// or rediss:// URL.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

func stateKey(id uuid.UUID) string { return keyPrefix + id.String() }

func lockKey(id uuid.UUID) string { return keyPrefix + id.String() + ":lock" }

func (s *RedisStore) Load(ctx context.Context, id uuid.UUID) (domain.State, error) {
	raw, err := s.rdb.Get(ctx, stateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.State{}, ErrNotFound
	}
	if err != nil {
		return domain.State{}, fmt.Errorf("load session: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.State{}, fmt.Errorf("decode session: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, state domain.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKey(state.SessionID), raw, s.idleTTL).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.rdb.Del(ctx, stateKey(id), lockKey(id)).Err()
}

func (s *RedisStore) Lock(ctx context.Context, id uuid.UUID) (Unlock, error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, lockKey(id), token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled when the handler returns.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, s.rdb, []string{lockKey(id)}, token).Err()
		})
	}, nil
}
