package grantedtoken

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"authserver/internal/oauth/models"
	"authserver/internal/platform/metrics"
	"authserver/pkg/platform/sentinel"
)

const (
	tokenKeyPrefix = "grant:token:"
	codeKeyPrefix  = "grant:code:"
	storeLabel     = "granted_token_redis"

	// codeIndexTTL outlives every token of a grant; stale entries are skipped on read.
	codeIndexTTL = models.DefaultRefreshTokenLifetime
)

// RedisGrantedTokenStore shares issued tokens across instances. Records expire
// with the token they describe.
type RedisGrantedTokenStore struct {
	client  *redis.Client
	metrics *metrics.Metrics
	now     func() time.Time
}

type RedisOption func(*RedisGrantedTokenStore)

func WithMetrics(m *metrics.Metrics) RedisOption {
	return func(s *RedisGrantedTokenStore) { s.metrics = m }
}

// WithClock overrides the clock used to derive key TTLs.
func WithClock(now func() time.Time) RedisOption {
	return func(s *RedisGrantedTokenStore) { s.now = now }
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisGrantedTokenStore {
	s := &RedisGrantedTokenStore{client: client, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// tokenKey hashes the token so keys stay short for large JWTs.
func tokenKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return tokenKeyPrefix + hex.EncodeToString(sum[:])
}

func (s *RedisGrantedTokenStore) Put(ctx context.Context, token *models.GrantedToken) error {
	defer s.observe("put", time.Now())
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode granted token: %w", err)
	}
	ttl := time.Duration(0)
	if !token.ExpiresAt.IsZero() {
		ttl = token.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return fmt.Errorf("granted token already expired: %w", sentinel.ErrExpired)
		}
	}
	key := tokenKey(token.Value)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, payload, ttl)
	if token.AuthorizationCode != "" {
		codeKey := codeKeyPrefix + token.AuthorizationCode
		pipe.RPush(ctx, codeKey, key)
		pipe.Expire(ctx, codeKey, codeIndexTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store granted token: %w", err)
	}
	return nil
}

func (s *RedisGrantedTokenStore) Get(ctx context.Context, value string) (*models.GrantedToken, error) {
	defer s.observe("get", time.Now())
	return s.load(ctx, tokenKey(value))
}

func (s *RedisGrantedTokenStore) FindByAuthorizationCode(ctx context.Context, code string) ([]*models.GrantedToken, error) {
	defer s.observe("find_by_code", time.Now())
	keys, err := s.client.LRange(ctx, codeKeyPrefix+code, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list granted tokens: %w", err)
	}
	out := make([]*models.GrantedToken, 0, len(keys))
	for _, key := range keys {
		token, err := s.load(ctx, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, token)
	}
	return out, nil
}

func (s *RedisGrantedTokenStore) load(ctx context.Context, key string) (*models.GrantedToken, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("granted token not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load granted token: %w", err)
	}
	var token models.GrantedToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("decode granted token: %w", err)
	}
	return &token, nil
}

func (s *RedisGrantedTokenStore) observe(op string, start time.Time) {
	s.metrics.ObserveStoreLatency(storeLabel, op, time.Since(start))
}
