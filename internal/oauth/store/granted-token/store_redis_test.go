package grantedtoken

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"authserver/internal/oauth/models"
	"authserver/internal/platform/metrics"
	"authserver/pkg/platform/sentinel"
)

type RedisStoreSuite struct {
	suite.Suite
	mr    *miniredis.Miniredis
	store *RedisGrantedTokenStore
	ctx   context.Context
	now   time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	s.now = time.Now()
	s.store = NewRedis(client,
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithClock(func() time.Time { return s.now }),
	)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) token(value, code string, ttl time.Duration) *models.GrantedToken {
	return &models.GrantedToken{
		Value:             value,
		Type:              models.TokenTypeRefresh,
		ClientID:          "client-1",
		AuthorizationCode: code,
		Subject:           "alice",
		Scopes:            []string{"openid", "accounts"},
		IssuedAt:          s.now.Truncate(time.Second),
		ExpiresAt:         s.now.Add(ttl).Truncate(time.Second),
		Request:           &models.AuthorizationRequest{ClientID: "client-1", Scopes: []string{"openid", "accounts"}},
	}
}

func (s *RedisStoreSuite) TestPutGet() {
	s.Run("round trip keeps the request snapshot", func() {
		s.Require().NoError(s.store.Put(s.ctx, s.token("rt-1", "code-1", time.Hour)))
		got, err := s.store.Get(s.ctx, "rt-1")
		s.Require().NoError(err)
		s.Equal("client-1", got.ClientID)
		s.Equal("code-1", got.AuthorizationCode)
		s.Equal([]string{"openid", "accounts"}, got.Request.Scopes)
	})

	s.Run("missing token is ErrNotFound", func() {
		_, err := s.store.Get(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("already expired token is rejected", func() {
		err := s.store.Put(s.ctx, s.token("rt-old", "", -time.Minute))
		s.ErrorIs(err, sentinel.ErrExpired)
	})
}

func (s *RedisStoreSuite) TestExpiry() {
	s.Require().NoError(s.store.Put(s.ctx, s.token("rt-1", "code-1", time.Minute)))
	s.mr.FastForward(2 * time.Minute)

	_, err := s.store.Get(s.ctx, "rt-1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	tokens, err := s.store.FindByAuthorizationCode(s.ctx, "code-1")
	s.Require().NoError(err)
	s.Empty(tokens)
}

func (s *RedisStoreSuite) TestFindByAuthorizationCode() {
	s.Require().NoError(s.store.Put(s.ctx, s.token("at-1", "code-1", time.Hour)))
	s.Require().NoError(s.store.Put(s.ctx, s.token("at-2", "code-1", time.Hour)))

	tokens, err := s.store.FindByAuthorizationCode(s.ctx, "code-1")
	s.Require().NoError(err)
	s.Require().Len(tokens, 2)
	s.Equal("at-1", tokens[0].Value)
	s.Equal("at-2", tokens[1].Value)
}

func (s *RedisStoreSuite) TestUnavailableBackend() {
	s.mr.Close()
	err := s.store.Put(s.ctx, s.token("at-1", "", time.Hour))
	s.Error(err)
}
