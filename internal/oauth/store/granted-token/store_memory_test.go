package grantedtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"authserver/internal/oauth/models"
	"authserver/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryGrantedTokenStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Now()
}

func (s *InMemoryStoreSuite) token(value, code string, ttl time.Duration) *models.GrantedToken {
	return &models.GrantedToken{
		Value:             value,
		Type:              models.TokenTypeAccess,
		ClientID:          "client-1",
		AuthorizationCode: code,
		IssuedAt:          s.now,
		ExpiresAt:         s.now.Add(ttl),
	}
}

func (s *InMemoryStoreSuite) TestPutGet() {
	s.Run("round trip", func() {
		s.Require().NoError(s.store.Put(s.ctx, s.token("at-1", "code-1", time.Hour)))
		got, err := s.store.Get(s.ctx, "at-1")
		s.Require().NoError(err)
		s.Equal("client-1", got.ClientID)
		s.Equal("code-1", got.AuthorizationCode)
	})

	s.Run("missing token is ErrNotFound", func() {
		_, err := s.store.Get(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestFindByAuthorizationCode() {
	s.Require().NoError(s.store.Put(s.ctx, s.token("at-1", "code-1", time.Hour)))
	s.Require().NoError(s.store.Put(s.ctx, s.token("at-2", "code-1", time.Hour)))
	s.Require().NoError(s.store.Put(s.ctx, s.token("at-1", "code-1", time.Hour)))
	s.Require().NoError(s.store.Put(s.ctx, s.token("at-3", "", time.Hour)))

	tokens, err := s.store.FindByAuthorizationCode(s.ctx, "code-1")
	s.Require().NoError(err)
	s.Require().Len(tokens, 2)
	s.Equal("at-1", tokens[0].Value)
	s.Equal("at-2", tokens[1].Value)

	none, err := s.store.FindByAuthorizationCode(s.ctx, "code-2")
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *InMemoryStoreSuite) TestDeleteExpired() {
	s.Require().NoError(s.store.Put(s.ctx, s.token("old", "code-1", -time.Minute)))
	s.Require().NoError(s.store.Put(s.ctx, s.token("fresh", "code-1", time.Hour)))

	deleted, err := s.store.DeleteExpired(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, deleted)

	_, err = s.store.Get(s.ctx, "old")
	s.ErrorIs(err, sentinel.ErrNotFound)
	tokens, err := s.store.FindByAuthorizationCode(s.ctx, "code-1")
	s.Require().NoError(err)
	s.Len(tokens, 1)
}
