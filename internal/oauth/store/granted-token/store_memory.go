package grantedtoken

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authserver/internal/oauth/models"
	"authserver/pkg/platform/sentinel"
)

// Error Contract:
// - Get returns ErrNotFound when the token was never stored
// - Put overwrites an existing record with the same value
// - FindByAuthorizationCode returns an empty slice, not an error, when nothing matches

// InMemoryGrantedTokenStore keeps issued tokens in memory for tests/dev.
type InMemoryGrantedTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*models.GrantedToken
	// byCode indexes token values by authorization code, in issuance order.
	byCode map[string][]string
}

func NewInMemory() *InMemoryGrantedTokenStore {
	return &InMemoryGrantedTokenStore{
		tokens: make(map[string]*models.GrantedToken),
		byCode: make(map[string][]string),
	}
}

func (s *InMemoryGrantedTokenStore) Put(_ context.Context, token *models.GrantedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.Value]; !exists && token.AuthorizationCode != "" {
		s.byCode[token.AuthorizationCode] = append(s.byCode[token.AuthorizationCode], token.Value)
	}
	s.tokens[token.Value] = token
	return nil
}

func (s *InMemoryGrantedTokenStore) Get(_ context.Context, value string) (*models.GrantedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[value]
	if !ok {
		return nil, fmt.Errorf("granted token not found: %w", sentinel.ErrNotFound)
	}
	return token, nil
}

func (s *InMemoryGrantedTokenStore) FindByAuthorizationCode(_ context.Context, code string) ([]*models.GrantedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := s.byCode[code]
	out := make([]*models.GrantedToken, 0, len(values))
	for _, v := range values {
		if token, ok := s.tokens[v]; ok {
			out = append(out, token)
		}
	}
	return out, nil
}

// DeleteExpired removes tokens that expired before now and returns how many went.
func (s *InMemoryGrantedTokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for value, token := range s.tokens {
		if token.IsExpired(now) {
			delete(s.tokens, value)
			deleted++
		}
	}
	for code, values := range s.byCode {
		kept := values[:0]
		for _, v := range values {
			if _, ok := s.tokens[v]; ok {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(s.byCode, code)
			continue
		}
		s.byCode[code] = kept
	}
	return deleted, nil
}
