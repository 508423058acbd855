package user

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"authserver/internal/oauth/models"
	"authserver/pkg/platform/sentinel"
)

// InMemoryUserStore holds end users and their consent grants for tests/dev.
// Users are copied on the way in and out, so callers never share state with
// the store.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewInMemory(users ...*models.User) *InMemoryUserStore {
	s := &InMemoryUserStore{users: make(map[string]*models.User, len(users))}
	for _, u := range users {
		s.users[u.Subject] = cloneUser(u)
	}
	return s
}

func (s *InMemoryUserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Subject] = cloneUser(user)
	return nil
}

func (s *InMemoryUserStore) FindBySubject(_ context.Context, subject string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[subject]
	if !ok {
		return nil, fmt.Errorf("user %q not found: %w", subject, sentinel.ErrNotFound)
	}
	return cloneUser(u), nil
}

// AddConsent records a consent grant for the user, replacing an earlier grant
// for the same client.
func (s *InMemoryUserStore) AddConsent(_ context.Context, subject string, grant models.ConsentGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[subject]
	if !ok {
		return fmt.Errorf("user %q not found: %w", subject, sentinel.ErrNotFound)
	}
	consents := u.Consents[:0:0]
	for _, c := range u.Consents {
		if c.ClientID != grant.ClientID {
			consents = append(consents, c)
		}
	}
	u.Consents = append(consents, grant)
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.AMR = slices.Clone(u.AMR)
	c.Claims = slices.Clone(u.Claims)
	c.Consents = make([]models.ConsentGrant, len(u.Consents))
	for i, g := range u.Consents {
		g.Scopes = slices.Clone(g.Scopes)
		g.Claims = slices.Clone(g.Claims)
		c.Consents[i] = g
	}
	return &c
}
