package client

import (
	"context"
	"fmt"
	"sync"

	"authserver/internal/oauth/models"
	"authserver/pkg/platform/sentinel"
)

// InMemoryClientStore holds client registrations for tests/dev.
type InMemoryClientStore struct {
	mu      sync.RWMutex
	clients map[string]*models.Client
}

func NewInMemory(clients ...*models.Client) *InMemoryClientStore {
	s := &InMemoryClientStore{clients: make(map[string]*models.Client, len(clients))}
	for _, c := range clients {
		s.clients[c.ClientID] = c
	}
	return s
}

func (s *InMemoryClientStore) Save(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ClientID] = client
	return nil
}

// Resolve returns the registration for clientID or ErrNotFound.
func (s *InMemoryClientStore) Resolve(_ context.Context, clientID string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %q not found: %w", clientID, sentinel.ErrNotFound)
	}
	return c, nil
}
