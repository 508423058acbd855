package consent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authserver/internal/openbanking/models"
	"authserver/pkg/platform/sentinel"
)

// Error Contract:
// - Get and UpdateStatus return ErrNotFound for unknown consent ids
// - UpdateStatus returns ErrInvalidState when the transition is not allowed

// InMemoryStore keeps account access consents in memory for tests/dev.
type InMemoryStore struct {
	mu       sync.RWMutex
	consents map[string]*models.AccountAccessConsent
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{consents: make(map[string]*models.AccountAccessConsent)}
}

func (s *InMemoryStore) Save(_ context.Context, c *models.AccountAccessConsent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *c
	s.consents[c.ID] = &copied
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*models.AccountAccessConsent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consents[id]
	if !ok {
		return nil, fmt.Errorf("account access consent %q not found: %w", id, sentinel.ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id string, status models.ConsentStatus, now time.Time) (*models.AccountAccessConsent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[id]
	if !ok {
		return nil, fmt.Errorf("account access consent %q not found: %w", id, sentinel.ErrNotFound)
	}
	if err := c.Transition(status, now); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
	}
	copied := *c
	return &copied, nil
}
