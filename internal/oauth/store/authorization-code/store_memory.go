package authorizationcode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authserver/internal/oauth/models"
	"authserver/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested code does not exist
// - Return ErrAlreadyUsed, ErrExpired or ErrMismatch when a consume is refused
// - Return nil for successful operations

// InMemoryAuthorizationCodeStore stores authorization codes in memory for tests/dev.
type InMemoryAuthorizationCodeStore struct {
	mu        sync.RWMutex
	authCodes map[string]*models.AuthorizationCodeRecord
}

// New constructs an empty in-memory auth code store.
func New() *InMemoryAuthorizationCodeStore {
	return &InMemoryAuthorizationCodeStore{
		authCodes: make(map[string]*models.AuthorizationCodeRecord),
	}
}

func (s *InMemoryAuthorizationCodeStore) Create(_ context.Context, authCode *models.AuthorizationCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.authCodes[authCode.Code]; exists {
		return fmt.Errorf("authorization code already exists: %w", sentinel.ErrInvalidState)
	}
	s.authCodes[authCode.Code] = authCode
	return nil
}

func (s *InMemoryAuthorizationCodeStore) FindByCode(_ context.Context, code string) (*models.AuthorizationCodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if authCode, ok := s.authCodes[code]; ok {
		return authCode, nil
	}
	return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
}

// ConsumeAuthCode validates and marks the code as used under one lock, so two
// concurrent redemptions cannot both succeed.
func (s *InMemoryAuthorizationCodeStore) ConsumeAuthCode(_ context.Context, code, clientID, redirectURI string, now time.Time) (*models.AuthorizationCodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.authCodes[code]
	if !ok {
		return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}
	if err := record.ValidateForConsume(clientID, redirectURI, now); err != nil {
		return record, err
	}
	record.MarkUsed()
	return record, nil
}

// DeleteExpiredCodes removes all authorization codes that have expired as of now.
func (s *InMemoryAuthorizationCodeStore) DeleteExpiredCodes(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deletedCount := 0
	for code, record := range s.authCodes {
		if record.ExpiresAt.Before(now) {
			delete(s.authCodes, code)
			deletedCount++
		}
	}
	return deletedCount, nil
}
