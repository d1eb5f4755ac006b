// Package store persists issued credentials.
//
// Every adapter implements the same contract: Store, Retrieve, List, Delete
// and UpdateStatus. Missing credentials are reported as sentinel.ErrNotFound
// by Retrieve and as false by the mutating calls.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/models"
	"devcred/pkg/domain"
	"devcred/pkg/platform/sentinel"
)

// InMemoryStore keeps credentials in process. Records are copied in and out
// so callers never share state with the store.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[domain.CredentialID]models.CredentialRecord
	bySubject map[domain.SubjectID][]domain.CredentialID
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:   make(map[domain.CredentialID]models.CredentialRecord),
		bySubject: make(map[domain.SubjectID][]domain.CredentialID),
	}
}

func (s *InMemoryStore) Store(_ context.Context, c *credential.Credential) (domain.CredentialID, error) {
	if c == nil {
		return "", fmt.Errorf("credential is required")
	}
	rec := credential.ToModel(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return "", fmt.Errorf("credential %s: %w", rec.ID, sentinel.ErrConflict)
	}
	s.records[rec.ID] = rec
	s.bySubject[rec.Subject] = append(s.bySubject[rec.Subject], rec.ID)
	return rec.ID, nil
}

func (s *InMemoryStore) Retrieve(_ context.Context, id domain.CredentialID) (*credential.Credential, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return credential.FromModel(rec)
}

// List returns the subject's credential IDs in issuance order.
func (s *InMemoryStore) List(_ context.Context, subject domain.SubjectID) ([]domain.CredentialID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.bySubject[subject]), nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.CredentialID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}
	delete(s.records, id)
	ids := slices.DeleteFunc(s.bySubject[rec.Subject], func(v domain.CredentialID) bool { return v == id })
	if len(ids) == 0 {
		delete(s.bySubject, rec.Subject)
	} else {
		s.bySubject[rec.Subject] = ids
	}
	return true, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id domain.CredentialID, status models.Status) (bool, error) {
	if err := checkStatus(status); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}
	rec.Status = status
	s.records[id] = rec
	return true, nil
}

// checkStatus rejects statuses that are never persisted.
func checkStatus(status models.Status) error {
	switch status {
	case models.StatusReady, models.StatusRevoked:
		return nil
	default:
		return fmt.Errorf("status %q cannot be stored: %w", status, sentinel.ErrInvalidState)
	}
}
