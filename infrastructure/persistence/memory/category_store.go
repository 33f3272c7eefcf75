package memory

import (
	"context"
	"slices"
	"sync"
	"time"
)

// CategoryStore provides an in-memory implementation of ports.CategoryStore
type CategoryStore struct {
	faults
	mu       sync.RWMutex
	usage    map[string][]time.Time
	featured string
}

// NewCategoryStore creates a new in-memory category store
func NewCategoryStore() *CategoryStore {
	return &CategoryStore{
		usage: make(map[string][]time.Time),
	}
}

// LoadUsage returns a copy of the usage log
func (s *CategoryStore) LoadUsage(ctx context.Context) (map[string][]time.Time, error) {
	if err := s.check("LoadUsage"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	usage := make(map[string][]time.Time, len(s.usage))
	for category, times := range s.usage {
		usage[category] = slices.Clone(times)
	}
	return usage, nil
}

// AppendUsage records a selection
func (s *CategoryStore) AppendUsage(ctx context.Context, category string, at time.Time) error {
	if err := s.check("AppendUsage"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[category] = append(s.usage[category], at)
	return nil
}

// GetFeatured returns the stored featured category
func (s *CategoryStore) GetFeatured(ctx context.Context) (string, error) {
	if err := s.check("GetFeatured"); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.featured, nil
}

// SetFeatured stores the featured category
func (s *CategoryStore) SetFeatured(ctx context.Context, category string) error {
	if err := s.check("SetFeatured"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.featured = category
	return nil
}
