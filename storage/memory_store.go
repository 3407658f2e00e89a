package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"realestate-scraper/models"
)

// MemoryStore is an in-process ListingStore. Reads run concurrently;
// every write takes the exclusive lock.
type MemoryStore struct {
	mu       sync.RWMutex
	listings map[string]*models.PersistedListing
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{listings: make(map[string]*models.PersistedListing)}
}

func (s *MemoryStore) Get(_ context.Context, url string) (*models.PersistedListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[url]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

func (s *MemoryStore) Insert(_ context.Context, l *models.PersistedListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[l.URL]; exists {
		return eris.Wrapf(ErrIdentityConflict, "memory: insert %s", l.URL)
	}
	s.listings[l.URL] = l.Clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, l *models.PersistedListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[l.URL]; !exists {
		return eris.Wrapf(ErrNotFound, "memory: update %s", l.URL)
	}
	s.listings[l.URL] = l.Clone()
	return nil
}

// All returns every listing ordered by first-seen, then URL.
func (s *MemoryStore) All(_ context.Context) ([]*models.PersistedListing, error) {
	s.mu.RLock()
	out := make([]*models.PersistedListing, 0, len(s.listings))
	for _, l := range s.listings {
		out = append(out, l.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

// Len reports how many listings are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listings)
}

func (s *MemoryStore) Close() error {
	return nil
}
