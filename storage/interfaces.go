package storage

import (
	"context"

	"github.com/rotisserie/eris"

	"realestate-scraper/models"
)

var (
	// ErrIdentityConflict means an insert hit an existing canonical URL.
	// Writes are serialized per URL, so seeing it is an invariant violation.
	ErrIdentityConflict = eris.New("storage: identity conflict")
	// ErrNotFound is returned by Get and Update for an unknown URL.
	ErrNotFound = eris.New("storage: listing not found")
)

// ListingStore is the dedup store keyed by canonical URL. Implementations
// must allow concurrent calls; per-URL write ordering is the caller's job.
type ListingStore interface {
	Get(ctx context.Context, url string) (*models.PersistedListing, error)
	Insert(ctx context.Context, l *models.PersistedListing) error
	Update(ctx context.Context, l *models.PersistedListing) error
	All(ctx context.Context) ([]*models.PersistedListing, error)
	Close() error
}

// SnapshotWriter appends analytics snapshots. A snapshot is never rewritten.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, s *models.AnalyticsSnapshot) error
}

// SnapshotReader returns the most recent snapshot, or ErrNotFound.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context) (*models.AnalyticsSnapshot, error)
}

// CandidateWriter persists the per-run candidate export.
type CandidateWriter interface {
	WriteCandidates(candidates []*models.CandidateListing) error
	Close() error
}

// SyncTarget is an outer sink with its own view of which URLs it holds.
// It shares no state with the ListingStore.
type SyncTarget interface {
	KnownURLs() (map[string]struct{}, error)
	Append(listings []*models.PersistedListing) error
}
