package services

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"realestate-scraper/models"
	"realestate-scraper/storage"
	"realestate-scraper/utils"
)

// Resolver is the only writer of persisted listings. It reconciles candidates
// against the store, one canonical URL at a time.
type Resolver struct {
	store   storage.ListingStore
	locks   *utils.KeyedMutex
	workers int
}

// NewResolver creates a Resolver running up to workers reconciliations at once.
func NewResolver(store storage.ListingStore, workers int) *Resolver {
	if workers < 1 {
		workers = 1
	}
	return &Resolver{store: store, locks: utils.NewKeyedMutex(), workers: workers}
}

// Reconcile inserts unseen URLs and merges the rest. Different URLs are
// handled concurrently; writes for the same URL are serialized.
//
// On a store error the returned partitions still hold everything persisted
// before the failure, and the error is returned alongside them.
func (r *Resolver) Reconcile(ctx context.Context, run *utils.Run, candidates []*models.CandidateListing) (created, updated []*models.PersistedListing, err error) {
	newAt := make([]*models.PersistedListing, len(candidates))
	updatedAt := make([]*models.PersistedListing, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, c := range candidates {
		if c == nil || c.URL == "" {
			continue
		}
		g.Go(func() error {
			l, isNew, err := r.reconcileOne(gctx, run, c)
			if err != nil {
				return err
			}
			if isNew {
				newAt[i] = l
			} else {
				updatedAt[i] = l
			}
			return nil
		})
	}
	err = g.Wait()

	for i := range candidates {
		if newAt[i] != nil {
			created = append(created, newAt[i])
		}
		if updatedAt[i] != nil {
			updated = append(updated, updatedAt[i])
		}
	}

	run.Counters.New.Add(int64(len(created)))
	run.Counters.Updated.Add(int64(len(updated)))
	if err != nil {
		run.Logger.Error("[resolver] Reconcile stopped after %d new, %d updated: %v", len(created), len(updated), err)
		return created, updated, err
	}
	run.Logger.Info("[resolver] %d new, %d updated", len(created), len(updated))
	return created, updated, nil
}

func (r *Resolver) reconcileOne(ctx context.Context, run *utils.Run, c *models.CandidateListing) (*models.PersistedListing, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	unlock := r.locks.Lock(c.URL)
	defer unlock()

	now := run.Now()
	existing, err := r.store.Get(ctx, c.URL)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		l := &models.PersistedListing{
			CandidateListing: *c,
			FirstSeen:        now,
			LastSeen:         now,
			RunID:            run.ID,
			Active:           true,
		}
		if err := r.store.Insert(ctx, l); err != nil {
			if errors.Is(err, storage.ErrIdentityConflict) {
				return nil, false, eris.Wrapf(err, "resolver: invariant violated for %s", c.URL)
			}
			return nil, false, eris.Wrapf(err, "resolver: insert %s", c.URL)
		}
		return l, true, nil
	case err != nil:
		return nil, false, eris.Wrapf(err, "resolver: lookup %s", c.URL)
	}

	existing.Merge(c)
	if now.After(existing.LastSeen) {
		existing.LastSeen = now
	}
	if err := r.store.Update(ctx, existing); err != nil {
		return nil, false, eris.Wrapf(err, "resolver: update %s", c.URL)
	}
	return existing, false, nil
}
