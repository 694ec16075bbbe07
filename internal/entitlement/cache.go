package entitlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/safebite/server/internal/models"
)

// ErrStaleWrite means a write carried an older LastVerifiedAt than the
// stored snapshot. The store is left unchanged; an in-flight network
// response must not clobber a newer state.
var ErrStaleWrite = errors.New("stale entitlement write rejected")

// Store persists entitlement snapshots. GetEntitlement returns nil (no
// error) when the user has none yet.
type Store interface {
	GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error)
	SaveEntitlement(ctx context.Context, userID string, ent *models.Entitlement) error
}

// Cache is the locally held entitlement snapshot layer. Reads always
// succeed: with no persisted record (or a store error mid-request) the
// caller gets the non-premium default, never an error, so feature gating
// always has a usable answer. Writes are serialized and last-writer-wins
// keyed by LastVerifiedAt.
type Cache struct {
	store Store

	mu        sync.RWMutex
	snapshots map[string]models.Entitlement
}

func NewCache(store Store) *Cache {
	return &Cache{
		store:     store,
		snapshots: make(map[string]models.Entitlement),
	}
}

// Read returns the current snapshot for a user, provenance intact: a
// server-verified write reads back as SourceServer. Gating staleness-checks
// every snapshot via LastVerifiedAt regardless of source.
func (c *Cache) Read(ctx context.Context, userID string) models.Entitlement {
	c.mu.RLock()
	ent, ok := c.snapshots[userID]
	c.mu.RUnlock()
	if ok {
		return ent
	}

	stored, err := c.store.GetEntitlement(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("entitlement read fell back to default")
		return models.DefaultEntitlement()
	}
	if stored == nil {
		return models.DefaultEntitlement()
	}

	c.mu.Lock()
	// A concurrent Write may have landed a newer snapshot while we were
	// reading the store; keep whichever verification is newer.
	if cur, ok := c.snapshots[userID]; !ok || stored.LastVerifiedAt.After(cur.LastVerifiedAt) {
		c.snapshots[userID] = *stored
	}
	ent = c.snapshots[userID]
	c.mu.Unlock()

	return ent
}

// Write persists a new snapshot. Only the reconciliation coordinator calls
// this. A write whose LastVerifiedAt is older than the stored one returns
// ErrStaleWrite and leaves both layers untouched.
func (c *Cache) Write(ctx context.Context, userID string, ent models.Entitlement) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.snapshots[userID]
	if !ok {
		if stored, err := c.store.GetEntitlement(ctx, userID); err == nil && stored != nil {
			cur, ok = *stored, true
		}
	}
	if ok && ent.LastVerifiedAt.Before(cur.LastVerifiedAt) {
		return ErrStaleWrite
	}

	if err := c.store.SaveEntitlement(ctx, userID, &ent); err != nil {
		return fmt.Errorf("failed to save entitlement: %w", err)
	}
	c.snapshots[userID] = ent
	return nil
}

// Reset drops a user's snapshot, for sign-out.
func (c *Cache) Reset(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, userID)
}
