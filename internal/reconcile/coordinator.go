package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/safebite/server/internal/billing"
	"github.com/safebite/server/internal/entitlement"
	"github.com/safebite/server/internal/models"
)

// Coordinator is the single writer of the entitlement cache. It reconciles
// the cache against the billing provider on launch, on purchase and on
// restore. The three operations are mutually exclusive per user; purchase
// and restore queue behind an in-flight operation, launch syncs coalesce.
type Coordinator struct {
	provider billing.Provider
	cache    *entitlement.Cache

	mu         sync.Mutex
	userLocks  map[string]*sync.Mutex
	syncActive map[string]bool

	syncTimeout     time.Duration
	purchaseTimeout time.Duration

	now func() time.Time
}

func NewCoordinator(provider billing.Provider, cache *entitlement.Cache, syncTimeout, purchaseTimeout time.Duration) *Coordinator {
	return &Coordinator{
		provider:        provider,
		cache:           cache,
		userLocks:       make(map[string]*sync.Mutex),
		syncActive:      make(map[string]bool),
		syncTimeout:     syncTimeout,
		purchaseTimeout: purchaseTimeout,
		now:             time.Now,
	}
}

func (c *Coordinator) lockFor(userID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		c.userLocks[userID] = lock
	}
	return lock
}

// SyncOnLaunch refreshes the cache from the provider. Failure is silent at
// this layer: the cache stays untouched and gating keeps its last answer.
// A second call while one is in flight for the same user is coalesced.
func (c *Coordinator) SyncOnLaunch(ctx context.Context, userID string) {
	c.mu.Lock()
	if c.syncActive[userID] {
		c.mu.Unlock()
		return
	}
	c.syncActive[userID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.syncActive, userID)
		c.mu.Unlock()
	}()

	lock := c.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.syncTimeout)
	defer cancel()

	info, err := c.provider.FetchCustomerInfo(ctx, userID)
	if err != nil {
		log.Warn().Err(classify(err)).Str("user_id", userID).Msg("launch sync failed, cache untouched")
		return
	}

	if err := c.writeInfo(ctx, userID, info); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("launch sync write rejected")
	}
}

// ApplyPurchase runs the purchase flow and, on success, writes the new
// entitlement with server provenance. On failure the cache is untouched and
// the error propagates to the caller. Once the provider call starts it is
// detached from caller cancellation: a half-applied purchase would corrupt
// entitlement state.
func (c *Coordinator) ApplyPurchase(ctx context.Context, userID, planID string) (models.Entitlement, error) {
	lock := c.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.purchaseTimeout)
	defer cancel()

	info, err := c.provider.Purchase(opCtx, userID, planID)
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("purchase failed: %w", classify(err))
	}

	ent := c.entitlementFrom(info)
	if err := c.cache.Write(opCtx, userID, ent); err != nil {
		return models.Entitlement{}, fmt.Errorf("failed to apply purchase: %w", err)
	}

	log.Info().Str("user_id", userID).Str("plan", planID).Str("tier", string(ent.Tier)).Msg("purchase applied")
	return ent, nil
}

// Restore re-fetches known purchases and writes whatever the provider
// reports, including a downgrade to none: restore reconciles truth, it is
// not an optimistic upgrade path.
func (c *Coordinator) Restore(ctx context.Context, userID string) (models.Entitlement, error) {
	lock := c.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, c.purchaseTimeout)
	defer cancel()

	info, err := c.provider.RestorePurchases(opCtx, userID)
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("restore failed: %w", classify(err))
	}

	ent := c.entitlementFrom(info)
	if err := c.cache.Write(opCtx, userID, ent); err != nil {
		return models.Entitlement{}, fmt.Errorf("failed to apply restore: %w", err)
	}

	log.Info().Str("user_id", userID).Str("tier", string(ent.Tier)).Msg("restore applied")
	return ent, nil
}

func (c *Coordinator) writeInfo(ctx context.Context, userID string, info *billing.CustomerInfo) error {
	return c.cache.Write(ctx, userID, c.entitlementFrom(info))
}

func (c *Coordinator) entitlementFrom(info *billing.CustomerInfo) models.Entitlement {
	tier := models.TierNone
	var expiresAt *time.Time
	if info != nil {
		tier = info.Tier
		expiresAt = info.ExpiresAt
	}
	return models.Entitlement{
		IsPremium:      tier != models.TierNone,
		Tier:           tier,
		ExpiresAt:      expiresAt,
		Source:         models.SourceServer,
		LastVerifiedAt: c.now(),
	}
}
