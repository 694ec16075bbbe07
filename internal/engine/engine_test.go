package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safebite/server/internal/billing"
	"github.com/safebite/server/internal/entitlement"
	"github.com/safebite/server/internal/models"
	"github.com/safebite/server/internal/quota"
	"github.com/safebite/server/internal/reconcile"
	"github.com/safebite/server/internal/store"
	"github.com/safebite/server/internal/trial"
)

type fakeAnchors struct {
	start time.Time
	tz    string
}

func (a fakeAnchors) TrialAnchor(ctx context.Context, userID string) (time.Time, string, error) {
	return a.start, a.tz, nil
}

type staticProvider struct {
	info *billing.CustomerInfo
}

func (p staticProvider) FetchCustomerInfo(ctx context.Context, userID string) (*billing.CustomerInfo, error) {
	return p.info, nil
}

func (p staticProvider) Purchase(ctx context.Context, userID, planID string) (*billing.CustomerInfo, error) {
	return p.info, nil
}

func (p staticProvider) RestorePurchases(ctx context.Context, userID string) (*billing.CustomerInfo, error) {
	return p.info, nil
}

type offlineProvider struct{}

func (offlineProvider) FetchCustomerInfo(ctx context.Context, userID string) (*billing.CustomerInfo, error) {
	return nil, context.DeadlineExceeded
}

func (offlineProvider) Purchase(ctx context.Context, userID, planID string) (*billing.CustomerInfo, error) {
	return nil, context.DeadlineExceeded
}

func (offlineProvider) RestorePurchases(ctx context.Context, userID string) (*billing.CustomerInfo, error) {
	return nil, context.DeadlineExceeded
}

func newTestEngine(t *testing.T, anchors TrialAnchors) (*Engine, *store.MemoryStore, *entitlement.Cache) {
	t.Helper()
	mem := store.NewMemoryStore()
	cache := entitlement.NewCache(mem)
	coordinator := reconcile.NewCoordinator(staticProvider{info: billing.None()}, cache, time.Second, time.Second)
	eng := NewEngine(quota.NewLedger(mem), cache, trial.NewClock(14), coordinator, anchors, 72*time.Hour)
	return eng, mem, cache
}

func TestTrialUserConsumesUntilQuotaBlocks(t *testing.T) {
	eng, mem, _ := newTestEngine(t, fakeAnchors{start: time.Now().AddDate(0, 0, -2), tz: "UTC"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := eng.CanUseFeature(ctx, "user-1", models.FeaturePhotoScan)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "scan %d should be allowed", i+1)
		assert.False(t, d.ShouldShow)
	}

	d, err := eng.CanUseFeature(ctx, "user-1", models.FeaturePhotoScan)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, models.SeverityBlocking, d.Severity)
	assert.Equal(t, models.TriggerScanLimit, d.Trigger)

	q, err := mem.GetQuota(ctx, "user-1", models.FeaturePhotoScan)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, int64(3), q.Used, "a blocked attempt must not consume")
}

func TestExpiredTrialBlocksWithoutConsuming(t *testing.T) {
	eng, mem, _ := newTestEngine(t, fakeAnchors{start: time.Now().AddDate(0, 0, -20), tz: "UTC"})
	ctx := context.Background()

	d, err := eng.CanUseFeature(ctx, "user-1", models.FeatureBarcodeScan)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, models.TriggerTrialEnd, d.Trigger)
	assert.Equal(t, models.SeverityBlocking, d.Severity)

	q, err := mem.GetQuota(ctx, "user-1", models.FeatureBarcodeScan)
	require.NoError(t, err)
	assert.Nil(t, q, "the expired-trial peek must not burn quota")
}

func TestQuotaExhaustionOutranksTrialExpiry(t *testing.T) {
	eng, mem, _ := newTestEngine(t, fakeAnchors{start: time.Now().AddDate(0, 0, -20), tz: "UTC"})
	ctx := context.Background()

	require.NoError(t, mem.SaveQuota(ctx, "user-1", &models.FeatureQuota{
		FeatureID:    models.FeaturePhotoScan,
		Used:         3,
		WindowStart:  time.Now(),
		WindowLength: 24 * time.Hour,
	}))

	d, err := eng.CanUseFeature(ctx, "user-1", models.FeaturePhotoScan)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, models.TriggerScanLimit, d.Trigger)
}

func TestTrustedPremiumBypassesQuota(t *testing.T) {
	eng, mem, cache := newTestEngine(t, fakeAnchors{start: time.Now().AddDate(0, 0, -20), tz: "UTC"})
	ctx := context.Background()

	require.NoError(t, cache.Write(ctx, "user-1", models.Entitlement{
		IsPremium:      true,
		Tier:           models.TierYearly,
		Source:         models.SourceServer,
		LastVerifiedAt: time.Now(),
	}))

	for i := 0; i < 10; i++ {
		d, err := eng.CanUseFeature(ctx, "user-1", models.FeaturePhotoScan)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Nil(t, d.Remaining)
	}

	q, err := mem.GetQuota(ctx, "user-1", models.FeaturePhotoScan)
	require.NoError(t, err)
	assert.Nil(t, q, "premium usage must not touch the ledger")
}

func TestStalePremiumGatedAsFree(t *testing.T) {
	mem := store.NewMemoryStore()
	cache := entitlement.NewCache(mem)
	coordinator := reconcile.NewCoordinator(offlineProvider{}, cache, time.Second, time.Second)
	eng := NewEngine(quota.NewLedger(mem), cache, trial.NewClock(14), coordinator,
		fakeAnchors{start: time.Now().AddDate(0, 0, -2), tz: "UTC"}, 72*time.Hour)
	ctx := context.Background()

	verified := time.Now().Add(-100 * time.Hour)
	require.NoError(t, cache.Write(ctx, "user-1", models.Entitlement{
		IsPremium:      true,
		Tier:           models.TierMonthly,
		Source:         models.SourceServer,
		LastVerifiedAt: verified,
	}))

	d, err := eng.CanUseFeature(ctx, "user-1", models.FeaturePhotoScan)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	require.NotNil(t, d.Remaining, "stale premium is metered like a free user")
	assert.Equal(t, int64(2), *d.Remaining)

	// Gating downgraded the claim but the cached record itself is intact.
	ent := eng.Entitlement(ctx, "user-1")
	assert.True(t, ent.IsPremium)
	assert.Equal(t, models.TierMonthly, ent.Tier)
	assert.WithinDuration(t, verified, ent.LastVerifiedAt, time.Second)
}

func TestExpiredCachedSubscriptionGatedAsFree(t *testing.T) {
	eng, _, cache := newTestEngine(t, fakeAnchors{start: time.Now().AddDate(0, 0, -2), tz: "UTC"})
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, cache.Write(ctx, "user-1", models.Entitlement{
		IsPremium:      true,
		Tier:           models.TierMonthly,
		ExpiresAt:      &past,
		Source:         models.SourceServer,
		LastVerifiedAt: time.Now(),
	}))

	d, err := eng.CanUseFeature(ctx, "user-1", models.FeaturePhotoScan)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	require.NotNil(t, d.Remaining)
}

func TestUnknownFeatureRejected(t *testing.T) {
	eng, _, _ := newTestEngine(t, fakeAnchors{start: time.Now(), tz: "UTC"})

	_, err := eng.CanUseFeature(context.Background(), "user-1", "time_travel")
	assert.ErrorIs(t, err, quota.ErrUnknownFeature)
}

func TestPurchaseUpgradesGating(t *testing.T) {
	mem := store.NewMemoryStore()
	cache := entitlement.NewCache(mem)
	provider := staticProvider{info: &billing.CustomerInfo{Tier: models.TierLifetime}}
	coordinator := reconcile.NewCoordinator(provider, cache, time.Second, time.Second)
	eng := NewEngine(quota.NewLedger(mem), cache, trial.NewClock(14), coordinator,
		fakeAnchors{start: time.Now().AddDate(0, 0, -20), tz: "UTC"}, 72*time.Hour)
	ctx := context.Background()

	d, err := eng.CanUseFeature(ctx, "user-1", models.FeatureAICoach)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	_, err = eng.Purchase(ctx, "user-1", "lifetime")
	require.NoError(t, err)

	d, err = eng.CanUseFeature(ctx, "user-1", models.FeatureAICoach)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Nil(t, d.Remaining)
}
