package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safebite/server/internal/billing"
	"github.com/safebite/server/internal/entitlement"
	"github.com/safebite/server/internal/models"
	"github.com/safebite/server/internal/store"
)

type fakeProvider struct {
	mu         sync.Mutex
	info       *billing.CustomerInfo
	err        error
	fetchCalls int
	entered    chan struct{}
	release    chan struct{}
}

func (p *fakeProvider) FetchCustomerInfo(ctx context.Context, userID string) (*billing.CustomerInfo, error) {
	p.mu.Lock()
	p.fetchCalls++
	p.mu.Unlock()
	if p.entered != nil {
		p.entered <- struct{}{}
		<-p.release
	}
	return p.info, p.err
}

func (p *fakeProvider) Purchase(ctx context.Context, userID, planID string) (*billing.CustomerInfo, error) {
	return p.info, p.err
}

func (p *fakeProvider) RestorePurchases(ctx context.Context, userID string) (*billing.CustomerInfo, error) {
	return p.info, p.err
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetchCalls
}

func newTestCoordinator(provider billing.Provider) (*Coordinator, *entitlement.Cache) {
	cache := entitlement.NewCache(store.NewMemoryStore())
	return NewCoordinator(provider, cache, time.Second, time.Second), cache
}

func TestApplyPurchaseWritesServerEntitlement(t *testing.T) {
	expires := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{info: &billing.CustomerInfo{Tier: models.TierMonthly, ExpiresAt: &expires}}
	c, cache := newTestCoordinator(provider)

	ent, err := c.ApplyPurchase(context.Background(), "user-1", "monthly")
	require.NoError(t, err)

	assert.True(t, ent.IsPremium)
	assert.Equal(t, models.TierMonthly, ent.Tier)
	assert.Equal(t, models.SourceServer, ent.Source)
	require.NotNil(t, ent.ExpiresAt)
	assert.Equal(t, expires, *ent.ExpiresAt)

	// Reading straight back after a purchase reports the server provenance.
	cached := cache.Read(context.Background(), "user-1")
	assert.True(t, cached.IsPremium)
	assert.Equal(t, models.TierMonthly, cached.Tier)
	assert.Equal(t, models.SourceServer, cached.Source)
}

func TestApplyPurchaseProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("card_declined")}
	c, cache := newTestCoordinator(provider)

	_, err := c.ApplyPurchase(context.Background(), "user-1", "monthly")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBillingProvider)
	assert.NotErrorIs(t, err, ErrNetworkUnavailable)

	cached := cache.Read(context.Background(), "user-1")
	assert.False(t, cached.IsPremium, "failed purchase must leave the cache untouched")
}

func TestApplyPurchaseNetworkFailure(t *testing.T) {
	provider := &fakeProvider{err: context.DeadlineExceeded}
	c, _ := newTestCoordinator(provider)

	_, err := c.ApplyPurchase(context.Background(), "user-1", "monthly")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestSyncOnLaunchFailureLeavesCacheUntouched(t *testing.T) {
	verified := time.Now().Add(-time.Hour)
	provider := &fakeProvider{err: errors.New("upstream 500")}
	c, cache := newTestCoordinator(provider)
	require.NoError(t, cache.Write(context.Background(), "user-1", models.Entitlement{
		IsPremium:      true,
		Tier:           models.TierYearly,
		Source:         models.SourceServer,
		LastVerifiedAt: verified,
	}))

	c.SyncOnLaunch(context.Background(), "user-1")

	cached := cache.Read(context.Background(), "user-1")
	assert.True(t, cached.IsPremium)
	assert.Equal(t, verified, cached.LastVerifiedAt)
}

func TestSyncOnLaunchRefreshesVerification(t *testing.T) {
	provider := &fakeProvider{info: &billing.CustomerInfo{Tier: models.TierLifetime}}
	c, cache := newTestCoordinator(provider)
	before := time.Now()

	c.SyncOnLaunch(context.Background(), "user-1")

	cached := cache.Read(context.Background(), "user-1")
	assert.True(t, cached.IsPremium)
	assert.Equal(t, models.TierLifetime, cached.Tier)
	assert.Nil(t, cached.ExpiresAt)
	assert.False(t, cached.LastVerifiedAt.Before(before))
}

func TestSyncOnLaunchCoalesces(t *testing.T) {
	provider := &fakeProvider{
		info:    &billing.CustomerInfo{Tier: models.TierMonthly},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c, _ := newTestCoordinator(provider)

	done := make(chan struct{})
	go func() {
		c.SyncOnLaunch(context.Background(), "user-1")
		close(done)
	}()
	<-provider.entered

	// Second call while the first is mid-fetch must return immediately
	// without reaching the provider.
	c.SyncOnLaunch(context.Background(), "user-1")
	assert.Equal(t, 1, provider.calls())

	close(provider.release)
	<-done
}

func TestRestoreDowngradesToNone(t *testing.T) {
	provider := &fakeProvider{info: billing.None()}
	c, cache := newTestCoordinator(provider)
	require.NoError(t, cache.Write(context.Background(), "user-1", models.Entitlement{
		IsPremium:      true,
		Tier:           models.TierMonthly,
		Source:         models.SourceServer,
		LastVerifiedAt: time.Now().Add(-time.Hour),
	}))

	ent, err := c.Restore(context.Background(), "user-1")
	require.NoError(t, err)

	assert.False(t, ent.IsPremium)
	assert.Equal(t, models.TierNone, ent.Tier)

	cached := cache.Read(context.Background(), "user-1")
	assert.False(t, cached.IsPremium)
}
