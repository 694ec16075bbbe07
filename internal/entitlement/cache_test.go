package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safebite/server/internal/models"
	"github.com/safebite/server/internal/store"
)

func premiumSnapshot(verifiedAt time.Time) models.Entitlement {
	return models.Entitlement{
		IsPremium:      true,
		Tier:           models.TierMonthly,
		Source:         models.SourceServer,
		LastVerifiedAt: verifiedAt,
	}
}

func TestReadWithoutRecordReturnsDefault(t *testing.T) {
	c := NewCache(store.NewMemoryStore())

	ent := c.Read(context.Background(), "user-1")

	assert.False(t, ent.IsPremium)
	assert.Equal(t, models.TierNone, ent.Tier)
	assert.Equal(t, models.SourceCache, ent.Source)
}

func TestWriteThenReadPreservesServerSource(t *testing.T) {
	c := NewCache(store.NewMemoryStore())
	ctx := context.Background()
	verified := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.Write(ctx, "user-1", premiumSnapshot(verified)))

	ent := c.Read(ctx, "user-1")
	assert.True(t, ent.IsPremium)
	assert.Equal(t, models.TierMonthly, ent.Tier)
	assert.Equal(t, verified, ent.LastVerifiedAt)
	assert.Equal(t, models.SourceServer, ent.Source, "a server-verified write reads back with its provenance intact")
}

func TestStaleWriteRejectedAndStoreUnchanged(t *testing.T) {
	mem := store.NewMemoryStore()
	c := NewCache(mem)
	ctx := context.Background()

	newer := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	require.NoError(t, c.Write(ctx, "user-1", premiumSnapshot(newer)))

	stale := models.Entitlement{
		IsPremium:      false,
		Tier:           models.TierNone,
		Source:         models.SourceServer,
		LastVerifiedAt: older,
	}
	err := c.Write(ctx, "user-1", stale)
	assert.ErrorIs(t, err, ErrStaleWrite)

	stored, err := mem.GetEntitlement(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsPremium)
	assert.Equal(t, newer, stored.LastVerifiedAt)
}

func TestStaleWriteRejectedAfterReset(t *testing.T) {
	mem := store.NewMemoryStore()
	c := NewCache(mem)
	ctx := context.Background()

	newer := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.Write(ctx, "user-1", premiumSnapshot(newer)))

	// Dropping the in-memory snapshot must not reopen the door for an
	// older write; the persisted record is still consulted.
	c.Reset("user-1")

	stale := premiumSnapshot(newer.Add(-time.Minute))
	assert.ErrorIs(t, c.Write(ctx, "user-1", stale), ErrStaleWrite)
}

type failingStore struct{}

func (failingStore) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) SaveEntitlement(ctx context.Context, userID string, ent *models.Entitlement) error {
	return errors.New("connection refused")
}

func TestReadNeverFailsOnStoreError(t *testing.T) {
	c := NewCache(failingStore{})

	ent := c.Read(context.Background(), "user-1")

	assert.False(t, ent.IsPremium)
	assert.Equal(t, models.TierNone, ent.Tier)
}

func TestResetReloadsFromStore(t *testing.T) {
	mem := store.NewMemoryStore()
	c := NewCache(mem)
	ctx := context.Background()
	verified := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.Write(ctx, "user-1", premiumSnapshot(verified)))
	c.Reset("user-1")

	ent := c.Read(ctx, "user-1")
	assert.True(t, ent.IsPremium)
	assert.Equal(t, verified, ent.LastVerifiedAt)
	assert.Equal(t, models.SourceServer, ent.Source)
}
