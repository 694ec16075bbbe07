package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrustedPremium(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	grace := 72 * time.Hour
	future := now.Add(30 * 24 * time.Hour)
	past := now.Add(-time.Minute)

	tests := []struct {
		name string
		ent  Entitlement
		want bool
	}{
		{
			name: "fresh verification",
			ent:  Entitlement{IsPremium: true, Tier: TierMonthly, ExpiresAt: &future, LastVerifiedAt: now.Add(-time.Hour)},
			want: true,
		},
		{
			name: "verified exactly at the grace boundary",
			ent:  Entitlement{IsPremium: true, Tier: TierMonthly, ExpiresAt: &future, LastVerifiedAt: now.Add(-grace)},
			want: true,
		},
		{
			name: "verification outlived grace",
			ent:  Entitlement{IsPremium: true, Tier: TierMonthly, ExpiresAt: &future, LastVerifiedAt: now.Add(-grace - time.Second)},
			want: false,
		},
		{
			name: "subscription already expired",
			ent:  Entitlement{IsPremium: true, Tier: TierMonthly, ExpiresAt: &past, LastVerifiedAt: now},
			want: false,
		},
		{
			name: "lifetime has no expiry",
			ent:  Entitlement{IsPremium: true, Tier: TierLifetime, LastVerifiedAt: now},
			want: true,
		},
		{
			name: "free user",
			ent:  DefaultEntitlement(),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ent.TrustedPremium(now, grace))
		})
	}
}

func TestStaleClaim(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	grace := 72 * time.Hour

	stale := Entitlement{IsPremium: true, Tier: TierMonthly, LastVerifiedAt: now.Add(-100 * time.Hour)}
	assert.True(t, stale.StaleClaim(now, grace))

	fresh := Entitlement{IsPremium: true, Tier: TierMonthly, LastVerifiedAt: now.Add(-time.Hour)}
	assert.False(t, fresh.StaleClaim(now, grace))

	assert.False(t, DefaultEntitlement().StaleClaim(now, grace), "a non-premium record is never a stale claim")
}
