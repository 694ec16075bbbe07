package models

import "time"

type Tier string

const (
	TierNone     Tier = "none"
	TierMonthly  Tier = "monthly"
	TierYearly   Tier = "yearly"
	TierLifetime Tier = "lifetime"
)

type EntitlementSource string

const (
	SourceServer EntitlementSource = "server"
	SourceCache  EntitlementSource = "cache"
)

// Entitlement is the resolved premium status for a user and its provenance.
// No snapshot is authoritative on its own: consumers must run it through
// TrustedPremium before gating on it, whatever its Source.
type Entitlement struct {
	IsPremium      bool              `json:"is_premium"`
	Tier           Tier              `json:"tier"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"` // nil only for lifetime or none
	Source         EntitlementSource `json:"source"`
	LastVerifiedAt time.Time         `json:"last_verified_at"`
}

// DefaultEntitlement is what a user without any persisted record resolves to.
func DefaultEntitlement() Entitlement {
	return Entitlement{
		IsPremium: false,
		Tier:      TierNone,
		Source:    SourceCache,
	}
}

// TrustedPremium evaluates the staleness rule: a cached premium claim is
// trusted for gating at most grace past LastVerifiedAt, and never past the
// entitlement's own expiry. A server-fresh snapshot still goes through the
// same check so a long-running process cannot trust a verification forever.
func (e Entitlement) TrustedPremium(now time.Time, grace time.Duration) bool {
	if !e.IsPremium || e.Tier == TierNone {
		return false
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
		return false
	}
	return now.Sub(e.LastVerifiedAt) <= grace
}

// StaleClaim reports whether the snapshot claims premium but has outlived
// the grace window, meaning gating downgraded it without a server response.
func (e Entitlement) StaleClaim(now time.Time, grace time.Duration) bool {
	if !e.IsPremium || e.Tier == TierNone {
		return false
	}
	return now.Sub(e.LastVerifiedAt) > grace
}
