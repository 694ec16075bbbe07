package billing

import (
	"context"
	"time"

	"github.com/safebite/server/internal/models"
)

// CustomerInfo is the normalized customer status this subsystem depends on.
// Nothing outside this package sees the provider's wire format.
type CustomerInfo struct {
	Tier               models.Tier
	ExpiresAt          *time.Time // nil for lifetime and for none
	ActiveEntitlements []string
}

// Provider is the billing collaborator boundary. Purchase and
// RestorePurchases return the post-operation truth; an empty restore is a
// CustomerInfo with TierNone, not an error.
type Provider interface {
	FetchCustomerInfo(ctx context.Context, userID string) (*CustomerInfo, error)
	Purchase(ctx context.Context, userID, planID string) (*CustomerInfo, error)
	RestorePurchases(ctx context.Context, userID string) (*CustomerInfo, error)
}

// CustomerResolver maps our stable user ID to the provider's customer ID.
// Implemented by the user repository.
type CustomerResolver interface {
	StripeCustomerID(ctx context.Context, userID string) (string, error)
}

// None is the normalized "no active entitlement" status.
func None() *CustomerInfo {
	return &CustomerInfo{Tier: models.TierNone}
}
