package billing

import "github.com/safebite/server/internal/models"

// Plan defines a purchasable premium plan.
type Plan struct {
	ID          string
	DisplayName string
	Tier        models.Tier
	PriceCents  int64
	Interval    string // "month", "year", or "" for one-time
	ProductID   string // set by SyncStripeCatalog
	PriceID     string // set by SyncStripeCatalog
}

// Plans holds all purchasable plans keyed by plan ID.
var Plans = map[string]*Plan{
	"monthly": {
		ID:          "monthly",
		DisplayName: "Premium Monthly",
		Tier:        models.TierMonthly,
		PriceCents:  999,
		Interval:    "month",
	},
	"yearly": {
		ID:          "yearly",
		DisplayName: "Premium Yearly",
		Tier:        models.TierYearly,
		PriceCents:  5999,
		Interval:    "year",
	},
	"lifetime": {
		ID:          "lifetime",
		DisplayName: "Premium Lifetime",
		Tier:        models.TierLifetime,
		PriceCents:  14999,
		Interval:    "",
	},
}

// PlanOrder defines the display ordering of plans.
var PlanOrder = []string{"monthly", "yearly", "lifetime"}

// GetPlan returns a plan by its ID.
func GetPlan(id string) *Plan {
	return Plans[id]
}

// PlanForTier finds the plan backing a tier.
func PlanForTier(tier models.Tier) *Plan {
	for _, id := range PlanOrder {
		if Plans[id].Tier == tier {
			return Plans[id]
		}
	}
	return nil
}
