package config

// Stripe catalog metadata keys. Products and prices created by the catalog
// sync are tagged with these so re-runs find them instead of duplicating.
const (
	StripeMetadataPlan        = "safebite_plan"
	StripeMetadataProductType = "safebite_product_type"
	StripeMetadataPriceType   = "safebite_price_type"

	StripeProductTypePlan = "plan"

	StripePriceTypeRecurring = "recurring"
	StripePriceTypeOneTime   = "one_time"

	// Customer metadata key set once a lifetime purchase settles.
	StripeMetadataLifetime = "safebite_lifetime_plan"
)
