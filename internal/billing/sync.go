package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/safebite/server/internal/config"
	"github.com/stripe/stripe-go/v84"
)

// SyncStripeCatalog makes sure every plan has a product and price in
// Stripe, creating what is missing. Safe to run on every boot: existing
// objects are found by metadata, never duplicated.
func (b *Billing) SyncStripeCatalog(ctx context.Context) error {
	products, err := b.listActiveProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	prices, err := b.listActivePrices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list prices: %w", err)
	}

	for _, planID := range PlanOrder {
		plan := Plans[planID]
		if err := b.syncPlan(ctx, plan, products, prices); err != nil {
			return fmt.Errorf("failed to sync plan %s: %w", planID, err)
		}
		log.Info().
			Str("plan", planID).
			Str("product", plan.ProductID).
			Str("price", plan.PriceID).
			Msg("Stripe plan synced")
	}

	return nil
}

func (b *Billing) listActiveProducts(ctx context.Context) ([]*stripe.Product, error) {
	var products []*stripe.Product
	for p, err := range b.sc.V1Products.List(ctx, &stripe.ProductListParams{Active: stripe.Bool(true)}) {
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (b *Billing) listActivePrices(ctx context.Context) ([]*stripe.Price, error) {
	var prices []*stripe.Price
	for p, err := range b.sc.V1Prices.List(ctx, &stripe.PriceListParams{Active: stripe.Bool(true)}) {
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, nil
}

func findProduct(products []*stripe.Product, planID string) string {
	for _, p := range products {
		if p.Metadata[config.StripeMetadataPlan] == planID && p.Metadata[config.StripeMetadataProductType] == config.StripeProductTypePlan {
			return p.ID
		}
	}
	return ""
}

func findPrice(prices []*stripe.Price, productID string) string {
	for _, p := range prices {
		if p.Product != nil && p.Product.ID == productID {
			return p.ID
		}
	}
	return ""
}

func (b *Billing) syncPlan(ctx context.Context, plan *Plan, products []*stripe.Product, prices []*stripe.Price) error {
	productID, err := b.ensureProduct(ctx, plan, products)
	if err != nil {
		return err
	}
	plan.ProductID = productID

	priceID, err := b.ensurePrice(ctx, plan, productID, prices)
	if err != nil {
		return err
	}
	plan.PriceID = priceID

	return nil
}

func (b *Billing) ensureProduct(ctx context.Context, plan *Plan, products []*stripe.Product) (string, error) {
	if id := findProduct(products, plan.ID); id != "" {
		return id, nil
	}
	return b.createProduct(ctx, plan)
}

func (b *Billing) createProduct(ctx context.Context, plan *Plan) (string, error) {
	params := &stripe.ProductCreateParams{
		Name:        stripe.String(fmt.Sprintf("SafeBite %s", plan.DisplayName)),
		Description: stripe.String(planDescription(plan)),
		Metadata: map[string]string{
			config.StripeMetadataPlan:        plan.ID,
			config.StripeMetadataProductType: config.StripeProductTypePlan,
		},
	}
	product, err := b.sc.V1Products.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create product: %w", err)
	}
	return product.ID, nil
}

func planDescription(plan *Plan) string {
	if plan.Interval == "" {
		return "Unlimited scans, AI coaching and meal plans, forever"
	}
	return "Unlimited scans, AI coaching and meal plans"
}

func (b *Billing) ensurePrice(ctx context.Context, plan *Plan, productID string, prices []*stripe.Price) (string, error) {
	if id := findPrice(prices, productID); id != "" {
		return id, nil
	}
	return b.createPrice(ctx, plan, productID)
}

func (b *Billing) createPrice(ctx context.Context, plan *Plan, productID string) (string, error) {
	params := &stripe.PriceCreateParams{
		Product:    stripe.String(productID),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		UnitAmount: stripe.Int64(plan.PriceCents),
		Metadata: map[string]string{
			config.StripeMetadataPlan:      plan.ID,
			config.StripeMetadataPriceType: config.StripePriceTypeOneTime,
		},
	}
	if plan.Interval != "" {
		params.Recurring = &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(plan.Interval),
		}
		params.Metadata[config.StripeMetadataPriceType] = config.StripePriceTypeRecurring
	}

	price, err := b.sc.V1Prices.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create price: %w", err)
	}
	return price.ID, nil
}
