package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/safebite/server/internal/config"
	"github.com/safebite/server/internal/models"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var ErrUnknownPlan = errors.New("unknown plan")

// Billing is the Stripe-backed Provider. All reads are normalized into
// CustomerInfo before anything upstream sees them.
type Billing struct {
	sc            *stripe.Client
	customers     CustomerResolver
	webhookSecret string
}

func NewBilling(customers CustomerResolver) *Billing {
	cfg := config.GetConfig()
	sc := stripe.NewClient(cfg.StripeSecretKey)
	return &Billing{
		sc:            sc,
		customers:     customers,
		webhookSecret: cfg.StripeWebhookSecret,
	}
}

func (b *Billing) CreateCustomer(ctx context.Context, userID, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerCreateParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"user_id": userID},
	}
	return b.sc.V1Customers.Create(ctx, params)
}

// FetchCustomerInfo resolves the current truth for a user: a settled
// lifetime purchase wins, then the newest active subscription, then none.
func (b *Billing) FetchCustomerInfo(ctx context.Context, userID string) (*CustomerInfo, error) {
	customerID, err := b.customers.StripeCustomerID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}
	if customerID == "" {
		return None(), nil
	}

	customer, err := b.sc.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve customer: %w", err)
	}
	if customer.Metadata[config.StripeMetadataLifetime] == "true" {
		return &CustomerInfo{
			Tier:               models.TierLifetime,
			ActiveEntitlements: []string{"premium"},
		}, nil
	}

	return b.activeSubscriptionInfo(ctx, customerID)
}

func (b *Billing) activeSubscriptionInfo(ctx context.Context, customerID string) (*CustomerInfo, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}

	for sub, err := range b.sc.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}
		if info := subscriptionInfo(sub); info != nil {
			return info, nil
		}
	}
	return None(), nil
}

func subscriptionInfo(sub *stripe.Subscription) *CustomerInfo {
	if sub == nil || sub.Items == nil {
		return nil
	}
	for _, item := range sub.Items.Data {
		if item.Price == nil {
			continue
		}
		plan := GetPlan(item.Price.Metadata[config.StripeMetadataPlan])
		if plan == nil {
			continue
		}
		var expiresAt *time.Time
		if item.CurrentPeriodEnd > 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0)
			expiresAt = &t
		}
		return &CustomerInfo{
			Tier:               plan.Tier,
			ExpiresAt:          expiresAt,
			ActiveEntitlements: []string{"premium"},
		}
	}
	return nil
}

// Purchase charges the customer's saved payment method for the plan. The
// app collects the payment method during onboarding, so purchase is a
// synchronous result-returning operation rather than a redirect flow.
func (b *Billing) Purchase(ctx context.Context, userID, planID string) (*CustomerInfo, error) {
	plan := GetPlan(planID)
	if plan == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}

	customerID, err := b.customers.StripeCustomerID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}
	if customerID == "" {
		return nil, fmt.Errorf("user %s has no billing customer", userID)
	}

	if plan.Tier == models.TierLifetime {
		return b.purchaseLifetime(ctx, customerID, plan)
	}
	return b.purchaseSubscription(ctx, customerID, plan)
}

func (b *Billing) purchaseSubscription(ctx context.Context, customerID string, plan *Plan) (*CustomerInfo, error) {
	if plan.PriceID == "" {
		return nil, fmt.Errorf("plan %s has no synced price (run catalog sync)", plan.ID)
	}

	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(plan.PriceID)},
		},
		PaymentBehavior: stripe.String("error_if_incomplete"),
	}
	sub, err := b.sc.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	if info := subscriptionInfo(sub); info != nil {
		return info, nil
	}
	return &CustomerInfo{Tier: plan.Tier, ActiveEntitlements: []string{"premium"}}, nil
}

func (b *Billing) purchaseLifetime(ctx context.Context, customerID string, plan *Plan) (*CustomerInfo, error) {
	params := &stripe.PaymentIntentCreateParams{
		Customer:   stripe.String(customerID),
		Amount:     stripe.Int64(plan.PriceCents),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		Confirm:    stripe.Bool(true),
		OffSession: stripe.Bool(true),
		Metadata: map[string]string{
			config.StripeMetadataPlan: plan.ID,
		},
	}
	if _, err := b.sc.V1PaymentIntents.Create(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to charge lifetime purchase: %w", err)
	}

	updateParams := &stripe.CustomerUpdateParams{
		Metadata: map[string]string{config.StripeMetadataLifetime: "true"},
	}
	if _, err := b.sc.V1Customers.Update(ctx, customerID, updateParams); err != nil {
		return nil, fmt.Errorf("failed to record lifetime purchase: %w", err)
	}

	return &CustomerInfo{
		Tier:               models.TierLifetime,
		ActiveEntitlements: []string{"premium"},
	}, nil
}

// RestorePurchases re-fetches known purchases. Finding nothing active is a
// valid TierNone result: restore reconciles truth, it does not only upgrade.
func (b *Billing) RestorePurchases(ctx context.Context, userID string) (*CustomerInfo, error) {
	return b.FetchCustomerInfo(ctx, userID)
}

func (b *Billing) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, b.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// CustomerUserID reads back our user ID from a customer's metadata, for
// webhook events that only carry the Stripe customer.
func (b *Billing) CustomerUserID(ctx context.Context, customerID string) (string, error) {
	customer, err := b.sc.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve customer: %w", err)
	}
	return customer.Metadata["user_id"], nil
}
