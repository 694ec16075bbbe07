package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/safebite/server/internal/billing"
	"github.com/safebite/server/internal/engine"
	"github.com/safebite/server/internal/logger"
	"github.com/safebite/server/internal/logging"
	"github.com/safebite/server/internal/reconcile"
	"github.com/safebite/server/internal/user"
	"github.com/stripe/stripe-go/v84"
)

type BillingHandler struct {
	engine  *engine.Engine
	billing *billing.Billing
	users   user.Repository
}

func NewBillingHandler(engine *engine.Engine, b *billing.Billing, users user.Repository) *BillingHandler {
	return &BillingHandler{engine: engine, billing: b, users: users}
}

type PurchaseRequest struct {
	PlanID string `json:"plan_id"`
}

type PlanResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tier        string `json:"tier"`
	PriceCents  int64  `json:"price_cents"`
	Interval    string `json:"interval,omitempty"`
}

func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := make([]PlanResponse, 0, len(billing.PlanOrder))
	for _, id := range billing.PlanOrder {
		p := billing.Plans[id]
		plans = append(plans, PlanResponse{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Tier:        string(p.Tier),
			PriceCents:  p.PriceCents,
			Interval:    p.Interval,
		})
	}
	writeJSON(w, plans)
}

// Purchase applies a plan purchase synchronously. Failures surface here as
// error responses so the client can show a retry affordance; this is the
// one path where billing errors are user-visible.
func (h *BillingHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "plan_id is required")
		return
	}
	if billing.GetPlan(req.PlanID) == nil {
		writeError(w, http.StatusBadRequest, "Invalid plan_id")
		return
	}

	ent, err := h.engine.Purchase(r.Context(), dbUser.ID, req.PlanID)
	if err != nil {
		logging.EnrichError(r.Context(), err)
		logger.Log.Error("purchase failed", "error", err, "user_id", dbUser.ID, "plan_id", req.PlanID)
		writeError(w, purchaseStatus(err), "Purchase failed: "+providerMessage(err))
		return
	}

	writeJSON(w, ent)
}

// Restore reconciles against the provider's record, downgrading if nothing
// active is found.
func (h *BillingHandler) Restore(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	ent, err := h.engine.Restore(r.Context(), dbUser.ID)
	if err != nil {
		logging.EnrichError(r.Context(), err)
		logger.Log.Error("restore failed", "error", err, "user_id", dbUser.ID)
		writeError(w, purchaseStatus(err), "Restore failed: "+providerMessage(err))
		return
	}

	writeJSON(w, ent)
}

func purchaseStatus(err error) int {
	if errors.Is(err, reconcile.ErrNetworkUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func providerMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	if errors.Is(err, reconcile.ErrNetworkUnavailable) {
		return "billing service unreachable"
	}
	return "billing provider rejected the request"
}

// Webhook handles Stripe events. Subscription lifecycle changes trigger a
// reconciliation for the affected user so the cache converges on truth
// without waiting for the next app launch.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read payload")
		return
	}

	event, err := h.billing.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	switch event.Type {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		h.handleSubscriptionEvent(w, r, event)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *BillingHandler) handleSubscriptionEvent(w http.ResponseWriter, r *http.Request, event *stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed subscription event")
		return
	}
	if sub.Customer == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	dbUser, err := h.users.GetByStripeCustomerID(r.Context(), sub.Customer.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// Unknown customer: acknowledge so Stripe stops retrying.
		logger.Log.Warn("webhook for unknown customer", "customer_id", sub.Customer.ID)
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		// Transient lookup failure: error out so Stripe redelivers.
		logger.Log.Error("webhook customer lookup failed", "error", err, "customer_id", sub.Customer.ID)
		writeError(w, http.StatusInternalServerError, "Failed to resolve customer")
		return
	}

	h.engine.SyncOnLaunch(r.Context(), dbUser.ID)
	w.WriteHeader(http.StatusOK)
}
