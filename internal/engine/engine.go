package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/safebite/server/internal/entitlement"
	"github.com/safebite/server/internal/models"
	"github.com/safebite/server/internal/policy"
	"github.com/safebite/server/internal/quota"
	"github.com/safebite/server/internal/reconcile"
	"github.com/safebite/server/internal/trial"
)

// TrialAnchors resolves the server-issued trial start and the timezone
// captured with it. Implemented by the user repository.
type TrialAnchors interface {
	TrialAnchor(ctx context.Context, userID string) (time.Time, string, error)
}

// Engine is the only surface the rest of the application may call for
// entitlement and quota decisions. Nothing outside it reads ledger or cache
// storage directly.
type Engine struct {
	ledger      *quota.Ledger
	cache       *entitlement.Cache
	clock       *trial.Clock
	coordinator *reconcile.Coordinator
	anchors     TrialAnchors
	grace       time.Duration

	now func() time.Time
}

func NewEngine(ledger *quota.Ledger, cache *entitlement.Cache, clock *trial.Clock, coordinator *reconcile.Coordinator, anchors TrialAnchors, grace time.Duration) *Engine {
	return &Engine{
		ledger:      ledger,
		cache:       cache,
		clock:       clock,
		coordinator: coordinator,
		anchors:     anchors,
		grace:       grace,
		now:         time.Now,
	}
}

// CanUseFeature decides whether a feature use proceeds and whether to show
// an upgrade prompt. On the allowed path it consumes one unit of quota; a
// blocked action never consumes.
func (e *Engine) CanUseFeature(ctx context.Context, userID string, featureID models.FeatureID) (models.PaywallDecision, error) {
	if !featureID.Valid() {
		return models.PaywallDecision{}, fmt.Errorf("%w: %s", quota.ErrUnknownFeature, featureID)
	}

	now := e.now()
	ent := e.cache.Read(ctx, userID)
	premium := ent.TrustedPremium(now, e.grace)

	if !premium && ent.StaleClaim(now, e.grace) {
		// Grace window over: gate as non-premium, keep the cached record
		// intact, and try to re-verify in the background.
		log.Info().Str("user_id", userID).Time("last_verified_at", ent.LastVerifiedAt).
			Msg("stale entitlement downgraded for gating")
		go e.coordinator.SyncOnLaunch(context.WithoutCancel(ctx), userID)
	}

	if premium {
		return policy.Decide(true, models.TrialState{}, quota.UnlimitedResult(), featureID), nil
	}

	trialState, err := e.trialState(ctx, userID, now)
	if err != nil {
		return models.PaywallDecision{}, err
	}

	// An expired trial blocks regardless of quota, so only peek: the unit
	// must not be burned on an action that will not proceed. The peek still
	// matters for the tie-break, where exhaustion outranks trial_end.
	var res quota.Result
	if trialState.Status == models.TrialExpired {
		res, err = e.ledger.Check(ctx, userID, featureID, 1)
	} else {
		res, err = e.ledger.CheckAndConsume(ctx, userID, featureID, 1)
	}
	if err != nil {
		return models.PaywallDecision{}, err
	}

	return policy.Decide(false, trialState, res, featureID), nil
}

// TrialState classifies the user's trial from the stored anchor.
func (e *Engine) TrialState(ctx context.Context, userID string) (models.TrialState, error) {
	return e.trialState(ctx, userID, e.now())
}

func (e *Engine) trialState(ctx context.Context, userID string, now time.Time) (models.TrialState, error) {
	start, tz, err := e.anchors.TrialAnchor(ctx, userID)
	if err != nil {
		return models.TrialState{}, fmt.Errorf("failed to load trial anchor: %w", err)
	}
	return e.clock.Classify(start, tz, now), nil
}

// Entitlement returns the cached snapshot. Always answers, even offline.
func (e *Engine) Entitlement(ctx context.Context, userID string) models.Entitlement {
	return e.cache.Read(ctx, userID)
}

// SyncOnLaunch refreshes the entitlement cache in the background;
// fire-and-forget, failures are swallowed by the coordinator.
func (e *Engine) SyncOnLaunch(ctx context.Context, userID string) {
	e.coordinator.SyncOnLaunch(ctx, userID)
}

// Purchase applies a plan purchase and returns the resulting entitlement.
func (e *Engine) Purchase(ctx context.Context, userID, planID string) (models.Entitlement, error) {
	return e.coordinator.ApplyPurchase(ctx, userID, planID)
}

// Restore reconciles against the provider's record of past purchases.
func (e *Engine) Restore(ctx context.Context, userID string) (models.Entitlement, error) {
	return e.coordinator.Restore(ctx, userID)
}

// Usage returns the post-rollover counter for one feature, for the client's
// usage screen.
func (e *Engine) Usage(ctx context.Context, userID string, featureID models.FeatureID) (*models.FeatureQuota, error) {
	return e.ledger.Snapshot(ctx, userID, featureID)
}
