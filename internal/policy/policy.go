package policy

import (
	"github.com/safebite/server/internal/models"
	"github.com/safebite/server/internal/quota"
)

// Decide maps {trusted entitlement, trial phase, quota result, attempted
// feature} to a paywall decision. Pure function: recomputable at any time,
// nothing persisted.
//
// Precedence: quota exhaustion beats trial expiry, and any hard block beats
// the ending-soon soft prompt.
func Decide(premium bool, trial models.TrialState, res quota.Result, featureID models.FeatureID) models.PaywallDecision {
	if premium {
		return models.PaywallDecision{Allowed: true}
	}

	if !res.Allowed {
		return models.PaywallDecision{
			Allowed:    false,
			ShouldShow: true,
			Severity:   models.SeverityBlocking,
			Trigger:    featureTrigger(featureID),
			Message:    blockedMessage(featureID),
			Remaining:  remaining(res),
		}
	}

	if trial.Status == models.TrialExpired {
		return models.PaywallDecision{
			Allowed:    false,
			ShouldShow: true,
			Severity:   models.SeverityBlocking,
			Trigger:    models.TriggerTrialEnd,
			Message:    "Your free trial has ended. Upgrade to keep scanning and coaching.",
			Remaining:  remaining(res),
		}
	}

	if trial.Status == models.TrialEndingSoon && featureID.PremiumAdjacent() {
		return models.PaywallDecision{
			Allowed:    true,
			ShouldShow: true,
			Severity:   models.SeverityWarning,
			Trigger:    featureTrigger(featureID),
			Message:    endingSoonMessage(trial.DaysRemaining),
			Remaining:  remaining(res),
		}
	}

	return models.PaywallDecision{Allowed: true, Remaining: remaining(res)}
}

func featureTrigger(featureID models.FeatureID) models.PaywallTrigger {
	switch featureID {
	case models.FeatureAICoach:
		return models.TriggerAICoach
	case models.FeatureMealPlan:
		return models.TriggerMealPlan
	default:
		return models.TriggerScanLimit
	}
}

func blockedMessage(featureID models.FeatureID) string {
	switch featureID {
	case models.FeatureAICoach:
		return "You've used today's free coach messages. Go premium for unlimited coaching."
	case models.FeatureMealPlan:
		return "You've used this week's free meal plan. Go premium for unlimited plans."
	case models.FeaturePhotoScan:
		return "You've used today's free photo scans. Go premium for unlimited scans."
	default:
		return "You've used today's free scans. Go premium for unlimited scans."
	}
}

func endingSoonMessage(daysRemaining int) string {
	if daysRemaining == 1 {
		return "Your trial ends tomorrow. Upgrade now to keep premium features."
	}
	return "Your trial is ending soon. Upgrade now to keep premium features."
}

func remaining(res quota.Result) *int64 {
	if res.Unlimited {
		return nil
	}
	r := res.Remaining
	return &r
}
