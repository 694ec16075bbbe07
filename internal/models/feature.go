package models

import "time"

type FeatureID string

const (
	FeatureBarcodeScan FeatureID = "barcode_scan"
	FeaturePhotoScan   FeatureID = "photo_scan"
	FeatureAICoach     FeatureID = "ai_coach"
	FeatureMealPlan    FeatureID = "meal_plan"
)

func (f FeatureID) Valid() bool {
	switch f {
	case FeatureBarcodeScan, FeaturePhotoScan, FeatureAICoach, FeatureMealPlan:
		return true
	}
	return false
}

// PremiumAdjacent reports whether a feature is one we upsell around
// (used by the paywall policy for the trial ending-soon prompt).
func (f FeatureID) PremiumAdjacent() bool {
	return f == FeatureAICoach || f == FeatureMealPlan
}

// FeatureQuota is the per-feature usage counter and its reset window.
// Used never exceeds the configured limit and only resets on a window
// rollover, which advances WindowStart by whole window lengths.
type FeatureQuota struct {
	FeatureID    FeatureID     `json:"feature_id"`
	Used         int64         `json:"used"`
	WindowStart  time.Time     `json:"window_start"`
	WindowLength time.Duration `json:"window_length"`
}
