package quota

import (
	"time"

	"github.com/safebite/server/internal/models"
)

// FeatureConfig is the free-tier allowance for one metered feature.
type FeatureConfig struct {
	FeatureID    models.FeatureID
	Limit        int64
	WindowLength time.Duration
}

// Features holds the metered-feature catalog keyed by feature ID.
// Premium users bypass the ledger entirely, so these limits only ever
// apply to free and trialing users.
var Features = map[models.FeatureID]FeatureConfig{
	models.FeatureBarcodeScan: {
		FeatureID:    models.FeatureBarcodeScan,
		Limit:        20,
		WindowLength: 24 * time.Hour,
	},
	models.FeaturePhotoScan: {
		FeatureID:    models.FeaturePhotoScan,
		Limit:        3,
		WindowLength: 24 * time.Hour,
	},
	models.FeatureAICoach: {
		FeatureID:    models.FeatureAICoach,
		Limit:        5,
		WindowLength: 24 * time.Hour,
	},
	models.FeatureMealPlan: {
		FeatureID:    models.FeatureMealPlan,
		Limit:        1,
		WindowLength: 7 * 24 * time.Hour,
	},
}

// FeatureOrder defines the display ordering of features.
var FeatureOrder = []models.FeatureID{
	models.FeatureBarcodeScan,
	models.FeaturePhotoScan,
	models.FeatureAICoach,
	models.FeatureMealPlan,
}

// GetFeature returns a feature config by its ID.
func GetFeature(id models.FeatureID) (FeatureConfig, bool) {
	cfg, ok := Features[id]
	return cfg, ok
}
