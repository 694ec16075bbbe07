package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/safebite/server/internal/engine"
	"github.com/safebite/server/internal/logger"
	"github.com/safebite/server/internal/logging"
	"github.com/safebite/server/internal/models"
	"github.com/safebite/server/internal/quota"
	"github.com/safebite/server/internal/user"
)

type FeatureHandler struct {
	engine *engine.Engine
}

func NewFeatureHandler(engine *engine.Engine) *FeatureHandler {
	return &FeatureHandler{engine: engine}
}

// UseFeature is the single feature-use entry point: it meters the attempt
// and returns the paywall decision the client renders. A blocked action is
// a 200 with allowed=false, not an error.
func (h *FeatureHandler) UseFeature(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	featureID := models.FeatureID(mux.Vars(r)["featureID"])
	logging.EnrichFeature(r.Context(), string(featureID))

	decision, err := h.engine.CanUseFeature(r.Context(), dbUser.ID, featureID)
	if err != nil {
		if !featureID.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown feature")
			return
		}
		logging.EnrichError(r.Context(), err)
		logger.Log.Error("feature gate failed", "error", err, "user_id", dbUser.ID, "feature_id", featureID)
		writeError(w, http.StatusInternalServerError, "Failed to evaluate feature use")
		return
	}

	logging.EnrichDecision(r.Context(), decision.Allowed, string(decision.Trigger), string(decision.Severity), decision.Remaining)
	writeJSON(w, decision)
}

func (h *FeatureHandler) GetTrial(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	state, err := h.engine.TrialState(r.Context(), dbUser.ID)
	if err != nil {
		logging.EnrichError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "Failed to load trial state")
		return
	}

	logging.EnrichTrial(r.Context(), string(state.Status))
	writeJSON(w, state)
}

func (h *FeatureHandler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	// Reads never block on the network; a refresh runs behind the response.
	go h.engine.SyncOnLaunch(context.WithoutCancel(r.Context()), dbUser.ID)

	writeJSON(w, h.engine.Entitlement(r.Context(), dbUser.ID))
}

type usageEntry struct {
	FeatureID string `json:"feature_id"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
}

func (h *FeatureHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	entries := make([]usageEntry, 0, len(quota.FeatureOrder))
	for _, featureID := range quota.FeatureOrder {
		q, err := h.engine.Usage(r.Context(), dbUser.ID, featureID)
		if err != nil {
			logging.EnrichError(r.Context(), err)
			writeError(w, http.StatusInternalServerError, "Failed to load usage")
			return
		}
		cfg := quota.Features[featureID]
		entries = append(entries, usageEntry{
			FeatureID: string(featureID),
			Used:      q.Used,
			Limit:     cfg.Limit,
		})
	}

	writeJSON(w, entries)
}
