package api

import (
	"encoding/json"
	"net/http"

	"github.com/safebite/server/internal/coach"
	"github.com/safebite/server/internal/engine"
	"github.com/safebite/server/internal/logger"
	"github.com/safebite/server/internal/logging"
	"github.com/safebite/server/internal/models"
	"github.com/safebite/server/internal/user"
)

type CoachHandler struct {
	engine *engine.Engine
	coach  *coach.Coach
}

func NewCoachHandler(engine *engine.Engine, c *coach.Coach) *CoachHandler {
	return &CoachHandler{engine: engine, coach: c}
}

type CoachMessageRequest struct {
	Message string `json:"message"`
}

type CoachMessageResponse struct {
	Reply    string                 `json:"reply,omitempty"`
	Decision models.PaywallDecision `json:"decision"`
}

// SendMessage is the quota-gated proxy to the coach model. The gate runs
// first; a denied attempt returns the paywall decision and never reaches
// the model.
func (h *CoachHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	var req CoachMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	logging.EnrichFeature(r.Context(), string(models.FeatureAICoach))

	decision, err := h.engine.CanUseFeature(r.Context(), dbUser.ID, models.FeatureAICoach)
	if err != nil {
		logging.EnrichError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "Failed to evaluate message quota")
		return
	}
	logging.EnrichDecision(r.Context(), decision.Allowed, string(decision.Trigger), string(decision.Severity), decision.Remaining)

	if !decision.Allowed {
		writeJSON(w, CoachMessageResponse{Decision: decision})
		return
	}

	reply, err := h.coach.SendMessage(r.Context(), req.Message)
	if err != nil {
		logging.EnrichError(r.Context(), err)
		logger.Log.Error("coach reply failed", "error", err, "user_id", dbUser.ID)
		writeError(w, http.StatusBadGateway, "Coach is unavailable, try again")
		return
	}

	writeJSON(w, CoachMessageResponse{Reply: reply, Decision: decision})
}
