package api

import (
	"net/http"

	"github.com/safebite/server/internal/logger"
	"github.com/safebite/server/internal/logging"
	"github.com/safebite/server/internal/user"
)

type UserHandler struct {
	users user.Service
}

func NewUserHandler(users user.Service) *UserHandler {
	return &UserHandler{users: users}
}

// SignOut drops the user's locally held entitlement and quota state. The
// billing provider keeps its record; a restore after the next sign-in
// rebuilds the entitlement.
func (h *UserHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	if err := h.users.SignOut(r.Context(), dbUser.ID); err != nil {
		logging.EnrichError(r.Context(), err)
		logger.Log.Error("sign-out reset failed", "error", err, "user_id", dbUser.ID)
		writeError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
