package auth

import (
	"net/http"

	"github.com/safebite/server/internal/config"
	"github.com/safebite/server/internal/logger"
	"github.com/workos/workos-go/v6/pkg/usermanagement"
)

func LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := config.GetConfig()

		authorizationURL, err := usermanagement.GetAuthorizationURL(
			usermanagement.GetAuthorizationURLOpts{
				ClientID:    cfg.WorkOSClientID,
				Provider:    "authkit",
				RedirectURI: cfg.WorkOSRedirectURL,
			},
		)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, authorizationURL.String(), http.StatusSeeOther)
	}
}

func CallbackHandler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetConfig()

	opts := usermanagement.AuthenticateWithCodeOpts{
		ClientID: cfg.WorkOSClientID,
		Code:     r.URL.Query().Get("code"),
	}

	if _, err := usermanagement.AuthenticateWithCode(r.Context(), opts); err != nil {
		logger.Log.Warn("auth code exchange failed", "error", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	http.Redirect(w, r, cfg.FE_BASE_URL, http.StatusSeeOther)
}
