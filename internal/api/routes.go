package api

import (
	"github.com/gorilla/mux"

	"github.com/safebite/server/internal/auth"
	"github.com/safebite/server/internal/user"
)

func SetupRoutes(
	featureHandler *FeatureHandler,
	billingHandler *BillingHandler,
	coachHandler *CoachHandler,
	userHandler *UserHandler,
	authMiddleware *auth.Middleware,
	userService user.Service,
) *mux.Router {
	r := mux.NewRouter()

	r.Use(CORSMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	// Unauthenticated surface: login flow and the Stripe webhook, which
	// carries its own signature verification.
	r.HandleFunc("/api/v1/auth/login", auth.LoginHandler()).Methods("GET")
	r.HandleFunc("/api/v1/auth/callback", auth.CallbackHandler).Methods("GET")
	r.HandleFunc("/api/v1/stripe/webhook", billingHandler.Webhook).Methods("POST")

	authed := r.PathPrefix("/api/v1").Subrouter()
	authed.Use(authMiddleware.RequireAuth)
	authed.Use(user.UserMiddleware(userService))

	authed.HandleFunc("/features/{featureID}/use", featureHandler.UseFeature).Methods("POST")
	authed.HandleFunc("/trial", featureHandler.GetTrial).Methods("GET")
	authed.HandleFunc("/entitlement", featureHandler.GetEntitlement).Methods("GET")
	authed.HandleFunc("/usage", featureHandler.GetUsage).Methods("GET")

	authed.HandleFunc("/plans", billingHandler.ListPlans).Methods("GET")
	authed.HandleFunc("/purchase", billingHandler.Purchase).Methods("POST")
	authed.HandleFunc("/restore", billingHandler.Restore).Methods("POST")

	authed.HandleFunc("/coach/messages", coachHandler.SendMessage).Methods("POST")

	authed.HandleFunc("/auth/signout", userHandler.SignOut).Methods("POST")

	return r
}
