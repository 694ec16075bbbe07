package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safebite/server/internal/api"
	"github.com/safebite/server/internal/auth"
	"github.com/safebite/server/internal/billing"
	"github.com/safebite/server/internal/coach"
	"github.com/safebite/server/internal/config"
	"github.com/safebite/server/internal/db"
	"github.com/safebite/server/internal/engine"
	"github.com/safebite/server/internal/entitlement"
	"github.com/safebite/server/internal/quota"
	"github.com/safebite/server/internal/reconcile"
	"github.com/safebite/server/internal/store"
	"github.com/safebite/server/internal/trial"
	"github.com/safebite/server/internal/user"
)

func main() {
	cfg := config.Load()

	bunDB := db.NewBunPostgresClient(cfg.DatabaseURL)
	defer bunDB.Close()

	ctx := context.Background()

	quotaStore := store.NewPostgresStoreWithDB(bunDB)
	if err := quotaStore.InitializeDatabase(ctx); err != nil {
		log.Fatalf("Failed to initialize quota tables: %v", err)
	}

	userRepo := user.NewUserRepository(bunDB)
	if err := userRepo.InitializeDatabase(ctx); err != nil {
		log.Fatalf("Failed to initialize user tables: %v", err)
	}

	auth.Configure()

	stripeBilling := billing.NewBilling(userRepo)
	if err := stripeBilling.SyncStripeCatalog(ctx); err != nil {
		log.Fatalf("Failed to sync Stripe catalog: %v", err)
	}

	ledger := quota.NewLedger(quotaStore)
	cache := entitlement.NewCache(quotaStore)
	trialClock := trial.NewClock(cfg.TrialLengthDays)
	coordinator := reconcile.NewCoordinator(
		stripeBilling,
		cache,
		time.Duration(cfg.SyncTimeoutSecs)*time.Second,
		time.Duration(cfg.PurchaseTimeoutSecs)*time.Second,
	)
	eng := engine.NewEngine(
		ledger,
		cache,
		trialClock,
		coordinator,
		userRepo,
		time.Duration(cfg.GraceWindowHours)*time.Hour,
	)

	nutritionCoach, err := coach.NewCoach(cfg.GeminiAPIKey, coach.WithModel(cfg.CoachModel))
	if err != nil {
		log.Fatalf("Failed to create coach client: %v", err)
	}

	userService := user.NewUserService(userRepo, stripeBilling, quotaStore, cache)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.WorkOSClientID)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	featureHandler := api.NewFeatureHandler(eng)
	billingHandler := api.NewBillingHandler(eng, stripeBilling, userRepo)
	coachHandler := api.NewCoachHandler(eng, nutritionCoach)
	userHandler := api.NewUserHandler(userService)

	router := api.SetupRoutes(featureHandler, billingHandler, coachHandler, userHandler, auth.NewMiddleware(jwtVerifier), userService)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on %s", cfg.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}
