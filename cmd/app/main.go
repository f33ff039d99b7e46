package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streampass/internal/api/v1/router"
	"streampass/internal/config"
	"streampass/internal/database"
	"streampass/internal/logger"
	"streampass/internal/service"

	"github.com/joho/godotenv"
)

// @title Streampass API
// @version 1.0
// @description Authentication and Stripe subscription billing API
// @host localhost:8080
// @BasePath /
// @Schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	log := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Msgf("Error loading config: %v", err)
	}
	log = logger.NewWithWriter(os.Stderr, cfg.IsDevelopment())

	ctx := context.Background()

	// 2. Resolve Stripe secrets from Secret Manager when configured
	if cfg.GCPProjectID != "" && (cfg.StripeSecretKeySecret != "" || cfg.StripeWebhookSecretSecret != "") {
		sm, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Secret Manager client")
		}
		if err := service.ResolveStripeSecrets(ctx, cfg, sm, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to resolve Stripe secrets")
		}
		_ = sm.Close()
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// 3. Database
	if cfg.DBAutoMigrate {
		if err := database.Migrate(cfg.DatabaseURL(), log); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}
	pool, err := database.NewPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// 4. Build router
	r, closeClients, err := router.New(ctx, cfg, pool, log)
	if err != nil {
		log.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer closeClients()

	// 5. Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 6. Start server in a goroutine
	go func() {
		log.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Msgf("Listen: %s\n", err)
		}
	}()

	// 7. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server shut down gracefully")
}
