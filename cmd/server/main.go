package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiora-labs/aura-backend/internal/api"
	"github.com/fiora-labs/aura-backend/internal/cache"
	"github.com/fiora-labs/aura-backend/internal/config"
	"github.com/fiora-labs/aura-backend/internal/notify"
	"github.com/fiora-labs/aura-backend/internal/repository/postgres"
	"github.com/fiora-labs/aura-backend/internal/service"
	"github.com/fiora-labs/aura-backend/internal/vision"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	repos := postgres.NewRepositories(db)
	txManager := postgres.NewTxManager(db)

	// Redis is optional; without it referral status reads hit postgres.
	var statusCache *cache.ReferralStatusCache
	if cfg.RedisURL != "" {
		statusCache, err = cache.NewReferralStatusCache(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer statusCache.Close()
	}

	visionClient, err := vision.New(vision.Options{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build vision client", zap.Error(err))
	}

	hub := notify.NewHub(logger)
	go hub.Run()

	services := service.NewServices(repos, txManager, visionClient, statusCache, hub, cfg, logger)

	router := api.NewRouter(services, hub, logger)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	hub.Stop()
	logger.Info("server stopped")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
