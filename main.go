package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/commercekit/llm-gateway/internal/api"
	"github.com/commercekit/llm-gateway/internal/cache"
	"github.com/commercekit/llm-gateway/internal/config"
	"github.com/commercekit/llm-gateway/internal/database"
	"github.com/commercekit/llm-gateway/internal/gateway"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := database.Init(); err != nil {
		logger.Fatal("database init", zap.Error(err))
	}
	defer database.Close()

	// The cache client is constructed once here and closed on shutdown; the
	// cache layer never creates its own connection.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Cfg.RedisAddr,
		Password: config.Cfg.RedisPassword,
		DB:       config.Cfg.RedisDB,
	})
	defer redisClient.Close()

	responseCache := cache.New(redisClient, config.Cfg.CacheTTL)
	srv := &api.Server{GW: gateway.New(responseCache), Cache: responseCache}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// No auth
	r.Get("/health", srv.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(api.ServiceKeyAuth)

		r.With(api.RateLimitMiddleware).Post("/generate", srv.Generate)

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", api.ListProviders)
			r.Post("/", api.CreateProvider)
			r.Get("/{id}", api.GetProvider)
			r.Patch("/{id}", api.UpdateProvider)
			r.Delete("/{id}", api.DeleteProvider)
			r.Post("/{id}/test", api.TestProvider)
		})

		r.Route("/overrides", func(r chi.Router) {
			r.Get("/", api.ListOverrides)
			r.Post("/", api.CreateOverride)
			r.Delete("/{id}", api.DeleteOverride)
		})

		r.Route("/usage", func(r chi.Router) {
			r.Get("/summary", api.UsageSummary)
			r.Get("/by-provider", api.UsageByProvider)
			r.Get("/by-service", api.UsageByService)
			r.Get("/by-customer", api.UsageByCustomer)
		})
	})

	httpServer := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("LLM gateway starting", zap.String("addr", config.Cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-sigCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("shutdown error", zap.Error(err))
	}
	logger.Info("LLM gateway stopped")
}
