package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"card-advisor-api/internal/cache"
	"card-advisor-api/internal/catalog"
	"card-advisor-api/internal/config"
	"card-advisor-api/internal/database"
	"card-advisor-api/internal/events"
	"card-advisor-api/internal/features"
	"card-advisor-api/internal/handler"
	"card-advisor-api/internal/llm"
	"card-advisor-api/internal/merchant"
	"card-advisor-api/internal/metrics"
	"card-advisor-api/internal/middleware"
	"card-advisor-api/internal/pipeline"
	"card-advisor-api/internal/service"
	"card-advisor-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}

	// Initialize tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "card-advisor-api",
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Printf("WARN: failed to shut down tracing: %v", err)
		}
	}()

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Feature flags
	flags := features.NewManager()
	flags.Register(features.FeatureCacheEnabled, true, "Response cache for the recommendation pipeline")
	flags.Register(features.FeatureLLMEnabled, cfg.LLM.Enabled, "Live LLM fallback for unrecognized queries")
	flags.Register(features.FeatureEventHooksEnabled, true, "Asynchronous event hooks")
	flags.Register(features.FeatureCommunityEnabled, true, "Card reviews and discussion threads")
	defer flags.Shutdown()

	ev := events.NewManager(flags.IsEnabled(features.FeatureEventHooksEnabled))
	defer ev.Shutdown()

	// Catalog snapshot and merchant resolver. The resolver is built once
	// from the boot snapshot; merchant changes require a restart.
	store := catalog.NewStore(db)
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	snap, err := store.Snapshot(bootCtx, cfg.Pipeline.CatalogVersionTag)
	bootCancel()
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	resolver := merchant.NewResolver(snap.Merchants())

	// Response cache
	var responseCache cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		responseCache = redisCache
	default:
		responseCache = cache.NewMemoryCache(cfg.Cache.MaxSize)
	}

	// LLM gateway (optional)
	var gateway *llm.Gateway
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		client := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
		gateway = llm.NewGateway(client, llm.NewQuota(cfg.LLM.MaxCallsPerUserPerMinute))
	} else {
		flags.Disable(features.FeatureLLMEnabled)
		log.Println("LLM fallback disabled; unrecognized queries get a retry response")
	}

	// Metrics
	collector := metrics.New(responseCache)
	collector.Register(prometheus.DefaultRegisterer)

	p := pipeline.New(pipeline.Config{
		CacheTTL:          time.Duration(cfg.Cache.DefaultTTLSeconds) * time.Second,
		FallbackThreshold: cfg.LLM.FallbackThreshold,
		Deadline:          time.Duration(cfg.Pipeline.DeadlineSeconds) * time.Second,
		CatalogVersionTag: cfg.Pipeline.CatalogVersionTag,
	}, db, store, resolver, responseCache, gateway, collector, ev)

	svc := service.NewService(db, ev)
	h := handler.NewHandlerWithOptions(svc, p, flags, handler.NewHandlerOptions{
		MaxBodySize: cfg.Server.MaxRequestBodySize,
	})

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.Tracing.Enabled {
		r.Use(middleware.TracingMiddleware())
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Server.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", h.Health)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		if err := collector.Refresh(req.Context()); err != nil {
			log.Printf("WARN: failed to refresh cache metrics: %v", err)
		}
		promhttp.Handler().ServeHTTP(w, req)
	})
	r.Get("/cards", h.GetCards)
	r.Get("/cards/{card_id}", h.GetCardDetail)
	r.Get("/cards/{card_id}/reviews", h.GetReviews)
	r.Get("/threads", h.GetThreads)
	r.Get("/threads/{thread_id}/replies", h.GetThreadReplies)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
		if rateLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(rateLimiter))
		}

		r.Post("/chat", h.Chat)

		r.Route("/users/me/cards", func(r chi.Router) {
			r.Get("/", h.GetUserCards)
			r.Post("/", h.AddUserCard)
			r.Delete("/{id}", h.DeleteUserCard)
		})

		r.Post("/cards/{card_id}/reviews", h.CreateReview)
		r.Post("/threads", h.CreateThread)
		r.Post("/threads/{thread_id}/replies", h.CreateThreadReply)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/cards", h.UpsertCard)
			r.Post("/merchants", h.UpsertMerchant)
		})
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting HTTP server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	log.Printf("Cache backend: %s (max %d entries)", cfg.Cache.Backend, cfg.Cache.MaxSize)
	log.Printf("Catalog version: %s (%d cards, %d merchants)",
		cfg.Pipeline.CatalogVersionTag, len(snap.Cards()), len(snap.Merchants()))

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}

	log.Println("Server stopped")
}
