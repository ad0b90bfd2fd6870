package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/jasper9/nbastats.fun/internal/cache"
	"github.com/jasper9/nbastats.fun/internal/config"
	"github.com/jasper9/nbastats.fun/internal/consumer"
	"github.com/jasper9/nbastats.fun/internal/handlers"
	"github.com/jasper9/nbastats.fun/internal/hub"
	"github.com/jasper9/nbastats.fun/internal/metrics"
	"github.com/jasper9/nbastats.fun/internal/presence"
	"github.com/jasper9/nbastats.fun/internal/schedule"
	"github.com/jasper9/nbastats.fun/internal/telemetry"
)

func main() {
	fmt.Println("=== nbastats.fun Stats API ===")

	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fmt.Printf("❌ Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	fmt.Println("✓ Connected to Redis")

	// The API reads the same durable records the tracker writes; the
	// atomic-replace discipline makes that safe with no locking
	store, err := telemetry.NewStore(cfg.Tracker.DataDir)
	if err != nil {
		fmt.Printf("❌ Durable store unavailable: %v\n", err)
		os.Exit(1)
	}
	book := schedule.NewBook(cfg.Tracker.DataDir)

	m := metrics.New()

	h := hub.NewHub(m)
	go h.Run(ctx)

	streamConsumer := consumer.NewStreamConsumer(redisClient, h, cfg.Stream, m)
	go streamConsumer.Start(ctx)

	// A record that stops updating mid-game is flagged stale after a few
	// missed polling ticks
	staleAfter := 3 * cfg.Tracker.LivePollInterval

	handler := handlers.NewHandler(
		store,
		cache.NewRedisWriter(redisClient),
		presence.NewTracker(redisClient, cfg.Presence.TTL),
		book,
		h,
		cfg.Presence.TTL,
		staleAfter,
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", handler.HealthCheck)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	// The WebSocket route stays outside the timeout middleware;
	// subscriptions live for the length of a game
	r.Get("/ws", handler.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))

		r.Get("/events", handler.ListEvents)
		r.Get("/events/{eventID}/telemetry", handler.GetTelemetry)
		r.Get("/events/{eventID}/consensus", handler.GetConsensus)
		r.Get("/events/{eventID}/status", handler.GetStatus)
		r.Post("/events/{eventID}/heartbeat", handler.PostHeartbeat)
		r.Get("/events/{eventID}/viewers", handler.GetViewers)

		r.Get("/schedule", handler.GetSchedule)
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Printf("✓ Stats API listening on %s\n", cfg.Server.Addr)
		fmt.Println("  Endpoints:")
		fmt.Println("    GET  /healthz")
		fmt.Println("    GET  /metrics")
		fmt.Println("    GET  /ws")
		fmt.Println("    GET  /api/v1/events")
		fmt.Println("    GET  /api/v1/events/{eventID}/telemetry")
		fmt.Println("    GET  /api/v1/events/{eventID}/consensus")
		fmt.Println("    GET  /api/v1/events/{eventID}/status")
		fmt.Println("    POST /api/v1/events/{eventID}/heartbeat")
		fmt.Println("    GET  /api/v1/events/{eventID}/viewers")
		fmt.Println("    GET  /api/v1/schedule")

		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		fmt.Printf("❌ Server error: %v\n", err)
		os.Exit(1)

	case sig := <-shutdown:
		fmt.Printf("\n⚠️  Received signal: %v\n", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("⚠️  Graceful shutdown failed: %v\n", err)
			if err := srv.Close(); err != nil {
				fmt.Printf("❌ Could not stop server: %v\n", err)
			}
		}
		cancel()
	}

	fmt.Println("✓ Shutdown complete")
}
