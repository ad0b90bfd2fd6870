package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jasper9/nbastats.fun/internal/adapters"
	"github.com/jasper9/nbastats.fun/internal/cache"
	"github.com/jasper9/nbastats.fun/internal/config"
	"github.com/jasper9/nbastats.fun/internal/dedup"
	"github.com/jasper9/nbastats.fun/internal/factlog"
	"github.com/jasper9/nbastats.fun/internal/milestone"
	"github.com/jasper9/nbastats.fun/internal/presence"
	"github.com/jasper9/nbastats.fun/internal/providers/balldontlie"
	"github.com/jasper9/nbastats.fun/internal/publisher"
	"github.com/jasper9/nbastats.fun/internal/schedule"
	"github.com/jasper9/nbastats.fun/internal/scheduler"
	"github.com/jasper9/nbastats.fun/internal/telemetry"
)

func main() {
	fmt.Println("=== nbastats.fun Live Tracker ===")

	cfg := config.LoadConfig()

	loc, err := cfg.Location()
	if err != nil {
		fmt.Printf("❌ Invalid reference timezone: %v\n", err)
		os.Exit(1)
	}

	if cfg.Provider.APIKey == "" {
		fmt.Println("⚠️  WARNING: BALLDONTLIE_API_KEY not set - upstream fetches will fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis carries the snapshot/fact streams, the status cache, viewer
	// presence, and the fact delivery guard
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

	store, err := telemetry.NewStore(cfg.Tracker.DataDir)
	if err != nil {
		fmt.Printf("❌ Durable store unavailable: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Telemetry store at %s\n", cfg.Tracker.DataDir)

	book := schedule.NewBook(cfg.Tracker.DataDir)

	bdlClient := balldontlie.NewClient(cfg.Provider.APIKey,
		balldontlie.WithBaseURL(cfg.Provider.BaseURL),
		balldontlie.WithRateLimit(cfg.Provider.RequestsPerSecond, cfg.Provider.Burst),
	)

	detector := milestone.NewDetector(adapters.NewStatsSource(bdlClient))
	presenceTracker := presence.NewTracker(redisClient, cfg.Presence.TTL)
	guard := dedup.NewGuard(redisClient, cfg.Presence.FactDedupTTL)
	streamPublisher := publisher.NewStreamPublisher(redisClient,
		cfg.Stream.SnapshotStream, cfg.Stream.FactStream, cfg.Stream.MaxLen)

	// The Postgres fact audit is optional; the pipeline gates and
	// forwards the same way without it
	var audit milestone.Audit
	if cfg.FactLog.DSN != "" {
		logger, err := factlog.Open(ctx, cfg.FactLog.DSN)
		if err != nil {
			fmt.Printf("⚠️  Fact audit log unavailable: %v (continuing without)\n", err)
		} else {
			defer logger.Close()
			audit = logger
			fmt.Println("✓ Fact audit log connected")
		}
	}

	emitter := milestone.NewEmitter(presenceTracker, guard, streamPublisher, audit)

	stats := &scheduler.Stats{}
	pipe := &scheduler.Pipeline{
		Client:    bdlClient,
		Store:     store,
		Book:      book,
		Cache:     cache.NewRedisWriter(redisClient),
		Publisher: streamPublisher,
		Detector:  detector,
		Emitter:   emitter,
		Stats:     stats,
	}

	fmt.Printf("✓ Live Tracker configured:\n")
	fmt.Printf("  Sport: %s  Timezone: %s\n", cfg.Sport, cfg.Timezone)
	fmt.Printf("  Discovery tick: %s  Live poll: %s  Pregame lead: %s\n",
		cfg.Tracker.SchedulerTick, cfg.Tracker.LivePollInterval, cfg.Tracker.PregameLead)

	// A durable-write failure anywhere in the pipeline lands here; the
	// process must stop loudly rather than keep polling as if snapshots
	// were being persisted
	fatal := make(chan error, 1)
	sched := scheduler.NewScheduler(cfg, loc, pipe, fatal)

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	go stats.Report(ctx, 30*time.Second)

	fmt.Println("✓ Live Tracker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		fmt.Printf("\n⚠️  Received signal: %v\n", sig)
	case err := <-fatal:
		fmt.Printf("❌ Durable storage failure: %v\n", err)
		cancel()
		<-done
		os.Exit(1)
	}

	fmt.Println("🛑 Shutting down gracefully...")
	cancel()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		fmt.Println("⚠️  Trackers did not stop in time")
	}

	fmt.Println("✓ Shutdown complete")
}
