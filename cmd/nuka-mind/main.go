package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/nuka-mind/internal/api"
	"github.com/nidhogg/nuka-mind/internal/clock"
	"github.com/nidhogg/nuka-mind/internal/concept"
	"github.com/nidhogg/nuka-mind/internal/config"
	"github.com/nidhogg/nuka-mind/internal/events"
	"github.com/nidhogg/nuka-mind/internal/inference"
	"github.com/nidhogg/nuka-mind/internal/memory"
	"github.com/nidhogg/nuka-mind/internal/scheduler"
	"github.com/nidhogg/nuka-mind/internal/store"
	"github.com/nidhogg/nuka-mind/internal/subcon"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/nuka-mind.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting Nuka Mind...", zap.String("config", cfgPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL store
	var pgStore *store.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := store.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, cfg.Database.MigrationsDir); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
		}
	}

	// Initialize Redis
	var rdb *redis.Client
	if cfg.Database.Redis.URL != "" {
		r, rErr := store.OpenRedis(ctx, cfg.Database.Redis.URL, logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, running without it", zap.Error(rErr))
		} else {
			rdb = r
		}
	}

	// Event bus
	bus := events.NewBus(logger)
	counter := events.NewCounter()
	bus.Subscribe(counter.Handle)
	var stream *events.RedisStream
	if rdb != nil && cfg.Events.Stream != "" {
		stream = events.NewRedisStream(rdb, cfg.Events.Stream, logger)
		bus.Subscribe(stream.Handle)
		go stream.Run(ctx)
	}

	// Subconscious; evictions are forwarded once memory exists.
	var mem *memory.Memory
	params := cfg.MemoryParams()
	subOpts := subcon.Options{
		MaxItems: cfg.Subconscious.MaxItems,
		TTL:      cfg.SubconsciousTTL(),
		Params:   params.Links,
		OnEvict: func(c *concept.Concept) {
			if mem != nil {
				mem.ForgetEvicted(c)
			}
		},
	}
	cache, closeCache := newSubconscious(cfg, subOpts, pgStore, rdb, logger)

	firer := inference.NewSpreader(cfg.SpreadOpts(), logger)
	mem = memory.New(params, cache, firer, bus, logger)
	logger.Info("Memory ready",
		zap.Int("capacity", params.Concepts.Capacity),
		zap.Int("levels", params.Concepts.Levels),
		zap.String("policy", params.Concepts.Policy.String()),
		zap.String("subconscious", cfg.Subconscious.Backend))

	var runner clock.CycleRunner = mem
	if cfg.Concurrent() {
		runner = scheduler.NewPool(mem, cfg.Runtime.Workers, logger)
	}

	// Clock drives cycles and reports stats
	var recorder clock.StatsRecorder
	if pgStore != nil {
		recorder = pgStore
	}
	clk := clock.NewClock(cfg.TickInterval(), logger)
	driver := clock.NewDriver(runner, cfg.Runtime.CyclesPerTick, logger)
	clk.AddListener(driver)
	clk.AddListener(clock.NewReporter(mem, counter, recorder, cfg.Runtime.ReportEvery, logger))
	clk.Start(ctx)

	// Build HTTP handler
	opts := []api.Option{api.WithRunner(runner), api.WithCounter(counter)}
	if pgStore != nil {
		opts = append(opts, api.WithHistory(pgStore))
	}
	if stream != nil {
		opts = append(opts, api.WithEvents(stream))
	}
	handler := api.NewHandler(mem, logger, opts...)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Nuka Mind listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Nuka Mind...")
	clk.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	cancel()

	if err := driver.Err(); err != nil {
		logger.Error("memory halted during run", zap.Error(err))
	}
	logger.Info("final stats",
		zap.Int64("cycles", mem.Time()),
		zap.Int64("dropped_events", droppedEvents(stream)))
	if closeCache != nil {
		closeCache()
	}
	if rdb != nil {
		rdb.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newSubconscious builds the configured backend. A backend whose
// dependency is unavailable falls back to the in-process LRU.
func newSubconscious(cfg *config.Config, opts subcon.Options, pg *store.Store, rdb *redis.Client, logger *zap.Logger) (subcon.Cache, func()) {
	switch cfg.Subconscious.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendRistretto:
		r, err := subcon.NewRistretto(opts)
		if err != nil {
			logger.Fatal("subconscious init failed", zap.Error(err))
		}
		return r, r.Close
	case config.BackendRedis:
		if rdb != nil {
			return subcon.NewRedis(rdb, opts, logger), nil
		}
		logger.Warn("redis subconscious unavailable, using in-process cache")
	case config.BackendPostgres:
		if pg != nil {
			return pg.Subconscious(opts), nil
		}
		logger.Warn("postgres subconscious unavailable, using in-process cache")
	}
	return subcon.NewLRU(opts), nil
}

func droppedEvents(s *events.RedisStream) int64 {
	if s == nil {
		return 0
	}
	return s.Dropped()
}
