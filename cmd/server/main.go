package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/predix/prediction-engine/internal/asset"
	"github.com/predix/prediction-engine/internal/engine"
	"github.com/predix/prediction-engine/internal/metrics"
	"github.com/predix/prediction-engine/internal/model"
	"github.com/predix/prediction-engine/internal/oracle"
	"github.com/predix/prediction-engine/internal/store"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Seed config ---
	cfg, err := configFromEnv()
	if err != nil {
		slog.Error("invalid market configuration", "err", err)
		os.Exit(1)
	}

	// --- Collaborators ---
	src := oracle.NewHTTPSource(cfg.OracleURL)
	gateway := asset.NewRecorder(cfg.BetAsset)

	// --- WebSocket hub ---
	wsHub := engine.NewWSHub()
	go wsHub.Run()

	// --- Engine ---
	svc := engine.NewService(st, src, gateway, wsHub)
	if err := svc.Bootstrap(context.Background(), cfg); err != nil {
		slog.Error("bootstrap failed", "err", err)
		os.Exit(1)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"prediction-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("prediction-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down prediction-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("prediction-engine stopped")
}

// configFromEnv builds the market Config seeded on first boot. Once a
// config is persisted, these values are ignored in favor of the stored
// record (mutated only through UpdateConfig).
func configFromEnv() (*model.Config, error) {
	betAsset, err := asset.Parse(envOr("BET_ASSET", "native:uscrt"))
	if err != nil {
		return nil, err
	}

	feeRate, err := decimal.NewFromString(envOr("FEE_RATE", "0.05"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEE_RATE: %w", err)
	}

	interval, err := envInt("ROUND_INTERVAL", 18000)
	if err != nil {
		return nil, err
	}
	grace, err := envInt("GRACE_INTERVAL", interval)
	if err != nil {
		return nil, err
	}

	cfg := &model.Config{
		OwnerAddr:     envOr("OWNER_ADDR", "owner"),
		OperatorAddr:  envOr("OPERATOR_ADDR", "operator"),
		TreasuryAddr:  envOr("TREASURY_ADDR", "treasury"),
		BetAsset:      betAsset,
		OracleURL:     envOr("ORACLE_URL", "http://localhost:8081"),
		BaseSymbol:    envOr("BASE_SYMBOL", "BTC"),
		QuoteSymbol:   envOr("QUOTE_SYMBOL", "USD"),
		FeeRate:       feeRate,
		Interval:      interval,
		GraceInterval: grace,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
