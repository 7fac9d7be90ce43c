package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/StorytellerCZ/voteboard/internal/config"
	"github.com/StorytellerCZ/voteboard/internal/database"
	"github.com/StorytellerCZ/voteboard/internal/leaderboard"
	"github.com/StorytellerCZ/voteboard/internal/logging"
	"github.com/StorytellerCZ/voteboard/internal/redis"
	"github.com/StorytellerCZ/voteboard/internal/server"
	"github.com/StorytellerCZ/voteboard/internal/store"
)

func setupConfig() *config.Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupStore picks the item store backend: redis when REDIS_URL is set,
// otherwise the in-process memory store.
func setupStore(cfg *config.Config) (store.ItemStore, *goredis.Client) {
	if cfg.RedisURL == "" {
		slog.Info("Using in-memory item store")
		return store.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	slog.Info("Using redis item store")
	return redis.NewItemStore(client), client
}

func runGracefulShutdown(srv *server.Server, itemStore store.ItemStore) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if closer, ok := itemStore.(interface{ Close() }); ok {
			closer.Close()
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	itemStore, redisClient := setupStore(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	svc := leaderboard.NewService(itemStore, clock)
	users := database.NewUserRepo(pool)

	// Pass nil explicitly when redis is absent to avoid a typed-nil interface.
	var redisPinger server.Pinger
	if redisClient != nil {
		redisPinger = server.RedisPinger{Client: redisClient}
	}

	srv := server.NewServer(cfg, svc, users, pool, redisPinger, clock)

	done := runGracefulShutdown(srv, itemStore)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
