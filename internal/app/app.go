// Package app wires configuration, storage, the model registry and the HTTP
// surface into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/modelarena/internal/arena"
	"github.com/modelarena/modelarena/internal/config"
	"github.com/modelarena/modelarena/internal/db"
	"github.com/modelarena/modelarena/internal/dispatch"
	"github.com/modelarena/modelarena/internal/http/api/handlers"
	"github.com/modelarena/modelarena/internal/providers"
	"github.com/modelarena/modelarena/internal/quota"
	"github.com/modelarena/modelarena/internal/ratelimit"
	"github.com/modelarena/modelarena/internal/rating"
	"github.com/modelarena/modelarena/internal/registry"
	"github.com/modelarena/modelarena/internal/usage"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Options holds process-level inputs from the command line.
type Options struct {
	ConfigPath string
	Port       int
}

// Migrate opens the database and runs migrations.
func Migrate(_ context.Context, opts Options) error {
	cfg, errLoad := config.Load(opts.ConfigPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with database-backed components and serves
// until ctx is canceled.
func RunServer(ctx context.Context, opts Options) error {
	cfg, errLoad := config.Load(opts.ConfigPath)
	if errLoad != nil {
		return errLoad
	}

	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	log.Infof("database ready, dialect=%s", db.DialectName(conn))

	reg := registry.New()
	whisper, errBootstrap := providers.Bootstrap(reg, cfg.Providers)
	if errBootstrap != nil {
		return errBootstrap
	}
	if len(reg.All()) == 0 {
		log.Warn("no providers configured, only quota and leaderboard endpoints are useful")
	}

	quotas := quota.NewStore(conn, cfg.DefaultDailyQuota)
	ratings := rating.NewStore(conn)
	if errSync := ratings.SyncRegistry(ctx, reg); errSync != nil {
		return errSync
	}

	pairs, errPairs := buildPairStore(ctx, cfg)
	if errPairs != nil {
		return errPairs
	}

	var transcriber dispatch.Transcriber
	if whisper != nil {
		transcriber = whisper
	}
	dispatchEngine := dispatch.NewEngine(reg, quotas, transcriber)
	arenaEngine := arena.NewEngine(reg, quotas, ratings, pairs)

	recorder := usage.NewGormRecorder(conn)
	dispatchEngine.SetRecorder(recorder)
	arenaEngine.SetRecorder(recorder)

	limiter := ratelimit.NewManager(ratelimit.Options{
		Limit:     cfg.RequestsPerSecond,
		Window:    time.Second,
		RedisAddr: cfg.RedisAddr,
		Prefix:    "modelarena:ratelimit:",
	})
	defer limiter.Close()

	router := buildRouter(conn, reg, quotas, ratings, dispatchEngine, arenaEngine, limiter)

	port := opts.Port
	if port <= 0 {
		port = 8318
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// buildPairStore picks Redis-backed pair state when configured, so pending
// arena pairs survive restarts, and falls back to process memory otherwise.
func buildPairStore(ctx context.Context, cfg config.Config) (arena.PairStore, error) {
	if cfg.RedisAddr == "" {
		return arena.NewMemoryPairStore(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		return nil, fmt.Errorf("app: redis %s unreachable: %w", cfg.RedisAddr, errPing)
	}
	return arena.NewRedisPairStore(client, "modelarena:arena:pair:"), nil
}

// buildRouter mounts the public JSON API.
func buildRouter(
	conn *gorm.DB,
	reg *registry.Registry,
	quotas *quota.Store,
	ratings *rating.Store,
	dispatchEngine *dispatch.Engine,
	arenaEngine *arena.Engine,
	limiter *ratelimit.Manager,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if sqlDB, errDB := conn.DB(); errDB != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	dh := handlers.NewDispatchHandler(dispatchEngine, limiter)
	ah := handlers.NewArenaHandler(arenaEngine, limiter)

	v1 := router.Group("/v1")
	v1.POST("/dispatch", dh.Dispatch)
	v1.POST("/arena/rounds", ah.StartRound)
	v1.POST("/arena/votes", ah.Vote)
	v1.GET("/leaderboard", handlers.NewLeaderboardHandler(ratings).List)
	v1.GET("/users/:id/quota", handlers.NewQuotaHandler(quotas).Get)
	v1.GET("/models", handlers.NewModelsHandler(reg).List)

	return router
}
