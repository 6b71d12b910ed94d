package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-dashboard/api/swagger"
	"github.com/noah-isme/sma-adp-dashboard/internal/dashboard"
	"github.com/noah-isme/sma-adp-dashboard/internal/handler"
	"github.com/noah-isme/sma-adp-dashboard/internal/resource"
	"github.com/noah-isme/sma-adp-dashboard/internal/service"
	"github.com/noah-isme/sma-adp-dashboard/internal/session"
	"github.com/noah-isme/sma-adp-dashboard/internal/upstream"
	"github.com/noah-isme/sma-adp-dashboard/internal/view"
	"github.com/noah-isme/sma-adp-dashboard/pkg/cache"
	"github.com/noah-isme/sma-adp-dashboard/pkg/config"
	"github.com/noah-isme/sma-adp-dashboard/pkg/export"
	"github.com/noah-isme/sma-adp-dashboard/pkg/logger"
)

// @title SMA Admin Dashboard API
// @version 1.0.0
// @description Session and resource endpoints of the school admin dashboard. Records live in the school REST API.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Session.Secret == "" {
		if cfg.Env == config.EnvProduction {
			logr.Fatal("SESSION_SECRET is required in production")
		}
		logr.Warn("SESSION_SECRET not set; using an insecure development secret")
		cfg.Session.Secret = "dev-insecure-secret-change-me"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		redisClient *redis.Client
		store       session.Store
		sessions    func() int
	)
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
		store = session.NewRedisStore(redisClient, cfg.Session.Secret, cfg.Redis.KeyPrefix)
	default:
		memory := session.NewMemoryStore()
		go memory.RunJanitor(ctx, cfg.Session.SweepInterval, logr.Named("sessions"))
		store = memory
		sessions = memory.Len
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService(sessions)
	}

	client := upstream.NewClient(cfg.Upstream, metrics, logr.Named("upstream"))
	manager := session.NewManager(store, client, cfg.Session, cfg.Auth, metrics, logr.Named("sessions"))
	resources := resource.NewRegistry(client, resource.NewValidator(), export.NewRegistry(), logr.Named("resources"))

	renderer, err := view.New()
	if err != nil {
		logr.Fatal("failed to parse templates", zap.Error(err))
	}

	router := handler.NewRouter(handler.Deps{
		Config:    cfg,
		Logger:    logr,
		Sessions:  manager,
		Resources: resources,
		Tabs:      dashboard.FromRegistry(resources),
		Renderer:  renderer,
		Metrics:   metrics,
		Redis:     redisClient,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "upstream", cfg.Upstream.BaseURL, "session_store", cfg.Session.Store)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
