package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/larder-erp/larder-erp/internal/alerts"
	"github.com/larder-erp/larder-erp/internal/app"
	"github.com/larder-erp/larder-erp/internal/brands"
	"github.com/larder-erp/larder-erp/internal/costing"
	"github.com/larder-erp/larder-erp/internal/platform/cache"
	"github.com/larder-erp/larder-erp/internal/platform/db"
	"github.com/larder-erp/larder-erp/internal/pricing"
	"github.com/larder-erp/larder-erp/internal/recipes"
	"github.com/larder-erp/larder-erp/internal/shared"
	"github.com/larder-erp/larder-erp/internal/stock"
	"github.com/larder-erp/larder-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	stockRepo := stock.NewRepository(pool)
	brandRepo := brands.NewRepository(pool)
	priceRepo := pricing.NewRepository(pool)
	recipeRepo := recipes.NewRepository(pool)

	brandService := brands.NewService(brandRepo, auditLogger)
	priceService := pricing.NewService(priceRepo, auditLogger)
	recipeService := recipes.NewService(recipeRepo, stockRepo, priceRepo, auditLogger)
	stockService := stock.NewService(stockRepo, recipeService, auditLogger)
	costingService := costing.NewService(recipeService, priceRepo)

	feed := alerts.NewFeed(redisClient, cfg.AlertFeedSize)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		StockHandler:   stock.NewHandler(logger, stockService),
		BrandHandler:   brands.NewHandler(logger, brandService),
		PricingHandler: pricing.NewHandler(logger, priceService),
		RecipeHandler:  recipes.NewHandler(logger, recipeService),
		CostingHandler: costing.NewHandler(logger, costingService),
		AlertHandler:   alerts.NewHandler(logger, feed),
		JobHandler:     jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
