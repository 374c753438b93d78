package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/application/bulk"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/fx"
	"github.com/storefront/backend/internal/infrastructure/images"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting storefront backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}
	log.Info("Database connected")

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	brandRepo := persistence.NewGormBrandRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	inventoryRepo := persistence.NewGormInventoryRepository(db.DB)

	// Exchange rate provider, optionally sharing its cache via Redis
	var rateCache fx.RateCache = fx.NewMemoryCache()
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn("Redis unreachable, using in-memory rate cache", zap.Error(err))
		} else {
			rateCache = fx.NewRedisCache(redisClient)
			log.Info("Redis rate cache enabled")
		}
	}
	rateProvider := fx.NewProvider(rateCache, cfg.Fx.EndpointURL, cfg.Fx.FetchTimeout, cfg.Fx.CacheTTL, log)

	// Blob storage for rehosted product images. Without configured S3
	// credentials images are kept in memory, which is fine for
	// development but not for production.
	var blobStorage images.BlobStorage
	if cfg.Storage.Endpoint != "" || cfg.Storage.AccessKey != "" {
		s3Storage, err := storage.NewS3Storage(&cfg.Storage)
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		blobStorage = s3Storage
	} else {
		log.Warn("No object storage configured, using in-memory stub")
		blobStorage = storage.NewStubStorage()
	}
	rehoster := images.NewRehoster(
		blobStorage,
		cfg.App.PublicBaseURL,
		cfg.Import.ImageMaxBytes,
		cfg.Import.ImageTimeout,
		log,
	)

	stockLocationID := uuid.Nil
	if cfg.Import.StockLocationID != "" {
		stockLocationID, err = uuid.Parse(cfg.Import.StockLocationID)
		if err != nil {
			log.Fatal("Invalid stock location ID", zap.String("value", cfg.Import.StockLocationID))
		}
	}

	importService := bulk.NewImportService(
		productRepo, brandRepo, categoryRepo, inventoryRepo,
		rateProvider, rehoster,
		bulk.Config{
			BatchSize:       cfg.Import.BatchSize,
			Workers:         cfg.Import.Workers,
			Currencies:      cfg.Import.Currencies,
			StockLocationID: stockLocationID,
			LinkRetries:     cfg.Import.LinkRetries,
			LinkRetryDelay:  cfg.Import.LinkRetryDelay,
			MaxReportedRows: cfg.Import.MaxReportedRows,
		},
		log,
	)
	exportCurrency := "USD"
	if len(cfg.Import.Currencies) > 0 {
		exportCurrency = cfg.Import.Currencies[0]
	}
	exporter := bulk.NewExporter(
		productRepo, brandRepo, categoryRepo, inventoryRepo,
		stockLocationID, exportCurrency, log,
	)

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	r := router.NewRouter(engine)
	r.Register(handler.NewImportHandler(importService, log)).
		Register(handler.NewExportHandler(exporter, log)).
		Register(handler.NewHealthHandler(db))
	r.Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}
