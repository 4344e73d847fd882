package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/ocean-sentinel/internal/anomaly"
	"github.com/mr1hm/ocean-sentinel/internal/api"
	"github.com/mr1hm/ocean-sentinel/internal/config"
	internalgrpc "github.com/mr1hm/ocean-sentinel/internal/grpc"
	"github.com/mr1hm/ocean-sentinel/internal/indicators"
	"github.com/mr1hm/ocean-sentinel/internal/logging"
	"github.com/mr1hm/ocean-sentinel/internal/monitor"
	"github.com/mr1hm/ocean-sentinel/internal/pipeline"
	"github.com/mr1hm/ocean-sentinel/internal/repository"
	"github.com/mr1hm/ocean-sentinel/internal/risk"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "feature_mode", cfg.Analysis.FeatureMode)

	catalog := config.DefaultCatalog(cfg.Catalog.ImageDir)
	if cfg.Catalog.Path != "" {
		catalog, err = config.LoadCatalog(cfg.Catalog.Path, cfg.Catalog.ImageDir)
		if err != nil {
			logging.Fatalf("Failed to load catalog: %v", err)
		}
	}
	slog.Info("catalog loaded", "locations", len(catalog.Locations), "zones", len(catalog.Zones))

	if cfg.DB.Driver == repository.DriverSQLite && cfg.DB.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.DSN), 0o755); err != nil {
			logging.Fatalf("Failed to create database directory: %v", err)
		}
	}
	db, err := repository.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classifier := anomaly.NewClassifier(cfg.Analysis.ModelDir, cfg.Analysis.FeatureMode)
	if cfg.Analysis.WatchModels {
		go func() {
			if err := anomaly.Watch(ctx, classifier); err != nil {
				slog.Error("model watcher stopped", "error", err)
			}
		}()
	}

	aggregator := risk.NewAggregator(db, catalog.Zones, time.Now)
	analyzer := pipeline.NewAnalyzer(classifier, aggregator, indicators.DefaultThresholds())

	// Create broadcaster for gRPC streaming
	broadcaster := internalgrpc.NewBroadcaster()
	service := pipeline.NewService(analyzer, catalog, db, broadcaster)

	// Start monitor
	mgr := monitor.NewManager(cfg, service, catalog.IDs())
	mgr.Start(ctx)

	// Start gRPC server
	grpcServer := internalgrpc.NewServer(db, broadcaster)
	go func() {
		grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logging.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimit))
	router.MaxMultipartMemory = cfg.Server.MaxUpload

	handler := api.NewHandler(service, db, cfg.Worker.Count, cfg.Server.MaxUpload, cfg.Server.MaxPixels)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	broadcaster.Close() // Close all streams gracefully
	grpcServer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
