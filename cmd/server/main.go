package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"floorplan-render-backend/internal/config"
	"floorplan-render-backend/internal/database"
	"floorplan-render-backend/internal/handlers"
	"floorplan-render-backend/internal/imagen"
	"floorplan-render-backend/internal/logging"
	"floorplan-render-backend/internal/metrics"
	"floorplan-render-backend/internal/middleware"
	"floorplan-render-backend/internal/pool"
	"floorplan-render-backend/internal/render"
	"floorplan-render-backend/internal/services"
	"floorplan-render-backend/internal/store"
	"floorplan-render-backend/internal/supabase"
	"floorplan-render-backend/internal/vision"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 3 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector("floorplan", registry, logger)

	limiter := pool.NewLimiter(cfg.OutboundRPS, cfg.OutboundBurst)
	workers := pool.New(cfg.MaxConcurrentJobs)

	imagenClient := imagen.NewClient(imagen.Config{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.ImageModel,
		Size:    cfg.ImageSize,
		Quality: cfg.ImageQuality,
		Timeout: cfg.EditTimeout,
	}, limiter, logger, imagen.WithCollector(collector))

	visionClient := vision.NewClient(vision.Config{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.VisionModel,
		Timeout: cfg.VisionTimeout,
	}, limiter, logger, vision.WithCollector(collector))

	if !cfg.AIEnabled() {
		logger.Warn("OPENAI_API_KEY not set, isometric renders fall back to the projection and room renders fail")
	}

	policy, err := render.PolicyByName(cfg.RenderPolicy, cfg.MaxAttempts)
	if err != nil {
		logger.Fatal("invalid render policy", zap.Error(err))
	}
	orchestrator := render.New(imagenClient, visionClient, policy, logger, collector)
	logger.Info("render policy",
		zap.String("policy", policy.Name),
		zap.Int("max_attempts", policy.MaxAttempts),
		zap.Int("threshold", policy.Threshold),
	)

	jobStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open job store", zap.Error(err))
	}
	defer closeStore()

	opts := []services.Option{services.WithCollector(collector)}
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		logger.Fatal("failed to initialize supabase client", zap.Error(err))
	}
	if supabaseClient != nil {
		storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		if err != nil {
			logger.Fatal("failed to initialize storage client", zap.Error(err))
		}
		opts = append(opts,
			services.WithBlobStore(storageClient),
			services.WithEvents(supabase.NewRealtimeClient(supabaseClient.Supabase, logger)),
		)
	} else {
		logger.Warn("supabase not configured, images are stored inline as data URIs")
	}

	svc := services.NewRenderService(jobStore, orchestrator, visionClient, workers, logger, opts...)

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger, collector))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	handlers.RegisterRoutes(router, svc, cfg.MaxUploadBytes, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error("render jobs did not finish before shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openStore connects to Postgres and applies migrations when DATABASE_URL is
// set. Otherwise jobs live in memory for the life of the process.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory job store")
		return store.NewMemory(), func() {}, nil
	}

	migrator, err := database.NewMigrator(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}
	defer migrator.Close()
	if err := migrator.Run(ctx); err != nil {
		return nil, nil, err
	}

	db, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}, nil
}
