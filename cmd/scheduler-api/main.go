package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campusops/ta-scheduler-api/api/swagger"
	"github.com/campusops/ta-scheduler-api/internal/handler"
	"github.com/campusops/ta-scheduler-api/internal/middleware"
	"github.com/campusops/ta-scheduler-api/internal/repository"
	"github.com/campusops/ta-scheduler-api/internal/service"
	rediscache "github.com/campusops/ta-scheduler-api/pkg/cache"
	"github.com/campusops/ta-scheduler-api/pkg/config"
	"github.com/campusops/ta-scheduler-api/pkg/database"
	"github.com/campusops/ta-scheduler-api/pkg/export"
	"github.com/campusops/ta-scheduler-api/pkg/logger"
	corsmiddleware "github.com/campusops/ta-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusops/ta-scheduler-api/pkg/middleware/requestid"
	"github.com/campusops/ta-scheduler-api/pkg/storage"
)

// @title TA Scheduler API
// @version 1.0.0
// @description Constraint-based assignment of teaching assistants to lab sections
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	if cfg.Redis.Enabled {
		redisClient, err := rediscache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Scheduler.ReportCacheTTL, logr, true)
		defer cacheRepo.Close() //nolint:errcheck
	}

	authService := service.NewAuthService(validate, logr, service.AuthConfig{
		Secret:            cfg.JWT.Secret,
		Expiration:        cfg.JWT.Expiration,
		AdminUser:         cfg.Auth.AdminUser,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
	})

	rosterRepo := repository.NewRosterRepository(db)
	runRepo := repository.NewRunRepository(db)

	rosterService := service.NewRosterService(rosterRepo, validate, logr)
	schedulerService := service.NewSchedulerService(rosterRepo, runRepo, cacheService, metricsService, validate, logr, service.SchedulerConfig{
		DailyHourCap:    cfg.Scheduler.DailyHourCap,
		MaxLabsPerStaff: cfg.Scheduler.MaxLabsPerStaff,
		TimeBudget:      cfg.Scheduler.TimeBudget,
		GracePeriod:     cfg.Scheduler.GracePeriod,
		BalanceEnabled:  cfg.Scheduler.BalanceEnabled,
		BalanceMode:     cfg.Scheduler.BalanceMode,
		RunTTL:          cfg.Scheduler.RunTTL,
		ReportCacheTTL:  cfg.Scheduler.ReportCacheTTL,
	})

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	exportService := service.NewExportService(
		schedulerService,
		exportStorage,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		logr,
		service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
			Workers:   cfg.Exports.WorkerConcurrency,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportService.Start(ctx)
	defer exportService.Stop()
	go exportCleanupLoop(ctx, exportService, cfg.Exports.CleanupInterval, logr)

	authHandler := handler.NewAuthHandler(authService)
	rosterHandler := handler.NewRosterHandler(rosterService)
	schedulerHandler := handler.NewSchedulerHandler(schedulerService, logr)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/download/:token", exportHandler.Download)

	protected := api.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.JWT(authService))
	}

	protected.POST("/rosters", rosterHandler.Upload)
	protected.GET("/rosters", rosterHandler.List)
	protected.GET("/rosters/:id", rosterHandler.Get)
	protected.DELETE("/rosters/:id", rosterHandler.Delete)

	protected.POST("/runs", schedulerHandler.Start)
	protected.GET("/runs", schedulerHandler.List)
	protected.GET("/runs/:id", schedulerHandler.Get)
	protected.GET("/runs/:id/progress", schedulerHandler.Progress)
	protected.GET("/runs/:id/report", schedulerHandler.Report)
	protected.POST("/runs/:id/cancel", schedulerHandler.Cancel)
	protected.POST("/runs/:id/export", exportHandler.Request)
	protected.GET("/exports/:jobId", exportHandler.Status)
	protected.GET("/stats", metricsHandler.Stats)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}

func exportCleanupLoop(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := exports.Cleanup(); err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
			}
		}
	}
}
