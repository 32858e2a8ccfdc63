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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/aabhi25/chronalive/api/swagger"
	"github.com/aabhi25/chronalive/internal/handler"
	"github.com/aabhi25/chronalive/internal/middleware"
	"github.com/aabhi25/chronalive/internal/models"
	"github.com/aabhi25/chronalive/internal/repository"
	"github.com/aabhi25/chronalive/internal/service"
	"github.com/aabhi25/chronalive/pkg/cache"
	"github.com/aabhi25/chronalive/pkg/config"
	"github.com/aabhi25/chronalive/pkg/database"
	"github.com/aabhi25/chronalive/pkg/export"
	"github.com/aabhi25/chronalive/pkg/logger"
	corsmiddleware "github.com/aabhi25/chronalive/pkg/middleware/cors"
	reqidmiddleware "github.com/aabhi25/chronalive/pkg/middleware/requestid"
	"github.com/aabhi25/chronalive/pkg/storage"
)

// @title Chronalive Scheduling API
// @version 0.1.0
// @description School timetable scheduling and override engine
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, effective schedule cache disabled", "error", err)
		redisClient = nil
	}

	teacherRepo := repository.NewTeacherRepository(db)
	classRepo := repository.NewClassRepository(db)
	structureRepo := repository.NewStructureRepository(db)
	baselineRepo := repository.NewBaselineRepository(db)
	weeklyRepo := repository.NewWeeklyRepository(db)
	substitutionRepo := repository.NewSubstitutionRepository(db)
	changeRepo := repository.NewChangeRepository(db)
	replacementRepo := repository.NewReplacementRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	mergeSvc := service.NewMergeService(baselineRepo, weeklyRepo, changeRepo, cacheRepo, service.MergeServiceConfig{
		CacheTTL:  cfg.Scheduler.EffectiveCacheTTL,
		RetryWait: cfg.Scheduler.WeeklyLayerRetryWait,
	}, logr)

	availabilitySvc := service.NewAvailabilityService(teacherRepo, baselineRepo, weeklyRepo, absenceRepo, logr)

	baselineSvc := service.NewBaselineService(classRepo, structureRepo, baselineRepo, weeklyRepo, teacherRepo, cacheRepo, db, auditRepo, nil, logr)

	substitutionSvc := service.NewSubstitutionService(
		teacherRepo, baselineRepo, substitutionRepo, changeRepo, weeklyRepo,
		replacementRepo, absenceRepo, availabilitySvc, mergeSvc, db, auditRepo,
		nil, service.SubstitutionServiceConfig{ReplacementHorizon: cfg.Scheduler.ReplacementHorizon}, logr)

	versioningSvc := service.NewVersioningService(baselineRepo, weeklyRepo, mergeSvc, db, auditRepo, nil, logr)

	metricsSvc := service.NewMetricsService()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		fileStore, storeErr := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if storeErr != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", storeErr)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(
			repository.NewExportJobStore(), mergeSvc, classRepo, teacherRepo, structureRepo,
			fileStore, signer, export.NewTimetablePDFExporter(), auditRepo, nil,
			service.ExportServiceConfig{
				JobTTL:          cfg.Exports.JobTTL,
				CleanupInterval: cfg.Exports.CleanupInterval,
				Workers:         cfg.Exports.WorkerConcurrency,
				Retries:         cfg.Exports.WorkerRetries,
			}, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	timetableHandler := handler.NewTimetableHandler(baselineSvc, mergeSvc, versioningSvc)
	substitutionHandler := handler.NewSubstitutionHandler(substitutionSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

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

	api := r.Group("/api/v1")
	api.Use(middleware.JWT(cfg.JWT.Secret))

	adminOnly := middleware.RBAC(models.RoleSuperAdmin, models.RoleAdmin)

	timetable := api.Group("/timetable")
	{
		timetable.POST("/generate", adminOnly, middleware.Audit(auditRepo, models.AuditActionBaselineGenerate, "timetable"), timetableHandler.Generate)
		timetable.POST("/refresh", adminOnly, middleware.Audit(auditRepo, models.AuditActionBaselineRefresh, "timetable"), timetableHandler.Refresh)
		timetable.GET("/validate", adminOnly, timetableHandler.Validate)
		timetable.GET("/effective", timetableHandler.Effective)
		timetable.PUT("/weekly/entry", adminOnly, timetableHandler.UpdateWeeklyEntry)
		timetable.POST("/promote", adminOnly, timetableHandler.Promote)
		timetable.POST("/reset", adminOnly, timetableHandler.Reset)
	}

	substitutions := api.Group("/substitutions")
	{
		substitutions.GET("", substitutionHandler.List)
		substitutions.POST("/find", adminOnly, substitutionHandler.Find)
		substitutions.POST("/auto-assign", adminOnly, substitutionHandler.AutoAssign)
		substitutions.POST("/:id/approve", adminOnly, substitutionHandler.Approve)
		substitutions.POST("/:id/reject", adminOnly, substitutionHandler.Reject)
		substitutions.POST("/replace", adminOnly, substitutionHandler.Replace)
	}

	api.POST("/absences", adminOnly, substitutionHandler.MarkAbsent)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		exports := api.Group("/timetable/exports")
		{
			exports.POST("", adminOnly, exportHandler.Create)
			exports.GET("/download", exportHandler.Download)
			exports.GET("/:id", exportHandler.Get)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
