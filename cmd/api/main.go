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

	_ "github.com/ChrisGrattoni/partitionoptimizer/api/swagger"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/handler"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/middleware"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/repository"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/service"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/cache"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/config"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/database"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/export"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/jobs"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/logger"
	corsmiddleware "github.com/ChrisGrattoni/partitionoptimizer/pkg/middleware/cors"
	reqidmiddleware "github.com/ChrisGrattoni/partitionoptimizer/pkg/middleware/requestid"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/storage"
)

// @title Partition Optimizer API
// @version 1.0.0
// @description Genetic-algorithm service that assigns students to distancing cohorts.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	userRepo := repository.NewUserRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	runRepo := repository.NewRunRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	rosterSvc := service.NewRosterService(rosterRepo, nil, logr)
	runSvc := service.NewRunService(runRepo, rosterRepo, redisClient, metricsSvc, nil, logr,
		cfg.Optimizer, cfg.Runs.ProgressTTL)
	archive, err := storage.NewReportArchive(cfg.Reports.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report archive", "error", err)
	}
	signer := storage.NewDownloadSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(runSvc, export.NewCSVExporter(), export.NewPDFExporter(), archive, signer, cfg.APIPrefix, logr)

	queue := jobs.NewQueue("optimizer-runs", runSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Runs.WorkerConcurrency,
		BufferSize: cfg.Runs.QueueBuffer,
		Logger:     logr,
	})
	runSvc.AttachQueue(queue)

	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	runHandler := handler.NewRunHandler(runSvc, exportSvc)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/downloads/:token", runHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	writers := middleware.RequireRoles(models.RoleAdmin, models.RoleScheduler)
	authed.POST("/rosters", writers, rosterHandler.Import)
	authed.GET("/rosters", rosterHandler.List)
	authed.GET("/rosters/:id", rosterHandler.Get)

	authed.POST("/runs", writers, runHandler.Create)
	authed.GET("/runs", runHandler.List)
	authed.GET("/runs/:id", runHandler.Get)
	authed.GET("/runs/:id/progress", runHandler.Progress)
	authed.GET("/runs/:id/assignments", runHandler.Assignments)
	authed.GET("/runs/:id/reports", runHandler.ReportLinks)
	authed.GET("/runs/:id/reports/assignments.csv", runHandler.AssignmentsReport)
	authed.GET("/runs/:id/reports/analysis.csv", runHandler.AnalysisReportCSV)
	authed.GET("/runs/:id/reports/analysis.pdf", runHandler.AnalysisReportPDF)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
