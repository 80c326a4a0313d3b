package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/rmbriones/shs-admission-api/api/swagger"
	"github.com/rmbriones/shs-admission-api/internal/handler"
	"github.com/rmbriones/shs-admission-api/internal/middleware"
	"github.com/rmbriones/shs-admission-api/internal/repository"
	"github.com/rmbriones/shs-admission-api/internal/service"
	"github.com/rmbriones/shs-admission-api/pkg/cache"
	"github.com/rmbriones/shs-admission-api/pkg/config"
	"github.com/rmbriones/shs-admission-api/pkg/database"
	"github.com/rmbriones/shs-admission-api/pkg/logger"
	corsmiddleware "github.com/rmbriones/shs-admission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/rmbriones/shs-admission-api/pkg/middleware/requestid"
	"github.com/rmbriones/shs-admission-api/pkg/money"
)

// @title SHS Admission API
// @version 1.0.0
// @description Admission decisions, section slot capacity and payment ledgers for senior high school enrollment.
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

	metricsSvc := service.NewMetricsService()

	cacheSvc := service.NewCacheService(nil, metricsSvc, cfg.Capacity.CacheTTL, logr, false)
	if cfg.Capacity.CacheEnabled {
		redisClient, redisErr := cache.NewRedis(cfg.Redis)
		if redisErr != nil {
			logr.Sugar().Warnw("redis unavailable, capacity cache disabled", "error", redisErr)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Capacity.CacheTTL, logr, true)
		}
	}

	applicantRepo := repository.NewApplicantRepository(db, cfg.Admission.LockTimeout)
	capacityRepo := repository.NewCapacityRepository(db, cfg.Admission.LockTimeout)
	admissionRepo := repository.NewAdmissionRepository(db, cfg.Admission.LockTimeout)
	ledgerRepo := repository.NewLedgerRepository(db, cfg.Ledger.LockTimeout)
	auditRepo := repository.NewAuditRepository(db)

	validate := validator.New()

	auditSvc := service.NewAuditService(auditRepo, logr, cfg.Audit.Workers, cfg.Audit.BufferSize, cfg.Audit.Enabled)
	auditCtx, auditCancel := context.WithCancel(context.Background())
	auditSvc.Start(auditCtx)
	defer func() {
		auditSvc.Stop()
		auditCancel()
	}()

	defaultFee := money.ParseOrDefault(cfg.Ledger.DefaultTotalFee, money.Zero())
	workflowSvc := service.NewWorkflowService(applicantRepo, auditSvc, validate, logr)
	capacitySvc := service.NewCapacityService(capacityRepo, cacheSvc, metricsSvc, auditSvc, validate, logr)
	ledgerSvc := service.NewLedgerService(ledgerRepo, auditSvc, metricsSvc, validate, logr)
	admissionSvc := service.NewAdmissionService(admissionRepo, applicantRepo, cacheSvc, metricsSvc, auditSvc,
		validate, logr, defaultFee, cfg.Admission.MaxBusyRetries)

	applicantHandler := handler.NewApplicantHandler(admissionSvc, workflowSvc)
	capacityHandler := handler.NewCapacityHandler(capacitySvc)
	ledgerHandler := handler.NewLedgerHandler(ledgerSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/applicants", applicantHandler.List)
		api.POST("/applicants", applicantHandler.Register)
		api.GET("/applicants/:id", applicantHandler.Get)
		api.PUT("/applicants/:id/requirements/:key", applicantHandler.SubmitRequirement)
		api.POST("/applicants/:id/approval", applicantHandler.Approve)
		api.PUT("/applicants/:id/status", applicantHandler.SetStatus)

		api.GET("/applicants/:id/ledger", ledgerHandler.Get)
		api.PUT("/applicants/:id/ledger/mode", ledgerHandler.SwitchMode)
		api.POST("/applicants/:id/ledger/payments", ledgerHandler.RecordPayment)

		api.GET("/sections", capacityHandler.List)
		api.PUT("/sections", capacityHandler.Configure)
		api.POST("/sections/release", capacityHandler.Release)
		api.GET("/sections/:strand/:grade/:section", capacityHandler.Get)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
