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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/exam-scheduler/api/swagger"
	"github.com/noah-isme/exam-scheduler/internal/handler"
	"github.com/noah-isme/exam-scheduler/internal/middleware"
	"github.com/noah-isme/exam-scheduler/internal/repository"
	"github.com/noah-isme/exam-scheduler/internal/service"
	"github.com/noah-isme/exam-scheduler/pkg/cache"
	"github.com/noah-isme/exam-scheduler/pkg/config"
	"github.com/noah-isme/exam-scheduler/pkg/database"
	"github.com/noah-isme/exam-scheduler/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-scheduler/pkg/middleware/requestid"
)

// @title Exam Scheduler API
// @version 1.0.0
// @description Exam room scheduling with calendar and capacity admission checks
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

	loc, err := time.LoadLocation(cfg.Scheduling.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid scheduling timezone", "timezone", cfg.Scheduling.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database, cfg.Scheduling.LockTimeout)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, timetable cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	termRepo := repository.NewTermRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	examRepo := repository.NewExamRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	termSvc := service.NewTermService(termRepo, nil, logr)
	roomSvc := service.NewRoomService(roomRepo, nil, logr)
	examSvc := service.NewExamService(examRepo, termRepo, nil, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, roomRepo, nil, logr)
	admissionSvc := service.NewAdmissionService(allocationRepo, examRepo, termRepo, calendarRepo, loc, nil, logr)
	admissionSvc.SetObserver(metricsSvc)

	var timetableSvc *service.TimetableService
	var exportSvc *service.ExportService
	if cfg.Timetable.Enabled {
		timetableSvc = service.NewTimetableService(allocationRepo, termRepo, roomRepo, cacheRepo, service.TimetableOptions{
			CacheTTL:       cfg.Timetable.CacheTTL,
			RefreshWorkers: cfg.Timetable.RefreshWorkers,
			RefreshBuffer:  cfg.Timetable.RefreshBuffer,
			RefreshRetries: cfg.Timetable.RefreshRetries,
			RefreshBackoff: cfg.Timetable.RefreshBackoff,
		}, logr)
		timetableSvc.SetObserver(metricsSvc)
		admissionSvc.SetTimetableInvalidator(timetableSvc)
		if cfg.Export.Enabled {
			exportSvc = service.NewExportService(timetableSvc, logr)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	healthHandler := handler.NewHealthHandler(db, redisClient)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", healthHandler.Live)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		termHandler := handler.NewTermHandler(termSvc)
		api.GET("/terms", termHandler.List)
		api.POST("/terms", termHandler.Create)
		api.GET("/terms/:id", termHandler.Get)
		api.PUT("/terms/:id", termHandler.Update)
		api.POST("/terms/:id/publish", termHandler.Publish)
		api.POST("/terms/:id/archive", termHandler.Archive)
		api.DELETE("/terms/:id", termHandler.Delete)

		roomHandler := handler.NewRoomHandler(roomSvc)
		api.GET("/rooms", roomHandler.List)
		api.POST("/rooms", roomHandler.Create)
		api.GET("/rooms/:id", roomHandler.Get)
		api.PUT("/rooms/:id", roomHandler.Update)
		api.DELETE("/rooms/:id", roomHandler.Delete)

		examHandler := handler.NewExamHandler(examSvc)
		api.GET("/exams", examHandler.List)
		api.POST("/exams", examHandler.Create)
		api.GET("/exams/:id", examHandler.Get)
		api.PUT("/exams/:id", examHandler.Update)
		api.DELETE("/exams/:id", examHandler.Delete)

		calendarHandler := handler.NewCalendarHandler(calendarSvc)
		api.GET("/blackouts", calendarHandler.ListBlackouts)
		api.POST("/blackouts", calendarHandler.CreateBlackout)
		api.PUT("/blackouts/:id", calendarHandler.UpdateBlackout)
		api.DELETE("/blackouts/:id", calendarHandler.DeleteBlackout)
		api.GET("/holidays", calendarHandler.ListHolidays)
		api.POST("/holidays", calendarHandler.CreateHoliday)
		api.PUT("/holidays/:id", calendarHandler.UpdateHoliday)
		api.DELETE("/holidays/:id", calendarHandler.DeleteHoliday)

		allocationHandler := handler.NewAllocationHandler(admissionSvc)
		api.GET("/allocations", allocationHandler.List)
		api.POST("/allocations", allocationHandler.Create)
		api.GET("/allocations/:id", allocationHandler.Get)
		api.PUT("/allocations/:id", allocationHandler.Update)
		api.DELETE("/allocations/:id", allocationHandler.Delete)

		if timetableSvc != nil {
			timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc)
			api.GET("/terms/:id/timetable", timetableHandler.Get)
			api.GET("/terms/:id/timetable/export", timetableHandler.Export)
		}

		api.GET("/stats", metricsHandler.Stats)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if timetableSvc != nil {
		timetableSvc.StartWorkers(rootCtx)
		defer timetableSvc.StopWorkers()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
