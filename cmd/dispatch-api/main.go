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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/fieldserve/dispatch-api/api/swagger"
	"github.com/fieldserve/dispatch-api/internal/handler"
	"github.com/fieldserve/dispatch-api/internal/middleware"
	"github.com/fieldserve/dispatch-api/internal/models"
	"github.com/fieldserve/dispatch-api/internal/repository"
	"github.com/fieldserve/dispatch-api/internal/service"
	"github.com/fieldserve/dispatch-api/pkg/cache"
	"github.com/fieldserve/dispatch-api/pkg/config"
	"github.com/fieldserve/dispatch-api/pkg/database"
	"github.com/fieldserve/dispatch-api/pkg/export"
	"github.com/fieldserve/dispatch-api/pkg/jobs"
	"github.com/fieldserve/dispatch-api/pkg/logger"
	corsmiddleware "github.com/fieldserve/dispatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fieldserve/dispatch-api/pkg/middleware/requestid"
)

// @title FieldServe Dispatch API
// @version 1.0.0
// @description Slot search and booking allocation for field service teams
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, calendar caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	taskTypeRepo := repository.NewTaskTypeRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	occupancyRepo := repository.NewTaskOccupancyRepository(db)
	siteRepo := repository.NewSiteRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// The audit trail is written off the request path.
	auditQueue := jobs.NewQueue("booking-audit", func(ctx context.Context, job jobs.Job) error {
		audit, ok := job.Payload.(models.BookingAudit)
		if !ok {
			return fmt.Errorf("unexpected audit payload %T", job.Payload)
		}
		return auditRepo.Create(ctx, &audit)
	}, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	})
	queueCtx, queueCancel := context.WithCancel(context.Background())
	auditQueue.Start(queueCtx)
	defer func() {
		queueCancel()
		auditQueue.Stop()
	}()

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	calendarSvc := service.NewCalendarService(calendarRepo, teamRepo, cacheRepo, logr, service.CalendarConfig{
		DefaultCalendarID: cfg.Scheduler.DefaultCalendarID,
		CacheTTL:          cfg.Scheduler.CalendarCacheTTL,
	})
	availabilitySvc := service.NewAvailabilityService(bookingRepo, occupancyRepo, teamRepo, logr, service.AvailabilityConfig{
		LeadSharing: cfg.Scheduler.LeadSharing,
	})
	slotSvc := service.NewSlotService(logr, service.SlotConfig{
		Step:   cfg.Scheduler.SlotStep,
		LeadIn: cfg.Scheduler.LeadIn,
	})
	rankingSvc := service.NewRankingService(logr)
	schedulerSvc := service.NewSchedulerService(
		taskTypeRepo,
		teamRepo,
		calendarSvc,
		availabilitySvc,
		slotSvc,
		rankingSvc,
		siteRepo,
		metricsSvc,
		service.SystemClock(),
		validate,
		logr,
		service.SchedulerConfig{
			HorizonDays:     cfg.Scheduler.HorizonDays,
			RetryAttempts:   cfg.Scheduler.RetryAttempts,
			RetryAdvance:    cfg.Scheduler.RetryAdvance,
			DefaultTimezone: cfg.Scheduler.DefaultTimezone,
			ZoneClustering:  cfg.Scheduler.ZoneClustering,
		},
	)
	bookingSvc := service.NewBookingService(bookingRepo, teamRepo, availabilitySvc, db, auditQueue, metricsSvc, validate, logr)
	teamSvc := service.NewTeamService(teamRepo, calendarSvc, logr)
	taskTypeSvc := service.NewTaskTypeService(taskTypeRepo, logr)
	exportSvc := service.NewExportService(bookingRepo, teamRepo, siteRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	router := buildRouter(cfg, logr, db, redisClient, metricsSvc, authSvc, schedulerSvc, bookingSvc, teamSvc, taskTypeSvc, exportSvc)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}

func buildRouter(
	cfg *config.Config,
	logr *zap.Logger,
	db *sqlx.DB,
	redisClient *redis.Client,
	metricsSvc *service.MetricsService,
	authSvc *service.AuthService,
	schedulerSvc *service.SchedulerService,
	bookingSvc *service.BookingService,
	teamSvc *service.TeamService,
	taskTypeSvc *service.TaskTypeService,
	exportSvc *service.ExportService,
) *gin.Engine {
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
	r.GET("/ready", readyHandler(db, redisClient))
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	teamHandler := handler.NewTeamHandler(teamSvc)
	taskTypeHandler := handler.NewTaskTypeHandler(taskTypeSvc)
	slotHandler := handler.NewSlotHandler(schedulerSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/teams", teamHandler.List)
		protected.GET("/teams/:id", teamHandler.Get)
		protected.GET("/teams/:id/calendar", teamHandler.Calendar)

		protected.GET("/task-types", taskTypeHandler.List)
		protected.GET("/task-types/:id", taskTypeHandler.Get)

		protected.POST("/slots/search", slotHandler.Search)

		dispatchers := protected.Group("")
		dispatchers.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleDispatcher))
		{
			dispatchers.POST("/bookings", bookingHandler.Create)
			dispatchers.GET("/bookings", bookingHandler.List)
			dispatchers.GET("/bookings/:id", bookingHandler.Get)
			dispatchers.POST("/bookings/:id/confirm", bookingHandler.Confirm)
			dispatchers.POST("/bookings/:id/reschedule", bookingHandler.Reschedule)
			dispatchers.POST("/bookings/:id/cancel", bookingHandler.Cancel)

			if cfg.Exports.Enabled {
				dispatchers.GET("/teams/:id/dispatch-sheet", exportHandler.DispatchSheet)
			}
		}
	}

	return r
}

// readyHandler reports whether the process can serve traffic. Readiness
// requires the database; redis is only checked when caching is configured.
func readyHandler(db *sqlx.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "cache"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
