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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-records-api/api/swagger"
	"github.com/noah-isme/academic-records-api/internal/handler"
	internalmiddleware "github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/notifier"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/cache"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	"github.com/noah-isme/academic-records-api/pkg/lock"
	"github.com/noah-isme/academic-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/requestid"
)

// @title Academic Records API
// @version 1.0.0
// @description Enrollment, grading, transcript and advising workflows.
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()
	calendar := notifier.New(cfg.Calendar, metrics, logr)
	calendar.Start(ctx)
	defer calendar.Stop()

	router := buildRouter(cfg, db, redisClient, metrics, calendar, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildRouter(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, metrics *service.MetricsService, calendar *notifier.Notifier, logr *zap.Logger) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	advisorRepo := repository.NewAdvisorRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	holdRepo := repository.NewCalendarHoldRepository(db)

	var locker lock.Locker = lock.NewLocalLocker()
	cacheEnabled := false
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, "lock:", logr)
		cacheEnabled = cfg.Cache.TranscriptEnabled
	}
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, "records", logr), metrics, cfg.Cache.TranscriptTTL, logr, cacheEnabled)

	validate := validator.New()
	eligibility := service.NewEligibilityValidator(departmentRepo, enrollmentRepo, cfg.Enrollment.CreditLimit, metrics, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, offeringRepo, studentRepo, semesterRepo, advisorRepo, eligibility, locker, cacheSvc,
		service.EnrollmentOptions{WithdrawalWindowDays: cfg.Enrollment.WithdrawalWindowDays, LockTTL: cfg.Enrollment.LockTTL},
		metrics, validate, logr)
	advisorSvc := service.NewAdvisorService(advisorRepo, studentRepo, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, offeringRepo, semesterRepo, studentRepo, cacheSvc, cfg.Cache.TranscriptTTL, validate, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, meetingRepo, holdRepo, validate, logr)
	meetingSvc := service.NewMeetingService(meetingRepo, holdRepo, calendar, cfg.Scheduling.ConflictCheckTimeout, metrics, validate, logr)
	identity := service.NewIdentityService(cfg.JWT, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), internalmiddleware.JWT(identity), handler.Handlers{
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Advisors:    handler.NewAdvisorHandler(advisorSvc),
		Grades:      handler.NewGradeHandler(gradeSvc),
		Scheduling:  handler.NewSchedulingHandler(availabilitySvc, meetingSvc),
	})

	return r
}
