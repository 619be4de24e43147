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

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutorhub-api/api/swagger"
	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/matching"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/router"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/migrations"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
	"github.com/noah-isme/tutorhub-api/pkg/webhook"
)

// @title TutorHub API
// @version 1.0.0
// @description Tutor/student pairing, enrollment and session scheduling.
// @BasePath /api/v1
// @schemes http https
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
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, migrations.FS, cfg.Database.MigrationsDir); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("migrations applied")
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, queue cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	app := build(cfg, logr, db, redisClient)
	app.notifications.Start(ctx)
	defer app.notifications.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Fatal("server failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type application struct {
	engine        http.Handler
	notifications *service.NotificationService
}

func build(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) *application {
	validate := validator.New()
	metrics := service.NewMetricsService()
	location := cfg.Sessions.Location()

	profileRepo := repository.NewProfileRepository(db)
	requestRepo := repository.NewPairingRequestRepository(db)
	matchRepo := repository.NewPairingMatchRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	eventRepo := repository.NewParticipantEventRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	lockRepo := repository.NewLockRepository()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Pairing.QueueCacheTTL, logr, redisClient != nil)
	notificationSvc := service.NewNotificationService(notificationRepo, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	queueCfg := matching.QueueConfig{DefaultPriority: cfg.Pairing.DefaultPriority, MaxPriority: cfg.Pairing.MaxPriority}

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
		Leeway:            30 * time.Second,
	})
	profileSvc := service.NewProfileService(profileRepo, validate, logr)
	pairingSvc := service.NewPairingService(requestRepo, profileRepo, cacheSvc, validate, logr, queueCfg, cfg.Pairing.QueueCacheTTL)
	workflow := service.NewPairingWorkflow(service.PairingWorkflowDeps{
		DB:          db,
		Locker:      lockRepo,
		Requests:    requestRepo,
		Matches:     matchRepo,
		Enrollments: enrollmentRepo,
		Profiles:    profileRepo,
		Meetings:    meetingRepo,
		Notifier:    notificationSvc,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	}, service.PairingWorkflowConfig{
		Queue:             queueCfg,
		LockKey:           cfg.Pairing.LockKey,
		ResetConfirmation: cfg.Pairing.ResetConfirmation,
	})
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, profileRepo, meetingRepo, validate, logr, location)
	sessionSvc := service.NewSessionService(service.SessionServiceDeps{
		DB:          db,
		Locker:      lockRepo,
		Sessions:    sessionRepo,
		Enrollments: enrollmentRepo,
		Reminders:   reminderRepo,
		Meetings:    meetingRepo,
		Profiles:    profileRepo,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	}, service.SessionConfig{
		Duration:     cfg.Sessions.Duration,
		ReminderLead: cfg.Sessions.ReminderLead,
		Location:     location,
		LockKey:      cfg.Sessions.LockKey,
	})
	meetingSvc := service.NewMeetingService(meetingRepo, sessionRepo, eventRepo, cfg.Sessions.Duration, validate, logr)

	readiness := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}

	engine := router.New(cfg, logr, metrics, authSvc, router.Handlers{
		Metrics:       handler.NewMetricsHandler(metrics, readiness),
		Profiles:      handler.NewProfileHandler(profileSvc),
		Pairing:       handler.NewPairingHandler(pairingSvc, workflow),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc),
		Sessions:      handler.NewSessionHandler(sessionSvc),
		Meetings:      handler.NewMeetingHandler(meetingSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Webhooks:      handler.NewWebhookHandler(webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance), meetingSvc, logr),
	})

	return &application{engine: engine, notifications: notificationSvc}
}
