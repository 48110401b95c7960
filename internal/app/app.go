// Package app is the composition root of the API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/noah-isme/zyu-enrollment-api/internal/handler"
	"github.com/noah-isme/zyu-enrollment-api/internal/repository"
	"github.com/noah-isme/zyu-enrollment-api/internal/service"
	"github.com/noah-isme/zyu-enrollment-api/pkg/cache"
	"github.com/noah-isme/zyu-enrollment-api/pkg/config"
	"github.com/noah-isme/zyu-enrollment-api/pkg/database"
	"github.com/noah-isme/zyu-enrollment-api/pkg/imageproc"
	"github.com/noah-isme/zyu-enrollment-api/pkg/logger"
	"github.com/noah-isme/zyu-enrollment-api/pkg/mailer"
	"github.com/noah-isme/zyu-enrollment-api/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

// Module wires the whole server.
var Module = fx.Options(
	fx.Provide(
		config.Load,
		logger.New,
		newDatabase,
		newRedis,
		service.NewValidator,
		newMetrics,
		newCache,
		newLocalStorage,
		newSigner,
	),
	repositories,
	services,
	handlers,
	fx.Provide(NewRouter, newServer),
	fx.Invoke(startNotifications, startServer),
)

var repositories = fx.Provide(
	repository.NewUserRepository,
	repository.NewResetCodeRepository,
	repository.NewCourseRepository,
	repository.NewSubjectRepository,
	repository.NewEnrollmentRepository,
	repository.NewEventRepository,
	repository.NewTodoRepository,
)

var services = fx.Provide(
	newNotificationService,
	newAuthService,
	newUserService,
	newCourseService,
	newSubjectService,
	newEnrollmentService,
	newExportService,
	newStatsService,
	newEventService,
	newTodoService,
)

var handlers = fx.Provide(
	newAuthHandler,
	newUserHandler,
	func(svc *service.CourseService) *handler.CourseHandler { return handler.NewCourseHandler(svc) },
	func(svc *service.SubjectService) *handler.SubjectHandler { return handler.NewSubjectHandler(svc) },
	newEnrollmentHandler,
	func(svc *service.EventService) *handler.EventHandler { return handler.NewEventHandler(svc) },
	func(svc *service.TodoService) *handler.TodoHandler { return handler.NewTodoHandler(svc) },
	func(svc *service.StatsService) *handler.DashboardHandler { return handler.NewDashboardHandler(svc) },
	newMetricsHandler,
)

func newDatabase(lc fx.Lifecycle, cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
	return db, nil
}

// newRedis degrades to a nil client when Redis is unreachable; the caches then always miss.
func newRedis(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *redis.Client {
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, caching disabled", zap.Error(err))
		return nil
	}
	if client != nil {
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
	}
	return client
}

func newMetrics(cfg *config.Config) *service.MetricsService {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return service.NewMetricsService()
}

func newCache(client *redis.Client, cfg *config.Config, metrics *service.MetricsService, log *zap.Logger) *service.CacheService {
	repo := repository.NewCacheRepository(client, log)
	return service.NewCacheService(repo, metrics, cfg.Cache.CatalogTTL, log, cfg.Cache.Enabled && client != nil)
}

func newLocalStorage(cfg *config.Config) (*storage.LocalStorage, error) {
	return storage.NewLocalStorage(cfg.Uploads.Dir)
}

func newSigner(cfg *config.Config) *storage.SignedURLSigner {
	return storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
}

func newNotificationService(cfg *config.Config, metrics *service.MetricsService, log *zap.Logger) *service.NotificationService {
	return service.NewNotificationService(mailer.New(cfg.Mail, log), service.NotificationConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.MaxRetries,
		RetryDelay: cfg.Mail.RetryDelay,
	}, metrics, log)
}

func newAuthService(users *repository.UserRepository, codes *repository.ResetCodeRepository, notifier *service.NotificationService, validate *validator.Validate, metrics *service.MetricsService, log *zap.Logger, cfg *config.Config) *service.AuthService {
	return service.NewAuthService(users, codes, notifier, validate, metrics, log, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		ResetTokenExpiry:  cfg.JWT.ResetExpiration,
		Issuer:            "zyu-enrollment-api",
		MaxFailedLogins:   cfg.Auth.MaxFailedLogins,
		ResetCodeTTL:      cfg.Auth.ResetCodeTTL,
		ResetCodeLength:   cfg.Auth.ResetCodeLength,
	})
}

func newUserService(users *repository.UserRepository, files *storage.LocalStorage, cfg *config.Config, log *zap.Logger) *service.UserService {
	return service.NewUserService(users, files, cfg.Uploads.PublicPrefix, log)
}

func newCourseService(courses *repository.CourseRepository, subjects *repository.SubjectRepository, cacheSvc *service.CacheService, validate *validator.Validate, log *zap.Logger, cfg *config.Config) *service.CourseService {
	return service.NewCourseService(courses, subjects, cacheSvc, validate, log, cfg.Cache.CatalogTTL)
}

func newSubjectService(subjects *repository.SubjectRepository, cacheSvc *service.CacheService, validate *validator.Validate, log *zap.Logger) *service.SubjectService {
	return service.NewSubjectService(subjects, cacheSvc, validate, log)
}

func newEnrollmentService(enrollments *repository.EnrollmentRepository, courses *repository.CourseRepository, files *storage.LocalStorage, signer *storage.SignedURLSigner, cacheSvc *service.CacheService, metrics *service.MetricsService, log *zap.Logger, cfg *config.Config) *service.EnrollmentService {
	return service.NewEnrollmentService(enrollments, courses, files, imageproc.NewThumbnailer(cfg.Uploads.ThumbnailWidth, cfg.Uploads.MaxPixels), signer, cacheSvc, metrics, log, service.EnrollmentConfig{
		MaxFileSize:   cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:  cfg.Uploads.AllowedMIMEs,
		UploadsPrefix: cfg.Uploads.PublicPrefix,
		DownloadPath:  cfg.APIPrefix + "/certificates/download",
	})
}

func newExportService(enrollments *repository.EnrollmentRepository, log *zap.Logger) *service.ExportService {
	return service.NewExportService(enrollments, log, nil, nil)
}

func newStatsService(courses *repository.CourseRepository, enrollments *repository.EnrollmentRepository, subjects *repository.SubjectRepository, cacheSvc *service.CacheService, log *zap.Logger, cfg *config.Config) *service.StatsService {
	return service.NewStatsService(courses, enrollments, subjects, cacheSvc, log, cfg.Cache.StatsTTL)
}

func newEventService(events *repository.EventRepository, validate *validator.Validate, log *zap.Logger) *service.EventService {
	return service.NewEventService(events, validate, log)
}

func newTodoService(todos *repository.TodoRepository, validate *validator.Validate, log *zap.Logger) *service.TodoService {
	return service.NewTodoService(todos, validate, log)
}

func cookieConfig(cfg *config.Config, auth *service.AuthService) handler.CookieConfig {
	return handler.CookieConfig{MaxAge: auth.AccessTokenTTL(), Secure: cfg.Auth.SecureCookies}
}

func newAuthHandler(auth *service.AuthService, cfg *config.Config) *handler.AuthHandler {
	return handler.NewAuthHandler(auth, cookieConfig(cfg, auth))
}

func newUserHandler(users *service.UserService, auth *service.AuthService, cfg *config.Config) *handler.UserHandler {
	return handler.NewUserHandler(users, cookieConfig(cfg, auth))
}

func newEnrollmentHandler(enrollments *service.EnrollmentService, exports *service.ExportService, cfg *config.Config) *handler.EnrollmentHandler {
	return handler.NewEnrollmentHandler(enrollments, exports, cfg.Uploads.MaxFileSizeBytes)
}

func newMetricsHandler(metrics *service.MetricsService, db *sqlx.DB) *handler.MetricsHandler {
	return handler.NewMetricsHandler(metrics, db)
}

func newServer(cfg *config.Config, engine *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func startNotifications(lc fx.Lifecycle, notifications *service.NotificationService) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// The queue outlives the start context.
			notifications.Start(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			notifications.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, srv *http.Server, cfg *config.Config, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
