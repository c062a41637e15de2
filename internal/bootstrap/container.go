// Package bootstrap assembles repositories and services from configuration.
// Both the HTTP server and the maintenance CLI build on it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/ledger"
	"github.com/noah-isme/certifytrack-api/internal/repository"
	"github.com/noah-isme/certifytrack-api/internal/service"
	"github.com/noah-isme/certifytrack-api/pkg/broker"
	"github.com/noah-isme/certifytrack-api/pkg/cache"
	"github.com/noah-isme/certifytrack-api/pkg/config"
	"github.com/noah-isme/certifytrack-api/pkg/database"
	"github.com/noah-isme/certifytrack-api/pkg/export"
	"github.com/noah-isme/certifytrack-api/pkg/lock"
	"github.com/noah-isme/certifytrack-api/pkg/storage"
)

// Repositories groups the sqlx-backed stores.
type Repositories struct {
	Users         *repository.UserRepository
	Students      *repository.StudentRepository
	Clubs         *repository.ClubRepository
	Halls         *repository.HallRepository
	Bookings      *repository.HallBookingRepository
	Events        *repository.EventRepository
	Attendance    *repository.AttendanceRepository
	AICTE         *repository.AICTERepository
	Certificates  *repository.CertificateRepository
	Notifications *repository.NotificationRepository
}

// Container holds the wired services and the resources they own.
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Repos  Repositories

	Metrics        *service.MetricsService
	Cache          *service.CacheService
	Notifications  *service.NotificationService
	Auth           *service.AuthService
	Registration   *service.RegistrationService
	Bookings       *service.BookingService
	HallAssignment *service.HallAssignmentService
	Events         *service.EventService
	EventStatus    *service.EventStatusService
	AICTE          *service.AICTEService
	Certificates   *service.CertificateService
	Maintenance    *service.MaintenanceService

	redis     *redis.Client
	publisher broker.Publisher
}

// New connects to PostgreSQL (and Redis/RabbitMQ when configured) and wires every service.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	c := &Container{Config: cfg, Logger: logger, DB: db}
	c.Repos = Repositories{
		Users:         repository.NewUserRepository(db),
		Students:      repository.NewStudentRepository(db),
		Clubs:         repository.NewClubRepository(db),
		Halls:         repository.NewHallRepository(db),
		Bookings:      repository.NewHallBookingRepository(db),
		Events:        repository.NewEventRepository(db),
		Attendance:    repository.NewAttendanceRepository(db),
		AICTE:         repository.NewAICTERepository(db),
		Certificates:  repository.NewCertificateRepository(db),
		Notifications: repository.NewNotificationRepository(db),
	}

	var locker lock.Locker = lock.NoopLock{}
	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(context.Background(), cfg.Redis, cfg.ServiceName)
		if err != nil {
			logger.Warn("redis unavailable, caching and job locks disabled", zap.Error(err))
		} else {
			c.redis = client
			cacheRepo = repository.NewCacheRepository(client)
			locker = lock.NewRedisLock(client)
		}
	}

	if cfg.Notifications.AMQPURL != "" {
		c.publisher = broker.NewAMQPPublisher(cfg.Notifications.AMQPURL, cfg.Notifications.AMQPQueue, logger)
	}

	files, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init certificate storage: %w", err)
	}

	validate := validator.New()
	repos := c.Repos

	c.Metrics = service.NewMetricsService()
	c.Cache = service.NewCacheService(cacheRepo, c.Metrics, 10*time.Minute, logger, cacheRepo != nil)
	c.Notifications = service.NewNotificationService(repos.Notifications, c.publisher, c.Metrics, logger, service.NotificationConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
	})
	c.Auth = service.NewAuthService(repos.Users, validate, logger, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.ServiceName,
	})
	c.Registration = service.NewRegistrationService(db, repos.Users, repos.Students, validate, logger)
	c.Bookings = service.NewBookingService(db, repos.Halls, repos.Bookings, repos.Users, c.Notifications, c.Metrics, validate, logger, service.BookingConfig{
		MinRejectionReason: cfg.Bookings.MinRejectionReason,
	})
	c.HallAssignment = service.NewHallAssignmentService(db, repos.Halls, repos.Bookings, repos.Events, c.Notifications, logger)
	c.Events = service.NewEventService(db, repos.Events, repos.Clubs, repos.Bookings, c.HallAssignment, repos.Users, c.Notifications, c.Metrics, validate, logger)
	c.EventStatus = service.NewEventStatusService(repos.Events, c.HallAssignment, c.Notifications, c.Metrics, logger, cfg.Campus.Location())
	c.AICTE = service.NewAICTEService(db, repos.AICTE, repos.Attendance, repos.Students, repos.Events, repos.Clubs, repos.Users, c.Notifications, c.Cache, c.Metrics, validate, logger, service.AICTEConfig{
		Thresholds: ledger.Thresholds{
			Regular: cfg.AICTE.RegularRequiredPoints,
			Lateral: cfg.AICTE.LateralRequiredPoints,
		},
		AutoApproveAfter: cfg.AICTE.AutoApproveAfter,
	})
	c.Certificates = service.NewCertificateService(
		db,
		repos.Certificates,
		repos.Events,
		repos.Attendance,
		repos.Students,
		repos.Clubs,
		export.NewCertificateRenderer(cfg.Certificates.PublicBaseURL+cfg.APIPrefix+"/certificates/verify"),
		files,
		storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL),
		c.Cache,
		c.Notifications,
		logger,
		service.CertificateConfig{
			Issuer:          cfg.Certificates.IssuerName,
			DownloadBaseURL: cfg.Certificates.PublicBaseURL + cfg.APIPrefix + "/certificates/download",
		},
	)
	c.Maintenance = service.NewMaintenanceService(
		c.EventStatus,
		c.AICTE,
		c.Certificates,
		repos.Attendance,
		repos.AICTE,
		locker,
		repos.Users,
		c.Metrics,
		logger,
		cfg.Maintenance.LockTTL,
	)

	return c, nil
}

// Start launches background workers.
func (c *Container) Start(ctx context.Context) {
	c.Notifications.Start(ctx)
}

// Close drains workers and releases connections.
func (c *Container) Close() {
	c.Notifications.Stop()
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.Logger.Warn("close amqp publisher", zap.Error(err))
		}
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	_ = c.DB.Close()
}
