// Package app assembles repositories, services and the HTTP router from config.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// Services groups the domain services.
type Services struct {
	Auth       *service.AuthService
	Skills     *service.SkillService
	Teachers   *service.TeacherService
	Imports    *service.ImportService
	Grid       *service.GridService
	Allocation *service.AllocationService
	Export     *service.ExportService
	Cache      *service.CacheService
	Metrics    *service.MetricsService
}

// App owns process-wide resources.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *sqlx.DB
	Redis    *redis.Client
	Services Services

	queue *jobs.Queue
	lock  *database.InstanceLock
}

// New connects to Postgres and Redis and wires every service. The job queue
// is built but not started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.NewRedis(ctx, cfg.Redis, cfg.Cache.Enabled)
	if err != nil {
		logger.Warn("redis unavailable, schedule cache disabled", zap.Error(err))
		redisClient = nil
	}
	return Wire(cfg, logger, db, redisClient), nil
}

// Wire builds the service graph over existing connections.
func Wire(cfg *config.Config, logger *zap.Logger, db *sqlx.DB, redisClient *redis.Client) *App {
	validate := validator.New()
	metrics := service.NewMetricsService()

	skillRepo := repository.NewSkillRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	runRepo := repository.NewAllocationRunRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logger.Named("cache"))

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ScheduleTTL, logger.Named("cache"), cfg.Cache.Enabled && redisClient != nil)

	svcs := Services{
		Auth: service.NewAuthService(validate, logger.Named("auth"), service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		Skills:   service.NewSkillService(skillRepo, sessionRepo, cacheSvc, validate, logger.Named("skills")),
		Teachers: service.NewTeacherService(teacherRepo, skillRepo, sessionRepo, db, cacheSvc, validate, logger.Named("teachers")),
		Imports:  service.NewImportService(skillRepo, teacherRepo, db, cacheSvc, logger.Named("imports")),
		Grid:     service.NewGridService(sessionRepo, teacherRepo, skillRepo, db, cacheSvc, metrics, logger.Named("grid")),
		Allocation: service.NewAllocationService(sessionRepo, teacherRepo, runRepo, db, cacheSvc, metrics,
			service.AllocationConfig{MaxRetries: cfg.Allocation.MaxRetries}, logger.Named("allocation")),
		Export:  service.NewExportService(skillRepo, teacherRepo, sessionRepo, logger.Named("export"), nil, nil),
		Cache:   cacheSvc,
		Metrics: metrics,
	}

	queue := jobs.NewQueue("allocations", jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Allocation.QueueBuffer,
		MaxRetries: cfg.Allocation.MaxRetries,
		RetryDelay: cfg.Allocation.RetryDelay,
		Logger:     logger.Named("queue"),
	})
	queue.Handle(service.AllocationJobType, svcs.Allocation.HandleJob)
	svcs.Allocation.SetQueue(queue)

	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Redis:    redisClient,
		Services: svcs,
		queue:    queue,
	}
}

// AcquireInstanceLock makes this process the only running API instance.
func (a *App) AcquireInstanceLock(ctx context.Context) error {
	lock, err := database.AcquireInstanceLock(ctx, a.DB, a.Config.Bootstrap.InstanceLockKey)
	if err != nil {
		return err
	}
	a.lock = lock
	a.Logger.Info("instance lock acquired", zap.Int64("key", a.Config.Bootstrap.InstanceLockKey))
	return nil
}

// Bootstrap applies the schema and repairs stored grid data.
func (a *App) Bootstrap(ctx context.Context) error {
	b := database.NewBootstrapper(a.DB, database.BootstrapConfig{
		MaxAttempts:  a.Config.Bootstrap.MaxAttempts,
		SkipIfLocked: a.Config.Bootstrap.SkipIfLocked,
	}, a.Logger.Named("bootstrap"))

	before, after := b.SchemaSteps()
	steps := append([]database.Step{}, before...)
	steps = append(steps,
		database.Step{Name: "migrate_legacy_year_groups", Run: func(ctx context.Context) error {
			_, err := a.Services.Grid.MigrateLegacyYearGroups(ctx)
			return err
		}},
		database.Step{Name: "repair_grid", Run: func(ctx context.Context) error {
			_, err := a.Services.Grid.Repair(ctx)
			return err
		}},
	)
	steps = append(steps, after...)
	return b.Run(ctx, steps...)
}

// StartWorkers starts the background allocation queue.
func (a *App) StartWorkers(ctx context.Context) {
	a.queue.Start(ctx)
}

// Close stops workers and releases connections.
func (a *App) Close() {
	a.queue.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.lock.Release(ctx); err != nil {
		a.Logger.Warn("instance lock release failed", zap.Error(err))
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// Engine returns a gin engine configured for the current environment.
func (a *App) Engine() *gin.Engine {
	if a.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewRouter(a.Config, a.Logger, a.DB, a.Services)
}

// Addr is the HTTP listen address.
func (a *App) Addr() string {
	return fmt.Sprintf(":%d", a.Config.Port)
}
