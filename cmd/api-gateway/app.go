package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/recommender"
	"github.com/noah-isme/teacher-training-api/internal/repository"
	"github.com/noah-isme/teacher-training-api/internal/service"
	"github.com/noah-isme/teacher-training-api/pkg/cache"
	"github.com/noah-isme/teacher-training-api/pkg/config"
	"github.com/noah-isme/teacher-training-api/pkg/database"
	"github.com/noah-isme/teacher-training-api/pkg/export"
	"github.com/noah-isme/teacher-training-api/pkg/jobs"
	"github.com/noah-isme/teacher-training-api/pkg/logger"
	"github.com/noah-isme/teacher-training-api/pkg/sharelink"
)

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client

	metrics    *service.MetricsService
	users      *repository.UserRepository
	audits     *repository.AuditRepository
	statsQueue *jobs.Queue

	auth        *service.AuthService
	accounts    *service.AccountService
	submissions *service.SubmissionService
	progress    *service.ProgressService
	feedback    *service.FeedbackService
	issues      *service.IssueService
	modules     *service.ModuleService
	stats       *service.StatsService
	activity    *service.ActivityService
	trainings   *service.TrainingService
	statsWorker *service.ModuleStatsWorker
}

// bootstrap loads config, opens connections and builds the service graph.
// withServices=false stops after the database connection, for commands that
// only need storage.
func bootstrap(ctx context.Context, withServices bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logr,
		db:     db,
		users:  repository.NewUserRepository(db),
		audits: repository.NewAuditRepository(db),
	}
	if !withServices {
		return a, nil
	}

	a.redis, err = cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		a.redis = nil
	}

	if err := a.wire(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg
	validate := validator.New()
	a.metrics = service.NewMetricsService()

	issueRepo := repository.NewIssueRepository(a.db)
	assignmentRepo := repository.NewAssignmentRepository(a.db)
	moduleRepo := repository.NewModuleRepository(a.db)
	feedbackRepo := repository.NewFeedbackRepository(a.db)
	statsRepo := repository.NewStatsRepository(a.db)

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(a.redis, a.logger),
		a.metrics,
		cfg.Cache.StatsTTL,
		a.logger,
		cfg.Cache.Enabled && a.redis != nil,
	)

	rec, err := recommender.New(cfg.Recommender, moduleRepo, a.logger)
	if err != nil {
		return fmt.Errorf("init recommender: %w", err)
	}

	a.statsWorker = service.NewModuleStatsWorker(moduleRepo, cacheSvc, a.metrics, a.logger)
	a.statsQueue = jobs.NewQueue("module-stats", a.statsWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Stats.QueueWorkers,
		MaxRetries: cfg.Stats.QueueRetries,
		Coalesce:   true,
		Logger:     a.logger,
		Observer:   a.metrics,
	})
	a.statsWorker.Attach(a.statsQueue)

	a.auth = service.NewAuthService(a.users, a.audits, validate, a.logger, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      true,
	})
	a.accounts = service.NewAccountService(a.users, a.audits, validate, a.logger)
	a.submissions = service.NewSubmissionService(service.SubmissionServiceParams{
		Issues:      issueRepo,
		Assignments: assignmentRepo,
		Modules:     moduleRepo,
		Recommender: rec,
		Guard:       repository.NewSubmissionGuard(a.redis, cfg.Assignments.SubmissionGuardTTL),
		Audit:       a.audits,
		Cache:       cacheSvc,
		Metrics:     a.metrics,
		Validator:   validate,
		Logger:      a.logger,
		Config: service.SubmissionServiceConfig{
			DueOffset:        cfg.Assignments.DueOffset,
			Budget:           cfg.Assignments.OrchestrationBudget,
			SystemAssignerID: cfg.Assignments.SystemAssignerID,
			Provider:         cfg.Recommender.Provider,
		},
	})
	a.progress = service.NewProgressService(assignmentRepo, a.statsWorker, cacheSvc, a.logger)
	a.feedback = service.NewFeedbackService(assignmentRepo, feedbackRepo, a.statsWorker, a.audits, cacheSvc, a.metrics, validate, a.logger)
	a.issues = service.NewIssueService(issueRepo, a.audits, cacheSvc, validate, a.logger)
	a.modules = service.NewModuleService(moduleRepo, a.audits, cacheSvc, cfg.Cache.ModulesTTL, validate, a.logger)
	a.stats = service.NewStatsService(statsRepo, cacheSvc, cfg.Cache.StatsTTL, a.logger)
	a.activity = service.NewActivityService(a.audits, a.logger)
	links := sharelink.NewSigner(cfg.Certificate.ShareSecret, "certificate", cfg.Certificate.ShareTTL)
	a.trainings = service.NewTrainingService(assignmentRepo, a.users, export.NewPDFExporter(cfg.Certificate.Issuer), export.NewCSVExporter(), links, a.logger)
	return nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}
