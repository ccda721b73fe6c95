package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/pkg/jobs"
)

// Stats refresh triggers recorded in metrics.
const (
	StatsTriggerEvent    = "event"
	StatsTriggerSchedule = "schedule"
	StatsTriggerManual   = "manual"

	jobTypeModuleStats = "module_stats"
)

type moduleStatsRefresher interface {
	RefreshStats(ctx context.Context, id string) (*models.ModuleStats, error)
	RefreshAllStats(ctx context.Context) (int64, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ModuleStatsWorker recomputes module completion counts and ratings from the
// assignment ledger and feedback records.
type ModuleStatsWorker struct {
	repo    moduleStatsRefresher
	queue   jobDispatcher
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewModuleStatsWorker constructs a worker. The queue is attached later with
// Attach because the queue needs Handle at construction time.
func NewModuleStatsWorker(repo moduleStatsRefresher, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ModuleStatsWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleStatsWorker{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// Attach sets the queue used by EnqueueModule.
func (w *ModuleStatsWorker) Attach(queue jobDispatcher) {
	w.queue = queue
}

// EnqueueModule schedules a refresh for one module. Requests for a module
// already waiting in the queue are coalesced by job ID.
func (w *ModuleStatsWorker) EnqueueModule(moduleID string) {
	if moduleID == "" {
		return
	}
	if w.queue == nil {
		w.logger.Debug("module stats queue not attached, refresh skipped", zap.String("module_id", moduleID))
		return
	}
	if err := w.queue.Enqueue(jobs.Job{ID: moduleID, Type: jobTypeModuleStats, Payload: moduleID}); err != nil {
		w.logger.Warn("failed to enqueue module stats refresh", zap.String("module_id", moduleID), zap.Error(err))
	}
}

// Handle processes a queue job.
func (w *ModuleStatsWorker) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != jobTypeModuleStats {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}
	stats, err := w.repo.RefreshStats(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// module deleted after the job was queued
			w.logger.Debug("module stats refresh skipped, module gone", zap.String("module_id", job.ID))
			return nil
		}
		w.metrics.RecordStatsRefresh(StatsTriggerEvent, err)
		return err
	}
	w.metrics.RecordStatsRefresh(StatsTriggerEvent, nil)
	w.cache.InvalidatePattern(ctx, cacheKeyModulesPrefix+"*")
	w.logger.Debug("module stats refreshed",
		zap.String("module_id", stats.ModuleID),
		zap.Int("completion_count", stats.CompletionCount),
		zap.Float64("average_rating", stats.AverageRating),
	)
	return nil
}

// RefreshAll recomputes statistics for every module.
func (w *ModuleStatsWorker) RefreshAll(ctx context.Context, trigger string) (int64, error) {
	n, err := w.repo.RefreshAllStats(ctx)
	w.metrics.RecordStatsRefresh(trigger, err)
	if err != nil {
		return 0, fmt.Errorf("refresh module stats: %w", err)
	}
	w.cache.InvalidatePattern(ctx, cacheKeyModulesPrefix+"*")
	w.logger.Info("module stats refreshed", zap.String("trigger", trigger), zap.Int64("modules", n))
	return n, nil
}

// StartSchedule runs RefreshAll on the cron schedule until ctx is cancelled. An
// empty schedule disables the schedule.
func (w *ModuleStatsWorker) StartSchedule(ctx context.Context, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := w.RefreshAll(ctx, StatsTriggerSchedule); err != nil {
			w.logger.Error("scheduled module stats refresh failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid stats refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	w.logger.Info("module stats schedule started", zap.String("schedule", schedule))

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
