package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/internal/repository"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type progressStore interface {
	GetByID(ctx context.Context, id string) (*models.TrainingAssignment, error)
	SaveProgress(ctx context.Context, assignment *models.TrainingAssignment, prevUpdatedAt time.Time) error
}

type statsEnqueuer interface {
	EnqueueModule(moduleID string)
}

// ProgressService tracks teacher progress through assigned modules.
type ProgressService struct {
	store  progressStore
	stats  statsEnqueuer
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewProgressService constructs the service.
func NewProgressService(store progressStore, stats statsEnqueuer, cache *CacheService, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{store: store, stats: stats, cache: cache, logger: logger, now: time.Now}
}

// UpdateProgress sets the completion percentage. Setting the current value
// again is a no-op that returns the stored assignment unchanged.
func (s *ProgressService) UpdateProgress(ctx context.Context, actor *models.JWTClaims, assignmentID string, percentage int) (*models.TrainingAssignment, error) {
	if percentage < 0 || percentage > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "progressPercentage must be between 0 and 100")
	}
	assignment, err := s.loadOwned(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	prev := assignment.UpdatedAt
	wasCompleted := assignment.Status == models.AssignmentStatusCompleted
	if !assignment.ApplyProgress(percentage, s.now().UTC()) {
		return assignment, nil
	}
	if err := s.save(ctx, assignment, prev); err != nil {
		return nil, err
	}
	s.afterSave(ctx, assignment, wasCompleted)
	return assignment, nil
}

// RecordVideoProgress stores video watch time. Watch time only grows and a
// completed video drives the assignment to 100%.
func (s *ProgressService) RecordVideoProgress(ctx context.Context, actor *models.JWTClaims, assignmentID string, watchSeconds int, completed bool) (*models.TrainingAssignment, error) {
	if watchSeconds < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "watchTimeSeconds must not be negative")
	}
	assignment, err := s.loadOwned(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	prev := assignment.UpdatedAt
	wasCompleted := assignment.Status == models.AssignmentStatusCompleted
	changed := false
	if watchSeconds > assignment.VideoWatchTimeSeconds {
		assignment.VideoWatchTimeSeconds = watchSeconds
		changed = true
	}
	if completed && !assignment.VideoCompleted {
		assignment.VideoCompleted = true
		changed = true
	}
	if completed && assignment.ApplyProgress(100, s.now().UTC()) {
		changed = true
	}
	if !changed {
		return assignment, nil
	}
	if err := s.save(ctx, assignment, prev); err != nil {
		return nil, err
	}
	s.afterSave(ctx, assignment, wasCompleted)
	return assignment, nil
}

func (s *ProgressService) loadOwned(ctx context.Context, actor *models.JWTClaims, assignmentID string) (*models.TrainingAssignment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	assignment, err := s.store.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training assignment")
	}
	if assignment.TeacherID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}
	if assignment.Status == models.AssignmentStatusSkipped {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "skipped assignments cannot record progress")
	}
	return assignment, nil
}

func (s *ProgressService) save(ctx context.Context, assignment *models.TrainingAssignment, prev time.Time) error {
	if err := s.store.SaveProgress(ctx, assignment, prev); err != nil {
		if errors.Is(err, repository.ErrStaleAssignment) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "assignment was updated by another request, reload and retry")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save progress")
	}
	return nil
}

// afterSave refreshes derived module statistics when completion flips.
func (s *ProgressService) afterSave(ctx context.Context, assignment *models.TrainingAssignment, wasCompleted bool) {
	isCompleted := assignment.Status == models.AssignmentStatusCompleted
	if wasCompleted == isCompleted {
		return
	}
	s.cache.Invalidate(ctx, cacheKeyDashboardStats)
	if s.stats != nil {
		s.stats.EnqueueModule(assignment.ModuleID)
	}
	s.logger.Info("assignment completion changed",
		zap.String("assignment_id", assignment.ID),
		zap.Bool("completed", isCompleted),
	)
}
