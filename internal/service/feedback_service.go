package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/internal/repository"
	"github.com/noah-isme/teacher-training-api/pkg/database"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type feedbackAssignmentReader interface {
	GetByID(ctx context.Context, id string) (*models.TrainingAssignment, error)
}

type feedbackStore interface {
	ExistsForAssignment(ctx context.Context, assignmentID string) (bool, error)
	Create(ctx context.Context, feedback *models.TrainingFeedback) error
}

// FeedbackService records the single post-completion rating of an assignment.
type FeedbackService struct {
	assignments feedbackAssignmentReader
	feedback    feedbackStore
	stats       statsEnqueuer
	audit       auditWriter
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewFeedbackService constructs the service.
func NewFeedbackService(assignments feedbackAssignmentReader, feedback feedbackStore, stats statsEnqueuer, audit auditWriter, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		assignments: assignments,
		feedback:    feedback,
		stats:       stats,
		audit:       audit,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// SubmitFeedback stores feedback for a completed assignment owned by the actor.
func (s *FeedbackService) SubmitFeedback(ctx context.Context, actor *models.JWTClaims, assignmentID string, req dto.SubmitFeedbackRequest) (*models.TrainingFeedback, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rating must be between 1 and 5")
	}
	if req.WasHelpful == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "wasHelpful is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid feedback payload")
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training assignment")
	}
	if assignment.TeacherID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}
	if assignment.Status != models.AssignmentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "feedback can only be submitted for completed training")
	}

	exists, err := s.feedback.ExistsForAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing feedback")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "feedback already submitted for this training")
	}

	feedback := &models.TrainingFeedback{
		TeacherID:              actor.UserID,
		AssignmentID:           assignment.ID,
		ModuleID:               assignment.ModuleID,
		Rating:                 req.Rating,
		WasHelpful:             *req.WasHelpful,
		Comment:                req.Comment,
		Strengths:              req.Strengths,
		Improvements:           req.Improvements,
		StillHasIssue:          req.StillHasIssue,
		NeedsAdditionalSupport: req.NeedsAdditionalSupport,
	}
	if err := s.feedback.Create(ctx, feedback); err != nil {
		if database.IsUniqueViolation(err, repository.ConstraintFeedbackAssignment) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "feedback already submitted for this training")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store feedback")
	}

	s.metrics.RecordFeedback(feedback.WasHelpful)
	s.cache.Invalidate(ctx, cacheKeyDashboardStats)
	if s.stats != nil {
		s.stats.EnqueueModule(feedback.ModuleID)
	}
	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionTrainingFeedback,
			Resource:   "training_feedback",
			ResourceID: &feedback.ID,
		}); err != nil {
			s.logger.Warn("failed to record feedback audit log", zap.Error(err))
		}
	}
	if feedback.StillHasIssue || feedback.NeedsAdditionalSupport {
		s.logger.Info("teacher requested additional support",
			zap.String("teacher_id", actor.UserID),
			zap.String("assignment_id", assignment.ID),
		)
	}
	return feedback, nil
}
