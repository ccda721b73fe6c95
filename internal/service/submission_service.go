package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/internal/recommender"
	"github.com/noah-isme/teacher-training-api/internal/repository"
	"github.com/noah-isme/teacher-training-api/pkg/database"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

// Skip outcome wording returned when an equivalent assignment already exists.
const (
	SkipReasonAlreadyAssigned = "equivalent_assignment_exists"
	skipMessage               = "You already have a training assigned for this kind of issue. Please continue with it."
)

type submissionIssueStore interface {
	Create(ctx context.Context, issue *models.Issue) error
	Delete(ctx context.Context, id string, status models.IssueStatus) error
}

type submissionAssignmentStore interface {
	FindActiveByEquivalence(ctx context.Context, teacherID, key string) (*models.AssignmentDetail, error)
	CreateForIssue(ctx context.Context, assignment *models.TrainingAssignment) error
}

type moduleLookup interface {
	GetByID(ctx context.Context, id string) (*models.TrainingModule, error)
}

type submissionGuard interface {
	Acquire(ctx context.Context, teacherID, key string) (bool, func(), error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SubmissionServiceConfig tunes issue orchestration.
type SubmissionServiceConfig struct {
	DueOffset        time.Duration
	Budget           time.Duration
	SystemAssignerID string
	Provider         string
}

// SubmissionServiceParams groups constructor dependencies.
type SubmissionServiceParams struct {
	Issues      submissionIssueStore
	Assignments submissionAssignmentStore
	Modules     moduleLookup
	Recommender recommender.Recommender
	Guard       submissionGuard
	Audit       auditWriter
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Config      SubmissionServiceConfig
}

// SubmissionService turns a teacher issue into exactly one outcome: a new
// training assignment, or a skip because an equivalent assignment exists.
type SubmissionService struct {
	issues      submissionIssueStore
	assignments submissionAssignmentStore
	modules     moduleLookup
	recommender recommender.Recommender
	guard       submissionGuard
	audit       auditWriter
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         SubmissionServiceConfig
	now         func() time.Time
}

// NewSubmissionService constructs the orchestrator.
func NewSubmissionService(params SubmissionServiceParams) *SubmissionService {
	cfg := params.Config
	if cfg.DueOffset <= 0 {
		cfg.DueOffset = 7 * 24 * time.Hour
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 45 * time.Second
	}
	if cfg.SystemAssignerID == "" {
		cfg.SystemAssignerID = "system"
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		issues:      params.Issues,
		assignments: params.Assignments,
		modules:     params.Modules,
		recommender: params.Recommender,
		guard:       params.Guard,
		audit:       params.Audit,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// EquivalenceKey groups issues that describe the same underlying need.
func EquivalenceKey(category models.IssueCategory) string {
	return string(category)
}

// ProcessIssueSubmission validates and stores the issue, then either
// short-circuits on an existing equivalent assignment or asks the recommender
// for a module and creates the assignment.
func (s *SubmissionService) ProcessIssueSubmission(ctx context.Context, actor *models.JWTClaims, req dto.SubmitIssueRequest) (*dto.SubmissionOutcome, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can submit issues")
	}

	req.Description = strings.TrimSpace(req.Description)
	req.Cluster = strings.TrimSpace(req.Cluster)
	if req.Cluster == "" {
		req.Cluster = actor.Cluster
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid issue payload")
	}
	if req.Cluster == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cluster is required")
	}

	// the orchestration completes even if the client disconnects
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Budget)
	defer cancel()

	key := EquivalenceKey(req.Category)
	logger := s.logger.With(zap.String("teacher_id", actor.UserID), zap.String("equivalence_key", key))

	if s.guard != nil {
		acquired, release, err := s.guard.Acquire(ctx, actor.UserID, key)
		if err != nil {
			logger.Warn("submission guard unavailable, relying on database constraints", zap.Error(err))
		} else if !acquired {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a similar issue is already being processed, please retry shortly")
		} else {
			defer release()
		}
	}

	existing, err := s.assignments.FindActiveByEquivalence(ctx, actor.UserID, key)
	switch {
	case err == nil:
		logger.Info("equivalent assignment exists, skipping recommender", zap.String("assignment_id", existing.ID))
		s.metrics.RecordSubmission(OutcomeSkipped)
		return skipOutcome(existing), nil
	case !errors.Is(err, sql.ErrNoRows):
		s.metrics.RecordSubmission(OutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing assignments")
	}

	issue := &models.Issue{
		TeacherID:   actor.UserID,
		Cluster:     req.Cluster,
		Category:    req.Category,
		Description: req.Description,
		Status:      models.IssueStatusPending,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		s.metrics.RecordSubmission(OutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store issue")
	}
	s.writeAudit(ctx, actor.UserID, models.AuditActionIssueSubmit, "issues", issue.ID, issue)
	s.cache.Invalidate(ctx, cacheKeyDashboardStats)

	start := time.Now()
	rec, err := s.recommender.Recommend(ctx, recommender.Request{
		TeacherID:   actor.UserID,
		TeacherName: actor.FullName,
		IssueID:     issue.ID,
		Category:    req.Category,
		Cluster:     req.Cluster,
		Description: req.Description,
	})
	provider := s.cfg.Provider
	if rec != nil && rec.Provider != "" {
		provider = rec.Provider
	}
	s.metrics.ObserveRecommender(provider, err, time.Since(start))
	if err != nil {
		logger.Error("recommender failed, issue left pending", zap.String("issue_id", issue.ID), zap.Error(err))
		s.metrics.RecordSubmission(OutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}

	module, err := s.modules.GetByID(ctx, rec.ModuleID)
	if err != nil {
		s.metrics.RecordSubmission(OutcomeFailed)
		if errors.Is(err, sql.ErrNoRows) {
			logger.Error("recommender returned unknown module", zap.String("module_id", rec.ModuleID))
			return nil, appErrors.Wrap(fmt.Errorf("module %s not found", rec.ModuleID), appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recommended module")
	}

	now := s.now().UTC()
	assignment := &models.TrainingAssignment{
		TeacherID:      actor.UserID,
		ModuleID:       module.ID,
		SourceIssueID:  &issue.ID,
		EquivalenceKey: key,
		AssignedBy:     s.cfg.SystemAssignerID,
		AssignedReason: "Training Assigned: " + module.Title,
		Status:         models.AssignmentStatusNotStarted,
		AssignedDate:   now,
		DueDate:        now.Add(s.cfg.DueOffset),
	}
	if content := strings.TrimSpace(rec.PersonalizedContent); content != "" {
		assignment.PersonalizedContent = &content
	}

	if err := s.assignments.CreateForIssue(ctx, assignment); err != nil {
		return s.handleCreateFailure(ctx, logger, issue, err)
	}

	issue.Status = models.IssueStatusTrainingAssigned
	issue.UpdatedAt = assignment.CreatedAt
	s.metrics.RecordSubmission(OutcomeAssigned)
	s.writeAudit(ctx, actor.UserID, models.AuditActionTrainingAssign, "training_assignments", assignment.ID, assignment)
	logger.Info("training assigned",
		zap.String("issue_id", issue.ID),
		zap.String("assignment_id", assignment.ID),
		zap.String("module_id", module.ID),
		zap.String("provider", provider),
	)

	gaps := rec.InferredGaps
	if gaps == nil {
		gaps = []string{}
	}
	priority := rec.Priority
	if priority == "" {
		priority = recommender.DefaultPriority
	}
	return &dto.SubmissionOutcome{
		Success: true,
		Issue:   issue,
		AIResponse: &dto.AIResponse{
			Suggestion:   "Training Assigned: " + module.Title,
			InferredGaps: gaps,
			Priority:     priority,
		},
		Assignment: assignment,
	}, nil
}

// handleCreateFailure resolves a failed assignment insert. Losing the race on
// the equivalence index discards the new issue and reports the winner.
func (s *SubmissionService) handleCreateFailure(ctx context.Context, logger *zap.Logger, issue *models.Issue, err error) (*dto.SubmissionOutcome, error) {
	switch {
	case database.IsUniqueViolation(err, repository.ConstraintAssignmentEquivalence):
		if delErr := s.issues.Delete(ctx, issue.ID, models.IssueStatusPending); delErr != nil && !errors.Is(delErr, sql.ErrNoRows) {
			logger.Error("failed to discard issue after losing assignment race", zap.String("issue_id", issue.ID), zap.Error(delErr))
		}
		s.cache.Invalidate(ctx, cacheKeyDashboardStats)
		s.metrics.RecordSubmission(OutcomeSkipped)

		winner, findErr := s.assignments.FindActiveByEquivalence(ctx, issue.TeacherID, EquivalenceKey(issue.Category))
		if findErr != nil {
			logger.Warn("equivalent assignment not readable after race", zap.Error(findErr))
			return skipOutcome(nil), nil
		}
		return skipOutcome(winner), nil
	case errors.Is(err, repository.ErrIssueNotPending):
		s.metrics.RecordSubmission(OutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "issue changed while training was being assigned")
	default:
		s.metrics.RecordSubmission(OutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create training assignment")
	}
}

func skipOutcome(existing *models.AssignmentDetail) *dto.SubmissionOutcome {
	outcome := &dto.SubmissionOutcome{
		Success:        true,
		IssueDeleted:   true,
		SkippedAICall:  true,
		AlreadyExisted: true,
		Message:        skipMessage,
		Reason:         SkipReasonAlreadyAssigned,
	}
	if existing != nil {
		outcome.AssignedModule = &dto.AssignedModule{
			ID:             existing.ModuleID,
			Title:          existing.ModuleTitle,
			CompetencyArea: existing.ModuleCompetency,
		}
	}
	return outcome
}

func (s *SubmissionService) writeAudit(ctx context.Context, userID, action, resource, resourceID string, value interface{}) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("failed to encode audit payload", zap.Error(err))
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
