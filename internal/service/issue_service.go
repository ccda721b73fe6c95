package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type issueRepository interface {
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.IssueWithTeacher, int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.IssueStatus, remarks *string) error
	Delete(ctx context.Context, id string, status models.IssueStatus) error
}

// IssueService exposes issue reads to teachers and the review track to admins.
type IssueService struct {
	repo      issueRepository
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIssueService constructs the service.
func NewIssueService(repo issueRepository, audit auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *IssueService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// ListMine returns the actor's own issues, newest first.
func (s *IssueService) ListMine(ctx context.Context, actor *models.JWTClaims, page, pageSize int) ([]models.IssueWithTeacher, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	return s.list(ctx, models.IssueFilter{TeacherID: actor.UserID, Page: page, PageSize: pageSize})
}

// List returns issues across all teachers for admins.
func (s *IssueService) List(ctx context.Context, actor *models.JWTClaims, query dto.IssueListQuery) ([]models.IssueWithTeacher, *models.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	return s.list(ctx, models.IssueFilter{
		Status:   query.Status,
		Cluster:  query.Cluster,
		Category: query.Category,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
}

func (s *IssueService) list(ctx context.Context, filter models.IssueFilter) ([]models.IssueWithTeacher, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issues")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single issue visible to the actor.
func (s *IssueService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Issue, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(issue.TeacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "issue belongs to another teacher")
	}
	return issue, nil
}

// UpdateStatus moves an issue along pending → reviewed → resolved. The
// training_assigned branch is owned by issue submission.
func (s *IssueService) UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateIssueStatusRequest) (*models.Issue, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid status payload")
	}

	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !issue.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot move issue from "+string(issue.Status)+" to "+string(req.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, issue.Status, req.Status, req.AdminRemarks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "issue status changed concurrently, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update issue status")
	}

	previous := issue.Status
	issue.Status = req.Status
	if req.AdminRemarks != nil {
		issue.AdminRemarks = req.AdminRemarks
	}
	s.cache.Invalidate(ctx, cacheKeyDashboardStats)
	s.recordAudit(ctx, actor.UserID, models.AuditActionIssueStatus, id, map[string]interface{}{"status": previous}, map[string]interface{}{"status": issue.Status, "admin_remarks": issue.AdminRemarks})
	return issue, nil
}

// Delete removes a resolved issue.
func (s *IssueService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	issue, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if issue.Status != models.IssueStatusResolved {
		return appErrors.Clone(appErrors.ErrInvalidState, "only resolved issues can be deleted")
	}
	if err := s.repo.Delete(ctx, id, models.IssueStatusResolved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "issue changed concurrently, reload and retry")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete issue")
	}
	s.cache.Invalidate(ctx, cacheKeyDashboardStats)
	s.recordAudit(ctx, actor.UserID, models.AuditActionIssueDelete, id, issue, nil)
	return nil
}

func (s *IssueService) load(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}
	return issue, nil
}

func (s *IssueService) recordAudit(ctx context.Context, userID, action, issueID string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{UserID: &userID, Action: action, Resource: "issues", ResourceID: &issueID}
	if oldValue != nil {
		entry.OldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		entry.NewValues, _ = json.Marshal(newValue)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record issue audit log", zap.String("action", action), zap.Error(err))
	}
}

func requireAdmin(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	return nil
}
