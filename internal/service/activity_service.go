package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type auditReader interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// ActivityService exposes the audit trail to admins.
type ActivityService struct {
	repo   auditReader
	logger *zap.Logger
}

// NewActivityService constructs the service.
func NewActivityService(repo auditReader, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// List returns audit entries matching the filter, newest first.
func (s *ActivityService) List(ctx context.Context, actor *models.JWTClaims, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	filter.Action = strings.ToUpper(strings.TrimSpace(filter.Action))
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)

	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
