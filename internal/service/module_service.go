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
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type moduleRepository interface {
	List(ctx context.Context, filter models.ModuleFilter) ([]models.TrainingModule, error)
	GetByID(ctx context.Context, id string) (*models.TrainingModule, error)
	Create(ctx context.Context, module *models.TrainingModule) error
	Update(ctx context.Context, module *models.TrainingModule) error
	Delete(ctx context.Context, id string) error
	CountAssignments(ctx context.Context, id string) (int, error)
}

// ModuleService manages the training module catalog.
type ModuleService struct {
	repo      moduleRepository
	audit     auditWriter
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewModuleService constructs the catalog service.
func NewModuleService(repo moduleRepository, audit auditWriter, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ModuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleService{repo: repo, audit: audit, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

func moduleCacheKey(filter models.ModuleFilter) string {
	return fmt.Sprintf("%slist:%s:%s:%s", cacheKeyModulesPrefix, filter.CompetencyArea, filter.Difficulty, strings.ToLower(filter.Cluster))
}

// List returns catalog modules matching the filter. Results are cached per filter.
func (s *ModuleService) List(ctx context.Context, filter models.ModuleFilter) ([]models.TrainingModule, error) {
	filter.Cluster = strings.TrimSpace(filter.Cluster)
	var modules []models.TrainingModule
	_, err := s.cache.Remember(ctx, moduleCacheKey(filter), s.cacheTTL, &modules, func(ctx context.Context) (interface{}, error) {
		items, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.TrainingModule{}
		}
		return items, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list training modules")
	}
	return modules, nil
}

// Get returns a module by id.
func (s *ModuleService) Get(ctx context.Context, id string) (*models.TrainingModule, error) {
	module, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training module")
	}
	return module, nil
}

// Create adds a module to the catalog.
func (s *ModuleService) Create(ctx context.Context, actor *models.JWTClaims, req dto.UpsertModuleRequest) (*models.TrainingModule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	module, err := s.buildModule(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, module); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create training module")
	}
	s.afterWrite(ctx, actor.UserID, models.AuditActionModuleCreate, module.ID, nil, module)
	return module, nil
}

// Update replaces the editable fields of a module. Usage statistics are kept.
func (s *ModuleService) Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpsertModuleRequest) (*models.TrainingModule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	module, err := s.buildModule(req)
	if err != nil {
		return nil, err
	}
	module.ID = existing.ID
	module.CompletionCount = existing.CompletionCount
	module.AverageRating = existing.AverageRating
	module.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, module); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update training module")
	}
	s.afterWrite(ctx, actor.UserID, models.AuditActionModuleUpdate, module.ID, existing, module)
	return module, nil
}

// Delete removes a module that no assignment references.
func (s *ModuleService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountAssignments(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check module usage")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("module is referenced by %d training assignments", count))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "training module not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete training module")
	}
	s.afterWrite(ctx, actor.UserID, models.AuditActionModuleDelete, id, existing, nil)
	return nil
}

func (s *ModuleService) buildModule(req dto.UpsertModuleRequest) (*models.TrainingModule, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid module payload")
	}

	module := &models.TrainingModule{
		Title:             req.Title,
		Description:       strings.TrimSpace(req.Description),
		CompetencyArea:    req.CompetencyArea,
		DifficultyLevel:   req.DifficultyLevel,
		ContentType:       req.ContentType,
		FullContent:       req.FullContent,
		VideoURL:          req.VideoURL,
		EstimatedDuration: strings.TrimSpace(req.EstimatedDuration),
	}
	if module.DifficultyLevel == "" {
		module.DifficultyLevel = models.DifficultyBeginner
	}
	if module.ContentType == "" {
		module.ContentType = models.ContentTypeArticle
	}
	if module.EstimatedDuration == "" {
		module.EstimatedDuration = models.DefaultEstimatedDuration
	}
	for _, c := range req.TargetClusters {
		if c = strings.TrimSpace(c); c != "" {
			module.TargetClusters = append(module.TargetClusters, c)
		}
	}
	if len(module.TargetClusters) == 0 {
		module.TargetClusters = []string{models.AllClusters}
	}
	return module, nil
}

func (s *ModuleService) afterWrite(ctx context.Context, userID, action, moduleID string, oldValue, newValue *models.TrainingModule) {
	s.cache.InvalidatePattern(ctx, cacheKeyModulesPrefix+"*")
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{UserID: &userID, Action: action, Resource: "training_modules", ResourceID: &moduleID}
	if oldValue != nil {
		entry.OldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		entry.NewValues, _ = json.Marshal(newValue)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record module audit log", zap.String("action", action), zap.Error(err))
	}
}
