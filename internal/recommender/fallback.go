package recommender

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/pkg/config"
)

// FallbackRecommender applies the configured policy when the primary provider fails.
type FallbackRecommender struct {
	primary  Recommender
	policy   string
	moduleID string
	catalog  Catalog
	logger   *zap.Logger
}

// WithFallback wraps primary. Policy "error" returns primary as-is.
func WithFallback(primary Recommender, policy, moduleID string, catalog Catalog, logger *zap.Logger) Recommender {
	if policy != config.FallbackModule {
		return primary
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackRecommender{primary: primary, policy: policy, moduleID: moduleID, catalog: catalog, logger: logger}
}

// Recommend implements Recommender.
func (f *FallbackRecommender) Recommend(ctx context.Context, req Request) (*Recommendation, error) {
	rec, err := f.primary.Recommend(ctx, req)
	if err == nil {
		return rec, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	f.logger.Warn("recommender failed, assigning fallback module",
		zap.String("teacher_id", req.TeacherID),
		zap.String("fallback_module_id", f.moduleID),
		zap.Error(err),
	)

	module, getErr := f.catalog.GetByID(ctx, f.moduleID)
	if getErr != nil {
		return nil, fmt.Errorf("load fallback module %s after %v: %w", f.moduleID, err, getErr)
	}
	return &Recommendation{
		ModuleID:            module.ID,
		ModuleTitle:         module.Title,
		PersonalizedContent: AssignmentMessage(module.Title),
		InferredGaps:        []string{string(module.CompetencyArea)},
		Priority:            DefaultPriority,
		Provider:            "fallback",
	}, nil
}
