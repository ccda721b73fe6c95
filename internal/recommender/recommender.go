// Package recommender picks a training module for a teacher issue.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/pkg/config"
)

// DefaultPriority is reported when a provider does not rank the issue.
const DefaultPriority = "high"

// ErrNoModule is returned when no catalog module can serve the request.
var ErrNoModule = errors.New("no training module matches the issue")

// Request describes the issue a module is being recommended for.
type Request struct {
	TeacherID   string
	TeacherName string
	IssueID     string
	Category    models.IssueCategory
	Cluster     string
	Description string
}

// Recommendation is a provider's answer.
type Recommendation struct {
	ModuleID            string
	ModuleTitle         string
	PersonalizedContent string
	InferredGaps        []string
	Priority            string
	Provider            string
}

// Recommender maps an issue to a module. Implementations must not write to
// the database.
type Recommender interface {
	Recommend(ctx context.Context, req Request) (*Recommendation, error)
}

// Catalog is the read side of the module catalog used by providers.
type Catalog interface {
	List(ctx context.Context, filter models.ModuleFilter) ([]models.TrainingModule, error)
	GetByID(ctx context.Context, id string) (*models.TrainingModule, error)
}

// AssignmentMessage is the static personalised text used when no generated content is available.
func AssignmentMessage(moduleTitle string) string {
	return fmt.Sprintf("We have assigned %s to help you with your recent feedback.", moduleTitle)
}

// New builds the configured provider wrapped with the configured fallback policy.
func New(cfg config.RecommenderConfig, catalog Catalog, logger *zap.Logger) (Recommender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var primary Recommender
	switch strings.ToLower(cfg.Provider) {
	case config.RecommenderHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("recommender provider %q requires RECOMMENDER_URL", cfg.Provider)
		}
		primary = NewHTTPRecommender(cfg.URL, cfg.Timeout, logger)
	case config.RecommenderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("recommender provider %q requires ANTHROPIC_API_KEY", cfg.Provider)
		}
		primary = NewAnthropicRecommender(cfg.APIKey, cfg.Model, cfg.MaxCandidates, catalog, logger)
	case config.RecommenderKeyword, "":
		primary = NewKeywordRecommender(catalog, nil)
	default:
		return nil, fmt.Errorf("unknown recommender provider %q", cfg.Provider)
	}

	return WithFallback(primary, cfg.FallbackPolicy, cfg.FallbackModuleID, catalog, logger), nil
}

// pickModule returns the first catalog module for the competency that targets the cluster.
func pickModule(ctx context.Context, catalog Catalog, competency models.CompetencyArea, cluster string) (*models.TrainingModule, error) {
	modules, err := catalog.List(ctx, models.ModuleFilter{CompetencyArea: competency, Cluster: cluster})
	if err != nil {
		return nil, fmt.Errorf("list modules for %s: %w", competency, err)
	}
	for i := range modules {
		if modules[i].Targets(cluster) {
			return &modules[i], nil
		}
	}
	return nil, fmt.Errorf("%w: competency %s, cluster %q", ErrNoModule, competency, cluster)
}

// stripFences removes a surrounding markdown code fence from model output.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
