package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type statsRepository interface {
	CountIssues(ctx context.Context) (int, error)
	IssuesBy(ctx context.Context, column string) ([]dto.CountBucket, error)
	AssignmentsByStatus(ctx context.Context) ([]dto.CountBucket, error)
	AverageFeedbackRating(ctx context.Context) (float64, error)
}

// StatsService builds the admin dashboard summary.
type StatsService struct {
	repo     statsRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatsService constructs the service.
func NewStatsService(repo statsRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger, now: time.Now}
}

// Dashboard returns issue and training aggregates. The second return value
// reports whether the payload was served from cache.
func (s *StatsService) Dashboard(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardStats, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}
	var stats dto.DashboardStats
	hit, err := s.cache.Remember(ctx, cacheKeyDashboardStats, s.cacheTTL, &stats, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx)
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard statistics")
	}
	return &stats, hit, nil
}

func (s *StatsService) compute(ctx context.Context) (*dto.DashboardStats, error) {
	stats := &dto.DashboardStats{GeneratedAt: s.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.TotalIssues, err = s.repo.CountIssues(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.IssuesByStatus, err = s.repo.IssuesBy(gctx, "status")
		return err
	})
	g.Go(func() (err error) {
		stats.IssuesByCategory, err = s.repo.IssuesBy(gctx, "category")
		return err
	})
	g.Go(func() (err error) {
		stats.IssuesByCluster, err = s.repo.IssuesBy(gctx, "cluster")
		return err
	})
	g.Go(func() (err error) {
		stats.AssignmentsByStatus, err = s.repo.AssignmentsByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.AverageFeedbackScore, err = s.repo.AverageFeedbackRating(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, buckets := range []*[]dto.CountBucket{&stats.IssuesByStatus, &stats.IssuesByCategory, &stats.IssuesByCluster, &stats.AssignmentsByStatus} {
		if *buckets == nil {
			*buckets = []dto.CountBucket{}
		}
	}
	return stats, nil
}
