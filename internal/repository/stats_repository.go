package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teacher-training-api/internal/dto"
)

// StatsRepository runs the aggregate queries behind the admin dashboard.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountIssues returns the total number of issues.
func (r *StatsRepository) CountIssues(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM issues`); err != nil {
		return 0, fmt.Errorf("count issues: %w", err)
	}
	return total, nil
}

// IssuesBy groups issues by one of status, category or cluster.
func (r *StatsRepository) IssuesBy(ctx context.Context, column string) ([]dto.CountBucket, error) {
	switch column {
	case "status", "category", "cluster":
	default:
		return nil, fmt.Errorf("issues by %q: unsupported column", column)
	}
	query := fmt.Sprintf(`SELECT %s AS key, COUNT(*) AS count FROM issues GROUP BY %s ORDER BY count DESC, key`, column, column)
	var buckets []dto.CountBucket
	if err := r.db.SelectContext(ctx, &buckets, query); err != nil {
		return nil, fmt.Errorf("issues by %s: %w", column, err)
	}
	return buckets, nil
}

// AssignmentsByStatus groups assignments by status.
func (r *StatsRepository) AssignmentsByStatus(ctx context.Context) ([]dto.CountBucket, error) {
	const query = `SELECT status AS key, COUNT(*) AS count FROM training_assignments GROUP BY status ORDER BY count DESC, key`
	var buckets []dto.CountBucket
	if err := r.db.SelectContext(ctx, &buckets, query); err != nil {
		return nil, fmt.Errorf("assignments by status: %w", err)
	}
	return buckets, nil
}

// AverageFeedbackRating returns the mean rating across all feedback, 0 when none.
func (r *StatsRepository) AverageFeedbackRating(ctx context.Context) (float64, error) {
	var avg float64
	if err := r.db.GetContext(ctx, &avg, `SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0) FROM training_feedback`); err != nil {
		return 0, fmt.Errorf("average feedback rating: %w", err)
	}
	return avg, nil
}
