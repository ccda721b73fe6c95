package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teacher-training-api/internal/models"
)

// ConstraintFeedbackAssignment enforces one feedback row per assignment.
const ConstraintFeedbackAssignment = "uq_training_feedback_assignment"

// FeedbackRepository persists post-training feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// ExistsForAssignment reports whether feedback was already recorded.
func (r *FeedbackRepository) ExistsForAssignment(ctx context.Context, assignmentID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM training_feedback WHERE assignment_id = $1)`, assignmentID); err != nil {
		return false, fmt.Errorf("check feedback exists: %w", err)
	}
	return exists, nil
}

// Create inserts a feedback record.
func (r *FeedbackRepository) Create(ctx context.Context, feedback *models.TrainingFeedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}
	if feedback.Strengths == nil {
		feedback.Strengths = []string{}
	}
	if feedback.Improvements == nil {
		feedback.Improvements = []string{}
	}

	const query = `INSERT INTO training_feedback
	(id, teacher_id, assignment_id, module_id, rating, was_helpful, comment, strengths, improvements, still_has_issue, needs_additional_support, created_at)
	VALUES (:id, :teacher_id, :assignment_id, :module_id, :rating, :was_helpful, :comment, :strengths, :improvements, :still_has_issue, :needs_additional_support, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("create training feedback: %w", err)
	}
	return nil
}

// GetByAssignment returns the feedback recorded for an assignment.
func (r *FeedbackRepository) GetByAssignment(ctx context.Context, assignmentID string) (*models.TrainingFeedback, error) {
	const query = `SELECT id, teacher_id, assignment_id, module_id, rating, was_helpful, comment, strengths, improvements,
	still_has_issue, needs_additional_support, created_at FROM training_feedback WHERE assignment_id = $1`
	var feedback models.TrainingFeedback
	if err := r.db.GetContext(ctx, &feedback, query, assignmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get training feedback: %w", err)
	}
	return &feedback, nil
}
