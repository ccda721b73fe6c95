package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/teacher-training-api/internal/models"
)

// Unique indexes guarding the assignment ledger.
const (
	ConstraintAssignmentEquivalence = "uq_training_assignments_equivalence"
	ConstraintAssignmentSourceIssue = "uq_training_assignments_source_issue"
)

var (
	// ErrIssueNotPending is returned when the source issue left pending before the assignment committed.
	ErrIssueNotPending = errors.New("source issue is no longer pending")
	// ErrStaleAssignment is returned when an assignment changed between read and write.
	ErrStaleAssignment = errors.New("assignment was modified concurrently")
)

const assignmentColumns = `a.id, a.teacher_id, a.module_id, a.source_issue_id, a.equivalence_key, a.assigned_by, a.assigned_reason,
       a.status, a.progress_percentage, a.assigned_date, a.started_at, a.completed_at, a.due_date,
       a.video_watch_time_seconds, a.video_completed, a.personalized_content, a.created_at, a.updated_at`

const assignmentDetailColumns = assignmentColumns + `,
       m.title AS module_title, m.competency_area AS module_competency_area, m.difficulty_level AS module_difficulty_level,
       m.content_type AS module_content_type, m.estimated_duration AS module_estimated_duration,
       EXISTS (SELECT 1 FROM training_feedback f WHERE f.assignment_id = a.id) AS has_feedback`

// AssignmentRepository manages the training assignment ledger.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindActiveByEquivalence returns the teacher's non-skipped assignment for the
// equivalence key, or sql.ErrNoRows.
func (r *AssignmentRepository) FindActiveByEquivalence(ctx context.Context, teacherID, key string) (*models.AssignmentDetail, error) {
	query := `SELECT ` + assignmentDetailColumns + `
FROM training_assignments a JOIN training_modules m ON m.id = a.module_id
WHERE a.teacher_id = $1 AND a.equivalence_key = $2 AND a.status = ANY($3)
ORDER BY a.assigned_date DESC LIMIT 1`
	statuses := make([]string, len(models.ActiveAssignmentStatuses))
	for i, s := range models.ActiveAssignmentStatuses {
		statuses[i] = string(s)
	}
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, teacherID, key, pq.Array(statuses)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active assignment: %w", err)
	}
	return &detail, nil
}

// CreateForIssue inserts the assignment and moves its source issue from pending
// to training_assigned in one transaction. Unique index violations are
// returned wrapped so callers can detect a concurrent winner.
func (r *AssignmentRepository) CreateForIssue(ctx context.Context, assignment *models.TrainingAssignment) (err error) {
	if assignment.SourceIssueID == nil {
		return fmt.Errorf("create assignment: source issue is required")
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.AssignedDate.IsZero() {
		assignment.AssignedDate = now
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusNotStarted
	}
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create assignment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO training_assignments
	(id, teacher_id, module_id, source_issue_id, equivalence_key, assigned_by, assigned_reason, status, progress_percentage,
	 assigned_date, started_at, completed_at, due_date, video_watch_time_seconds, video_completed, personalized_content, created_at, updated_at)
	VALUES (:id, :teacher_id, :module_id, :source_issue_id, :equivalence_key, :assigned_by, :assigned_reason, :status, :progress_percentage,
	 :assigned_date, :started_at, :completed_at, :due_date, :video_watch_time_seconds, :video_completed, :personalized_content, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, assignment); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE issues SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		*assignment.SourceIssueID, models.IssueStatusTrainingAssigned, now, models.IssueStatusPending)
	if err != nil {
		return fmt.Errorf("mark issue training assigned: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark issue rows affected: %w", err)
	}
	if affected == 0 {
		err = ErrIssueNotPending
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create assignment: %w", err)
	}
	return nil
}

// GetByID returns an assignment by identifier.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.TrainingAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM training_assignments a WHERE a.id = $1`
	var assignment models.TrainingAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &assignment, nil
}

// GetDetail returns an assignment joined with its module.
func (r *AssignmentRepository) GetDetail(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	query := `SELECT ` + assignmentDetailColumns + `
FROM training_assignments a JOIN training_modules m ON m.id = a.module_id WHERE a.id = $1`
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get assignment detail: %w", err)
	}
	return &detail, nil
}

// List returns assignments with module details, newest first.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	var conditions []string
	var args []interface{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("a.teacher_id = $%d", len(args)))
	}
	if filter.ModuleID != "" {
		args = append(args, filter.ModuleID)
		conditions = append(conditions, fmt.Sprintf("a.module_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("a.status = ANY($%d)", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + assignmentDetailColumns + `
FROM training_assignments a JOIN training_modules m ON m.id = a.module_id`)
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY a.assigned_date DESC")

	var items []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &items, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return items, nil
}

// SaveProgress persists progress, status, timestamps and video fields using
// optimistic concurrency on updated_at. ErrStaleAssignment signals a lost race.
func (r *AssignmentRepository) SaveProgress(ctx context.Context, assignment *models.TrainingAssignment, prevUpdatedAt time.Time) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE training_assignments
SET status = :status, progress_percentage = :progress_percentage, started_at = :started_at, completed_at = :completed_at,
    video_watch_time_seconds = :video_watch_time_seconds, video_completed = :video_completed, updated_at = :updated_at
WHERE id = :id AND updated_at = :prev_updated_at`
	res, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                       assignment.ID,
		"status":                   assignment.Status,
		"progress_percentage":      assignment.ProgressPercentage,
		"started_at":               assignment.StartedAt,
		"completed_at":             assignment.CompletedAt,
		"video_watch_time_seconds": assignment.VideoWatchTimeSeconds,
		"video_completed":          assignment.VideoCompleted,
		"updated_at":               assignment.UpdatedAt,
		"prev_updated_at":          prevUpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("save assignment progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assignment progress rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleAssignment
	}
	return nil
}
