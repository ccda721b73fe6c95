package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/teacher-training-api/internal/models"
)

const issueColumns = `i.id, i.teacher_id, i.cluster, i.category, i.description, i.status, i.admin_remarks, i.created_at, i.updated_at`

// IssueRepository persists teacher submitted issues.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository constructs the repository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Create inserts a new issue in pending state.
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if issue.Status == "" {
		issue.Status = models.IssueStatusPending
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = issue.CreatedAt

	const query = `INSERT INTO issues (id, teacher_id, cluster, category, description, status, admin_remarks, created_at, updated_at)
VALUES (:id, :teacher_id, :cluster, :category, :description, :status, :admin_remarks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, issue); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

// GetByID returns an issue by identifier.
func (r *IssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues i WHERE i.id = $1`
	var issue models.Issue
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &issue, nil
}

// List returns issues joined with their teacher, newest first, plus the total count.
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]models.IssueWithTeacher, int, error) {
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("i.teacher_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("i.status = ANY($%d)", len(args)))
	}
	if filter.Cluster != "" {
		args = append(args, filter.Cluster)
		conditions = append(conditions, fmt.Sprintf("i.cluster = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("i.category = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	listQuery := fmt.Sprintf(`SELECT %s, u.full_name AS teacher_name, u.email AS teacher_email
FROM issues i JOIN users u ON u.id = i.teacher_id%s
ORDER BY i.created_at DESC LIMIT %d OFFSET %d`, issueColumns, where, size, offset)

	var issues []models.IssueWithTeacher
	if err := r.db.SelectContext(ctx, &issues, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM issues i`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}
	return issues, total, nil
}

// UpdateStatus moves an issue from one status to another. It returns
// sql.ErrNoRows when the issue is missing or no longer in the expected status.
func (r *IssueRepository) UpdateStatus(ctx context.Context, id string, from, to models.IssueStatus, remarks *string) error {
	const query = `UPDATE issues SET status = $3, admin_remarks = COALESCE($4, admin_remarks), updated_at = $5
WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, remarks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update issue status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("issue status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an issue only while it is still in the given status.
func (r *IssueRepository) Delete(ctx context.Context, id string, status models.IssueStatus) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1 AND status = $2`, id, status)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete issue rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
