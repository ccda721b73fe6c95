package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-training-api/internal/models"
)

func TestIssueRepositoryCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectExec("INSERT INTO issues").WillReturnResult(sqlmock.NewResult(1, 1))

	issue := &models.Issue{TeacherID: "t1", Cluster: "North", Category: models.IssueCategoryAcademic, Description: "students struggle with fractions"}
	require.NoError(t, repo.Create(context.Background(), issue))
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, models.IssueStatusPending, issue.Status)
	assert.Equal(t, issue.CreatedAt, issue.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "cluster", "category", "description", "status", "admin_remarks", "created_at", "updated_at", "teacher_name", "teacher_email"}).
		AddRow("i1", "t1", "North", "academic", "desc", "pending", nil, now, now, "Teacher", "t@example.com")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE i.status = ANY($1) AND i.cluster = $2 ORDER BY i.created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs(sqlmock.AnyArg(), "North").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM issues i WHERE i.status = ANY($1) AND i.cluster = $2")).
		WithArgs(sqlmock.AnyArg(), "North").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	issues, total, err := repo.List(context.Background(), models.IssueFilter{
		Status:   []models.IssueStatus{models.IssueStatusPending},
		Cluster:  "North",
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Teacher", issues[0].TeacherName)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryUpdateStatusRequiresExpectedStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE issues SET status = $3")).
		WithArgs("i1", models.IssueStatusPending, models.IssueStatusReviewed, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "i1", models.IssueStatusPending, models.IssueStatusReviewed, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM issues WHERE id = $1 AND status = $2")).
		WithArgs("i1", models.IssueStatusResolved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "i1", models.IssueStatusResolved))
	assert.NoError(t, mock.ExpectationsWereMet())
}
