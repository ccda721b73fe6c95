package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type fakeIssueRepo struct {
	issues     map[string]*models.Issue
	lastFilter models.IssueFilter
	deleted    []string
}

func (f *fakeIssueRepo) GetByID(_ context.Context, id string) (*models.Issue, error) {
	if issue, ok := f.issues[id]; ok {
		clone := *issue
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeIssueRepo) List(_ context.Context, filter models.IssueFilter) ([]models.IssueWithTeacher, int, error) {
	f.lastFilter = filter
	var out []models.IssueWithTeacher
	for _, issue := range f.issues {
		if filter.TeacherID != "" && issue.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, models.IssueWithTeacher{Issue: *issue})
	}
	return out, len(out), nil
}

func (f *fakeIssueRepo) UpdateStatus(_ context.Context, id string, from, to models.IssueStatus, remarks *string) error {
	issue, ok := f.issues[id]
	if !ok || issue.Status != from {
		return sql.ErrNoRows
	}
	issue.Status = to
	if remarks != nil {
		issue.AdminRemarks = remarks
	}
	return nil
}

func (f *fakeIssueRepo) Delete(_ context.Context, id string, status models.IssueStatus) error {
	issue, ok := f.issues[id]
	if !ok || issue.Status != status {
		return sql.ErrNoRows
	}
	delete(f.issues, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func newIssueFixture() (*IssueService, *fakeIssueRepo, *recordingAudit) {
	repo := &fakeIssueRepo{issues: map[string]*models.Issue{
		"I1": {ID: "I1", TeacherID: "T1", Category: models.IssueCategorySafety, Status: models.IssueStatusPending},
		"I2": {ID: "I2", TeacherID: "T2", Category: models.IssueCategoryAcademic, Status: models.IssueStatusResolved},
		"I3": {ID: "I3", TeacherID: "T1", Category: models.IssueCategoryOther, Status: models.IssueStatusTrainingAssigned},
	}}
	audit := &recordingAudit{}
	return NewIssueService(repo, audit, nil, nil, nil), repo, audit
}

func adminActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "A1", Role: models.RoleAdmin}
}

func TestIssueServiceListMineScopesToActor(t *testing.T) {
	svc, repo, _ := newIssueFixture()

	items, pagination, err := svc.ListMine(context.Background(), teacherActor(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "T1", repo.lastFilter.TeacherID)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
}

func TestIssueServiceAdminListRequiresAdmin(t *testing.T) {
	svc, repo, _ := newIssueFixture()

	_, _, err := svc.List(context.Background(), teacherActor(), dto.IssueListQuery{})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, _, err = svc.List(context.Background(), adminActor(), dto.IssueListQuery{Cluster: "North", Status: []models.IssueStatus{models.IssueStatusPending}})
	require.NoError(t, err)
	assert.Equal(t, "North", repo.lastFilter.Cluster)
	assert.Equal(t, []models.IssueStatus{models.IssueStatusPending}, repo.lastFilter.Status)
}

func TestIssueServiceGetChecksOwnership(t *testing.T) {
	svc, _, _ := newIssueFixture()

	issue, err := svc.Get(context.Background(), teacherActor(), "I1")
	require.NoError(t, err)
	assert.Equal(t, "I1", issue.ID)

	_, err = svc.Get(context.Background(), teacherActor(), "I2")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Get(context.Background(), adminActor(), "I2")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), teacherActor(), "nope")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestIssueServiceUpdateStatusIsMonotonic(t *testing.T) {
	svc, repo, audit := newIssueFixture()
	ctx := context.Background()
	remarks := "Maintenance notified"

	issue, err := svc.UpdateStatus(ctx, adminActor(), "I1", dto.UpdateIssueStatusRequest{Status: models.IssueStatusReviewed, AdminRemarks: &remarks})
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusReviewed, issue.Status)
	assert.Equal(t, &remarks, repo.issues["I1"].AdminRemarks)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionIssueStatus, audit.logs[0].Action)

	_, err = svc.UpdateStatus(ctx, adminActor(), "I1", dto.UpdateIssueStatusRequest{Status: models.IssueStatusReviewed})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	_, err = svc.UpdateStatus(ctx, adminActor(), "I3", dto.UpdateIssueStatusRequest{Status: models.IssueStatusResolved})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	_, err = svc.UpdateStatus(ctx, adminActor(), "I1", dto.UpdateIssueStatusRequest{Status: models.IssueStatusTrainingAssigned})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpdateStatus(ctx, teacherActor(), "I1", dto.UpdateIssueStatusRequest{Status: models.IssueStatusResolved})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	issue, err = svc.UpdateStatus(ctx, adminActor(), "I1", dto.UpdateIssueStatusRequest{Status: models.IssueStatusResolved})
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusResolved, issue.Status)
}

func TestIssueServiceDeleteOnlyResolved(t *testing.T) {
	svc, repo, _ := newIssueFixture()
	ctx := context.Background()

	err := svc.Delete(ctx, adminActor(), "I1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	require.NoError(t, svc.Delete(ctx, adminActor(), "I2"))
	assert.Equal(t, []string{"I2"}, repo.deleted)

	err = svc.Delete(ctx, adminActor(), "I2")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
