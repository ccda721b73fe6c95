package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type fakeAuditReader struct {
	filter models.AuditFilter
	logs   []models.AuditLog
	total  int
	err    error
}

func (f *fakeAuditReader) List(_ context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	f.filter = filter
	return f.logs, f.total, f.err
}

func TestActivityServiceListNormalizesFilter(t *testing.T) {
	repo := &fakeAuditReader{total: 3}
	svc := NewActivityService(repo, nil)

	logs, pagination, err := svc.List(context.Background(), adminActor(), models.AuditFilter{Action: " login ", PageSize: 500})
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Equal(t, models.AuditActionLogin, repo.filter.Action)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 3, pagination.TotalCount)
}

func TestActivityServiceListRequiresAdmin(t *testing.T) {
	svc := NewActivityService(&fakeAuditReader{}, nil)

	_, _, err := svc.List(context.Background(), teacherActor(), models.AuditFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, _, err = svc.List(context.Background(), nil, models.AuditFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestActivityServiceListRepositoryFailure(t *testing.T) {
	svc := NewActivityService(&fakeAuditReader{err: errors.New("boom")}, nil)

	_, _, err := svc.List(context.Background(), adminActor(), models.AuditFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
