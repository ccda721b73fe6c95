package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/internal/repository"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type fakeProgressStore struct {
	assignment *models.TrainingAssignment
	saveErr    error
	saves      int
	lastPrev   time.Time
}

func (f *fakeProgressStore) GetByID(_ context.Context, id string) (*models.TrainingAssignment, error) {
	if f.assignment == nil || f.assignment.ID != id {
		return nil, sql.ErrNoRows
	}
	clone := *f.assignment
	return &clone, nil
}

func (f *fakeProgressStore) SaveProgress(_ context.Context, assignment *models.TrainingAssignment, prev time.Time) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.lastPrev = prev
	stored := *assignment
	f.assignment = &stored
	return nil
}

type recordingEnqueuer struct {
	modules []string
}

func (r *recordingEnqueuer) EnqueueModule(moduleID string) {
	r.modules = append(r.modules, moduleID)
}

var progressClock = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func newProgressFixture() (*ProgressService, *fakeProgressStore, *recordingEnqueuer) {
	store := &fakeProgressStore{assignment: &models.TrainingAssignment{
		ID:        "A1",
		TeacherID: "T1",
		ModuleID:  "M1",
		Status:    models.AssignmentStatusNotStarted,
		UpdatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}}
	stats := &recordingEnqueuer{}
	svc := NewProgressService(store, stats, nil, nil)
	svc.now = func() time.Time { return progressClock }
	return svc, store, stats
}

func TestUpdateProgressTransitions(t *testing.T) {
	svc, store, stats := newProgressFixture()
	actor := teacherActor()

	a, err := svc.UpdateProgress(context.Background(), actor, "A1", 50)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusInProgress, a.Status)
	require.NotNil(t, a.StartedAt)
	assert.Nil(t, a.CompletedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), store.lastPrev)

	a, err = svc.UpdateProgress(context.Background(), actor, "A1", 100)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusCompleted, a.Status)
	require.NotNil(t, a.CompletedAt)
	assert.Equal(t, []string{"M1"}, stats.modules)

	a, err = svc.UpdateProgress(context.Background(), actor, "A1", 50)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusInProgress, a.Status)
	assert.Nil(t, a.CompletedAt)
	assert.NotNil(t, a.StartedAt)
	assert.Equal(t, []string{"M1", "M1"}, stats.modules)
	assert.Equal(t, 3, store.saves)
}

func TestUpdateProgressCompleteFromNotStartedSetsBothTimestamps(t *testing.T) {
	svc, _, _ := newProgressFixture()

	a, err := svc.UpdateProgress(context.Background(), teacherActor(), "A1", 100)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusCompleted, a.Status)
	require.NotNil(t, a.StartedAt)
	require.NotNil(t, a.CompletedAt)
	assert.Equal(t, progressClock, *a.StartedAt)
	assert.Equal(t, progressClock, *a.CompletedAt)
}

func TestUpdateProgressSameValueDoesNotWrite(t *testing.T) {
	svc, store, _ := newProgressFixture()
	actor := teacherActor()

	first, err := svc.UpdateProgress(context.Background(), actor, "A1", 40)
	require.NoError(t, err)
	started := *first.StartedAt

	svc.now = func() time.Time { return progressClock.Add(time.Hour) }
	second, err := svc.UpdateProgress(context.Background(), actor, "A1", 40)
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, started, *second.StartedAt)
}

func TestUpdateProgressRejectsOutOfRange(t *testing.T) {
	svc, store, _ := newProgressFixture()

	for _, pct := range []int{-1, 101} {
		_, err := svc.UpdateProgress(context.Background(), teacherActor(), "A1", pct)
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	}
	assert.Zero(t, store.saves)
	assert.Equal(t, models.AssignmentStatusNotStarted, store.assignment.Status)
}

func TestUpdateProgressErrors(t *testing.T) {
	svc, store, _ := newProgressFixture()

	_, err := svc.UpdateProgress(context.Background(), teacherActor(), "missing", 10)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	other := &models.JWTClaims{UserID: "T2", Role: models.RoleTeacher}
	_, err = svc.UpdateProgress(context.Background(), other, "A1", 10)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	store.assignment.Status = models.AssignmentStatusSkipped
	_, err = svc.UpdateProgress(context.Background(), teacherActor(), "A1", 10)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	store.assignment.Status = models.AssignmentStatusNotStarted
	store.saveErr = repository.ErrStaleAssignment
	_, err = svc.UpdateProgress(context.Background(), teacherActor(), "A1", 10)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRecordVideoProgress(t *testing.T) {
	svc, store, stats := newProgressFixture()
	actor := teacherActor()

	a, err := svc.RecordVideoProgress(context.Background(), actor, "A1", 120, false)
	require.NoError(t, err)
	assert.Equal(t, 120, a.VideoWatchTimeSeconds)
	assert.Equal(t, models.AssignmentStatusNotStarted, a.Status)

	a, err = svc.RecordVideoProgress(context.Background(), actor, "A1", 60, false)
	require.NoError(t, err)
	assert.Equal(t, 120, a.VideoWatchTimeSeconds)
	assert.Equal(t, 1, store.saves)

	a, err = svc.RecordVideoProgress(context.Background(), actor, "A1", 300, true)
	require.NoError(t, err)
	assert.True(t, a.VideoCompleted)
	assert.Equal(t, 100, a.ProgressPercentage)
	assert.Equal(t, models.AssignmentStatusCompleted, a.Status)
	assert.Equal(t, []string{"M1"}, stats.modules)

	_, err = svc.RecordVideoProgress(context.Background(), actor, "A1", -5, false)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
