package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/internal/repository"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type fakeFeedbackAssignments struct {
	assignments map[string]*models.TrainingAssignment
}

func (f *fakeFeedbackAssignments) GetByID(_ context.Context, id string) (*models.TrainingAssignment, error) {
	if a, ok := f.assignments[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

type fakeFeedbackStore struct {
	records   map[string]*models.TrainingFeedback
	createErr error
}

func (f *fakeFeedbackStore) ExistsForAssignment(_ context.Context, assignmentID string) (bool, error) {
	_, ok := f.records[assignmentID]
	return ok, nil
}

func (f *fakeFeedbackStore) Create(_ context.Context, feedback *models.TrainingFeedback) error {
	if f.createErr != nil {
		return f.createErr
	}
	feedback.ID = "F-" + feedback.AssignmentID
	f.records[feedback.AssignmentID] = feedback
	return nil
}

func newFeedbackFixture() (*FeedbackService, *fakeFeedbackAssignments, *fakeFeedbackStore, *recordingEnqueuer) {
	assignments := &fakeFeedbackAssignments{assignments: map[string]*models.TrainingAssignment{
		"A1": {ID: "A1", TeacherID: "T1", ModuleID: "M1", Status: models.AssignmentStatusCompleted, ProgressPercentage: 100},
		"A2": {ID: "A2", TeacherID: "T1", ModuleID: "M2", Status: models.AssignmentStatusInProgress, ProgressPercentage: 40},
	}}
	store := &fakeFeedbackStore{records: map[string]*models.TrainingFeedback{}}
	stats := &recordingEnqueuer{}
	svc := NewFeedbackService(assignments, store, stats, &recordingAudit{}, nil, nil, nil, nil)
	return svc, assignments, store, stats
}

func helpful(v bool) *bool { return &v }

func TestSubmitFeedbackStoresRecord(t *testing.T) {
	svc, assignments, store, stats := newFeedbackFixture()
	before := *assignments.assignments["A1"]

	fb, err := svc.SubmitFeedback(context.Background(), teacherActor(), "A1", dto.SubmitFeedbackRequest{
		Rating:     4,
		WasHelpful: helpful(true),
		Strengths:  []string{"practical"},
	})
	require.NoError(t, err)
	assert.Equal(t, "M1", fb.ModuleID)
	assert.Equal(t, "T1", fb.TeacherID)
	assert.Equal(t, 4, fb.Rating)
	assert.True(t, fb.WasHelpful)
	assert.Equal(t, pq.StringArray{"practical"}, fb.Strengths)
	assert.Len(t, store.records, 1)
	assert.Equal(t, []string{"M1"}, stats.modules)
	assert.Equal(t, before, *assignments.assignments["A1"])
}

func TestSubmitFeedbackTwiceIsConflict(t *testing.T) {
	svc, _, _, _ := newFeedbackFixture()
	req := dto.SubmitFeedbackRequest{Rating: 5, WasHelpful: helpful(true)}

	_, err := svc.SubmitFeedback(context.Background(), teacherActor(), "A1", req)
	require.NoError(t, err)

	_, err = svc.SubmitFeedback(context.Background(), teacherActor(), "A1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestSubmitFeedbackUniqueViolationIsConflict(t *testing.T) {
	svc, _, store, _ := newFeedbackFixture()
	store.createErr = &pq.Error{Code: "23505", Constraint: repository.ConstraintFeedbackAssignment}

	_, err := svc.SubmitFeedback(context.Background(), teacherActor(), "A1", dto.SubmitFeedbackRequest{Rating: 3, WasHelpful: helpful(false)})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestSubmitFeedbackValidation(t *testing.T) {
	svc, _, store, _ := newFeedbackFixture()

	_, err := svc.SubmitFeedback(context.Background(), teacherActor(), "A1", dto.SubmitFeedbackRequest{Rating: 6, WasHelpful: helpful(true)})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.SubmitFeedback(context.Background(), teacherActor(), "A1", dto.SubmitFeedbackRequest{Rating: 0, WasHelpful: helpful(true)})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.SubmitFeedback(context.Background(), teacherActor(), "A1", dto.SubmitFeedbackRequest{Rating: 4})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	assert.Empty(t, store.records)
}

func TestSubmitFeedbackPreconditions(t *testing.T) {
	svc, _, store, _ := newFeedbackFixture()
	req := dto.SubmitFeedbackRequest{Rating: 4, WasHelpful: helpful(true)}

	_, err := svc.SubmitFeedback(context.Background(), teacherActor(), "missing", req)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.SubmitFeedback(context.Background(), teacherActor(), "A2", req)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	_, err = svc.SubmitFeedback(context.Background(), &models.JWTClaims{UserID: "T2", Role: models.RoleTeacher}, "A1", req)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.SubmitFeedback(context.Background(), nil, "A1", req)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	assert.Empty(t, store.records)
}
