package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
	"github.com/noah-isme/teacher-training-api/pkg/export"
	"github.com/noah-isme/teacher-training-api/pkg/sharelink"
)

type fakeAssignmentReader struct {
	details    map[string]*models.AssignmentDetail
	listed     []models.AssignmentDetail
	lastFilter models.AssignmentFilter
}

func (f *fakeAssignmentReader) GetDetail(_ context.Context, id string) (*models.AssignmentDetail, error) {
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssignmentReader) List(_ context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	f.lastFilter = filter
	return f.listed, nil
}

type fakeUserLookup struct {
	users map[string]*models.User
}

func (f *fakeUserLookup) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type recordingRenderer struct {
	last export.Certificate
}

func (r *recordingRenderer) RenderCertificate(cert export.Certificate) ([]byte, error) {
	r.last = cert
	return []byte("%PDF-1.3"), nil
}

func newTrainingFixture() (*TrainingService, *fakeAssignmentReader, *recordingRenderer) {
	completedAt := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	reader := &fakeAssignmentReader{details: map[string]*models.AssignmentDetail{
		"A1": {
			TrainingAssignment: models.TrainingAssignment{ID: "A1", TeacherID: "T1", ModuleID: "M1", Status: models.AssignmentStatusCompleted, ProgressPercentage: 100, CompletedAt: &completedAt},
			ModuleTitle:        "Managing Disruptive Behavior",
			ModuleCompetency:   models.CompetencyClassroomManagement,
		},
		"A2": {
			TrainingAssignment: models.TrainingAssignment{ID: "A2", TeacherID: "T1", ModuleID: "M2", Status: models.AssignmentStatusInProgress, ProgressPercentage: 60},
		},
	}}
	cluster := "North"
	users := &fakeUserLookup{users: map[string]*models.User{"T1": {ID: "T1", FullName: "Siti Rahma", Cluster: &cluster}}}
	renderer := &recordingRenderer{}
	return NewTrainingService(reader, users, renderer, export.NewCSVExporter(), sharelink.NewSigner("secret", "certificate", time.Hour), nil), reader, renderer
}

func TestTrainingServiceListMineReturnsEmptySlice(t *testing.T) {
	svc, reader, _ := newTrainingFixture()

	items, err := svc.ListMine(context.Background(), teacherActor(), []models.AssignmentStatus{models.AssignmentStatusCompleted})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Equal(t, "T1", reader.lastFilter.TeacherID)
	assert.Equal(t, []models.AssignmentStatus{models.AssignmentStatusCompleted}, reader.lastFilter.Status)
}

func TestTrainingServiceGetAccess(t *testing.T) {
	svc, _, _ := newTrainingFixture()

	_, err := svc.Get(context.Background(), &models.JWTClaims{UserID: "T2", Role: models.RoleTeacher}, "A1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	detail, err := svc.Get(context.Background(), adminActor(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "M1", detail.ModuleID)

	_, err = svc.Get(context.Background(), teacherActor(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTrainingServiceCertificate(t *testing.T) {
	svc, _, renderer := newTrainingFixture()

	cert, err := svc.Certificate(context.Background(), teacherActor(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "certificate-A1.pdf", cert.Filename)
	assert.Equal(t, "application/pdf", cert.ContentType)
	assert.NotEmpty(t, cert.Content)
	assert.Equal(t, "Siti Rahma", renderer.last.TeacherName)
	assert.Equal(t, "North", renderer.last.Cluster)
	assert.Equal(t, "classroom_management", renderer.last.Competency)

	_, err = svc.Certificate(context.Background(), teacherActor(), "A2")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))
}

func TestTrainingServiceShareCertificate(t *testing.T) {
	svc, _, renderer := newTrainingFixture()
	ctx := context.Background()

	link, err := svc.ShareCertificate(ctx, teacherActor(), "A1")
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)

	cert, err := svc.SharedCertificate(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, "certificate-A1.pdf", cert.Filename)
	assert.Equal(t, "A1", renderer.last.Reference)

	_, err = svc.SharedCertificate(ctx, link.Token+"x")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.ShareCertificate(ctx, teacherActor(), "A2")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	_, err = svc.ShareCertificate(ctx, &models.JWTClaims{UserID: "T2", Role: models.RoleTeacher}, "A1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestTrainingServiceShareDisabled(t *testing.T) {
	svc := NewTrainingService(&fakeAssignmentReader{}, &fakeUserLookup{}, &recordingRenderer{}, nil, nil, nil)

	_, err := svc.ShareCertificate(context.Background(), teacherActor(), "A1")
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestTrainingServiceExport(t *testing.T) {
	svc, reader, _ := newTrainingFixture()
	reader.listed = []models.AssignmentDetail{*reader.details["A1"], *reader.details["A2"]}
	ctx := context.Background()

	_, err := svc.Export(ctx, teacherActor(), models.AssignmentFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	file, err := svc.Export(ctx, adminActor(), models.AssignmentFilter{ModuleID: "M1"})
	require.NoError(t, err)
	assert.Equal(t, "M1", reader.lastFilter.ModuleID)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Filename, "training-assignments-"))

	lines := strings.Split(strings.TrimSpace(string(file.Content)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,teacher_id,module_id,module_title"))
	assert.Contains(t, lines[1], "A1,T1,M1,Managing Disruptive Behavior,classroom_management,completed,100")
	assert.Contains(t, lines[1], "2024-03-05T12:00:00Z")
	assert.Contains(t, lines[2], "A2,T1,M2,")
}

func TestTrainingServiceExportDisabled(t *testing.T) {
	svc := NewTrainingService(&fakeAssignmentReader{}, &fakeUserLookup{}, &recordingRenderer{}, nil, nil, nil)

	_, err := svc.Export(context.Background(), adminActor(), models.AssignmentFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}
