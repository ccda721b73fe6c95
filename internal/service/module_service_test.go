package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type fakeModuleRepo struct {
	modules     map[string]*models.TrainingModule
	assignments map[string]int
	listCalls   int
}

func (f *fakeModuleRepo) List(_ context.Context, filter models.ModuleFilter) ([]models.TrainingModule, error) {
	f.listCalls++
	var out []models.TrainingModule
	for _, m := range f.modules {
		if filter.CompetencyArea != "" && m.CompetencyArea != filter.CompetencyArea {
			continue
		}
		if filter.Cluster != "" && !m.Targets(filter.Cluster) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeModuleRepo) GetByID(_ context.Context, id string) (*models.TrainingModule, error) {
	if m, ok := f.modules[id]; ok {
		clone := *m
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeModuleRepo) Create(_ context.Context, module *models.TrainingModule) error {
	module.ID = "M-new"
	stored := *module
	f.modules[module.ID] = &stored
	return nil
}

func (f *fakeModuleRepo) Update(_ context.Context, module *models.TrainingModule) error {
	if _, ok := f.modules[module.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *module
	f.modules[module.ID] = &stored
	return nil
}

func (f *fakeModuleRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.modules[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.modules, id)
	return nil
}

func (f *fakeModuleRepo) CountAssignments(_ context.Context, id string) (int, error) {
	return f.assignments[id], nil
}

func newModuleFixture() (*ModuleService, *fakeModuleRepo, *memoryCacheRepo) {
	repo := &fakeModuleRepo{
		modules: map[string]*models.TrainingModule{
			"M1": {ID: "M1", Title: "Managing Disruptive Behavior", CompetencyArea: models.CompetencyClassroomManagement, TargetClusters: pq.StringArray{models.AllClusters}, CompletionCount: 4, AverageRating: 4.5},
			"M2": {ID: "M2", Title: "Algebra Foundations", CompetencyArea: models.CompetencyContentKnowledge, TargetClusters: pq.StringArray{"South"}},
		},
		assignments: map[string]int{"M1": 2},
	}
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	return NewModuleService(repo, &recordingAudit{}, cache, time.Minute, nil, nil), repo, cacheRepo
}

func TestModuleServiceListIsCachedPerFilter(t *testing.T) {
	svc, repo, _ := newModuleFixture()
	ctx := context.Background()

	items, err := svc.List(ctx, models.ModuleFilter{Cluster: "North"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "M1", items[0].ID)

	_, err = svc.List(ctx, models.ModuleFilter{Cluster: "North"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)

	items, err = svc.List(ctx, models.ModuleFilter{Cluster: "South"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, repo.listCalls)
}

func TestModuleServiceCreateAppliesDefaults(t *testing.T) {
	svc, _, cacheRepo := newModuleFixture()
	ctx := context.Background()
	_, err := svc.List(ctx, models.ModuleFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, cacheRepo.entries)

	module, err := svc.Create(ctx, adminActor(), dto.UpsertModuleRequest{
		Title:          "  Engaging Quiet Students ",
		CompetencyArea: models.CompetencyStudentEngagement,
		TargetClusters: []string{"  "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Engaging Quiet Students", module.Title)
	assert.Equal(t, models.DifficultyBeginner, module.DifficultyLevel)
	assert.Equal(t, models.ContentTypeArticle, module.ContentType)
	assert.Equal(t, models.DefaultEstimatedDuration, module.EstimatedDuration)
	assert.Equal(t, pq.StringArray{models.AllClusters}, module.TargetClusters)
	assert.Empty(t, cacheRepo.entries)
}

func TestModuleServiceCreateValidation(t *testing.T) {
	svc, _, _ := newModuleFixture()

	_, err := svc.Create(context.Background(), adminActor(), dto.UpsertModuleRequest{Title: "X", CompetencyArea: "juggling"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), teacherActor(), dto.UpsertModuleRequest{Title: "X", CompetencyArea: models.CompetencyPedagogy})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestModuleServiceUpdateKeepsStats(t *testing.T) {
	svc, repo, _ := newModuleFixture()

	module, err := svc.Update(context.Background(), adminActor(), "M1", dto.UpsertModuleRequest{
		Title:           "Managing Disruptive Behaviour",
		CompetencyArea:  models.CompetencyClassroomManagement,
		DifficultyLevel: models.DifficultyIntermediate,
		TargetClusters:  []string{"North"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, module.CompletionCount)
	assert.Equal(t, 4.5, module.AverageRating)
	assert.Equal(t, pq.StringArray{"North"}, repo.modules["M1"].TargetClusters)

	_, err = svc.Update(context.Background(), adminActor(), "missing", dto.UpsertModuleRequest{Title: "X", CompetencyArea: models.CompetencyPedagogy})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestModuleServiceDeleteReferencedIsConflict(t *testing.T) {
	svc, repo, _ := newModuleFixture()

	err := svc.Delete(context.Background(), adminActor(), "M1")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	require.NoError(t, svc.Delete(context.Background(), adminActor(), "M2"))
	assert.NotContains(t, repo.modules, "M2")
}
