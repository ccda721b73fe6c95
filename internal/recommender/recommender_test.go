package recommender

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/pkg/config"
)

type catalogStub struct {
	modules []models.TrainingModule
	listErr error
}

func (s *catalogStub) List(ctx context.Context, filter models.ModuleFilter) ([]models.TrainingModule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.TrainingModule
	for _, m := range s.modules {
		if filter.CompetencyArea != "" && m.CompetencyArea != filter.CompetencyArea {
			continue
		}
		if filter.Cluster != "" && !m.Targets(filter.Cluster) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *catalogStub) GetByID(ctx context.Context, id string) (*models.TrainingModule, error) {
	for i := range s.modules {
		if s.modules[i].ID == id {
			return &s.modules[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

type failingRecommender struct{ err error }

func (f failingRecommender) Recommend(ctx context.Context, req Request) (*Recommendation, error) {
	return nil, f.err
}

func sampleCatalog() *catalogStub {
	return &catalogStub{modules: []models.TrainingModule{
		{ID: "m-cm", Title: "Positive Discipline", CompetencyArea: models.CompetencyClassroomManagement, TargetClusters: []string{models.AllClusters}},
		{ID: "m-ck", Title: "Teaching Fractions", CompetencyArea: models.CompetencyContentKnowledge, TargetClusters: []string{"North"}},
		{ID: "m-tech", Title: "Smart Board Basics", CompetencyArea: models.CompetencyTechnologyUsage, TargetClusters: []string{models.AllClusters}},
	}}
}

func TestKeywordInferGapsOrdersByConfidence(t *testing.T) {
	k := NewKeywordRecommender(sampleCatalog(), nil)

	gaps := k.InferGaps("Constant noise and weak lesson planning; the curriculum is too dense")
	assert.Equal(t, []models.CompetencyArea{
		models.CompetencyPedagogy,
		models.CompetencyContentKnowledge,
		models.CompetencyClassroomManagement,
	}, gaps)
}

func TestKeywordInferGapsDefaultTable(t *testing.T) {
	k := NewKeywordRecommender(sampleCatalog(), nil)

	cases := []struct {
		description string
		want        models.CompetencyArea
	}{
		{"Students are not paying attention", models.CompetencyStudentEngagement},
		{"Low engagement in the afternoon", models.CompetencyStudentEngagement},
		{"They lose focus quickly", models.CompetencyStudentEngagement},
		{"No interest in reading", models.CompetencyStudentEngagement},
		{"I need help with classroom management", models.CompetencyClassroomManagement},
		{"Students talking during the test", models.CompetencyClassroomManagement},
		{"Constant disruption from the back row", models.CompetencyClassroomManagement},
		{"I am unsure of the subject matter", models.CompetencyContentKnowledge},
		{"The content is too advanced", models.CompetencyContentKnowledge},
		{"Want to try active learning", models.CompetencyPedagogy},
		{"Pedagogy for mixed ability groups", models.CompetencyPedagogy},
		{"Better teaching methods for algebra", models.CompetencyPedagogy},
		{"Which digital tools work offline", models.CompetencyTechnologyUsage},
		{"The software keeps crashing", models.CompetencyTechnologyUsage},
		{"Using technology in class", models.CompetencyTechnologyUsage},
	}
	for _, tc := range cases {
		t.Run(tc.description, func(t *testing.T) {
			gaps := k.InferGaps(tc.description)
			require.NotEmpty(t, gaps)
			assert.Equal(t, tc.want, gaps[0])
		})
	}
}

func TestKeywordInferGapsStrongestKeywordWins(t *testing.T) {
	k := NewKeywordRecommender(sampleCatalog(), nil)

	gaps := k.InferGaps("classroom management issues, and the projector is broken")
	assert.Equal(t, []models.CompetencyArea{models.CompetencyClassroomManagement, models.CompetencyTechnologyUsage}, gaps)
}

func TestKeywordInferGapsFallback(t *testing.T) {
	k := NewKeywordRecommender(sampleCatalog(), nil)

	assert.Equal(t, []models.CompetencyArea{models.CompetencyClassroomManagement}, k.InferGaps("nothing matches here"))
	assert.Equal(t, []models.CompetencyArea{models.CompetencyClassroomManagement}, k.InferGaps(""))
}

func TestKeywordRecommendSkipsGapWithoutModule(t *testing.T) {
	k := NewKeywordRecommender(sampleCatalog(), []KeywordMapping{
		{Keyword: "fraction", Competency: models.CompetencyContentKnowledge, Confidence: 0.9},
		{Keyword: "projector", Competency: models.CompetencyTechnologyUsage, Confidence: 0.5},
	})

	rec, err := k.Recommend(context.Background(), Request{Description: "fraction lesson needs the projector", Cluster: "South"})
	require.NoError(t, err)
	assert.Equal(t, "m-tech", rec.ModuleID)
	assert.Equal(t, "keyword", rec.Provider)
	assert.Equal(t, AssignmentMessage("Smart Board Basics"), rec.PersonalizedContent)
	assert.Equal(t, DefaultPriority, rec.Priority)
}

func TestKeywordRecommendNoModule(t *testing.T) {
	k := NewKeywordRecommender(&catalogStub{}, nil)

	_, err := k.Recommend(context.Background(), Request{Description: "noise in class", Cluster: "North"})
	assert.ErrorIs(t, err, ErrNoModule)
}

func TestFallbackErrorPolicyReturnsPrimary(t *testing.T) {
	primary := failingRecommender{err: errors.New("boom")}
	rec := WithFallback(primary, config.FallbackError, "", sampleCatalog(), nil)
	_, isFallback := rec.(*FallbackRecommender)
	assert.False(t, isFallback)

	_, err := rec.Recommend(context.Background(), Request{})
	assert.EqualError(t, err, "boom")
}

func TestFallbackModulePolicyAssignsConfiguredModule(t *testing.T) {
	rec := WithFallback(failingRecommender{err: errors.New("timeout")}, config.FallbackModule, "m-cm", sampleCatalog(), nil)

	out, err := rec.Recommend(context.Background(), Request{TeacherID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "m-cm", out.ModuleID)
	assert.Equal(t, "We have assigned Positive Discipline to help you with your recent feedback.", out.PersonalizedContent)
	assert.Equal(t, "fallback", out.Provider)
}

func TestFallbackModulePolicyMissingModule(t *testing.T) {
	rec := WithFallback(failingRecommender{err: errors.New("timeout")}, config.FallbackModule, "gone", sampleCatalog(), nil)

	_, err := rec.Recommend(context.Background(), Request{})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestHTTPRecommender(t *testing.T) {
	var received httpRecommendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(httpRecommendResponse{
			ModuleID:            "m-ck",
			AssignedModule:      "Teaching Fractions",
			InferredGaps:        []string{"content_knowledge"},
			PersonalizedMessage: "Keep going",
		})
	}))
	defer server.Close()

	rec, err := NewHTTPRecommender(server.URL, time.Second, nil).Recommend(context.Background(), Request{
		TeacherID: "t1", Category: models.IssueCategoryAcademic, Cluster: "North", Description: "fractions",
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", received.TeacherID)
	assert.Equal(t, "academic", received.Category)
	assert.Equal(t, "m-ck", rec.ModuleID)
	assert.Equal(t, "Teaching Fractions", rec.ModuleTitle)
	assert.Equal(t, DefaultPriority, rec.Priority)
}

func TestHTTPRecommenderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer server.Close()

	_, err := NewHTTPRecommender(server.URL, time.Second, nil).Recommend(context.Background(), Request{TeacherID: "t1"})
	assert.Error(t, err)
}

func TestHTTPRecommenderMissingModuleID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"assigned_module":"Something"}`))
	}))
	defer server.Close()

	_, err := NewHTTPRecommender(server.URL, time.Second, nil).Recommend(context.Background(), Request{TeacherID: "t1"})
	assert.ErrorContains(t, err, "module_id")
}

func TestParseChoice(t *testing.T) {
	candidates := sampleCatalog().modules

	rec, err := parseChoice("```json\n{\"module_id\":\"m-tech\",\"priority\":\"urgent\"}\n```", candidates)
	require.NoError(t, err)
	assert.Equal(t, "m-tech", rec.ModuleID)
	assert.Equal(t, DefaultPriority, rec.Priority)
	assert.Equal(t, []string{"technology_usage"}, rec.InferredGaps)
	assert.Equal(t, AssignmentMessage("Smart Board Basics"), rec.PersonalizedContent)

	_, err = parseChoice(`{"module_id":"invented"}`, candidates)
	assert.ErrorContains(t, err, "unknown module")

	_, err = parseChoice("not json", candidates)
	assert.Error(t, err)
}

func TestNewRejectsMisconfiguredProviders(t *testing.T) {
	_, err := New(config.RecommenderConfig{Provider: config.RecommenderHTTP}, sampleCatalog(), nil)
	assert.Error(t, err)

	_, err = New(config.RecommenderConfig{Provider: "magic"}, sampleCatalog(), nil)
	assert.Error(t, err)

	rec, err := New(config.RecommenderConfig{Provider: config.RecommenderKeyword, FallbackPolicy: config.FallbackModule, FallbackModuleID: "m-cm"}, sampleCatalog(), nil)
	require.NoError(t, err)
	assert.IsType(t, &FallbackRecommender{}, rec)
}
