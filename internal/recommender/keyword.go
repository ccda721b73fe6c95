package recommender

import (
	"context"
	"sort"
	"strings"

	"github.com/noah-isme/teacher-training-api/internal/models"
)

// KeywordMapping ties an issue keyword to a competency gap with a confidence score.
type KeywordMapping struct {
	Keyword    string
	Competency models.CompetencyArea
	Confidence float64
}

// DefaultKeywordMappings is the built-in issue keyword table. Keywords are
// matched as lower-case substrings of the issue description.
var DefaultKeywordMappings = []KeywordMapping{
	{"behavior", models.CompetencyClassroomManagement, 0.85},
	{"discipline", models.CompetencyClassroomManagement, 0.85},
	{"classroom management", models.CompetencyClassroomManagement, 0.95},
	{"students talking", models.CompetencyClassroomManagement, 0.80},
	{"noise", models.CompetencyClassroomManagement, 0.75},
	{"disruption", models.CompetencyClassroomManagement, 0.85},
	{"curriculum", models.CompetencyContentKnowledge, 0.80},
	{"content", models.CompetencyContentKnowledge, 0.75},
	{"subject matter", models.CompetencyContentKnowledge, 0.85},
	{"syllabus", models.CompetencyContentKnowledge, 0.80},
	{"teaching methods", models.CompetencyPedagogy, 0.85},
	{"pedagogy", models.CompetencyPedagogy, 0.95},
	{"lesson planning", models.CompetencyPedagogy, 0.85},
	{"active learning", models.CompetencyPedagogy, 0.85},
	{"assessment", models.CompetencyPedagogy, 0.75},
	{"technology", models.CompetencyTechnologyUsage, 0.85},
	{"computer", models.CompetencyTechnologyUsage, 0.80},
	{"digital tools", models.CompetencyTechnologyUsage, 0.90},
	{"projector", models.CompetencyTechnologyUsage, 0.75},
	{"software", models.CompetencyTechnologyUsage, 0.80},
	{"engagement", models.CompetencyStudentEngagement, 0.85},
	{"participation", models.CompetencyStudentEngagement, 0.80},
	{"motivation", models.CompetencyStudentEngagement, 0.85},
	{"attention", models.CompetencyStudentEngagement, 0.75},
	{"focus", models.CompetencyStudentEngagement, 0.75},
	{"interest", models.CompetencyStudentEngagement, 0.80},
}

// FallbackGap is inferred when no keyword matches.
const FallbackGap = models.CompetencyClassroomManagement

// KeywordRecommender infers competency gaps from issue keywords and picks a
// catalog module for the strongest gap.
type KeywordRecommender struct {
	catalog  Catalog
	mappings []KeywordMapping
}

// NewKeywordRecommender constructs the recommender. A nil table uses DefaultKeywordMappings.
func NewKeywordRecommender(catalog Catalog, mappings []KeywordMapping) *KeywordRecommender {
	if mappings == nil {
		mappings = DefaultKeywordMappings
	}
	return &KeywordRecommender{catalog: catalog, mappings: mappings}
}

// InferGaps returns matched competencies ordered by confidence, highest
// first. Each competency keeps the highest confidence among its matched
// keywords; ties keep table order.
func (k *KeywordRecommender) InferGaps(description string) []models.CompetencyArea {
	text := strings.ToLower(description)
	scores := make(map[models.CompetencyArea]float64)
	var gaps []models.CompetencyArea
	for _, m := range k.mappings {
		if !strings.Contains(text, strings.ToLower(m.Keyword)) {
			continue
		}
		score, seen := scores[m.Competency]
		if !seen {
			gaps = append(gaps, m.Competency)
		}
		if !seen || m.Confidence > score {
			scores[m.Competency] = m.Confidence
		}
	}

	if len(gaps) == 0 {
		return []models.CompetencyArea{FallbackGap}
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		return scores[gaps[i]] > scores[gaps[j]]
	})
	return gaps
}

// Recommend implements Recommender. Gaps are tried in order until one has a module.
func (k *KeywordRecommender) Recommend(ctx context.Context, req Request) (*Recommendation, error) {
	gaps := k.InferGaps(req.Description)
	names := make([]string, len(gaps))
	for i, g := range gaps {
		names[i] = string(g)
	}

	var lastErr error
	for _, gap := range gaps {
		module, err := pickModule(ctx, k.catalog, gap, req.Cluster)
		if err != nil {
			lastErr = err
			continue
		}
		return &Recommendation{
			ModuleID:            module.ID,
			ModuleTitle:         module.Title,
			PersonalizedContent: AssignmentMessage(module.Title),
			InferredGaps:        names,
			Priority:            DefaultPriority,
			Provider:            "keyword",
		}, nil
	}
	return nil, lastErr
}
