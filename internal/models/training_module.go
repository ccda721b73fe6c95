package models

import (
	"time"

	"github.com/lib/pq"
)

// CompetencyArea is the skill a training module develops.
type CompetencyArea string

const (
	CompetencyClassroomManagement CompetencyArea = "classroom_management"
	CompetencyContentKnowledge    CompetencyArea = "content_knowledge"
	CompetencyPedagogy            CompetencyArea = "pedagogy"
	CompetencyTechnologyUsage     CompetencyArea = "technology_usage"
	CompetencyStudentEngagement   CompetencyArea = "student_engagement"
)

// DifficultyLevel grades module complexity.
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// ContentType describes the primary medium of a module.
type ContentType string

const (
	ContentTypeVideo       ContentType = "video"
	ContentTypeArticle     ContentType = "article"
	ContentTypeInteractive ContentType = "interactive"
	ContentTypeMixed       ContentType = "mixed"
)

// AllClusters targets a module at every cluster.
const AllClusters = "All Clusters"

// DefaultEstimatedDuration is applied to modules created without one.
const DefaultEstimatedDuration = "30-45 minutes"

// TrainingModule is a catalog entry of instructional content.
type TrainingModule struct {
	ID                string          `db:"id" json:"id"`
	Title             string          `db:"title" json:"title"`
	Description       string          `db:"description" json:"description"`
	CompetencyArea    CompetencyArea  `db:"competency_area" json:"competency_area"`
	DifficultyLevel   DifficultyLevel `db:"difficulty_level" json:"difficulty_level"`
	ContentType       ContentType     `db:"content_type" json:"content_type"`
	FullContent       string          `db:"full_content" json:"full_content"`
	VideoURL          *string         `db:"video_url" json:"video_url,omitempty"`
	EstimatedDuration string          `db:"estimated_duration" json:"estimated_duration"`
	TargetClusters    pq.StringArray  `db:"target_clusters" json:"target_clusters"`
	CompletionCount   int             `db:"completion_count" json:"completion_count"`
	AverageRating     float64         `db:"average_rating" json:"average_rating"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Targets reports whether the module is offered to the given cluster.
func (m TrainingModule) Targets(cluster string) bool {
	for _, c := range m.TargetClusters {
		if c == AllClusters || (cluster != "" && c == cluster) {
			return true
		}
	}
	return false
}

// ModuleFilter narrows catalog listings.
type ModuleFilter struct {
	CompetencyArea CompetencyArea
	Difficulty     DifficultyLevel
	Cluster        string
}

// ModuleStats holds recomputed usage statistics for a module.
type ModuleStats struct {
	ModuleID        string  `db:"module_id" json:"module_id"`
	CompletionCount int     `db:"completion_count" json:"completion_count"`
	AverageRating   float64 `db:"average_rating" json:"average_rating"`
}
