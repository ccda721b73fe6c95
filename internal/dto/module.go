package dto

import "github.com/noah-isme/teacher-training-api/internal/models"

// UpsertModuleRequest creates or replaces a training module.
type UpsertModuleRequest struct {
	Title             string                 `json:"title" validate:"required,max=200"`
	Description       string                 `json:"description" validate:"max=2000"`
	CompetencyArea    models.CompetencyArea  `json:"competencyArea" validate:"required,oneof=classroom_management content_knowledge pedagogy technology_usage student_engagement"`
	DifficultyLevel   models.DifficultyLevel `json:"difficultyLevel" validate:"omitempty,oneof=beginner intermediate advanced"`
	ContentType       models.ContentType     `json:"contentType" validate:"omitempty,oneof=video article interactive mixed"`
	FullContent       string                 `json:"fullContent"`
	VideoURL          *string                `json:"videoUrl" validate:"omitempty,url"`
	EstimatedDuration string                 `json:"estimatedDuration" validate:"max=60"`
	TargetClusters    []string               `json:"targetClusters" validate:"omitempty,dive,required"`
}
