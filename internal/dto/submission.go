package dto

import "github.com/noah-isme/teacher-training-api/internal/models"

// SubmitIssueRequest is the teacher payload for reporting an issue.
type SubmitIssueRequest struct {
	Category    models.IssueCategory `json:"category" validate:"required,oneof=academic infrastructure administrative safety technology other"`
	Description string               `json:"description" validate:"required,min=5,max=4000"`
	Cluster     string               `json:"cluster" validate:"omitempty,max=120"`
}

// AIResponse summarises what the recommender decided for a new issue.
type AIResponse struct {
	Suggestion   string   `json:"suggestion"`
	InferredGaps []string `json:"inferredGaps"`
	Priority     string   `json:"priority"`
}

// AssignedModule identifies the module backing an assignment.
type AssignedModule struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	CompetencyArea models.CompetencyArea `json:"competencyArea"`
}

// SubmissionOutcome is the result of processing an issue submission. Exactly
// one of the assigned path (Issue, AIResponse, Assignment) or the skip path
// (IssueDeleted, SkippedAICall, AlreadyExisted) is populated.
type SubmissionOutcome struct {
	Success bool `json:"success"`

	Issue      *models.Issue              `json:"issue,omitempty"`
	AIResponse *AIResponse                `json:"aiResponse,omitempty"`
	Assignment *models.TrainingAssignment `json:"assignment,omitempty"`

	IssueDeleted   bool            `json:"issue_deleted,omitempty"`
	SkippedAICall  bool            `json:"skipped_ai_call,omitempty"`
	AlreadyExisted bool            `json:"already_existed,omitempty"`
	Message        string          `json:"message,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	AssignedModule *AssignedModule `json:"assigned_module,omitempty"`
}
