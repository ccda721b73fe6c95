package dto

import "github.com/noah-isme/teacher-training-api/internal/models"

// UpdateIssueStatusRequest is the admin payload for moving an issue along the review track.
type UpdateIssueStatusRequest struct {
	Status       models.IssueStatus `json:"status" validate:"required,oneof=reviewed resolved"`
	AdminRemarks *string            `json:"adminRemarks" validate:"omitempty,max=2000"`
}

// IssueListQuery carries admin listing filters.
type IssueListQuery struct {
	Status   []models.IssueStatus
	Cluster  string
	Category models.IssueCategory
	Page     int
	PageSize int
}
