package dto

import "time"

// CountBucket is a labelled count used in dashboard breakdowns.
type CountBucket struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// DashboardStats aggregates issue and training activity for the admin dashboard.
type DashboardStats struct {
	TotalIssues          int           `json:"totalIssues"`
	IssuesByStatus       []CountBucket `json:"issuesByStatus"`
	IssuesByCategory     []CountBucket `json:"issuesByCategory"`
	IssuesByCluster      []CountBucket `json:"issuesByCluster"`
	AssignmentsByStatus  []CountBucket `json:"assignmentsByStatus"`
	AverageFeedbackScore float64       `json:"averageFeedbackScore"`
	GeneratedAt          time.Time     `json:"generatedAt"`
}
