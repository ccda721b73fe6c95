package models

import "time"

// IssueCategory classifies a teacher submitted issue.
type IssueCategory string

const (
	IssueCategoryAcademic       IssueCategory = "academic"
	IssueCategoryInfrastructure IssueCategory = "infrastructure"
	IssueCategoryAdministrative IssueCategory = "administrative"
	IssueCategorySafety         IssueCategory = "safety"
	IssueCategoryTechnology     IssueCategory = "technology"
	IssueCategoryOther          IssueCategory = "other"
)

// IssueStatus tracks where an issue is in its lifecycle.
type IssueStatus string

const (
	IssueStatusPending          IssueStatus = "pending"
	IssueStatusReviewed         IssueStatus = "reviewed"
	IssueStatusResolved         IssueStatus = "resolved"
	IssueStatusTrainingAssigned IssueStatus = "training_assigned"
)

// reviewRank orders the admin review track. training_assigned is a separate
// terminal branch reachable only from pending.
var reviewRank = map[IssueStatus]int{
	IssueStatusPending:  0,
	IssueStatusReviewed: 1,
	IssueStatusResolved: 2,
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s IssueStatus) CanTransitionTo(next IssueStatus) bool {
	if next == IssueStatusTrainingAssigned {
		return s == IssueStatusPending
	}
	from, okFrom := reviewRank[s]
	to, okTo := reviewRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to > from
}

// Issue is a teacher-submitted report of a classroom or school problem.
type Issue struct {
	ID           string        `db:"id" json:"id"`
	TeacherID    string        `db:"teacher_id" json:"teacher_id"`
	Cluster      string        `db:"cluster" json:"cluster"`
	Category     IssueCategory `db:"category" json:"category"`
	Description  string        `db:"description" json:"description"`
	Status       IssueStatus   `db:"status" json:"status"`
	AdminRemarks *string       `db:"admin_remarks" json:"admin_remarks,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// IssueWithTeacher enriches an issue with the submitting teacher for admin listings.
type IssueWithTeacher struct {
	Issue
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	TeacherEmail string `db:"teacher_email" json:"teacher_email"`
}

// IssueFilter narrows issue listings.
type IssueFilter struct {
	TeacherID string
	Status    []IssueStatus
	Cluster   string
	Category  IssueCategory
	Page      int
	PageSize  int
}
