package models

import (
	"time"

	"github.com/lib/pq"
)

// TrainingFeedback is the single rating a teacher leaves on a completed assignment.
type TrainingFeedback struct {
	ID                     string         `db:"id" json:"id"`
	TeacherID              string         `db:"teacher_id" json:"teacher_id"`
	AssignmentID           string         `db:"assignment_id" json:"assignment_id"`
	ModuleID               string         `db:"module_id" json:"module_id"`
	Rating                 int            `db:"rating" json:"rating"`
	WasHelpful             bool           `db:"was_helpful" json:"was_helpful"`
	Comment                *string        `db:"comment" json:"comment,omitempty"`
	Strengths              pq.StringArray `db:"strengths" json:"strengths"`
	Improvements           pq.StringArray `db:"improvements" json:"improvements"`
	StillHasIssue          bool           `db:"still_has_issue" json:"still_has_issue"`
	NeedsAdditionalSupport bool           `db:"needs_additional_support" json:"needs_additional_support"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
}
