package models

import "time"

// AssignmentStatus tracks a teacher's progress through an assigned module.
type AssignmentStatus string

const (
	AssignmentStatusNotStarted AssignmentStatus = "not_started"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
	AssignmentStatusSkipped    AssignmentStatus = "skipped"
)

// ActiveAssignmentStatuses are the statuses that count towards duplicate detection.
var ActiveAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusNotStarted,
	AssignmentStatusInProgress,
	AssignmentStatusCompleted,
}

// TrainingAssignment links a teacher, a module and the issue that triggered it.
type TrainingAssignment struct {
	ID                    string           `db:"id" json:"id"`
	TeacherID             string           `db:"teacher_id" json:"teacher_id"`
	ModuleID              string           `db:"module_id" json:"module_id"`
	SourceIssueID         *string          `db:"source_issue_id" json:"source_issue_id,omitempty"`
	EquivalenceKey        string           `db:"equivalence_key" json:"-"`
	AssignedBy            string           `db:"assigned_by" json:"assigned_by"`
	AssignedReason        string           `db:"assigned_reason" json:"assigned_reason"`
	Status                AssignmentStatus `db:"status" json:"status"`
	ProgressPercentage    int              `db:"progress_percentage" json:"progress_percentage"`
	AssignedDate          time.Time        `db:"assigned_date" json:"assigned_date"`
	StartedAt             *time.Time       `db:"started_at" json:"started_at,omitempty"`
	CompletedAt           *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	DueDate               time.Time        `db:"due_date" json:"due_date"`
	VideoWatchTimeSeconds int              `db:"video_watch_time_seconds" json:"video_watch_time_seconds"`
	VideoCompleted        bool             `db:"video_completed" json:"video_completed"`
	PersonalizedContent   *string          `db:"personalized_content" json:"personalized_content,omitempty"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail joins an assignment with its module for teacher views.
type AssignmentDetail struct {
	TrainingAssignment
	ModuleTitle             string          `db:"module_title" json:"module_title"`
	ModuleCompetency        CompetencyArea  `db:"module_competency_area" json:"module_competency_area"`
	ModuleDifficulty        DifficultyLevel `db:"module_difficulty_level" json:"module_difficulty_level"`
	ModuleContentType       ContentType     `db:"module_content_type" json:"module_content_type"`
	ModuleEstimatedDuration string          `db:"module_estimated_duration" json:"module_estimated_duration"`
	HasFeedback             bool            `db:"has_feedback" json:"has_feedback"`
}

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	TeacherID string
	ModuleID  string
	Status    []AssignmentStatus
}

// StatusForProgress derives the assignment status from a completion percentage.
func StatusForProgress(pct int) AssignmentStatus {
	switch {
	case pct <= 0:
		return AssignmentStatusNotStarted
	case pct >= 100:
		return AssignmentStatusCompleted
	default:
		return AssignmentStatusInProgress
	}
}

// ApplyProgress moves the assignment to pct, maintaining status and timestamps.
// It reports false when nothing changed.
func (a *TrainingAssignment) ApplyProgress(pct int, now time.Time) bool {
	if pct == a.ProgressPercentage && a.Status == StatusForProgress(pct) {
		return false
	}
	a.ProgressPercentage = pct
	a.Status = StatusForProgress(pct)

	if pct > 0 && a.StartedAt == nil {
		started := now
		a.StartedAt = &started
	}
	if a.Status == AssignmentStatusCompleted {
		if a.CompletedAt == nil {
			completed := now
			a.CompletedAt = &completed
		}
	} else {
		a.CompletedAt = nil
	}
	return true
}
