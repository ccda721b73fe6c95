package dto

import "time"

// UpdateProgressRequest sets the completion percentage of an assignment.
type UpdateProgressRequest struct {
	ProgressPercentage *int `json:"progressPercentage" validate:"required"`
}

// UpdateVideoProgressRequest reports video watch progress for an assignment.
type UpdateVideoProgressRequest struct {
	WatchTimeSeconds int  `json:"watchTimeSeconds" validate:"gte=0"`
	Completed        bool `json:"completed"`
}

// SubmitFeedbackRequest is the post-completion rating payload.
type SubmitFeedbackRequest struct {
	Rating                 int      `json:"rating" validate:"min=1,max=5"`
	WasHelpful             *bool    `json:"wasHelpful" validate:"required"`
	Comment                *string  `json:"comment" validate:"omitempty,max=2000"`
	Strengths              []string `json:"strengths" validate:"omitempty,max=20,dive,max=100"`
	Improvements           []string `json:"improvements" validate:"omitempty,max=20,dive,max=100"`
	StillHasIssue          bool     `json:"stillHasIssue"`
	NeedsAdditionalSupport bool     `json:"needsAdditionalSupport"`
}

// CertificateLink is a time limited, unauthenticated certificate download.
type CertificateLink struct {
	Token     string    `json:"token"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expiresAt"`
}
