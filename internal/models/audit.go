package models

import "time"

// Audit actions recorded for security and lifecycle events.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionLogout            = "LOGOUT"
	AuditActionIssueSubmit       = "ISSUE_SUBMIT"
	AuditActionIssueStatus       = "ISSUE_STATUS_UPDATE"
	AuditActionIssueDelete       = "ISSUE_DELETE"
	AuditActionTrainingAssign    = "TRAINING_ASSIGN"
	AuditActionTrainingFeedback  = "TRAINING_FEEDBACK"
	AuditActionModuleCreate      = "MODULE_CREATE"
	AuditActionModuleUpdate      = "MODULE_UPDATE"
	AuditActionModuleDelete      = "MODULE_DELETE"
	AuditActionCertificate       = "CERTIFICATE_DOWNLOAD"
	AuditActionCertificateShared = "CERTIFICATE_SHARED_DOWNLOAD"
	AuditActionAccountCreate     = "ACCOUNT_CREATE"
	AuditActionAccountUpdate     = "ACCOUNT_UPDATE"
	AuditActionAccountDelete     = "ACCOUNT_DEACTIVATE"
	AuditActionPasswordChange    = "PASSWORD_CHANGE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows activity log listings.
type AuditFilter struct {
	UserID   string
	Action   string
	Resource string
	Page     int
	PageSize int
}
