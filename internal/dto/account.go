package dto

import "github.com/noah-isme/teacher-training-api/internal/models"

// CreateAccountRequest provisions a teacher or admin account. Teachers need
// a cluster and an employee ID.
type CreateAccountRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	Password   string          `json:"password" validate:"required,min=8,max=72"`
	FullName   string          `json:"name" validate:"required,max=200"`
	Role       models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN TEACHER"`
	Cluster    string          `json:"cluster" validate:"required_if=Role TEACHER,max=100"`
	EmployeeID string          `json:"employeeId" validate:"required_if=Role TEACHER,max=50"`
}

// UpdateAccountRequest changes only the fields that are present.
type UpdateAccountRequest struct {
	Email      *string          `json:"email" validate:"omitempty,email"`
	FullName   *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Role       *models.UserRole `json:"role" validate:"omitempty,oneof=SUPERADMIN ADMIN TEACHER"`
	Cluster    *string          `json:"cluster" validate:"omitempty,max=100"`
	EmployeeID *string          `json:"employeeId" validate:"omitempty,max=50"`
	Active     *bool            `json:"active"`
	Password   *string          `json:"password" validate:"omitempty,min=8,max=72"`
}

// ChangePasswordRequest replaces an account password. CurrentPassword is
// checked when owners change their own.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}
