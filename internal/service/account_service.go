package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/pkg/database"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type accountRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Deactivate(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// AccountService manages teacher and admin accounts. Admins manage
// teachers; only super admins manage admin accounts.
type AccountService struct {
	repo      accountRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService constructs the service.
func NewAccountService(repo accountRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AccountService{repo: repo, audit: audit, validator: validate, logger: logger}
}

var errAccountNotFound = appErrors.Clone(appErrors.ErrNotFound, "account not found")

func requireManager(actor *models.JWTClaims, roles ...models.UserRole) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	for _, role := range roles {
		if role != models.RoleTeacher && actor.Role != models.RoleSuperAdmin {
			return appErrors.Clone(appErrors.ErrForbidden, "super admin role required to manage admin accounts")
		}
	}
	return nil
}

// List returns accounts ordered by name. Admins only see teacher accounts.
func (s *AccountService) List(ctx context.Context, actor *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	if actor.Role != models.RoleSuperAdmin {
		if filter.Role != "" && filter.Role != models.RoleTeacher {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "super admin role required to list admin accounts")
		}
		filter.Role = models.RoleTeacher
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one account. A non-empty scope hides accounts of other roles.
func (s *AccountService) Get(ctx context.Context, actor *models.JWTClaims, scope models.UserRole, id string) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := requireManager(actor, user.Role); err != nil {
		return nil, err
	}
	return user, nil
}

// Create provisions an account on behalf of an admin.
func (s *AccountService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateAccountRequest) (*models.User, error) {
	if err := requireManager(actor, req.Role); err != nil {
		return nil, err
	}
	user, err := s.Provision(ctx, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor.UserID, models.AuditActionAccountCreate, user.ID, nil, auditView(user))
	s.logger.Info("account created", zap.String("account_id", user.ID), zap.String("role", string(user.Role)), zap.String("actor_id", actor.UserID))
	return user, nil
}

// Provision validates and stores a new active account with a bcrypt
// hashed password. It performs no authorization and backs the create-user
// command as well as Create.
func (s *AccountService) Provision(ctx context.Context, req dto.CreateAccountRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.Cluster = strings.TrimSpace(req.Cluster)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid account payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       true,
	}
	if req.Cluster != "" {
		user.Cluster = &req.Cluster
	}
	if req.EmployeeID != "" {
		user.EmployeeID = &req.EmployeeID
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, accountWriteError(err, "failed to create account")
	}
	return user, nil
}

// Update applies the present fields of req. Deactivating an account or
// changing its password ends its open sessions.
func (s *AccountService) Update(ctx context.Context, actor *models.JWTClaims, scope models.UserRole, id string, req dto.UpdateAccountRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid account payload")
	}
	user, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	before := auditView(user)
	wasActive := user.Active

	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Cluster != nil {
		user.Cluster = optionalString(*req.Cluster)
	}
	if req.EmployeeID != nil {
		user.EmployeeID = optionalString(*req.EmployeeID)
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	newRole := user.Role
	if req.Role != nil {
		if scope != "" && *req.Role != scope {
			return nil, appErrors.Clone(appErrors.ErrValidation, "role cannot be changed here")
		}
		newRole = *req.Role
	}
	if err := requireManager(actor, user.Role, newRole); err != nil {
		return nil, err
	}
	user.Role = newRole

	if user.ID == actor.UserID && (!user.Active || user.Role != actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "you cannot deactivate or change the role of your own account")
	}
	if user.Role == models.RoleTeacher && (user.Cluster == nil || user.EmployeeID == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher accounts require a cluster and an employee ID")
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errAccountNotFound
		}
		return nil, accountWriteError(err, "failed to update account")
	}

	passwordChanged := false
	if req.Password != nil {
		if err := s.setPassword(ctx, user, *req.Password); err != nil {
			return nil, err
		}
		passwordChanged = true
	}
	if passwordChanged || (wasActive && !user.Active) {
		s.revokeSessions(ctx, user.ID)
	}

	after := auditView(user)
	if passwordChanged {
		after["password_changed"] = true
	}
	s.record(ctx, actor.UserID, models.AuditActionAccountUpdate, user.ID, before, after)
	return user, nil
}

// Delete deactivates an account and ends its sessions. Issues and
// assignments of a teacher stay in place for reporting.
func (s *AccountService) Delete(ctx context.Context, actor *models.JWTClaims, scope models.UserRole, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return appErrors.Clone(appErrors.ErrInvalidState, "you cannot deactivate your own account")
	}
	user, err := s.load(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := requireManager(actor, user.Role); err != nil {
		return err
	}

	if err := s.repo.Deactivate(ctx, user.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errAccountNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate account")
	}
	s.revokeSessions(ctx, user.ID)
	s.record(ctx, actor.UserID, models.AuditActionAccountDelete, user.ID, map[string]interface{}{"active": user.Active}, map[string]interface{}{"active": false})
	return nil
}

// ChangePassword sets a new password. Owners must prove the current one;
// super admins may reset any account.
func (s *AccountService) ChangePassword(ctx context.Context, actor *models.JWTClaims, id string, req dto.ChangePasswordRequest) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	self := actor.UserID == id
	if !self && actor.Role != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "you may only change your own password")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid password payload")
	}

	user, err := s.load(ctx, "", id)
	if err != nil {
		return err
	}
	if self {
		if req.CurrentPassword == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
			return appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
		}
		if req.CurrentPassword == req.NewPassword {
			return appErrors.Clone(appErrors.ErrValidation, "new password must differ from the current one")
		}
	}

	if err := s.setPassword(ctx, user, req.NewPassword); err != nil {
		return err
	}
	s.revokeSessions(ctx, user.ID)
	s.record(ctx, actor.UserID, models.AuditActionPasswordChange, user.ID, nil, map[string]interface{}{"self": self})
	return nil
}

func (s *AccountService) load(ctx context.Context, scope models.UserRole, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errAccountNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if scope != "" && user.Role != scope {
		return nil, errAccountNotFound
	}
	return user, nil
}

func (s *AccountService) setPassword(ctx context.Context, user *models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash), time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errAccountNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	user.PasswordHash = string(hash)
	return nil
}

func (s *AccountService) revokeSessions(ctx context.Context, userID string) {
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke account sessions", zap.String("account_id", userID), zap.Error(err))
	}
}

func (s *AccountService) record(ctx context.Context, actorID, action, accountID string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{UserID: &actorID, Action: action, Resource: "users", ResourceID: &accountID}
	if oldValue != nil {
		entry.OldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		entry.NewValues, _ = json.Marshal(newValue)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record account audit log", zap.String("action", action), zap.Error(err))
	}
}

func auditView(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"email":       user.Email,
		"name":        user.FullName,
		"role":        user.Role,
		"cluster":     user.ClusterName(),
		"employee_id": user.EmployeeID,
		"active":      user.Active,
	}
}

func accountWriteError(err error, message string) error {
	switch {
	case database.IsUniqueViolation(err, "users_email_key"):
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	case database.IsUniqueViolation(err, "users_employee_id_key"):
		return appErrors.Clone(appErrors.ErrConflict, "employee ID already exists")
	case database.IsUniqueViolation(err):
		return appErrors.Clone(appErrors.ErrConflict, "account already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func optionalString(value string) *string {
	if value = strings.TrimSpace(value); value == "" {
		return nil
	}
	return &value
}
