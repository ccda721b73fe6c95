package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type fakeAccountService struct {
	filter    models.UserFilter
	scope     models.UserRole
	id        string
	created   dto.CreateAccountRequest
	updated   dto.UpdateAccountRequest
	passwords dto.ChangePasswordRequest
	err       error
}

func (f *fakeAccountService) List(_ context.Context, _ *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	f.filter = filter
	return []models.User{{ID: "T1", Email: "siti@school.id", PasswordHash: "secret-hash"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, f.err
}

func (f *fakeAccountService) Get(_ context.Context, _ *models.JWTClaims, scope models.UserRole, id string) (*models.User, error) {
	f.scope, f.id = scope, id
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: id}, nil
}

func (f *fakeAccountService) Create(_ context.Context, _ *models.JWTClaims, req dto.CreateAccountRequest) (*models.User, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: "new", Email: req.Email, Role: req.Role}, nil
}

func (f *fakeAccountService) Update(_ context.Context, _ *models.JWTClaims, scope models.UserRole, id string, req dto.UpdateAccountRequest) (*models.User, error) {
	f.scope, f.id, f.updated = scope, id, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: id}, nil
}

func (f *fakeAccountService) Delete(_ context.Context, _ *models.JWTClaims, scope models.UserRole, id string) error {
	f.scope, f.id = scope, id
	return f.err
}

func (f *fakeAccountService) ChangePassword(_ context.Context, _ *models.JWTClaims, id string, req dto.ChangePasswordRequest) error {
	f.id, f.passwords = id, req
	return f.err
}

func admin() *models.JWTClaims {
	return &models.JWTClaims{UserID: "A1", Role: models.RoleAdmin}
}

func TestAccountHandlerListTeachers(t *testing.T) {
	svc := &fakeAccountService{}
	handler := NewAccountHandler(svc, models.RoleTeacher)

	c, rec := newTestContext(http.MethodGet, "/admin/teachers?role=ADMIN&cluster=North&active=false&search=siti&pageSize=5", "", admin())
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleTeacher, svc.filter.Role, "scoped handler ignores the role query")
	assert.Equal(t, "North", svc.filter.Cluster)
	require.NotNil(t, svc.filter.Active)
	assert.False(t, *svc.filter.Active)
	assert.Equal(t, 5, svc.filter.PageSize)
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	c, rec = newTestContext(http.MethodGet, "/admin/teachers?active=maybe", "", admin())
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountHandlerListAllRoles(t *testing.T) {
	svc := &fakeAccountService{}
	handler := NewAccountHandler(svc, "")

	c, rec := newTestContext(http.MethodGet, "/admin/accounts?role=admin", "", admin())
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleAdmin, svc.filter.Role)
}

func TestAccountHandlerCreateForcesScope(t *testing.T) {
	svc := &fakeAccountService{}
	handler := NewAccountHandler(svc, models.RoleTeacher)

	body := `{"email":"new@school.id","password":"longenough","name":"New","role":"SUPERADMIN","cluster":"North","employeeId":"EMP-2"}`
	c, rec := newTestContext(http.MethodPost, "/admin/teachers", body, admin())
	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.RoleTeacher, svc.created.Role)
	assert.Equal(t, "EMP-2", svc.created.EmployeeID)
	assert.Equal(t, "New", svc.created.FullName)

	svc.err = appErrors.Clone(appErrors.ErrConflict, "email already exists")
	c, rec = newTestContext(http.MethodPost, "/admin/teachers", body, admin())
	handler.Create(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec).Error["code"])
}

func TestAccountHandlerUpdateAndDelete(t *testing.T) {
	svc := &fakeAccountService{}
	handler := NewAccountHandler(svc, models.RoleTeacher)

	c, rec := newTestContext(http.MethodPut, "/admin/teachers/T1", `{"cluster":"East","active":false}`, admin())
	c.Params = gin.Params{{Key: "id", Value: "T1"}}
	handler.Update(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "T1", svc.id)
	assert.Equal(t, models.RoleTeacher, svc.scope)
	require.NotNil(t, svc.updated.Cluster)
	assert.Equal(t, "East", *svc.updated.Cluster)
	assert.Nil(t, svc.updated.FullName)

	c, rec = newTestContext(http.MethodDelete, "/admin/teachers/T1", "", admin())
	c.Params = gin.Params{{Key: "id", Value: "T1"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)

	svc.err = appErrors.Clone(appErrors.ErrNotFound, "account not found")
	c, rec = newTestContext(http.MethodDelete, "/admin/teachers/T9", "", admin())
	c.Params = gin.Params{{Key: "id", Value: "T9"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountHandlerChangePassword(t *testing.T) {
	svc := &fakeAccountService{}
	handler := NewAccountHandler(svc, "")

	c, rec := newTestContext(http.MethodPost, "/accounts/T1/password", `{"currentPassword":"old-pass","newPassword":"new-pass-1"}`, teacher())
	c.Params = gin.Params{{Key: "id", Value: "T1"}}
	handler.ChangePassword(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "old-pass", svc.passwords.CurrentPassword)

	svc.err = appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	c, rec = newTestContext(http.MethodPost, "/accounts/T1/password", `{"currentPassword":"bad","newPassword":"new-pass-1"}`, teacher())
	c.Params = gin.Params{{Key: "id", Value: "T1"}}
	handler.ChangePassword(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
