package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
	"github.com/noah-isme/teacher-training-api/pkg/response"
)

type accountService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, scope models.UserRole, id string) (*models.User, error)
	Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateAccountRequest) (*models.User, error)
	Update(ctx context.Context, actor *models.JWTClaims, scope models.UserRole, id string, req dto.UpdateAccountRequest) (*models.User, error)
	Delete(ctx context.Context, actor *models.JWTClaims, scope models.UserRole, id string) error
	ChangePassword(ctx context.Context, actor *models.JWTClaims, id string, req dto.ChangePasswordRequest) error
}

// AccountHandler serves account management. A handler with a scope only
// sees and creates accounts of that role.
type AccountHandler struct {
	service accountService
	scope   models.UserRole
}

// NewAccountHandler constructs the handler. Pass an empty scope to manage
// accounts of every role.
func NewAccountHandler(service accountService, scope models.UserRole) *AccountHandler {
	return &AccountHandler{service: service, scope: scope}
}

// List godoc
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Param role query string false "Role (unscoped routes only)"
// @Param cluster query string false "Cluster"
// @Param active query bool false "Active flag"
// @Param search query string false "Name, email or employee ID"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/teachers [get]
// @Router /admin/accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		response.Error(c, err)
		return
	}
	size, err := queryInt(c, "pageSize")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.UserFilter{
		Role:     h.scope,
		Cluster:  strings.TrimSpace(c.Query("cluster")),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: size,
	}
	if filter.Role == "" {
		filter.Role = models.UserRole(strings.ToUpper(strings.TrimSpace(c.Query("role"))))
	}
	if raw := strings.TrimSpace(c.Query("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be true or false"))
			return
		}
		filter.Active = &active
	}

	users, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get an account
// @Tags Accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/teachers/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), claimsFromContext(c), h.scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Create godoc
// @Summary Create an account
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body dto.CreateAccountRequest true "Account"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/teachers [post]
// @Router /admin/accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if !bindJSON(c, &req, "invalid account payload") {
		return
	}
	if h.scope != "" {
		req.Role = h.scope
	} else {
		req.Role = models.UserRole(strings.ToUpper(string(req.Role)))
	}
	user, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary Update an account
// @Tags Accounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param payload body dto.UpdateAccountRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/teachers/{id} [put]
func (h *AccountHandler) Update(c *gin.Context) {
	var req dto.UpdateAccountRequest
	if !bindJSON(c, &req, "invalid account payload") {
		return
	}
	user, err := h.service.Update(c.Request.Context(), claimsFromContext(c), h.scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Delete godoc
// @Summary Deactivate an account
// @Tags Accounts
// @Param id path string true "Account ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/teachers/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), h.scope, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword godoc
// @Summary Change an account password
// @Tags Accounts
// @Accept json
// @Param id path string true "Account ID"
// @Param payload body dto.ChangePasswordRequest true "Passwords"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /accounts/{id}/password [post]
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if !bindJSON(c, &req, "invalid password payload") {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), claimsFromContext(c), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
