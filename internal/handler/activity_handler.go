package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/pkg/response"
)

type activityService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
}

// ActivityHandler serves the admin activity log.
type ActivityHandler struct {
	service activityService
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service activityService) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// List godoc
// @Summary List activity log entries
// @Tags Admin
// @Produce json
// @Param userId query string false "Actor user ID"
// @Param action query string false "Audit action"
// @Param resource query string false "Resource name"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/activity [get]
func (h *ActivityHandler) List(c *gin.Context) {
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
	filter := models.AuditFilter{
		UserID:   strings.TrimSpace(c.Query("userId")),
		Action:   c.Query("action"),
		Resource: strings.TrimSpace(c.Query("resource")),
		Page:     page,
		PageSize: size,
	}
	logs, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
