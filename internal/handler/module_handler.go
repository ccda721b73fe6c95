package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/pkg/response"
)

type moduleService interface {
	List(ctx context.Context, filter models.ModuleFilter) ([]models.TrainingModule, error)
	Get(ctx context.Context, id string) (*models.TrainingModule, error)
	Create(ctx context.Context, actor *models.JWTClaims, req dto.UpsertModuleRequest) (*models.TrainingModule, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpsertModuleRequest) (*models.TrainingModule, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// ModuleHandler serves the training module catalog.
type ModuleHandler struct {
	service moduleService
}

// NewModuleHandler constructs the handler.
func NewModuleHandler(service moduleService) *ModuleHandler {
	return &ModuleHandler{service: service}
}

// List godoc
// @Summary List training modules
// @Tags Modules
// @Produce json
// @Param competencyArea query string false "Competency area"
// @Param difficulty query string false "Difficulty level"
// @Param cluster query string false "Only modules targeting this cluster"
// @Success 200 {object} response.Envelope
// @Router /modules [get]
func (h *ModuleHandler) List(c *gin.Context) {
	filter := models.ModuleFilter{
		CompetencyArea: models.CompetencyArea(strings.TrimSpace(c.Query("competencyArea"))),
		Difficulty:     models.DifficultyLevel(strings.TrimSpace(c.Query("difficulty"))),
		Cluster:        strings.TrimSpace(c.Query("cluster")),
	}
	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get training module
// @Tags Modules
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /modules/{id} [get]
func (h *ModuleHandler) Get(c *gin.Context) {
	module, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// Create godoc
// @Summary Create training module
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.UpsertModuleRequest true "Module payload"
// @Success 201 {object} response.Envelope
// @Router /admin/modules [post]
func (h *ModuleHandler) Create(c *gin.Context) {
	var req dto.UpsertModuleRequest
	if !bindJSON(c, &req, "invalid module payload") {
		return
	}
	module, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// Update godoc
// @Summary Replace training module
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body dto.UpsertModuleRequest true "Module payload"
// @Success 200 {object} response.Envelope
// @Router /admin/modules/{id} [put]
func (h *ModuleHandler) Update(c *gin.Context) {
	var req dto.UpsertModuleRequest
	if !bindJSON(c, &req, "invalid module payload") {
		return
	}
	module, err := h.service.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// Delete godoc
// @Summary Delete unreferenced training module
// @Tags Admin
// @Param id path string true "Module ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /admin/modules/{id} [delete]
func (h *ModuleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
