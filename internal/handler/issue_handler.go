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

type issueSubmitter interface {
	ProcessIssueSubmission(ctx context.Context, actor *models.JWTClaims, req dto.SubmitIssueRequest) (*dto.SubmissionOutcome, error)
}

type issueService interface {
	ListMine(ctx context.Context, actor *models.JWTClaims, page, pageSize int) ([]models.IssueWithTeacher, *models.Pagination, error)
	List(ctx context.Context, actor *models.JWTClaims, query dto.IssueListQuery) ([]models.IssueWithTeacher, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Issue, error)
	UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateIssueStatusRequest) (*models.Issue, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// IssueHandler exposes issue reporting and admin review endpoints.
type IssueHandler struct {
	submitter issueSubmitter
	issues    issueService
}

// NewIssueHandler constructs the handler.
func NewIssueHandler(submitter issueSubmitter, issues issueService) *IssueHandler {
	return &IssueHandler{submitter: submitter, issues: issues}
}

// Submit godoc
// @Summary Report a classroom issue
// @Description Records the issue and assigns a training module, or reports that an equivalent assignment already exists
// @Tags Issues
// @Accept json
// @Produce json
// @Param payload body dto.SubmitIssueRequest true "Issue payload"
// @Success 201 {object} response.Envelope "training assigned"
// @Success 200 {object} response.Envelope "equivalent assignment exists"
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /issues [post]
func (h *IssueHandler) Submit(c *gin.Context) {
	var req dto.SubmitIssueRequest
	if !bindJSON(c, &req, "invalid issue payload") {
		return
	}

	outcome, err := h.submitter.ProcessIssueSubmission(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if outcome.SkippedAICall {
		status = http.StatusOK
	}
	response.JSON(c, status, outcome, nil)
}

// ListMine godoc
// @Summary List my issues
// @Tags Issues
// @Produce json
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /issues/mine [get]
func (h *IssueHandler) ListMine(c *gin.Context) {
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

	items, pagination, err := h.issues.ListMine(c.Request.Context(), claimsFromContext(c), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get issue
// @Tags Issues
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id} [get]
func (h *IssueHandler) Get(c *gin.Context) {
	issue, err := h.issues.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}

// AdminList godoc
// @Summary List issues
// @Tags Admin
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param cluster query string false "Cluster"
// @Param category query string false "Category"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/issues [get]
func (h *IssueHandler) AdminList(c *gin.Context) {
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

	query := dto.IssueListQuery{
		Cluster:  strings.TrimSpace(c.Query("cluster")),
		Category: models.IssueCategory(strings.TrimSpace(c.Query("category"))),
		Page:     page,
		PageSize: size,
	}
	for _, s := range queryList(c, "status") {
		query.Status = append(query.Status, models.IssueStatus(s))
	}

	items, pagination, err := h.issues.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// UpdateStatus godoc
// @Summary Update issue status
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Issue ID"
// @Param payload body dto.UpdateIssueStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/issues/{id}/status [patch]
func (h *IssueHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateIssueStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}

	issue, err := h.issues.UpdateStatus(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}

// Delete godoc
// @Summary Delete a resolved issue
// @Tags Admin
// @Param id path string true "Issue ID"
// @Success 204
// @Failure 422 {object} response.Envelope
// @Router /admin/issues/{id} [delete]
func (h *IssueHandler) Delete(c *gin.Context) {
	if err := h.issues.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
