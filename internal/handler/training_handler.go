package handler

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/internal/service"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
	"github.com/noah-isme/teacher-training-api/pkg/response"
)

type trainingService interface {
	ListMine(ctx context.Context, actor *models.JWTClaims, statuses []models.AssignmentStatus) ([]models.AssignmentDetail, error)
	List(ctx context.Context, actor *models.JWTClaims, filter models.AssignmentFilter) ([]models.AssignmentDetail, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.AssignmentDetail, error)
	Certificate(ctx context.Context, actor *models.JWTClaims, id string) (*service.File, error)
	ShareCertificate(ctx context.Context, actor *models.JWTClaims, id string) (*dto.CertificateLink, error)
	SharedCertificate(ctx context.Context, token string) (*service.File, error)
	Export(ctx context.Context, actor *models.JWTClaims, filter models.AssignmentFilter) (*service.File, error)
}

type progressService interface {
	UpdateProgress(ctx context.Context, actor *models.JWTClaims, assignmentID string, percentage int) (*models.TrainingAssignment, error)
	RecordVideoProgress(ctx context.Context, actor *models.JWTClaims, assignmentID string, watchSeconds int, completed bool) (*models.TrainingAssignment, error)
}

type feedbackService interface {
	SubmitFeedback(ctx context.Context, actor *models.JWTClaims, assignmentID string, req dto.SubmitFeedbackRequest) (*models.TrainingFeedback, error)
}

// TrainingHandler exposes assignment tracking endpoints.
type TrainingHandler struct {
	trainings trainingService
	progress  progressService
	feedback  feedbackService
}

// NewTrainingHandler constructs the handler.
func NewTrainingHandler(trainings trainingService, progress progressService, feedback feedbackService) *TrainingHandler {
	return &TrainingHandler{trainings: trainings, progress: progress, feedback: feedback}
}

// ListMine godoc
// @Summary List my training assignments
// @Tags Trainings
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /trainings/mine [get]
func (h *TrainingHandler) ListMine(c *gin.Context) {
	statuses, err := assignmentStatuses(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.trainings.ListMine(c.Request.Context(), claimsFromContext(c), statuses)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// AdminList godoc
// @Summary List training assignments
// @Tags Admin
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param moduleId query string false "Module ID"
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /admin/trainings [get]
func (h *TrainingHandler) AdminList(c *gin.Context) {
	filter, err := assignmentFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.trainings.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Export godoc
// @Summary Export training assignments as CSV
// @Tags Admin
// @Produce text/csv
// @Param teacherId query string false "Teacher ID"
// @Param moduleId query string false "Module ID"
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} file
// @Router /admin/trainings/export [get]
func (h *TrainingHandler) Export(c *gin.Context) {
	filter, err := assignmentFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.trainings.Export(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Content)
}

func assignmentFilter(c *gin.Context) (models.AssignmentFilter, error) {
	statuses, err := assignmentStatuses(c)
	if err != nil {
		return models.AssignmentFilter{}, err
	}
	return models.AssignmentFilter{
		TeacherID: strings.TrimSpace(c.Query("teacherId")),
		ModuleID:  strings.TrimSpace(c.Query("moduleId")),
		Status:    statuses,
	}, nil
}

// Get godoc
// @Summary Get training assignment
// @Tags Trainings
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /trainings/{id} [get]
func (h *TrainingHandler) Get(c *gin.Context) {
	detail, err := h.trainings.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateProgress godoc
// @Summary Update training progress
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.UpdateProgressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /trainings/{id}/progress [patch]
func (h *TrainingHandler) UpdateProgress(c *gin.Context) {
	var req dto.UpdateProgressRequest
	if !bindJSON(c, &req, "invalid progress payload") {
		return
	}
	if req.ProgressPercentage == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "progressPercentage is required"))
		return
	}

	assignment, err := h.progress.UpdateProgress(c.Request.Context(), claimsFromContext(c), c.Param("id"), *req.ProgressPercentage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// UpdateVideo godoc
// @Summary Record video watch progress
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.UpdateVideoProgressRequest true "Video payload"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id}/video [patch]
func (h *TrainingHandler) UpdateVideo(c *gin.Context) {
	var req dto.UpdateVideoProgressRequest
	if !bindJSON(c, &req, "invalid video payload") {
		return
	}

	assignment, err := h.progress.RecordVideoProgress(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.WatchTimeSeconds, req.Completed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// SubmitFeedback godoc
// @Summary Rate a completed training
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.SubmitFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /trainings/{id}/feedback [post]
func (h *TrainingHandler) SubmitFeedback(c *gin.Context) {
	var req dto.SubmitFeedbackRequest
	if !bindJSON(c, &req, "invalid feedback payload") {
		return
	}

	feedback, err := h.feedback.SubmitFeedback(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, feedback)
}

// Certificate godoc
// @Summary Download completion certificate
// @Tags Trainings
// @Produce application/pdf
// @Param id path string true "Assignment ID"
// @Success 200 {file} file
// @Failure 422 {object} response.Envelope
// @Router /trainings/{id}/certificate [get]
func (h *TrainingHandler) Certificate(c *gin.Context) {
	cert, err := h.trainings.Certificate(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, cert.ContentType, cert.Filename, cert.Content)
}

// ShareCertificate godoc
// @Summary Create a shareable certificate link
// @Tags Trainings
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /trainings/{id}/certificate/share [post]
func (h *TrainingHandler) ShareCertificate(c *gin.Context) {
	link, err := h.trainings.ShareCertificate(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	prefix := strings.TrimSuffix(c.FullPath(), "/trainings/:id/certificate/share")
	link.Path = path.Join("/", prefix, "certificates/shared", link.Token)
	response.Created(c, link)
}

// SharedCertificate godoc
// @Summary Download a certificate through a share link
// @Tags Trainings
// @Produce application/pdf
// @Param token path string true "Share token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /certificates/shared/{token} [get]
func (h *TrainingHandler) SharedCertificate(c *gin.Context) {
	cert, err := h.trainings.SharedCertificate(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, cert.ContentType, cert.Filename, cert.Content)
}
