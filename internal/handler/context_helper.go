package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-training-api/internal/middleware"
	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
	"github.com/noah-isme/teacher-training-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentUser(c)
}

// bindJSON decodes the request body, writing a validation error on failure.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Validation(err, message))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a number")
	}
	return v, nil
}

// queryList splits comma separated and repeated query values.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func assignmentStatuses(c *gin.Context) ([]models.AssignmentStatus, error) {
	values := queryList(c, "status")
	statuses := make([]models.AssignmentStatus, 0, len(values))
	for _, v := range values {
		status := models.AssignmentStatus(v)
		switch status {
		case models.AssignmentStatusNotStarted, models.AssignmentStatusInProgress, models.AssignmentStatusCompleted, models.AssignmentStatusSkipped:
			statuses = append(statuses, status)
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown assignment status: "+v)
		}
	}
	return statuses, nil
}
