package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
	"github.com/noah-isme/teacher-training-api/pkg/export"
)

type assignmentReader interface {
	GetDetail(ctx context.Context, id string) (*models.AssignmentDetail, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type certificateRenderer interface {
	RenderCertificate(cert export.Certificate) ([]byte, error)
}

type shareSigner interface {
	Sign(resourceID string) (string, time.Time, error)
	Verify(token string) (string, error)
}

type tableRenderer interface {
	RenderTable(table export.Table) ([]byte, error)
}

// File is a rendered download such as a certificate or an export.
type File struct {
	Filename    string
	ContentType string
	Content     []byte
}

// TrainingService serves assignment reads and completion certificates.
type TrainingService struct {
	assignments assignmentReader
	users       userLookup
	renderer    certificateRenderer
	tables      tableRenderer
	links       shareSigner
	logger      *zap.Logger
}

// NewTrainingService constructs the service. A nil links signer disables
// certificate sharing and a nil tables renderer disables exports.
func NewTrainingService(assignments assignmentReader, users userLookup, renderer certificateRenderer, tables tableRenderer, links shareSigner, logger *zap.Logger) *TrainingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{assignments: assignments, users: users, renderer: renderer, tables: tables, links: links, logger: logger}
}

// ListMine returns the actor's assignments, newest first.
func (s *TrainingService) ListMine(ctx context.Context, actor *models.JWTClaims, statuses []models.AssignmentStatus) ([]models.AssignmentDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return s.list(ctx, models.AssignmentFilter{TeacherID: actor.UserID, Status: statuses})
}

// List returns assignments across teachers for admins.
func (s *TrainingService) List(ctx context.Context, actor *models.JWTClaims, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

func (s *TrainingService) list(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	items, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list training assignments")
	}
	if items == nil {
		items = []models.AssignmentDetail{}
	}
	return items, nil
}

var exportColumns = []string{
	"id", "teacher_id", "module_id", "module_title", "competency_area", "status",
	"progress_percentage", "video_completed", "assigned_date", "due_date", "completed_at", "has_feedback",
}

// Export renders the filtered assignment listing as CSV for admins.
func (s *TrainingService) Export(ctx context.Context, actor *models.JWTClaims, filter models.AssignmentFilter) (*File, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if s.tables == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment export is disabled")
	}
	items, err := s.list(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		completedAt := ""
		if item.CompletedAt != nil {
			completedAt = item.CompletedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			item.ID,
			item.TeacherID,
			item.ModuleID,
			item.ModuleTitle,
			string(item.ModuleCompetency),
			string(item.Status),
			strconv.Itoa(item.ProgressPercentage),
			strconv.FormatBool(item.VideoCompleted),
			item.AssignedDate.UTC().Format("2006-01-02"),
			item.DueDate.UTC().Format("2006-01-02"),
			completedAt,
			strconv.FormatBool(item.HasFeedback),
		})
	}

	content, err := s.tables.RenderTable(export.Table{Columns: exportColumns, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render assignment export")
	}
	s.logger.Info("assignments exported", zap.Int("rows", len(rows)), zap.String("actor_id", actor.UserID))
	return &File{
		Filename:    fmt.Sprintf("training-assignments-%s.csv", time.Now().UTC().Format("20060102")),
		ContentType: "text/csv",
		Content:     content,
	}, nil
}

// Get returns an assignment with its module details.
func (s *TrainingService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.AssignmentDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.assignments.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training assignment")
	}
	if !actor.CanAccess(detail.TeacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}
	return detail, nil
}

// Certificate renders a PDF certificate for a completed assignment.
func (s *TrainingService) Certificate(ctx context.Context, actor *models.JWTClaims, id string) (*File, error) {
	detail, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	cert, err := s.render(ctx, detail)
	if err != nil {
		return nil, err
	}
	s.logger.Info("certificate rendered", zap.String("assignment_id", detail.ID), zap.String("actor_id", actor.UserID))
	return cert, nil
}

// ShareCertificate signs a link that lets anyone holding it download the
// certificate until it expires.
func (s *TrainingService) ShareCertificate(ctx context.Context, actor *models.JWTClaims, id string) (*dto.CertificateLink, error) {
	if s.links == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate sharing is disabled")
	}
	detail, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !certifiable(detail) {
		return nil, errNotCertifiable
	}
	token, expiresAt, err := s.links.Sign(detail.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign certificate link")
	}
	return &dto.CertificateLink{Token: token, ExpiresAt: expiresAt}, nil
}

// SharedCertificate renders the certificate a share token points at.
func (s *TrainingService) SharedCertificate(ctx context.Context, token string) (*File, error) {
	if s.links == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate sharing is disabled")
	}
	id, err := s.links.Verify(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "certificate link is invalid or expired")
	}
	detail, err := s.assignments.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training assignment")
	}
	return s.render(ctx, detail)
}

var errNotCertifiable = appErrors.Clone(appErrors.ErrInvalidState, "certificate is available once the training is completed")

func certifiable(detail *models.AssignmentDetail) bool {
	return detail.Status == models.AssignmentStatusCompleted && detail.CompletedAt != nil
}

func (s *TrainingService) render(ctx context.Context, detail *models.AssignmentDetail) (*File, error) {
	if !certifiable(detail) {
		return nil, errNotCertifiable
	}

	teacher, err := s.users.FindByID(ctx, detail.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	content, err := s.renderer.RenderCertificate(export.Certificate{
		TeacherName:  teacher.FullName,
		Cluster:      teacher.ClusterName(),
		ModuleTitle:  detail.ModuleTitle,
		Competency:   string(detail.ModuleCompetency),
		Difficulty:   string(detail.ModuleDifficulty),
		AssignedDate: detail.AssignedDate,
		CompletedAt:  *detail.CompletedAt,
		Reference:    detail.ID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	return &File{
		Filename:    fmt.Sprintf("certificate-%s.pdf", detail.ID),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}
