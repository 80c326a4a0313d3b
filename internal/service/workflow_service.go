package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rmbriones/shs-admission-api/internal/dto"
	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

type applicantStore interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	FindDetailByID(ctx context.Context, id string) (*models.ApplicantDetail, error)
	List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error)
	SubmitRequirement(ctx context.Context, applicantID string, key models.RequirementKey, status models.RequirementStatus) error
	UpdateStatus(ctx context.Context, id string, to models.ApplicantStatus) error
}

// WorkflowService drives the applicant state machine and the requirement
// checklist. Approval itself belongs to the AdmissionService because it
// spans capacity.
type WorkflowService struct {
	repo      applicantStore
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkflowService constructs WorkflowService.
func NewWorkflowService(repo applicantStore, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Get returns an applicant with its requirement checklist.
func (s *WorkflowService) Get(ctx context.Context, id string) (*models.ApplicantDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	return detail, nil
}

// List returns applicants with pagination metadata.
func (s *WorkflowService) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, *models.Pagination, error) {
	applicants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applicants")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return applicants, pagination, nil
}

// SubmitRequirement updates one checklist item while the applicant is
// pending. Capacity and ledger are untouched.
func (s *WorkflowService) SubmitRequirement(ctx context.Context, applicantID string, key models.RequirementKey, req dto.SubmitRequirementRequest) (*models.ApplicantDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	if !models.ValidRequirementKey(key) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown requirement key")
	}
	if err := s.repo.SubmitRequirement(ctx, applicantID, key, req.Status); err != nil {
		return nil, err
	}
	s.audit.Record("", models.AuditActionRequirementSubmit, "applicant", &applicantID, map[string]interface{}{
		"key":    key,
		"status": req.Status,
	})
	return s.Get(ctx, applicantID)
}

// SetStatus applies DROP, TRANSFER or GRADUATE. A consumed slot is never
// returned here; releasing one is a separate administrative operation.
func (s *WorkflowService) SetStatus(ctx context.Context, applicantID string, req dto.SetStatusRequest) (*models.ApplicantDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if err := s.repo.UpdateStatus(ctx, applicantID, req.Status); err != nil {
		return nil, err
	}
	s.audit.Record("", models.AuditActionStatusChange, "applicant", &applicantID, map[string]interface{}{
		"status": req.Status,
	})
	return s.Get(ctx, applicantID)
}
