package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rmbriones/shs-admission-api/internal/dto"
	"github.com/rmbriones/shs-admission-api/internal/models"
	"github.com/rmbriones/shs-admission-api/internal/repository"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

type admissionStore interface {
	Register(ctx context.Context, params repository.RegisterParams) (*models.Applicant, error)
	Approve(ctx context.Context, params repository.ApprovalParams) (*repository.ApprovalOutcome, error)
}

type applicantReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.ApplicantDetail, error)
}

// AdmissionService is the enrollment coordinator: the façade external
// callers invoke for decisions that touch more than one component. It is
// the only writer of cross-entity invariants; capacity and ledger never
// mutate each other directly.
type AdmissionService struct {
	repo           admissionStore
	applicants     applicantReader
	cache          *CacheService
	metrics        *MetricsService
	audit          *AuditService
	validator      *validator.Validate
	logger         *zap.Logger
	defaultFee     decimal.Decimal
	maxBusyRetries int
}

// NewAdmissionService constructs AdmissionService.
func NewAdmissionService(repo admissionStore, applicants applicantReader, cache *CacheService, metrics *MetricsService, audit *AuditService, validate *validator.Validate, logger *zap.Logger, defaultFee decimal.Decimal, maxBusyRetries int) *AdmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBusyRetries < 0 {
		maxBusyRetries = 0
	}
	return &AdmissionService{
		repo:           repo,
		applicants:     applicants,
		cache:          cache,
		metrics:        metrics,
		audit:          audit,
		validator:      validate,
		logger:         logger,
		defaultFee:     defaultFee,
		maxBusyRetries: maxBusyRetries,
	}
}

// Register admits a new applicant into the workflow: applicant record,
// requirement checklist and ledger account commit together or not at all.
func (s *AdmissionService) Register(ctx context.Context, req dto.RegisterApplicantRequest) (*models.ApplicantDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	applicant, err := s.repo.Register(ctx, repository.RegisterParams{
		StudentNo: req.StudentNo,
		FullName:  req.FullName,
		Grade:     req.Grade,
		TotalFee:  s.defaultFee,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record("", models.AuditActionApplicantRegister, "applicant", &applicant.ID, map[string]interface{}{
		"student_no": applicant.StudentNo,
		"grade":      req.Grade,
	})
	detail, err := s.applicants.FindDetailByID(ctx, applicant.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant detail")
	}
	return detail, nil
}

// RequestApproval commits the admission decision: requirement completeness,
// slot reservation and the status flip happen in one transaction. Transient
// contention is retried here under the same idempotency token, which makes
// the retry safe against double decrements.
func (s *AdmissionService) RequestApproval(ctx context.Context, applicantID string, req dto.ApprovalRequest) (*dto.ApprovalResponse, error) {
	section := models.SectionKey{Strand: req.Strand, Grade: req.Grade, Section: req.Section}
	if section.Empty() {
		return nil, appErrors.Clone(appErrors.ErrMissingSection, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}

	params := repository.ApprovalParams{
		ApplicantID:      applicantID,
		IdempotencyToken: req.IdempotencyToken,
		Section:          section,
	}

	var outcome *repository.ApprovalOutcome
	var err error
	for attempt := 0; ; attempt++ {
		outcome, err = s.repo.Approve(ctx, params)
		if err == nil || !appErrors.IsRetryable(err) || attempt >= s.maxBusyRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrBusy.Code, appErrors.ErrBusy.Status, appErrors.ErrBusy.Message)
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrCapacityExhausted) {
			s.metrics.RecordSlotDenial()
			s.metrics.RecordApproval("denied")
		}
		return nil, err
	}

	if outcome.SlotConsumed {
		s.metrics.RecordApproval("granted")
		_ = s.cache.Invalidate(ctx, capacityCacheKey(section))
	} else {
		s.metrics.RecordApproval("replayed")
	}
	s.audit.Record("", models.AuditActionApprovalCommit, "applicant", &applicantID, map[string]interface{}{
		"section":       outcome.Grant.SectionKey().String(),
		"slot_consumed": outcome.SlotConsumed,
		"token":         req.IdempotencyToken,
	})

	return &dto.ApprovalResponse{
		ApplicantID:  applicantID,
		Status:       models.ApplicantStatusApprove,
		Section:      outcome.Grant.SectionKey(),
		SlotConsumed: outcome.SlotConsumed,
		Replayed:     outcome.Replayed,
	}, nil
}
