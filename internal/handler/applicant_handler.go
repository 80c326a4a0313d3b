package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rmbriones/shs-admission-api/internal/dto"
	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
	"github.com/rmbriones/shs-admission-api/pkg/response"
)

type admissionCoordinator interface {
	Register(ctx context.Context, req dto.RegisterApplicantRequest) (*models.ApplicantDetail, error)
	RequestApproval(ctx context.Context, applicantID string, req dto.ApprovalRequest) (*dto.ApprovalResponse, error)
}

type applicantWorkflow interface {
	Get(ctx context.Context, id string) (*models.ApplicantDetail, error)
	List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, *models.Pagination, error)
	SubmitRequirement(ctx context.Context, applicantID string, key models.RequirementKey, req dto.SubmitRequirementRequest) (*models.ApplicantDetail, error)
	SetStatus(ctx context.Context, applicantID string, req dto.SetStatusRequest) (*models.ApplicantDetail, error)
}

// ApplicantHandler exposes the admission workflow endpoints. Registration and
// approval go through the coordinator; everything else is plain workflow.
type ApplicantHandler struct {
	admissions admissionCoordinator
	workflow   applicantWorkflow
}

// NewApplicantHandler constructs ApplicantHandler.
func NewApplicantHandler(admissions admissionCoordinator, workflow applicantWorkflow) *ApplicantHandler {
	return &ApplicantHandler{admissions: admissions, workflow: workflow}
}

// List godoc
// @Summary List applicants
// @Tags Applicants
// @Produce json
// @Param status query string false "Filter by status"
// @Param strand query string false "Filter by target strand"
// @Param grade query string false "Filter by target grade"
// @Param section query string false "Filter by target section"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applicants [get]
func (h *ApplicantHandler) List(c *gin.Context) {
	var filter models.ApplicantFilter
	filter.Status = models.ApplicantStatus(strings.ToUpper(c.Query("status")))
	filter.Strand = c.Query("strand")
	filter.Grade = c.Query("grade")
	filter.Section = c.Query("section")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	applicants, pagination, err := h.workflow.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicants, pagination)
}

// Register godoc
// @Summary Register a new applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param payload body dto.RegisterApplicantRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /applicants [post]
func (h *ApplicantHandler) Register(c *gin.Context) {
	var req dto.RegisterApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.admissions.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Get an applicant with its requirement checklist
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id} [get]
func (h *ApplicantHandler) Get(c *gin.Context) {
	detail, err := h.workflow.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// SubmitRequirement godoc
// @Summary Update one requirement checklist item
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param key path string true "Requirement key"
// @Param payload body dto.SubmitRequirementRequest true "Requirement payload"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/requirements/{key} [put]
func (h *ApplicantHandler) SubmitRequirement(c *gin.Context) {
	var req dto.SubmitRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	key := models.RequirementKey(strings.ToUpper(c.Param("key")))
	detail, err := h.workflow.SubmitRequirement(c.Request.Context(), c.Param("id"), key, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve godoc
// @Summary Approve an applicant into a section
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.ApprovalRequest true "Approval payload"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/approval [post]
func (h *ApplicantHandler) Approve(c *gin.Context) {
	var req dto.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.admissions.RequestApproval(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SetStatus godoc
// @Summary Move an applicant to DROP, TRANSFER or GRADUATE
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.SetStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/status [put]
func (h *ApplicantHandler) SetStatus(c *gin.Context) {
	var req dto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.workflow.SetStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
