package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmbriones/shs-admission-api/internal/dto"
	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
	"github.com/rmbriones/shs-admission-api/pkg/response"
)

type ledgerOperations interface {
	Snapshot(ctx context.Context, applicantID string) (*models.LedgerSnapshot, error)
	SwitchMode(ctx context.Context, applicantID string, req dto.SwitchModeRequest) (*models.LedgerSnapshot, error)
	RecordPayment(ctx context.Context, applicantID string, req dto.RecordPaymentRequest) (*models.LedgerSnapshot, error)
}

// LedgerHandler exposes per-applicant payment ledger endpoints.
type LedgerHandler struct {
	ledgers ledgerOperations
}

// NewLedgerHandler constructs LedgerHandler.
func NewLedgerHandler(ledgers ledgerOperations) *LedgerHandler {
	return &LedgerHandler{ledgers: ledgers}
}

// Get godoc
// @Summary Get the ledger snapshot for an applicant
// @Tags Ledger
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/ledger [get]
func (h *LedgerHandler) Get(c *gin.Context) {
	snapshot, err := h.ledgers.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// SwitchMode godoc
// @Summary Switch the payment mode between CASH and VOUCHER
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.SwitchModeRequest true "Mode payload"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/ledger/mode [put]
func (h *LedgerHandler) SwitchMode(c *gin.Context) {
	var req dto.SwitchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	snapshot, err := h.ledgers.SwitchMode(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// RecordPayment godoc
// @Summary Record one payment against the ledger
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /applicants/{id}/ledger/payments [post]
func (h *LedgerHandler) RecordPayment(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	snapshot, err := h.ledgers.RecordPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, snapshot)
}
