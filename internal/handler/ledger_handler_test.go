package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmbriones/shs-admission-api/internal/dto"
	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

type ledgerOperationsMock struct {
	snapshot    *models.LedgerSnapshot
	err         error
	lastMode    models.PaymentMode
	lastAmount  string
	modeCalled  bool
	paymentDone bool
}

func (m *ledgerOperationsMock) Snapshot(ctx context.Context, applicantID string) (*models.LedgerSnapshot, error) {
	return m.snapshot, m.err
}

func (m *ledgerOperationsMock) SwitchMode(ctx context.Context, applicantID string, req dto.SwitchModeRequest) (*models.LedgerSnapshot, error) {
	m.modeCalled = true
	m.lastMode = req.Mode
	return m.snapshot, m.err
}

func (m *ledgerOperationsMock) RecordPayment(ctx context.Context, applicantID string, req dto.RecordPaymentRequest) (*models.LedgerSnapshot, error) {
	m.paymentDone = true
	m.lastAmount = req.Amount
	return m.snapshot, m.err
}

func cashSnapshot(balance string) *models.LedgerSnapshot {
	amount := decimal.RequireFromString(balance)
	return &models.LedgerSnapshot{
		Account: models.LedgerAccount{
			ID:              "acct-1",
			ApplicantID:     "a1",
			TotalFee:        decimal.RequireFromString("5000.00"),
			StartingBalance: amount,
			Mode:            models.PaymentModeCash,
			Remark:          models.RemarkPartial,
		},
		LatestBalance: amount,
	}
}

func TestLedgerHandlerGet(t *testing.T) {
	mockSvc := &ledgerOperationsMock{snapshot: cashSnapshot("3500.00")}
	handler := NewLedgerHandler(mockSvc)

	c, w := newTestContext(t, http.MethodGet, "/applicants/a1/ledger", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"latest_balance":"3500"`)
}

func TestLedgerHandlerSwitchMode(t *testing.T) {
	mockSvc := &ledgerOperationsMock{snapshot: cashSnapshot("0.00")}
	handler := NewLedgerHandler(mockSvc)

	c, w := newTestContext(t, http.MethodPut, "/applicants/a1/ledger/mode", dto.SwitchModeRequest{Mode: models.PaymentModeVoucher})
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.SwitchMode(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.modeCalled)
	assert.Equal(t, models.PaymentModeVoucher, mockSvc.lastMode)
}

func TestLedgerHandlerRecordPayment(t *testing.T) {
	mockSvc := &ledgerOperationsMock{snapshot: cashSnapshot("3500.00")}
	handler := NewLedgerHandler(mockSvc)

	c, w := newTestContext(t, http.MethodPost, "/applicants/a1/ledger/payments", dto.RecordPaymentRequest{Amount: "1500.00"})
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.RecordPayment(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.paymentDone)
	assert.Equal(t, "1500.00", mockSvc.lastAmount)
}

func TestLedgerHandlerRecordPaymentExceedsBalance(t *testing.T) {
	mockSvc := &ledgerOperationsMock{err: appErrors.ErrExceedsBalance}
	handler := NewLedgerHandler(mockSvc)

	c, w := newTestContext(t, http.MethodPost, "/applicants/a1/ledger/payments", dto.RecordPaymentRequest{Amount: "9999.00"})
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.RecordPayment(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrExceedsBalance.Code, envelope.Error.Code)
}

func TestLedgerHandlerGetFrozen(t *testing.T) {
	mockSvc := &ledgerOperationsMock{err: appErrors.ErrLedgerFrozen}
	handler := NewLedgerHandler(mockSvc)

	c, w := newTestContext(t, http.MethodGet, "/applicants/a1/ledger", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.Get(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
