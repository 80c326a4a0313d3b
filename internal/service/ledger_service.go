package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rmbriones/shs-admission-api/internal/dto"
	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
	"github.com/rmbriones/shs-admission-api/pkg/money"
)

type ledgerStore interface {
	GetAccountByApplicant(ctx context.Context, applicantID string) (*models.LedgerAccount, error)
	ListEntries(ctx context.Context, accountID string) ([]models.LedgerEntry, error)
	SwitchMode(ctx context.Context, applicantID string, mode models.PaymentMode) (*models.LedgerAccount, error)
	RecordPayment(ctx context.Context, applicantID string, amount decimal.Decimal) (*models.LedgerEntry, *models.LedgerAccount, error)
}

// LedgerService owns per-applicant payment truth: mode switches, payment
// recording and snapshots.
type LedgerService struct {
	repo      ledgerStore
	audit     *AuditService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLedgerService constructs LedgerService.
func NewLedgerService(repo ledgerStore, audit *AuditService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{repo: repo, audit: audit, metrics: metrics, validator: validate, logger: logger}
}

// Snapshot returns the account with its entries. The latest balance is the
// account's reference balance, which equals the last entry's resulting
// balance, or the total fee when nothing has been paid yet.
func (s *LedgerService) Snapshot(ctx context.Context, applicantID string) (*models.LedgerSnapshot, error) {
	account, err := s.repo.GetAccountByApplicant(ctx, applicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger account")
	}
	entries, err := s.repo.ListEntries(ctx, account.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger entries")
	}
	return &models.LedgerSnapshot{
		Account:       *account,
		LatestBalance: account.StartingBalance,
		Entries:       entries,
	}, nil
}

// SwitchMode changes the payment mode per the subsidy rules and returns the
// refreshed snapshot.
func (s *LedgerService) SwitchMode(ctx context.Context, applicantID string, req dto.SwitchModeRequest) (*models.LedgerSnapshot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mode payload")
	}
	if _, err := s.repo.SwitchMode(ctx, applicantID, req.Mode); err != nil {
		return nil, err
	}
	s.audit.Record("", models.AuditActionLedgerModeSwitch, "ledger", &applicantID, map[string]interface{}{
		"mode": req.Mode,
	})
	return s.Snapshot(ctx, applicantID)
}

// RecordPayment posts one payment. Amounts exceeding the starting balance
// are rejected, never clamped.
func (s *LedgerService) RecordPayment(ctx context.Context, applicantID string, req dto.RecordPaymentRequest) (*models.LedgerSnapshot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrNegativeAmount, "")
	}
	entry, account, err := s.repo.RecordPayment(ctx, applicantID, amount)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPayment(string(account.Mode))
	s.audit.Record("", models.AuditActionLedgerPayment, "ledger", &applicantID, map[string]interface{}{
		"receipt_no":        entry.ReceiptNo,
		"amount":            entry.AmountPaid.StringFixed(2),
		"resulting_balance": entry.ResultingBalance.StringFixed(2),
	})
	return s.Snapshot(ctx, applicantID)
}
