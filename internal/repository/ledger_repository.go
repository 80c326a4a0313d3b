package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

const accountColumns = `id, applicant_id, grade, total_fee, starting_balance, amount_paid, cash_balance, cash_total_fee, mode, remark, frozen, created_at, updated_at`

// LedgerRepository handles persistence of payment accounts and their
// append-only entry chains. The account row lock serialises writes per
// applicant, so entries always apply in the order received.
type LedgerRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB, lockTimeout time.Duration) *LedgerRepository {
	return &LedgerRepository{db: db, lockTimeout: lockTimeout}
}

// GetAccountByApplicant returns the payment account for an applicant.
func (r *LedgerRepository) GetAccountByApplicant(ctx context.Context, applicantID string) (*models.LedgerAccount, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_accounts WHERE applicant_id = $1`, accountColumns)
	var account models.LedgerAccount
	if err := r.db.GetContext(ctx, &account, query, applicantID); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListEntries returns the committed payment entries ordered by receipt.
func (r *LedgerRepository) ListEntries(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, account_id, receipt_no, amount_paid, resulting_balance, mode, remark, paid_at
        FROM ledger_entries WHERE account_id = $1 ORDER BY receipt_no`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, accountID); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// SwitchMode changes the payment mode and recomputes the balance reference
// point. VOUCHER zeroes everything out; CASH restores the last non-voucher
// balance and fee. Switching to the current mode is a no-op.
func (r *LedgerRepository) SwitchMode(ctx context.Context, applicantID string, mode models.PaymentMode) (account *models.LedgerAccount, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mode transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = setLockTimeout(ctx, tx, r.lockTimeout); err != nil {
		return nil, mapTxError(err, "switch payment mode")
	}

	current, err := lockAccount(ctx, tx, applicantID)
	if err != nil {
		return nil, err
	}
	if current.Frozen {
		err = appErrors.Clone(appErrors.ErrLedgerFrozen, "")
		return nil, err
	}
	if current.Mode == mode {
		_ = tx.Rollback()
		return current, nil
	}

	now := time.Now().UTC()
	updated := *current
	updated.Mode = mode
	updated.AmountPaid = decimal.Zero
	updated.UpdatedAt = now

	switch mode {
	case models.PaymentModeVoucher:
		// Preserve the cash position so a later switch back can restore it.
		updated.CashBalance = current.StartingBalance
		updated.CashTotalFee = current.TotalFee
		updated.TotalFee = decimal.Zero
		updated.StartingBalance = decimal.Zero
		updated.Remark = models.RemarkFullyPaid
	case models.PaymentModeCash:
		updated.TotalFee = current.CashTotalFee
		updated.StartingBalance = current.CashBalance
		updated.Remark = models.RemarkFor(updated.StartingBalance)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "unsupported payment mode")
		return nil, err
	}

	const updateQuery = `UPDATE ledger_accounts
        SET mode = $2, total_fee = $3, starting_balance = $4, amount_paid = $5,
            cash_balance = $6, cash_total_fee = $7, remark = $8, updated_at = $9
        WHERE applicant_id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, applicantID, updated.Mode, updated.TotalFee,
		updated.StartingBalance, updated.AmountPaid, updated.CashBalance, updated.CashTotalFee,
		updated.Remark, now); err != nil {
		return nil, mapTxError(err, "update payment mode")
	}

	if err = tx.Commit(); err != nil {
		return nil, mapTxError(err, "commit mode switch")
	}
	return &updated, nil
}

// RecordPayment appends one entry and advances the starting balance. The
// receipt number comes from a database sequence consumed inside the insert,
// so a number exists only once the payment is durable. Aborted transactions
// may leave gaps in the sequence; reconciliation tolerates those.
func (r *LedgerRepository) RecordPayment(ctx context.Context, applicantID string, amount decimal.Decimal) (entry *models.LedgerEntry, account *models.LedgerAccount, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin payment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = setLockTimeout(ctx, tx, r.lockTimeout); err != nil {
		return nil, nil, mapTxError(err, "record payment")
	}

	current, err := lockAccount(ctx, tx, applicantID)
	if err != nil {
		return nil, nil, err
	}
	if current.Frozen {
		err = appErrors.Clone(appErrors.ErrLedgerFrozen, "")
		return nil, nil, err
	}
	if !amount.IsPositive() {
		err = appErrors.Clone(appErrors.ErrNegativeAmount, "")
		return nil, nil, err
	}
	if amount.GreaterThan(current.StartingBalance) {
		err = appErrors.Clone(appErrors.ErrExceedsBalance, "")
		return nil, nil, err
	}

	// Chain check: when payments have already been applied in this mode
	// epoch, the latest entry must agree with the account's reference
	// balance. A mismatch means atomicity was violated upstream.
	if current.AmountPaid.IsPositive() {
		latest, chainErr := latestEntry(ctx, tx, current.ID)
		if chainErr != nil {
			err = chainErr
			return nil, nil, err
		}
		if latest != nil && !latest.ResultingBalance.Equal(current.StartingBalance) {
			if freezeErr := freezeAccount(ctx, tx, applicantID); freezeErr != nil {
				return nil, nil, freezeErr
			}
			err = appErrors.Clone(appErrors.ErrLedgerFrozen, "ledger chain mismatch detected")
			return nil, nil, err
		}
	}

	now := time.Now().UTC()
	resulting := current.StartingBalance.Sub(amount)
	remark := models.RemarkFor(resulting)

	newEntry := models.LedgerEntry{
		ID:               uuid.NewString(),
		AccountID:        current.ID,
		AmountPaid:       amount,
		ResultingBalance: resulting,
		Mode:             current.Mode,
		Remark:           remark,
		PaidAt:           now,
	}
	const insertQuery = `INSERT INTO ledger_entries (id, account_id, receipt_no, amount_paid, resulting_balance, mode, remark, paid_at)
        VALUES ($1, $2, nextval('ledger_receipt_seq'), $3, $4, $5, $6, $7)
        RETURNING receipt_no`
	if err = tx.GetContext(ctx, &newEntry.ReceiptNo, insertQuery, newEntry.ID, newEntry.AccountID,
		newEntry.AmountPaid, newEntry.ResultingBalance, newEntry.Mode, newEntry.Remark, now); err != nil {
		return nil, nil, mapTxError(err, "insert ledger entry")
	}

	updated := *current
	updated.StartingBalance = resulting
	updated.AmountPaid = current.AmountPaid.Add(amount)
	updated.Remark = remark
	updated.UpdatedAt = now

	const updateQuery = `UPDATE ledger_accounts
        SET starting_balance = $2, amount_paid = $3, remark = $4, updated_at = $5
        WHERE applicant_id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, applicantID, updated.StartingBalance,
		updated.AmountPaid, updated.Remark, now); err != nil {
		return nil, nil, mapTxError(err, "update account balance")
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, mapTxError(err, "commit payment")
	}
	return &newEntry, &updated, nil
}

func lockAccount(ctx context.Context, tx *sqlx.Tx, applicantID string) (*models.LedgerAccount, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_accounts WHERE applicant_id = $1 FOR UPDATE`, accountColumns)
	var account models.LedgerAccount
	if err := tx.GetContext(ctx, &account, query, applicantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger account not found")
		}
		return nil, mapTxError(err, "lock ledger account")
	}
	return &account, nil
}

func latestEntry(ctx context.Context, tx *sqlx.Tx, accountID string) (*models.LedgerEntry, error) {
	const query = `SELECT id, account_id, receipt_no, amount_paid, resulting_balance, mode, remark, paid_at
        FROM ledger_entries WHERE account_id = $1 ORDER BY receipt_no DESC LIMIT 1`
	var entry models.LedgerEntry
	if err := tx.GetContext(ctx, &entry, query, accountID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, mapTxError(err, "load latest entry")
	}
	return &entry, nil
}

// freezeAccount halts further writes to the account until reconciliation.
// It commits on its own so the freeze survives the caller's rollback.
func freezeAccount(ctx context.Context, tx *sqlx.Tx, applicantID string) error {
	const query = `UPDATE ledger_accounts SET frozen = TRUE, updated_at = $2 WHERE applicant_id = $1`
	if _, err := tx.ExecContext(ctx, query, applicantID, time.Now().UTC()); err != nil {
		return fmt.Errorf("freeze ledger account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return mapTxError(err, "commit ledger freeze")
	}
	return nil
}
