package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

var accountCols = []string{"id", "applicant_id", "grade", "total_fee", "starting_balance", "amount_paid", "cash_balance", "cash_total_fee", "mode", "remark", "frozen", "created_at", "updated_at"}

func cashAccountRow(startingBalance, amountPaid string, frozen bool) *sqlmock.Rows {
	return sqlmock.NewRows(accountCols).
		AddRow("acct-1", "a1", "11", "5000.00", startingBalance, amountPaid, startingBalance, "5000.00",
			models.PaymentModeCash, models.RemarkPartial, frozen, time.Now(), time.Now())
}

func TestLedgerRepositoryGetAccountByApplicant(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_accounts WHERE applicant_id = $1")).
		WithArgs("a1").
		WillReturnRows(cashAccountRow("5000.00", "0", false))

	account, err := repo.GetAccountByApplicant(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentModeCash, account.Mode)
	assert.True(t, account.StartingBalance.Equal(decimal.RequireFromString("5000.00")))
}

func TestLedgerRepositoryRecordPayment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_accounts WHERE applicant_id = $1 FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(cashAccountRow("5000.00", "0", false))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs(sqlmock.AnyArg(), "acct-1", sqlmock.AnyArg(), sqlmock.AnyArg(), models.PaymentModeCash, models.RemarkPartial, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"receipt_no"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ledger_accounts")).
		WithArgs("a1", sqlmock.AnyArg(), sqlmock.AnyArg(), models.RemarkPartial, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, account, err := repo.RecordPayment(context.Background(), "a1", decimal.RequireFromString("1500.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.ReceiptNo)
	assert.True(t, entry.ResultingBalance.Equal(decimal.RequireFromString("3500.00")))
	assert.True(t, account.StartingBalance.Equal(decimal.RequireFromString("3500.00")))
	assert.Equal(t, models.RemarkPartial, account.Remark)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryRecordFinalPaymentFullyPaid(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(cashAccountRow("1500.00", "0", false))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs(sqlmock.AnyArg(), "acct-1", sqlmock.AnyArg(), sqlmock.AnyArg(), models.PaymentModeCash, models.RemarkFullyPaid, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"receipt_no"}).AddRow(8))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ledger_accounts")).
		WithArgs("a1", sqlmock.AnyArg(), sqlmock.AnyArg(), models.RemarkFullyPaid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, account, err := repo.RecordPayment(context.Background(), "a1", decimal.RequireFromString("1500.00"))
	require.NoError(t, err)
	assert.True(t, entry.ResultingBalance.IsZero())
	assert.Equal(t, models.RemarkFullyPaid, account.Remark)
}

func TestLedgerRepositoryRecordPaymentExceedsBalance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(cashAccountRow("1000.00", "4000.00", false))
	mock.ExpectRollback()

	_, _, err := repo.RecordPayment(context.Background(), "a1", decimal.RequireFromString("1000.01"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrExceedsBalance))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryRecordPaymentFrozenAccount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(cashAccountRow("5000.00", "0", true))
	mock.ExpectRollback()

	_, _, err := repo.RecordPayment(context.Background(), "a1", decimal.RequireFromString("100.00"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrLedgerFrozen))
}

func TestLedgerRepositoryRecordPaymentChainMismatchFreezes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, 0)

	entryRow := sqlmock.NewRows([]string{"id", "account_id", "receipt_no", "amount_paid", "resulting_balance", "mode", "remark", "paid_at"}).
		AddRow("e1", "acct-1", 3, "1000.00", "2750.00", models.PaymentModeCash, models.RemarkPartial, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(cashAccountRow("3500.00", "1500.00", false))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY receipt_no DESC LIMIT 1")).
		WithArgs("acct-1").
		WillReturnRows(entryRow)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ledger_accounts SET frozen = TRUE")).
		WithArgs("a1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, _, err := repo.RecordPayment(context.Background(), "a1", decimal.RequireFromString("100.00"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrLedgerFrozen))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositorySwitchModeToVoucher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(cashAccountRow("3500.00", "1500.00", false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ledger_accounts")).
		WithArgs("a1", models.PaymentModeVoucher, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), models.RemarkFullyPaid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	account, err := repo.SwitchMode(context.Background(), "a1", models.PaymentModeVoucher)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentModeVoucher, account.Mode)
	assert.True(t, account.TotalFee.IsZero())
	assert.True(t, account.StartingBalance.IsZero())
	assert.True(t, account.CashBalance.Equal(decimal.RequireFromString("3500.00")))
	assert.True(t, account.CashTotalFee.Equal(decimal.RequireFromString("5000.00")))
	assert.Equal(t, models.RemarkFullyPaid, account.Remark)
}

func TestLedgerRepositorySwitchModeBackToCashRestoresBalance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, 0)

	voucherRow := sqlmock.NewRows(accountCols).
		AddRow("acct-1", "a1", "11", "0", "0", "0", "3500.00", "5000.00",
			models.PaymentModeVoucher, models.RemarkFullyPaid, false, time.Now(), time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(voucherRow)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ledger_accounts")).
		WithArgs("a1", models.PaymentModeCash, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), models.RemarkPartial, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	account, err := repo.SwitchMode(context.Background(), "a1", models.PaymentModeCash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentModeCash, account.Mode)
	assert.True(t, account.TotalFee.Equal(decimal.RequireFromString("5000.00")))
	assert.True(t, account.StartingBalance.Equal(decimal.RequireFromString("3500.00")))
	assert.Equal(t, models.RemarkPartial, account.Remark)
}

func TestLedgerRepositorySwitchModeSameModeNoOp(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(cashAccountRow("5000.00", "0", false))
	mock.ExpectRollback()

	account, err := repo.SwitchMode(context.Background(), "a1", models.PaymentModeCash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentModeCash, account.Mode)
	require.NoError(t, mock.ExpectationsWereMet())
}
