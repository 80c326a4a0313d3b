package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMode selects how an applicant settles fees.
type PaymentMode string

// Supported payment modes. VOUCHER recipients are fully subsidised.
const (
	PaymentModeCash    PaymentMode = "CASH"
	PaymentModeVoucher PaymentMode = "VOUCHER"
)

// PaymentRemark is the derived settlement label.
type PaymentRemark string

// Possible remarks. The remark is fully determined by the balance.
const (
	RemarkPartial   PaymentRemark = "PARTIAL"
	RemarkFullyPaid PaymentRemark = "FULLY PAID"
)

// RemarkFor derives the remark from a resulting balance.
func RemarkFor(balance decimal.Decimal) PaymentRemark {
	if balance.IsZero() {
		return RemarkFullyPaid
	}
	return RemarkPartial
}

// LedgerAccount is the per-applicant unit of financial truth.
// starting_balance is the reference point for the next payment, not
// necessarily the latest committed balance; cash_balance preserves the last
// non-voucher balance so a VOUCHER -> CASH switch can restore it.
type LedgerAccount struct {
	ID              string          `db:"id" json:"id"`
	ApplicantID     string          `db:"applicant_id" json:"applicant_id"`
	Grade           string          `db:"grade" json:"grade"`
	TotalFee        decimal.Decimal `db:"total_fee" json:"total_fee"`
	StartingBalance decimal.Decimal `db:"starting_balance" json:"starting_balance"`
	AmountPaid      decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	CashBalance     decimal.Decimal `db:"cash_balance" json:"cash_balance"`
	CashTotalFee    decimal.Decimal `db:"cash_total_fee" json:"-"`
	Mode            PaymentMode     `db:"mode" json:"mode"`
	Remark          PaymentRemark   `db:"remark" json:"remark"`
	Frozen          bool            `db:"frozen" json:"frozen"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is one committed payment transaction. Entries are append-only;
// corrections are new entries, never edits.
type LedgerEntry struct {
	ID               string          `db:"id" json:"id"`
	AccountID        string          `db:"account_id" json:"account_id"`
	ReceiptNo        int64           `db:"receipt_no" json:"receipt_no"`
	AmountPaid       decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	ResultingBalance decimal.Decimal `db:"resulting_balance" json:"resulting_balance"`
	Mode             PaymentMode     `db:"mode" json:"mode"`
	Remark           PaymentRemark   `db:"remark" json:"remark"`
	PaidAt           time.Time       `db:"paid_at" json:"paid_at"`
}

// LedgerSnapshot is the read model handed to external callers.
type LedgerSnapshot struct {
	Account       LedgerAccount   `json:"account"`
	LatestBalance decimal.Decimal `json:"latest_balance"`
	Entries       []LedgerEntry   `json:"entries"`
}
