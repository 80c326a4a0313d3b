package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionApplicantRegister = "APPLICANT_REGISTER"
	AuditActionRequirementSubmit = "REQUIREMENT_SUBMIT"
	AuditActionApprovalCommit    = "APPROVAL_COMMIT"
	AuditActionStatusChange      = "STATUS_CHANGE"
	AuditActionSectionConfigure  = "SECTION_CONFIGURE"
	AuditActionSlotRelease       = "SLOT_RELEASE"
	AuditActionLedgerModeSwitch  = "LEDGER_MODE_SWITCH"
	AuditActionLedgerPayment     = "LEDGER_PAYMENT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Detail     []byte    `db:"detail" json:"detail,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
