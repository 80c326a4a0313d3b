package dto

import "github.com/rmbriones/shs-admission-api/internal/models"

// SwitchModeRequest changes an applicant's payment mode.
type SwitchModeRequest struct {
	Mode models.PaymentMode `json:"mode" validate:"required,oneof=CASH VOUCHER"`
}

// RecordPaymentRequest posts one payment. The amount travels as a decimal
// string so no float precision is lost at the boundary.
type RecordPaymentRequest struct {
	Amount string `json:"amount" validate:"required"`
}
