package dto

import "github.com/rmbriones/shs-admission-api/internal/models"

// RegisterApplicantRequest opens a new admission workflow.
type RegisterApplicantRequest struct {
	StudentNo string `json:"student_no" validate:"required"`
	FullName  string `json:"full_name" validate:"required"`
	Grade     string `json:"grade" validate:"required"`
}

// SubmitRequirementRequest flips one checklist item.
type SubmitRequirementRequest struct {
	Status models.RequirementStatus `json:"status" validate:"required,oneof=SUBMITTED NOT_SUBMITTED"`
}

// ApprovalRequest asks the coordinator to admit the applicant into a section.
// The idempotency token lets callers retry after a timeout without risking a
// double slot decrement.
type ApprovalRequest struct {
	Strand           string `json:"strand" validate:"required"`
	Grade            string `json:"grade" validate:"required"`
	Section          string `json:"section" validate:"required"`
	IdempotencyToken string `json:"idempotency_token" validate:"required"`
}

// ApprovalResponse reports the committed decision. SlotConsumed mirrors
// whether this request actually took a slot, for UI messaging parity.
type ApprovalResponse struct {
	ApplicantID  string                 `json:"applicant_id"`
	Status       models.ApplicantStatus `json:"status"`
	Section      models.SectionKey      `json:"section"`
	SlotConsumed bool                   `json:"slot_consumed"`
	Replayed     bool                   `json:"replayed"`
}

// SetStatusRequest moves an applicant to a non-approval status.
type SetStatusRequest struct {
	Status models.ApplicantStatus `json:"status" validate:"required,oneof=DROP TRANSFER GRADUATE"`
}
