package models

import "time"

// ApplicantStatus represents the admission decision state of an applicant.
type ApplicantStatus string

// Possible applicant statuses.
const (
	ApplicantStatusPending  ApplicantStatus = "PENDING"
	ApplicantStatusApprove  ApplicantStatus = "APPROVE"
	ApplicantStatusDrop     ApplicantStatus = "DROP"
	ApplicantStatusTransfer ApplicantStatus = "TRANSFER"
	ApplicantStatusGraduate ApplicantStatus = "GRADUATE"
)

// CanTransition reports whether the state machine allows moving from one
// status to another. GRADUATE is terminal; APPROVE is terminal with respect
// to re-approval but may still move to DROP, TRANSFER or GRADUATE.
func CanTransition(from, to ApplicantStatus) bool {
	switch from {
	case ApplicantStatusPending:
		return to == ApplicantStatusApprove || to == ApplicantStatusDrop || to == ApplicantStatusTransfer
	case ApplicantStatusApprove:
		return to == ApplicantStatusDrop || to == ApplicantStatusTransfer || to == ApplicantStatusGraduate
	default:
		return false
	}
}

// RequirementKey identifies one of the fixed admission documents.
type RequirementKey string

// The fixed checklist of admission requirements.
const (
	RequirementBirthCertificate RequirementKey = "BIRTH_CERTIFICATE"
	RequirementGoodMoral        RequirementKey = "GOOD_MORAL"
	RequirementDiploma          RequirementKey = "DIPLOMA"
	RequirementTranscript       RequirementKey = "TRANSCRIPT"
	RequirementIDPicture        RequirementKey = "ID_PICTURE"
)

// AllRequirementKeys returns the checklist in a stable order.
func AllRequirementKeys() []RequirementKey {
	return []RequirementKey{
		RequirementBirthCertificate,
		RequirementGoodMoral,
		RequirementDiploma,
		RequirementTranscript,
		RequirementIDPicture,
	}
}

// ValidRequirementKey reports whether key belongs to the fixed checklist.
func ValidRequirementKey(key RequirementKey) bool {
	for _, k := range AllRequirementKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// RequirementStatus is the submission state of a single requirement.
type RequirementStatus string

// Possible requirement statuses.
const (
	RequirementSubmitted    RequirementStatus = "SUBMITTED"
	RequirementNotSubmitted RequirementStatus = "NOT_SUBMITTED"
)

// Applicant captures a student moving through the admission workflow.
type Applicant struct {
	ID            string          `db:"id" json:"id"`
	StudentNo     string          `db:"student_no" json:"student_no"`
	FullName      string          `db:"full_name" json:"full_name"`
	Status        ApplicantStatus `db:"status" json:"status"`
	TargetStrand  *string         `db:"target_strand" json:"target_strand,omitempty"`
	TargetGrade   *string         `db:"target_grade" json:"target_grade,omitempty"`
	TargetSection *string         `db:"target_section" json:"target_section,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ApplicantRequirement tracks a single checklist item for an applicant.
type ApplicantRequirement struct {
	ApplicantID string            `db:"applicant_id" json:"applicant_id"`
	Key         RequirementKey    `db:"requirement_key" json:"key"`
	Status      RequirementStatus `db:"status" json:"status"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicantDetail enriches Applicant with its requirement checklist.
type ApplicantDetail struct {
	Applicant
	Requirements []ApplicantRequirement `json:"requirements"`
}

// RequirementsComplete reports whether every checklist item is submitted.
func (d *ApplicantDetail) RequirementsComplete() bool {
	if len(d.Requirements) < len(AllRequirementKeys()) {
		return false
	}
	for _, req := range d.Requirements {
		if req.Status != RequirementSubmitted {
			return false
		}
	}
	return true
}

// ApplicantFilter provides filters for listing applicants.
type ApplicantFilter struct {
	Status    ApplicantStatus
	Strand    string
	Grade     string
	Section   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
