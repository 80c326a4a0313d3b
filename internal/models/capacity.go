package models

import (
	"fmt"
	"time"
)

// SectionKey identifies one admission section.
type SectionKey struct {
	Strand  string `db:"strand" json:"strand"`
	Grade   string `db:"grade" json:"grade"`
	Section string `db:"section" json:"section"`
}

// String renders the key as strand/grade/section.
func (k SectionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Strand, k.Grade, k.Section)
}

// Empty reports whether any component of the key is missing.
func (k SectionKey) Empty() bool {
	return k.Strand == "" || k.Grade == "" || k.Section == ""
}

// SectionCapacity tracks remaining admission slots for a section.
// remaining_slots only decreases through a committed approval and only
// increases through an explicit administrative release.
type SectionCapacity struct {
	SectionKey
	TotalSlots     int       `db:"total_slots" json:"total_slots"`
	RemainingSlots int       `db:"remaining_slots" json:"remaining_slots"`
	Frozen         bool      `db:"frozen" json:"frozen"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ApprovalGrant records the committed outcome of an approval request. The
// (applicant_id, idempotency_token) pair is unique so retried requests
// collapse onto the original decision instead of decrementing again.
type ApprovalGrant struct {
	ID               string    `db:"id" json:"id"`
	ApplicantID      string    `db:"applicant_id" json:"applicant_id"`
	IdempotencyToken string    `db:"idempotency_token" json:"idempotency_token"`
	Strand           string    `db:"strand" json:"strand"`
	Grade            string    `db:"grade" json:"grade"`
	Section          string    `db:"section" json:"section"`
	SlotConsumed     bool      `db:"slot_consumed" json:"slot_consumed"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Section returns the grant's section key.
func (g *ApprovalGrant) SectionKey() SectionKey {
	return SectionKey{Strand: g.Strand, Grade: g.Grade, Section: g.Section}
}
