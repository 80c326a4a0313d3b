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

// AdmissionRepository owns the cross-entity transactions of the enrollment
// coordinator: registering an applicant (applicant + checklist + ledger
// account) and committing an approval (capacity decrement + status flip +
// grant). No other component writes across these tables in one commit.
type AdmissionRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewAdmissionRepository constructs the repository.
func NewAdmissionRepository(db *sqlx.DB, lockTimeout time.Duration) *AdmissionRepository {
	return &AdmissionRepository{db: db, lockTimeout: lockTimeout}
}

// RegisterParams holds everything needed to admit a new applicant into the
// workflow.
type RegisterParams struct {
	StudentNo string
	FullName  string
	Grade     string
	TotalFee  decimal.Decimal
}

// Register creates the applicant, seeds the requirement checklist with
// NOT_SUBMITTED rows and opens the payment account, all in one transaction.
func (r *AdmissionRepository) Register(ctx context.Context, params RegisterParams) (applicant *models.Applicant, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin register transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	applicant = &models.Applicant{
		ID:        uuid.NewString(),
		StudentNo: params.StudentNo,
		FullName:  params.FullName,
		Status:    models.ApplicantStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const insertApplicant = `INSERT INTO applicants (id, student_no, full_name, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.ExecContext(ctx, insertApplicant, applicant.ID, applicant.StudentNo, applicant.FullName, applicant.Status, now, now); err != nil {
		if isUniqueViolation(err) {
			err = appErrors.Clone(appErrors.ErrConflict, "student number already registered")
			return nil, err
		}
		return nil, mapTxError(err, "insert applicant")
	}

	const insertRequirement = `INSERT INTO applicant_requirements (applicant_id, requirement_key, status, updated_at)
        VALUES ($1, $2, $3, $4)`
	for _, key := range models.AllRequirementKeys() {
		if _, err = tx.ExecContext(ctx, insertRequirement, applicant.ID, key, models.RequirementNotSubmitted, now); err != nil {
			return nil, mapTxError(err, "seed requirement checklist")
		}
	}

	fee := params.TotalFee
	const insertAccount = `INSERT INTO ledger_accounts
        (id, applicant_id, grade, total_fee, starting_balance, amount_paid, cash_balance, cash_total_fee, mode, remark, frozen, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4, 0, $4, $4, $5, $6, FALSE, $7, $8)`
	if _, err = tx.ExecContext(ctx, insertAccount, uuid.NewString(), applicant.ID, params.Grade, fee,
		models.PaymentModeCash, models.RemarkFor(fee), now, now); err != nil {
		return nil, mapTxError(err, "open ledger account")
	}

	if err = tx.Commit(); err != nil {
		return nil, mapTxError(err, "commit registration")
	}
	return applicant, nil
}

// ApprovalParams identifies one approval decision.
type ApprovalParams struct {
	ApplicantID      string
	IdempotencyToken string
	Section          models.SectionKey
}

// ApprovalOutcome reports what the commit actually did. SlotConsumed is
// false when the request collapsed onto an earlier grant, so callers can
// surface accurate "slots updated" messaging.
type ApprovalOutcome struct {
	Grant        models.ApprovalGrant
	SlotConsumed bool
	Replayed     bool
}

// Approve atomically reserves one slot and flips the applicant to APPROVE.
// Either both effects commit or neither does. Retried requests carrying the
// same idempotency token return the recorded outcome without touching
// capacity again; so does any approval request against an applicant that is
// already approved.
func (r *AdmissionRepository) Approve(ctx context.Context, params ApprovalParams) (outcome *ApprovalOutcome, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = setLockTimeout(ctx, tx, r.lockTimeout); err != nil {
		return nil, mapTxError(err, "approve applicant")
	}

	// Retry with a known token replays the original decision.
	var prior models.ApprovalGrant
	const grantQuery = `SELECT id, applicant_id, idempotency_token, strand, grade, section, slot_consumed, created_at
        FROM approval_grants WHERE applicant_id = $1 AND idempotency_token = $2`
	switch err = tx.GetContext(ctx, &prior, grantQuery, params.ApplicantID, params.IdempotencyToken); err {
	case nil:
		_ = tx.Rollback()
		return &ApprovalOutcome{Grant: prior, SlotConsumed: false, Replayed: true}, nil
	case sql.ErrNoRows:
		err = nil
	default:
		return nil, mapTxError(err, "load prior grant")
	}

	var applicant models.Applicant
	const lockApplicant = `SELECT id, student_no, full_name, status, target_strand, target_grade, target_section, created_at, updated_at
        FROM applicants WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &applicant, lockApplicant, params.ApplicantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, mapTxError(err, "lock applicant")
	}

	now := time.Now().UTC()

	if applicant.Status == models.ApplicantStatusApprove {
		// Already approved under a different token: record the replay for
		// audit, consume nothing.
		grant := models.ApprovalGrant{
			ID:               uuid.NewString(),
			ApplicantID:      applicant.ID,
			IdempotencyToken: params.IdempotencyToken,
			Strand:           deref(applicant.TargetStrand),
			Grade:            deref(applicant.TargetGrade),
			Section:          deref(applicant.TargetSection),
			SlotConsumed:     false,
			CreatedAt:        now,
		}
		if err = insertGrant(ctx, tx, &grant); err != nil {
			return nil, err
		}
		if err = tx.Commit(); err != nil {
			return nil, mapTxError(err, "commit replay grant")
		}
		return &ApprovalOutcome{Grant: grant, SlotConsumed: false, Replayed: true}, nil
	}
	if applicant.Status != models.ApplicantStatusPending {
		err = appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot approve applicant in status %s", applicant.Status))
		return nil, err
	}

	var submitted int
	const requirementQuery = `SELECT COUNT(*) FROM applicant_requirements WHERE applicant_id = $1 AND status = $2`
	if err = tx.GetContext(ctx, &submitted, requirementQuery, applicant.ID, models.RequirementSubmitted); err != nil {
		return nil, mapTxError(err, "count requirements")
	}
	if submitted < len(models.AllRequirementKeys()) {
		err = appErrors.Clone(appErrors.ErrIncompleteRequirements, "")
		return nil, err
	}

	var capacity models.SectionCapacity
	const lockCapacity = `SELECT strand, grade, section, total_slots, remaining_slots, frozen, updated_at
        FROM section_capacities WHERE strand = $1 AND grade = $2 AND section = $3 FOR UPDATE`
	if err = tx.GetContext(ctx, &capacity, lockCapacity, params.Section.Strand, params.Section.Grade, params.Section.Section); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not configured")
		}
		return nil, mapTxError(err, "lock capacity")
	}
	if capacity.Frozen {
		err = appErrors.Clone(appErrors.ErrCapacityFrozen, "")
		return nil, err
	}
	if capacity.RemainingSlots < 0 {
		if freezeErr := freezeCapacity(ctx, tx, params.Section); freezeErr != nil {
			return nil, freezeErr
		}
		err = appErrors.Clone(appErrors.ErrCapacityFrozen, "negative remaining slots detected")
		return nil, err
	}
	if capacity.RemainingSlots == 0 {
		err = appErrors.Clone(appErrors.ErrCapacityExhausted, "")
		return nil, err
	}

	// Guarded decrement: the WHERE clause re-checks under the row lock so two
	// racers for the last slot can never both pass.
	const decrementQuery = `UPDATE section_capacities
        SET remaining_slots = remaining_slots - 1, updated_at = $4
        WHERE strand = $1 AND grade = $2 AND section = $3 AND remaining_slots > 0`
	result, execErr := tx.ExecContext(ctx, decrementQuery, params.Section.Strand, params.Section.Grade, params.Section.Section, now)
	if execErr != nil {
		err = execErr
		return nil, mapTxError(err, "decrement capacity")
	}
	affected, raErr := result.RowsAffected()
	if raErr != nil {
		err = raErr
		return nil, fmt.Errorf("decrement rows affected: %w", err)
	}
	if affected == 0 {
		err = appErrors.Clone(appErrors.ErrCapacityExhausted, "")
		return nil, err
	}

	const approveQuery = `UPDATE applicants
        SET status = $2, target_strand = $3, target_grade = $4, target_section = $5, updated_at = $6
        WHERE id = $1`
	if _, err = tx.ExecContext(ctx, approveQuery, applicant.ID, models.ApplicantStatusApprove,
		params.Section.Strand, params.Section.Grade, params.Section.Section, now); err != nil {
		return nil, mapTxError(err, "approve applicant")
	}

	grant := models.ApprovalGrant{
		ID:               uuid.NewString(),
		ApplicantID:      applicant.ID,
		IdempotencyToken: params.IdempotencyToken,
		Strand:           params.Section.Strand,
		Grade:            params.Section.Grade,
		Section:          params.Section.Section,
		SlotConsumed:     true,
		CreatedAt:        now,
	}
	if err = insertGrant(ctx, tx, &grant); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, mapTxError(err, "commit approval")
	}
	return &ApprovalOutcome{Grant: grant, SlotConsumed: true}, nil
}

func insertGrant(ctx context.Context, tx *sqlx.Tx, grant *models.ApprovalGrant) error {
	const query = `INSERT INTO approval_grants (id, applicant_id, idempotency_token, strand, grade, section, slot_consumed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, query, grant.ID, grant.ApplicantID, grant.IdempotencyToken,
		grant.Strand, grant.Grade, grant.Section, grant.SlotConsumed, grant.CreatedAt); err != nil {
		return mapTxError(err, "insert approval grant")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
