package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

// ApplicantRepository handles persistence of applicants and their
// requirement checklists.
type ApplicantRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewApplicantRepository constructs the repository.
func NewApplicantRepository(db *sqlx.DB, lockTimeout time.Duration) *ApplicantRepository {
	return &ApplicantRepository{db: db, lockTimeout: lockTimeout}
}

// FindByID returns an applicant by its ID.
func (r *ApplicantRepository) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	const query = `SELECT id, student_no, full_name, status, target_strand, target_grade, target_section, created_at, updated_at
        FROM applicants WHERE id = $1`
	var applicant models.Applicant
	if err := r.db.GetContext(ctx, &applicant, query, id); err != nil {
		return nil, err
	}
	return &applicant, nil
}

// FindDetailByID returns an applicant with its requirement checklist.
func (r *ApplicantRepository) FindDetailByID(ctx context.Context, id string) (*models.ApplicantDetail, error) {
	applicant, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	requirements, err := r.ListRequirements(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ApplicantDetail{Applicant: *applicant, Requirements: requirements}, nil
}

// ListRequirements returns the checklist for an applicant in a stable order.
func (r *ApplicantRepository) ListRequirements(ctx context.Context, applicantID string) ([]models.ApplicantRequirement, error) {
	const query = `SELECT applicant_id, requirement_key, status, updated_at
        FROM applicant_requirements WHERE applicant_id = $1 ORDER BY requirement_key`
	var requirements []models.ApplicantRequirement
	if err := r.db.SelectContext(ctx, &requirements, query, applicantID); err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	return requirements, nil
}

// List returns applicants filtered by the provided criteria.
func (r *ApplicantRepository) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error) {
	base := "FROM applicants a"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Strand != "" {
		conditions = append(conditions, fmt.Sprintf("a.target_strand = $%d", len(args)+1))
		args = append(args, filter.Strand)
	}
	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("a.target_grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("a.target_section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "a.created_at",
		"full_name":  "a.full_name",
		"student_no": "a.student_no",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.student_no, a.full_name, a.status, a.target_strand, a.target_grade, a.target_section, a.created_at, a.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var applicants []models.Applicant
	if err := r.db.SelectContext(ctx, &applicants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applicants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applicants: %w", err)
	}
	return applicants, total, nil
}

// SubmitRequirement flips a checklist item while the applicant is still
// PENDING. The applicant row lock serialises concurrent submissions so the
// checklist is applied in the order received.
func (r *ApplicantRepository) SubmitRequirement(ctx context.Context, applicantID string, key models.RequirementKey, status models.RequirementStatus) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin requirement transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = setLockTimeout(ctx, tx, r.lockTimeout); err != nil {
		return mapTxError(err, "submit requirement")
	}

	var currentStatus models.ApplicantStatus
	const lockQuery = `SELECT status FROM applicants WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &currentStatus, lockQuery, applicantID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return mapTxError(err, "lock applicant")
	}
	if currentStatus != models.ApplicantStatusPending {
		err = appErrors.Clone(appErrors.ErrInvalidTransition, "requirements can only change while the applicant is pending")
		return err
	}

	const updateQuery = `UPDATE applicant_requirements SET status = $3, updated_at = $4
        WHERE applicant_id = $1 AND requirement_key = $2`
	result, execErr := tx.ExecContext(ctx, updateQuery, applicantID, key, status, time.Now().UTC())
	if execErr != nil {
		err = execErr
		return mapTxError(err, "update requirement")
	}
	affected, raErr := result.RowsAffected()
	if raErr != nil {
		err = raErr
		return fmt.Errorf("requirement rows affected: %w", err)
	}
	if affected == 0 {
		err = appErrors.Clone(appErrors.ErrNotFound, "requirement not found for applicant")
		return err
	}

	if err = tx.Commit(); err != nil {
		return mapTxError(err, "commit requirement")
	}
	return nil
}

// UpdateStatus applies a guarded status transition under the applicant row
// lock. Slot return never happens here; releasing a slot is a separate
// administrative operation.
func (r *ApplicantRepository) UpdateStatus(ctx context.Context, id string, to models.ApplicantStatus) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = setLockTimeout(ctx, tx, r.lockTimeout); err != nil {
		return mapTxError(err, "update status")
	}

	var current models.ApplicantStatus
	const lockQuery = `SELECT status FROM applicants WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return mapTxError(err, "lock applicant")
	}
	if !models.CanTransition(current, to) {
		err = appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move applicant from %s to %s", current, to))
		return err
	}

	const updateQuery = `UPDATE applicants SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, to, time.Now().UTC()); err != nil {
		return mapTxError(err, "update applicant status")
	}

	if err = tx.Commit(); err != nil {
		return mapTxError(err, "commit status change")
	}
	return nil
}
