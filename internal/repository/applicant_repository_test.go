package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func applicantRows(id string, status models.ApplicantStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_no", "full_name", "status", "target_strand", "target_grade", "target_section", "created_at", "updated_at"}).
		AddRow(id, "2026-0001", "Juan Dela Cruz", status, nil, nil, nil, time.Now(), time.Now())
}

func TestApplicantRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_no, full_name, status, target_strand, target_grade, target_section, created_at, updated_at")).
		WithArgs("a1").
		WillReturnRows(applicantRows("a1", models.ApplicantStatusPending))

	applicant, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", applicant.ID)
	assert.Equal(t, models.ApplicantStatusPending, applicant.Status)
	assert.Nil(t, applicant.TargetSection)
}

func TestApplicantRepositoryFindDetailByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_no, full_name, status")).
		WithArgs("a1").
		WillReturnRows(applicantRows("a1", models.ApplicantStatusPending))

	reqRows := sqlmock.NewRows([]string{"applicant_id", "requirement_key", "status", "updated_at"})
	for _, key := range models.AllRequirementKeys() {
		reqRows.AddRow("a1", key, models.RequirementNotSubmitted, time.Now())
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT applicant_id, requirement_key, status, updated_at")).
		WithArgs("a1").
		WillReturnRows(reqRows)

	detail, err := repo.FindDetailByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Len(t, detail.Requirements, len(models.AllRequirementKeys()))
	assert.False(t, detail.RequirementsComplete())
}

func TestApplicantRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta("a.status = $1")).
		WithArgs(models.ApplicantStatusPending).
		WillReturnRows(applicantRows("a1", models.ApplicantStatusPending))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(models.ApplicantStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	applicants, total, err := repo.List(context.Background(), models.ApplicantFilter{Status: models.ApplicantStatusPending})
	require.NoError(t, err)
	require.Len(t, applicants, 1)
	assert.Equal(t, 1, total)
}

func TestApplicantRepositorySubmitRequirement(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applicants WHERE id = $1 FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.ApplicantStatusPending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applicant_requirements SET status = $3")).
		WithArgs("a1", models.RequirementDiploma, models.RequirementSubmitted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SubmitRequirement(context.Background(), "a1", models.RequirementDiploma, models.RequirementSubmitted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositorySubmitRequirementLockedAfterDecision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applicants WHERE id = $1 FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.ApplicantStatusApprove))
	mock.ExpectRollback()

	err := repo.SubmitRequirement(context.Background(), "a1", models.RequirementDiploma, models.RequirementSubmitted)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositorySubmitRequirementNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applicants WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.SubmitRequirement(context.Background(), "missing", models.RequirementDiploma, models.RequirementSubmitted)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestApplicantRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applicants WHERE id = $1 FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.ApplicantStatusApprove))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applicants SET status = $2")).
		WithArgs("a1", models.ApplicantStatusGraduate, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), "a1", models.ApplicantStatusGraduate)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryUpdateStatusFromTerminal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applicants WHERE id = $1 FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.ApplicantStatusGraduate))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), "a1", models.ApplicantStatusDrop)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition))
}
