package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

// CapacityRepository handles persistence of section slot capacities.
type CapacityRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewCapacityRepository constructs the repository.
func NewCapacityRepository(db *sqlx.DB, lockTimeout time.Duration) *CapacityRepository {
	return &CapacityRepository{db: db, lockTimeout: lockTimeout}
}

// Get returns the capacity row for a section key.
func (r *CapacityRepository) Get(ctx context.Context, key models.SectionKey) (*models.SectionCapacity, error) {
	const query = `SELECT strand, grade, section, total_slots, remaining_slots, frozen, updated_at
        FROM section_capacities WHERE strand = $1 AND grade = $2 AND section = $3`
	var capacity models.SectionCapacity
	if err := r.db.GetContext(ctx, &capacity, query, key.Strand, key.Grade, key.Section); err != nil {
		return nil, err
	}
	return &capacity, nil
}

// List returns all configured section capacities.
func (r *CapacityRepository) List(ctx context.Context) ([]models.SectionCapacity, error) {
	const query = `SELECT strand, grade, section, total_slots, remaining_slots, frozen, updated_at
        FROM section_capacities ORDER BY strand, grade, section`
	var capacities []models.SectionCapacity
	if err := r.db.SelectContext(ctx, &capacities, query); err != nil {
		return nil, fmt.Errorf("list capacities: %w", err)
	}
	return capacities, nil
}

// Upsert configures a section's total slots. Growing the total adds free
// slots; shrinking it removes free slots first and never revokes already
// consumed ones.
func (r *CapacityRepository) Upsert(ctx context.Context, key models.SectionKey, totalSlots int) (*models.SectionCapacity, error) {
	const query = `INSERT INTO section_capacities (strand, grade, section, total_slots, remaining_slots, frozen, updated_at)
        VALUES ($1, $2, $3, $4, $4, FALSE, $5)
        ON CONFLICT (strand, grade, section) DO UPDATE SET
            total_slots = EXCLUDED.total_slots,
            remaining_slots = GREATEST(0, LEAST(EXCLUDED.total_slots,
                section_capacities.remaining_slots + EXCLUDED.total_slots - section_capacities.total_slots)),
            updated_at = EXCLUDED.updated_at
        RETURNING strand, grade, section, total_slots, remaining_slots, frozen, updated_at`
	var capacity models.SectionCapacity
	if err := r.db.GetContext(ctx, &capacity, query, key.Strand, key.Grade, key.Section, totalSlots, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("upsert capacity: %w", err)
	}
	return &capacity, nil
}

// Release returns one slot to the section. The increment is bounded above by
// total_slots; exceeding it is an over-release, not a silent clamp.
func (r *CapacityRepository) Release(ctx context.Context, key models.SectionKey) (result *models.SectionCapacity, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin release transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = setLockTimeout(ctx, tx, r.lockTimeout); err != nil {
		return nil, mapTxError(err, "release slot")
	}

	var current models.SectionCapacity
	const lockQuery = `SELECT strand, grade, section, total_slots, remaining_slots, frozen, updated_at
        FROM section_capacities WHERE strand = $1 AND grade = $2 AND section = $3 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, key.Strand, key.Grade, key.Section); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not configured")
		}
		return nil, mapTxError(err, "lock capacity")
	}
	if current.Frozen {
		err = appErrors.Clone(appErrors.ErrCapacityFrozen, "")
		return nil, err
	}
	if current.RemainingSlots < 0 {
		// Atomicity guarantees were violated upstream; halt further writes.
		if freezeErr := freezeCapacity(ctx, tx, key); freezeErr != nil {
			return nil, freezeErr
		}
		err = appErrors.Clone(appErrors.ErrCapacityFrozen, "negative remaining slots detected")
		return nil, err
	}
	if current.RemainingSlots >= current.TotalSlots {
		err = appErrors.Clone(appErrors.ErrOverRelease, "")
		return nil, err
	}

	const updateQuery = `UPDATE section_capacities
        SET remaining_slots = remaining_slots + 1, updated_at = $4
        WHERE strand = $1 AND grade = $2 AND section = $3 AND remaining_slots < total_slots
        RETURNING strand, grade, section, total_slots, remaining_slots, frozen, updated_at`
	var updated models.SectionCapacity
	if err = tx.GetContext(ctx, &updated, updateQuery, key.Strand, key.Grade, key.Section, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrOverRelease, "")
		}
		return nil, mapTxError(err, "increment capacity")
	}

	if err = tx.Commit(); err != nil {
		return nil, mapTxError(err, "commit release")
	}
	return &updated, nil
}

// freezeCapacity marks the section so subsequent writes are rejected until
// manual reconciliation. It commits on its own transaction boundary so the
// freeze survives the caller's rollback.
func freezeCapacity(ctx context.Context, tx *sqlx.Tx, key models.SectionKey) error {
	const query = `UPDATE section_capacities SET frozen = TRUE, updated_at = $4
        WHERE strand = $1 AND grade = $2 AND section = $3`
	if _, err := tx.ExecContext(ctx, query, key.Strand, key.Grade, key.Section, time.Now().UTC()); err != nil {
		return fmt.Errorf("freeze capacity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return mapTxError(err, "commit capacity freeze")
	}
	return nil
}
