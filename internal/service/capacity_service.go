package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rmbriones/shs-admission-api/internal/dto"
	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

type capacityStore interface {
	Get(ctx context.Context, key models.SectionKey) (*models.SectionCapacity, error)
	List(ctx context.Context) ([]models.SectionCapacity, error)
	Upsert(ctx context.Context, key models.SectionKey, totalSlots int) (*models.SectionCapacity, error)
	Release(ctx context.Context, key models.SectionKey) (*models.SectionCapacity, error)
}

// CapacityService manages section slot administration and display reads.
// Snapshot reads may come from a slightly stale cache; they are never the
// basis for a reservation, which re-checks under the approval row lock.
type CapacityService struct {
	repo      capacityStore
	cache     *CacheService
	metrics   *MetricsService
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCapacityService constructs CapacityService.
func NewCapacityService(repo capacityStore, cache *CacheService, metrics *MetricsService, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *CapacityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{repo: repo, cache: cache, metrics: metrics, audit: audit, validator: validate, logger: logger}
}

func capacityCacheKey(key models.SectionKey) string {
	return fmt.Sprintf("capacity:%s:%s:%s", key.Strand, key.Grade, key.Section)
}

// Configure upserts the administered total for a section.
func (s *CapacityService) Configure(ctx context.Context, req dto.ConfigureSectionRequest) (*models.SectionCapacity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	key := models.SectionKey{Strand: req.Strand, Grade: req.Grade, Section: req.Section}
	capacity, err := s.repo.Upsert(ctx, key, req.TotalSlots)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to configure section")
	}
	_ = s.cache.Invalidate(ctx, capacityCacheKey(key))
	resourceID := key.String()
	s.audit.Record("", models.AuditActionSectionConfigure, "section", &resourceID, map[string]interface{}{
		"total_slots": req.TotalSlots,
	})
	return capacity, nil
}

// Release returns one slot to a section. Explicit and audited; never
// triggered implicitly by a status change.
func (s *CapacityService) Release(ctx context.Context, req dto.ReleaseSlotRequest) (*models.SectionCapacity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid release payload")
	}
	key := models.SectionKey{Strand: req.Strand, Grade: req.Grade, Section: req.Section}
	capacity, err := s.repo.Release(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, capacityCacheKey(key))
	resourceID := key.String()
	s.audit.Record("", models.AuditActionSlotRelease, "section", &resourceID, map[string]interface{}{
		"remaining_slots": capacity.RemainingSlots,
	})
	return capacity, nil
}

// Snapshot returns the capacity of a section for display. Reads go through
// the cache when enabled.
func (s *CapacityService) Snapshot(ctx context.Context, key models.SectionKey) (*models.SectionCapacity, error) {
	if key.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section key is incomplete")
	}
	var cached models.SectionCapacity
	if hit, _ := s.cache.Get(ctx, capacityCacheKey(key), &cached); hit {
		return &cached, nil
	}
	capacity, err := s.repo.Get(ctx, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load capacity")
	}
	_ = s.cache.Set(ctx, capacityCacheKey(key), capacity, 0)
	return capacity, nil
}

// List returns all configured sections.
func (s *CapacityService) List(ctx context.Context) ([]models.SectionCapacity, error) {
	capacities, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list capacities")
	}
	return capacities, nil
}
