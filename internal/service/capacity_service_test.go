package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rmbriones/shs-admission-api/internal/dto"
	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

type mockCapacityStore struct {
	capacities map[string]models.SectionCapacity
	released   []string
}

func (m *mockCapacityStore) key(k models.SectionKey) string {
	return k.String()
}

func (m *mockCapacityStore) Get(ctx context.Context, key models.SectionKey) (*models.SectionCapacity, error) {
	if c, ok := m.capacities[m.key(key)]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCapacityStore) List(ctx context.Context) ([]models.SectionCapacity, error) {
	var list []models.SectionCapacity
	for _, c := range m.capacities {
		list = append(list, c)
	}
	return list, nil
}

func (m *mockCapacityStore) Upsert(ctx context.Context, key models.SectionKey, totalSlots int) (*models.SectionCapacity, error) {
	if m.capacities == nil {
		m.capacities = make(map[string]models.SectionCapacity)
	}
	existing, ok := m.capacities[m.key(key)]
	capacity := models.SectionCapacity{SectionKey: key, TotalSlots: totalSlots, RemainingSlots: totalSlots}
	if ok {
		remaining := existing.RemainingSlots + totalSlots - existing.TotalSlots
		if remaining > totalSlots {
			remaining = totalSlots
		}
		if remaining < 0 {
			remaining = 0
		}
		capacity.RemainingSlots = remaining
	}
	m.capacities[m.key(key)] = capacity
	return &capacity, nil
}

func (m *mockCapacityStore) Release(ctx context.Context, key models.SectionKey) (*models.SectionCapacity, error) {
	c, ok := m.capacities[m.key(key)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section not configured")
	}
	if c.RemainingSlots >= c.TotalSlots {
		return nil, appErrors.Clone(appErrors.ErrOverRelease, "")
	}
	c.RemainingSlots++
	m.capacities[m.key(key)] = c
	m.released = append(m.released, m.key(key))
	return &c, nil
}

func sectionKey(strand, grade, section string) models.SectionKey {
	return models.SectionKey{Strand: strand, Grade: grade, Section: section}
}

func TestCapacityServiceConfigure(t *testing.T) {
	repo := &mockCapacityStore{}
	svc := NewCapacityService(repo, nil, nil, nil, validator.New(), zap.NewNop())

	capacity, err := svc.Configure(context.Background(), dto.ConfigureSectionRequest{Strand: "STEM", Grade: "11", Section: "A", TotalSlots: 40})
	require.NoError(t, err)
	assert.Equal(t, 40, capacity.TotalSlots)
	assert.Equal(t, 40, capacity.RemainingSlots)
}

func TestCapacityServiceConfigureShrinkClampsRemaining(t *testing.T) {
	repo := &mockCapacityStore{}
	svc := NewCapacityService(repo, nil, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Configure(context.Background(), dto.ConfigureSectionRequest{Strand: "STEM", Grade: "11", Section: "A", TotalSlots: 40})
	require.NoError(t, err)

	capacity, err := svc.Configure(context.Background(), dto.ConfigureSectionRequest{Strand: "STEM", Grade: "11", Section: "A", TotalSlots: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, capacity.TotalSlots)
	assert.LessOrEqual(t, capacity.RemainingSlots, capacity.TotalSlots)
}

func TestCapacityServiceRelease(t *testing.T) {
	repo := &mockCapacityStore{capacities: map[string]models.SectionCapacity{
		"STEM/11/A": {SectionKey: sectionKey("STEM", "11", "A"), TotalSlots: 40, RemainingSlots: 39},
	}}
	svc := NewCapacityService(repo, nil, nil, nil, validator.New(), zap.NewNop())

	capacity, err := svc.Release(context.Background(), dto.ReleaseSlotRequest{Strand: "STEM", Grade: "11", Section: "A"})
	require.NoError(t, err)
	assert.Equal(t, 40, capacity.RemainingSlots)
	assert.Contains(t, repo.released, "STEM/11/A")
}

func TestCapacityServiceReleaseAtFullCapacity(t *testing.T) {
	repo := &mockCapacityStore{capacities: map[string]models.SectionCapacity{
		"STEM/11/A": {SectionKey: sectionKey("STEM", "11", "A"), TotalSlots: 40, RemainingSlots: 40},
	}}
	svc := NewCapacityService(repo, nil, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Release(context.Background(), dto.ReleaseSlotRequest{Strand: "STEM", Grade: "11", Section: "A"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrOverRelease))
}

func TestCapacityServiceSnapshotUnconfigured(t *testing.T) {
	svc := NewCapacityService(&mockCapacityStore{}, nil, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Snapshot(context.Background(), sectionKey("STEM", "11", "Z"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestCapacityServiceSnapshotIncompleteKey(t *testing.T) {
	svc := NewCapacityService(&mockCapacityStore{}, nil, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Snapshot(context.Background(), sectionKey("STEM", "", "A"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}
