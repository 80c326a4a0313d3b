package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmbriones/shs-admission-api/internal/dto"
	"github.com/rmbriones/shs-admission-api/internal/models"
	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
	"github.com/rmbriones/shs-admission-api/pkg/response"
)

type capacityAdmin interface {
	List(ctx context.Context) ([]models.SectionCapacity, error)
	Snapshot(ctx context.Context, key models.SectionKey) (*models.SectionCapacity, error)
	Configure(ctx context.Context, req dto.ConfigureSectionRequest) (*models.SectionCapacity, error)
	Release(ctx context.Context, req dto.ReleaseSlotRequest) (*models.SectionCapacity, error)
}

// CapacityHandler exposes section slot administration endpoints.
type CapacityHandler struct {
	capacities capacityAdmin
}

// NewCapacityHandler constructs CapacityHandler.
func NewCapacityHandler(capacities capacityAdmin) *CapacityHandler {
	return &CapacityHandler{capacities: capacities}
}

// List godoc
// @Summary List configured sections with their slot counts
// @Tags Sections
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *CapacityHandler) List(c *gin.Context) {
	capacities, err := h.capacities.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacities, nil)
}

// Get godoc
// @Summary Get remaining slots for one section
// @Tags Sections
// @Produce json
// @Param strand path string true "Strand"
// @Param grade path string true "Grade"
// @Param section path string true "Section"
// @Success 200 {object} response.Envelope
// @Router /sections/{strand}/{grade}/{section} [get]
func (h *CapacityHandler) Get(c *gin.Context) {
	key := models.SectionKey{Strand: c.Param("strand"), Grade: c.Param("grade"), Section: c.Param("section")}
	capacity, err := h.capacities.Snapshot(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}

// Configure godoc
// @Summary Configure the slot total for a section
// @Tags Sections
// @Accept json
// @Produce json
// @Param payload body dto.ConfigureSectionRequest true "Section payload"
// @Success 200 {object} response.Envelope
// @Router /sections [put]
func (h *CapacityHandler) Configure(c *gin.Context) {
	var req dto.ConfigureSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	capacity, err := h.capacities.Configure(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}

// Release godoc
// @Summary Return one slot to a section
// @Tags Sections
// @Accept json
// @Produce json
// @Param payload body dto.ReleaseSlotRequest true "Release payload"
// @Success 200 {object} response.Envelope
// @Router /sections/release [post]
func (h *CapacityHandler) Release(c *gin.Context) {
	var req dto.ReleaseSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	capacity, err := h.capacities.Release(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}
