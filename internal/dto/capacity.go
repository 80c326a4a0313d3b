package dto

// ConfigureSectionRequest sets the administered slot total for a section.
type ConfigureSectionRequest struct {
	Strand     string `json:"strand" validate:"required"`
	Grade      string `json:"grade" validate:"required"`
	Section    string `json:"section" validate:"required"`
	TotalSlots int    `json:"total_slots" validate:"min=0"`
}

// ReleaseSlotRequest returns one previously consumed slot to a section.
type ReleaseSlotRequest struct {
	Strand  string `json:"strand" validate:"required"`
	Grade   string `json:"grade" validate:"required"`
	Section string `json:"section" validate:"required"`
}
