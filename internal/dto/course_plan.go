package dto

// CreateCoursePlanRequest is the payload for registering a plan. Total class
// count is derived server-side from duration and cadence.
type CreateCoursePlanRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=120"`
	DurationMonths int    `json:"duration_months" validate:"required,min=1,max=36"`
	ClassesPerWeek int    `json:"classes_per_week" validate:"required,min=1,max=7"`
	PriceCents     int64  `json:"price_cents" validate:"min=0"`
	Active         *bool  `json:"active,omitempty"`
}

// UpdateCoursePlanRequest carries partial plan edits.
type UpdateCoursePlanRequest struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	DurationMonths *int    `json:"duration_months,omitempty" validate:"omitempty,min=1,max=36"`
	ClassesPerWeek *int    `json:"classes_per_week,omitempty" validate:"omitempty,min=1,max=7"`
	PriceCents     *int64  `json:"price_cents,omitempty" validate:"omitempty,min=0"`
	Active         *bool   `json:"active,omitempty"`
}
