package dto

// WeeklySlotSelection is one requested weekly time slot. DayOfWeek is
// optional; when supplied it must agree with the template's stored weekday
// (defends against stale client state).
type WeeklySlotSelection struct {
	TimeSlotID string `json:"time_slot_id" validate:"required"`
	DayOfWeek  *int   `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
}

// WalkInStudent carries contact details for on-the-spot student provisioning.
type WalkInStudent struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" validate:"required,min=8"`
}

// CreateAdmissionRequest is the admission intake payload. Exactly one of
// LeadID, StudentID or WalkIn identifies who is being admitted; LeadID may be
// combined with StudentID when the lead already has an account.
type CreateAdmissionRequest struct {
	LeadID        *string               `json:"lead_id,omitempty"`
	StudentID     *string               `json:"student_id,omitempty"`
	WalkIn        *WalkInStudent        `json:"walk_in,omitempty"`
	CoursePlanID  string                `json:"course_plan_id" validate:"required"`
	CourseID      string                `json:"course_id" validate:"required"`
	StartDate     string                `json:"start_date" validate:"required"`
	WeeklySlots   []WeeklySlotSelection `json:"weekly_slots" validate:"required,min=1,dive"`
	ExtraClasses  *int                  `json:"extra_classes,omitempty"`
	DiscountType  string                `json:"discount_type,omitempty"`
	DiscountValue *int64                `json:"discount_value,omitempty"`
	Notes         string                `json:"notes,omitempty"`
}

// UpdateAdmissionRequest mutates the lighter-weight admission fields. Slots,
// enrollments and attendance are never re-touched here.
type UpdateAdmissionRequest struct {
	ExtraClasses  *int    `json:"extra_classes,omitempty" validate:"omitempty,min=0"`
	DiscountType  *string `json:"discount_type,omitempty"`
	DiscountValue *int64  `json:"discount_value,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	Status        *string `json:"status,omitempty"`
}
