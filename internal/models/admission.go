package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AdmissionStatus enumerates admission lifecycle states.
type AdmissionStatus string

const (
	AdmissionStatusPending   AdmissionStatus = "PENDING"
	AdmissionStatusActive    AdmissionStatus = "ACTIVE"
	AdmissionStatusCompleted AdmissionStatus = "COMPLETED"
	AdmissionStatusCancelled AdmissionStatus = "CANCELLED"
)

// Valid reports whether the status is a known value.
func (s AdmissionStatus) Valid() bool {
	switch s {
	case AdmissionStatusPending, AdmissionStatusActive, AdmissionStatusCompleted, AdmissionStatusCancelled:
		return true
	}
	return false
}

// DiscountType enumerates supported discount modes.
type DiscountType string

const (
	DiscountNone    DiscountType = "NONE"
	DiscountPercent DiscountType = "PERCENT"
	DiscountAmount  DiscountType = "AMOUNT"
)

// Valid reports whether the discount type is a known value.
func (d DiscountType) Valid() bool {
	switch d {
	case DiscountNone, DiscountPercent, DiscountAmount:
		return true
	}
	return false
}

// WeeklySlot is one recurring weekly selection snapshotted on the admission.
// It is a value, not a live reference: later template edits never alter
// historical admissions.
type WeeklySlot struct {
	TimeSlotID string `json:"time_slot_id"`
	DayOfWeek  int    `json:"day_of_week"`
}

// WeeklySlots is stored as a JSONB column.
type WeeklySlots []WeeklySlot

// Value implements driver.Valuer.
func (w WeeklySlots) Value() (driver.Value, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner.
func (w *WeeklySlots) Scan(src interface{}) error {
	if src == nil {
		*w = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported weekly slots type %T", src)
	}
	return json.Unmarshal(raw, w)
}

// Admission records a student (or pending lead) enrolling into a course plan
// with a chosen weekly schedule.
type Admission struct {
	ID              string          `db:"id" json:"id"`
	LeadID          *string         `db:"lead_id" json:"lead_id,omitempty"`
	StudentID       *string         `db:"student_id" json:"student_id,omitempty"`
	CoursePlanID    string          `db:"course_plan_id" json:"course_plan_id"`
	CourseID        string          `db:"course_id" json:"course_id"`
	StartDate       time.Time       `db:"start_date" json:"start_date"`
	WeeklySlots     WeeklySlots     `db:"weekly_slots" json:"weekly_slots"`
	BaseClasses     int             `db:"base_classes" json:"base_classes"`
	ExtraClasses    int             `db:"extra_classes" json:"extra_classes"`
	FinalClasses    int             `db:"final_classes" json:"final_classes"`
	DiscountType    DiscountType    `db:"discount_type" json:"discount_type"`
	DiscountValue   int64           `db:"discount_value" json:"discount_value"`
	PriceCents      int64           `db:"price_cents" json:"price_cents"`
	FinalPriceCents int64           `db:"final_price_cents" json:"final_price_cents"`
	Status          AdmissionStatus `db:"status" json:"status"`
	Notes           string          `db:"notes" json:"notes"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time      `db:"deleted_at" json:"-"`
}

// AdmissionDetail joins an admission with display names.
type AdmissionDetail struct {
	Admission
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
	LeadName    *string `db:"lead_name" json:"lead_name,omitempty"`
	CourseName  string  `db:"course_name" json:"course_name"`
	PlanName    string  `db:"plan_name" json:"plan_name"`
}

// AdmissionFilter captures listing criteria for admissions.
type AdmissionFilter struct {
	LeadID    string
	StudentID string
	CourseID  string
	Status    AdmissionStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AdmissionSlotLink associates an admission with a resolved classroom slot.
type AdmissionSlotLink struct {
	AdmissionID     string `db:"admission_id" json:"admission_id"`
	TimeSlotID      string `db:"time_slot_id" json:"time_slot_id"`
	ClassroomSlotID string `db:"classroom_slot_id" json:"classroom_slot_id"`
	DayOfWeek       int    `db:"day_of_week" json:"day_of_week"`
}
