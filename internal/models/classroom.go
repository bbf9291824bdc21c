package models

import "time"

// ClassroomSlot binds a time slot template to a course and teacher with a
// seat capacity. At most one active binding exists per (time_slot_id,
// course_id); the validator rejects duplicates instead of picking one.
type ClassroomSlot struct {
	ID         string    `db:"id" json:"id"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	Capacity   int       `db:"capacity" json:"capacity"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentStatus enumerates classroom enrollment states.
type EnrollmentStatus string

const (
	EnrollmentStatusActive EnrollmentStatus = "ACTIVE"
	EnrollmentStatusPaused EnrollmentStatus = "PAUSED"
	EnrollmentStatusEnded  EnrollmentStatus = "ENDED"
)

// ClassroomEnrollment seats a student in a classroom slot. A partial unique
// index keeps at most one ACTIVE row per (student_id, classroom_slot_id).
type ClassroomEnrollment struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	ClassroomSlotID string           `db:"classroom_slot_id" json:"classroom_slot_id"`
	AdmissionID     string           `db:"admission_id" json:"admission_id"`
	StartDate       time.Time        `db:"start_date" json:"start_date"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// SlotEnrollmentCount is a grouped count of active enrollments per slot.
type SlotEnrollmentCount struct {
	ClassroomSlotID string `db:"classroom_slot_id" json:"classroom_slot_id"`
	Count           int    `db:"count" json:"count"`
}

// SlotCapacityDetail names a full or unstaffed slot in structured error
// payloads.
type SlotCapacityDetail struct {
	TimeSlotID      string `json:"time_slot_id"`
	ClassroomSlotID string `json:"classroom_slot_id,omitempty"`
	Capacity        int    `json:"capacity,omitempty"`
	Enrolled        int    `json:"enrolled,omitempty"`
}

// CapacityExceededError is returned by the allocation path when any involved
// classroom slot is already at capacity.
type CapacityExceededError struct {
	Slots []SlotCapacityDetail `json:"slots"`
}

// Error implements the error interface.
func (e *CapacityExceededError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "classroom capacity exceeded"
}
