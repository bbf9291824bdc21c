package models

import "time"

// AttendanceStatus enumerates per-occurrence attendance states.
type AttendanceStatus string

const (
	AttendanceStatusScheduled AttendanceStatus = "SCHEDULED"
	AttendanceStatusPresent   AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent    AttendanceStatus = "ABSENT"
	AttendanceStatusLate      AttendanceStatus = "LATE"
	AttendanceStatusExcused   AttendanceStatus = "EXCUSED"
)

// Attendance is one scheduled class occurrence for one student at one
// classroom slot. Rows are created atomically at admission time and mutated
// later by attendance taking and rescheduling.
type Attendance struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	ClassroomSlotID string           `db:"classroom_slot_id" json:"classroom_slot_id"`
	ClassDate       time.Time        `db:"class_date" json:"class_date"`
	Status          AttendanceStatus `db:"status" json:"status"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}
