package models

import "time"

// TimeSlotTemplate is a recurring weekly time window independent of any
// course, e.g. Monday 16:00-17:00. DayOfWeek follows time.Weekday (0=Sunday).
type TimeSlotTemplate struct {
	ID              string    `db:"id" json:"id"`
	DayOfWeek       int       `db:"day_of_week" json:"day_of_week"`
	StartTime       string    `db:"start_time" json:"start_time"`
	EndTime         string    `db:"end_time" json:"end_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OperatingDay marks whether the school is open on a weekday. Templates on a
// closed day stay visible for display but cannot take new allocations.
type OperatingDay struct {
	DayOfWeek int  `db:"day_of_week" json:"day_of_week"`
	IsOpen    bool `db:"is_open" json:"is_open"`
}

// TimeSlotView is a template joined with its operating-day openness for the
// booking UI.
type TimeSlotView struct {
	TimeSlotTemplate
	DayOpen bool `db:"day_open" json:"day_open"`
}
