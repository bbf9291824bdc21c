package models

import "time"

// CoursePlan is a purchasable package defining duration, weekly cadence and
// total class count. TotalClasses is derived: duration * 4 * classes per week.
type CoursePlan struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	DurationMonths int        `db:"duration_months" json:"duration_months"`
	ClassesPerWeek int        `db:"classes_per_week" json:"classes_per_week"`
	TotalClasses   int        `db:"total_classes" json:"total_classes"`
	PriceCents     int64      `db:"price_cents" json:"price_cents"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}

// DeriveTotalClasses computes the class count implied by duration and cadence.
func DeriveTotalClasses(durationMonths, classesPerWeek int) int {
	return durationMonths * 4 * classesPerWeek
}

// CoursePlanFilter captures listing criteria for plans.
type CoursePlanFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
