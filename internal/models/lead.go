package models

import "time"

// Lead represents a prospective student in the sales pipeline.
type Lead struct {
	ID        string     `db:"id" json:"id"`
	FullName  string     `db:"full_name" json:"full_name"`
	Email     string     `db:"email" json:"email"`
	Phone     string     `db:"phone" json:"phone"`
	OwnerID   string     `db:"owner_id" json:"owner_id"`
	StageID   string     `db:"stage_id" json:"stage_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// LeadStage is a configurable pipeline stage. The stage named by
// ADMISSIONS_ONBOARDED_STAGE marks a converted lead.
type LeadStage struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Position int    `db:"position" json:"position"`
}
