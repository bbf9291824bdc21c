package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cadenza-hq/music-crm-api/internal/models"
)

// LeadRepository handles persistence of leads and pipeline stages.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository constructs the repository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// FindByID returns a non-deleted lead by its ID.
func (r *LeadRepository) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	const query = `SELECT id, full_name, email, phone, owner_id, stage_id, created_at, updated_at, deleted_at
        FROM leads WHERE id = $1 AND deleted_at IS NULL`
	var lead models.Lead
	if err := r.db.GetContext(ctx, &lead, query, id); err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindStageByName returns a pipeline stage by its configured name.
func (r *LeadRepository) FindStageByName(ctx context.Context, name string) (*models.LeadStage, error) {
	const query = `SELECT id, name, position FROM lead_stages WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var stage models.LeadStage
	if err := r.db.GetContext(ctx, &stage, query, name); err != nil {
		return nil, err
	}
	return &stage, nil
}

// UpdateStage moves a lead to another pipeline stage.
func (r *LeadRepository) UpdateStage(ctx context.Context, leadID, stageID string) error {
	const query = `UPDATE leads SET stage_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, leadID, stageID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update lead stage: %w", err)
	}
	return nil
}
