package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cadenza-hq/music-crm-api/internal/models"
)

// TimeSlotRepository reads recurring time slot templates and operating days.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository constructs the repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// ListByIDs returns templates for the given id set.
func (r *TimeSlotRepository) ListByIDs(ctx context.Context, ids []string) ([]models.TimeSlotTemplate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, day_of_week, start_time, end_time, duration_minutes, active, created_at, updated_at
        FROM time_slot_templates WHERE id IN (%s)`, strings.Join(placeholders, ","))
	var slots []models.TimeSlotTemplate
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list time slot templates: %w", err)
	}
	return slots, nil
}

// ListOperatingDays returns operating-day rows for the given weekday set.
func (r *TimeSlotRepository) ListOperatingDays(ctx context.Context, days []int) ([]models.OperatingDay, error) {
	if len(days) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(days))
	args := make([]interface{}, len(days))
	for i, day := range days {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = day
	}
	query := fmt.Sprintf(`SELECT day_of_week, is_open FROM operating_days WHERE day_of_week IN (%s)`, strings.Join(placeholders, ","))
	var rows []models.OperatingDay
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list operating days: %w", err)
	}
	return rows, nil
}

// ListViews returns all templates joined with operating-day openness for
// catalog display. Closed-day templates are included but flagged.
func (r *TimeSlotRepository) ListViews(ctx context.Context) ([]models.TimeSlotView, error) {
	const query = `SELECT t.id, t.day_of_week, t.start_time, t.end_time, t.duration_minutes, t.active, t.created_at, t.updated_at,
        COALESCE(od.is_open, FALSE) AS day_open
        FROM time_slot_templates t
        LEFT JOIN operating_days od ON od.day_of_week = t.day_of_week
        ORDER BY t.day_of_week ASC, t.start_time ASC`
	var views []models.TimeSlotView
	if err := r.db.SelectContext(ctx, &views, query); err != nil {
		return nil, fmt.Errorf("list time slot views: %w", err)
	}
	return views, nil
}
