package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cadenza-hq/music-crm-api/internal/models"
)

// CoursePlanRepository handles persistence of course plans.
type CoursePlanRepository struct {
	db *sqlx.DB
}

// NewCoursePlanRepository constructs the repository.
func NewCoursePlanRepository(db *sqlx.DB) *CoursePlanRepository {
	return &CoursePlanRepository{db: db}
}

// FindByID returns a non-deleted plan by its ID.
func (r *CoursePlanRepository) FindByID(ctx context.Context, id string) (*models.CoursePlan, error) {
	const query = `SELECT id, name, duration_months, classes_per_week, total_classes, price_cents, active, created_at, updated_at, deleted_at
        FROM course_plans WHERE id = $1 AND deleted_at IS NULL`
	var plan models.CoursePlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// List returns plans filtered by the provided criteria.
func (r *CoursePlanRepository) List(ctx context.Context, filter models.CoursePlanFilter) ([]models.CoursePlan, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []interface{}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	clause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, name, duration_months, classes_per_week, total_classes, price_cents, active, created_at, updated_at, deleted_at
        FROM course_plans WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`, clause, size, offset)
	var plans []models.CoursePlan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list course plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM course_plans WHERE %s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count course plans: %w", err)
	}
	return plans, total, nil
}

// Create persists a new course plan.
func (r *CoursePlanRepository) Create(ctx context.Context, plan *models.CoursePlan) error {
	now := time.Now().UTC()
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	const query = `INSERT INTO course_plans (id, name, duration_months, classes_per_week, total_classes, price_cents, active, created_at, updated_at)
        VALUES (:id, :name, :duration_months, :classes_per_week, :total_classes, :price_cents, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create course plan: %w", err)
	}
	return nil
}

// Update persists plan edits, keeping total_classes consistent.
func (r *CoursePlanRepository) Update(ctx context.Context, plan *models.CoursePlan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE course_plans SET name = :name, duration_months = :duration_months, classes_per_week = :classes_per_week,
        total_classes = :total_classes, price_cents = :price_cents, active = :active, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("update course plan: %w", err)
	}
	return nil
}

// SoftDelete marks a plan as deleted without removing the row.
func (r *CoursePlanRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE course_plans SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete course plan: %w", err)
	}
	return nil
}
