package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cadenza-hq/music-crm-api/internal/models"
)

// ClassroomSlotRepository reads classroom slot bindings and their active
// enrollment counts.
type ClassroomSlotRepository struct {
	db *sqlx.DB
}

// NewClassroomSlotRepository constructs the repository.
func NewClassroomSlotRepository(db *sqlx.DB) *ClassroomSlotRepository {
	return &ClassroomSlotRepository{db: db}
}

// ListActiveByCourseAndTimeSlots returns active bindings for a course
// restricted to the given time slot set.
func (r *ClassroomSlotRepository) ListActiveByCourseAndTimeSlots(ctx context.Context, courseID string, timeSlotIDs []string) ([]models.ClassroomSlot, error) {
	if len(timeSlotIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(timeSlotIDs))
	args := []interface{}{courseID}
	for i, id := range timeSlotIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT id, time_slot_id, course_id, teacher_id, capacity, active, created_at, updated_at
        FROM classroom_slots WHERE course_id = $1 AND active = TRUE AND time_slot_id IN (%s)`, strings.Join(placeholders, ","))
	var slots []models.ClassroomSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list classroom slots: %w", err)
	}
	return slots, nil
}

// CountActiveEnrollments returns grouped active-enrollment counts for the
// given classroom slots.
func (r *ClassroomSlotRepository) CountActiveEnrollments(ctx context.Context, slotIDs []string) ([]models.SlotEnrollmentCount, error) {
	return countActiveEnrollments(ctx, r.db, slotIDs)
}

// countActiveEnrollments runs the grouped count against any executor so the
// allocation commit can re-check capacity inside its own transaction.
func countActiveEnrollments(ctx context.Context, exec sqlx.ExtContext, slotIDs []string) ([]models.SlotEnrollmentCount, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(slotIDs))
	args := make([]interface{}, 0, len(slotIDs)+1)
	for i, id := range slotIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT classroom_slot_id, COUNT(*) AS count FROM classroom_enrollments
        WHERE status = $%d AND classroom_slot_id IN (%s)
        GROUP BY classroom_slot_id`, len(slotIDs)+1, strings.Join(placeholders, ","))
	args = append(args, models.EnrollmentStatusActive)

	rows, err := exec.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count active enrollments: %w", err)
	}
	defer rows.Close()

	var counts []models.SlotEnrollmentCount
	for rows.Next() {
		var c models.SlotEnrollmentCount
		if err := rows.StructScan(&c); err != nil {
			return nil, fmt.Errorf("scan enrollment count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollment counts: %w", err)
	}
	return counts, nil
}
