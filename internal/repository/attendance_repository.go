package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cadenza-hq/music-crm-api/internal/models"
)

// AttendanceRepository reads attendance occurrences. Rows are created by the
// allocation commit; mutation belongs to the attendance-taking surface.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByStudentAndSlots returns a student's occurrences for the given
// classroom slots ordered by class date.
func (r *AttendanceRepository) ListByStudentAndSlots(ctx context.Context, studentID string, slotIDs []string) ([]models.Attendance, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(slotIDs))
	args := []interface{}{studentID}
	for i, id := range slotIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT id, student_id, classroom_slot_id, class_date, status, created_at, updated_at
        FROM attendance WHERE student_id = $1 AND classroom_slot_id IN (%s)
        ORDER BY class_date ASC`, strings.Join(placeholders, ","))
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}
