package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cadenza-hq/music-crm-api/internal/models"
)

// ErrDuplicateActiveEnrollment is returned when the partial unique index on
// active (student, classroom slot) pairs rejects an enrollment insert. This
// is how a lost capacity race surfaces instead of silent overbooking.
var ErrDuplicateActiveEnrollment = fmt.Errorf("student already actively enrolled in classroom slot")

// AllocationCommit is the fully-computed payload for the atomic admission
// commit: the admission row, its slot associations, one enrollment per
// distinct classroom slot, and every generated attendance occurrence.
// Capacities carries the capacity ceiling per classroom slot so the commit
// can re-verify headroom inside its own transaction.
type AllocationCommit struct {
	Admission   *models.Admission
	SlotLinks   []models.AdmissionSlotLink
	Enrollments []models.ClassroomEnrollment
	Attendance  []models.Attendance
	Capacities  map[string]int
}

// AdmissionRepository handles persistence of admissions and the atomic
// allocation commit.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository constructs the repository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

const admissionColumns = `id, lead_id, student_id, course_plan_id, course_id, start_date, weekly_slots,
        base_classes, extra_classes, final_classes, discount_type, discount_value, price_cents, final_price_cents,
        status, notes, created_at, updated_at, deleted_at`

// CreateAllocation commits an admission with its slot links, enrollments and
// attendance rows in a single transaction. Capacity is re-checked inside the
// transaction immediately before the enrollment inserts; any failure rolls
// everything back.
func (r *AdmissionRepository) CreateAllocation(ctx context.Context, commit AllocationCommit) (*models.Admission, error) {
	adm := commit.Admission
	now := time.Now().UTC()
	if adm.ID == "" {
		adm.ID = uuid.NewString()
	}
	if adm.CreatedAt.IsZero() {
		adm.CreatedAt = now
	}
	adm.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin allocation: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const insertAdmission = `INSERT INTO admissions (id, lead_id, student_id, course_plan_id, course_id, start_date, weekly_slots,
        base_classes, extra_classes, final_classes, discount_type, discount_value, price_cents, final_price_cents,
        status, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
        RETURNING ` + admissionColumns
	var stored models.Admission
	if err := tx.QueryRowxContext(ctx, insertAdmission,
		adm.ID, adm.LeadID, adm.StudentID, adm.CoursePlanID, adm.CourseID, adm.StartDate, adm.WeeklySlots,
		adm.BaseClasses, adm.ExtraClasses, adm.FinalClasses, adm.DiscountType, adm.DiscountValue,
		adm.PriceCents, adm.FinalPriceCents, adm.Status, adm.Notes, adm.CreatedAt, adm.UpdatedAt,
	).StructScan(&stored); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("create admission: no row returned")
		}
		return nil, fmt.Errorf("create admission: %w", err)
	}

	const insertLink = `INSERT INTO admission_time_slots (admission_id, time_slot_id, classroom_slot_id, day_of_week)
        VALUES ($1, $2, $3, $4)`
	for _, link := range commit.SlotLinks {
		if _, err := tx.ExecContext(ctx, insertLink, stored.ID, link.TimeSlotID, link.ClassroomSlotID, link.DayOfWeek); err != nil {
			return nil, fmt.Errorf("create admission slot link: %w", err)
		}
	}

	if len(commit.Enrollments) > 0 {
		if err := recheckCapacity(ctx, tx, commit); err != nil {
			return nil, err
		}

		const insertEnrollment = `INSERT INTO classroom_enrollments (id, student_id, classroom_slot_id, admission_id, start_date, status, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for i := range commit.Enrollments {
			enr := &commit.Enrollments[i]
			if enr.ID == "" {
				enr.ID = uuid.NewString()
			}
			enr.AdmissionID = stored.ID
			if _, err := tx.ExecContext(ctx, insertEnrollment,
				enr.ID, enr.StudentID, enr.ClassroomSlotID, enr.AdmissionID, enr.StartDate, enr.Status, now, now,
			); err != nil {
				if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
					return nil, ErrDuplicateActiveEnrollment
				}
				return nil, fmt.Errorf("create classroom enrollment: %w", err)
			}
		}
	}

	if len(commit.Attendance) > 0 {
		const insertAttendance = `INSERT INTO attendance (id, student_id, classroom_slot_id, class_date, status, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`
		for i := range commit.Attendance {
			att := &commit.Attendance[i]
			if att.ID == "" {
				att.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, insertAttendance,
				att.ID, att.StudentID, att.ClassroomSlotID, att.ClassDate, att.Status, now, now,
			); err != nil {
				return nil, fmt.Errorf("create attendance row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}
	committed = true
	return &stored, nil
}

// recheckCapacity re-runs the grouped active-enrollment count against the
// transaction and compares it to each slot's ceiling. count >= capacity means
// the slot is full: a slot at exactly capacity cannot take one more.
func recheckCapacity(ctx context.Context, tx *sqlx.Tx, commit AllocationCommit) error {
	slotIDs := make([]string, 0, len(commit.Enrollments))
	for _, enr := range commit.Enrollments {
		slotIDs = append(slotIDs, enr.ClassroomSlotID)
	}
	counts, err := countActiveEnrollments(ctx, tx, slotIDs)
	if err != nil {
		return err
	}
	countBySlot := make(map[string]int, len(counts))
	for _, c := range counts {
		countBySlot[c.ClassroomSlotID] = c.Count
	}
	var full []models.SlotCapacityDetail
	for _, link := range commit.SlotLinks {
		capacity, ok := commit.Capacities[link.ClassroomSlotID]
		if !ok {
			continue
		}
		if countBySlot[link.ClassroomSlotID] >= capacity {
			full = append(full, models.SlotCapacityDetail{
				TimeSlotID:      link.TimeSlotID,
				ClassroomSlotID: link.ClassroomSlotID,
				Capacity:        capacity,
				Enrolled:        countBySlot[link.ClassroomSlotID],
			})
		}
	}
	if len(full) > 0 {
		return &models.CapacityExceededError{Slots: full}
	}
	return nil
}

// FindByID returns a non-deleted admission by its ID.
func (r *AdmissionRepository) FindByID(ctx context.Context, id string) (*models.Admission, error) {
	query := `SELECT ` + admissionColumns + ` FROM admissions WHERE id = $1 AND deleted_at IS NULL`
	var adm models.Admission
	if err := r.db.GetContext(ctx, &adm, query, id); err != nil {
		return nil, err
	}
	return &adm, nil
}

// FindDetailByID returns an admission with contextual display names.
func (r *AdmissionRepository) FindDetailByID(ctx context.Context, id string) (*models.AdmissionDetail, error) {
	const query = `SELECT a.id, a.lead_id, a.student_id, a.course_plan_id, a.course_id, a.start_date, a.weekly_slots,
        a.base_classes, a.extra_classes, a.final_classes, a.discount_type, a.discount_value, a.price_cents, a.final_price_cents,
        a.status, a.notes, a.created_at, a.updated_at, a.deleted_at,
        u.full_name AS student_name, l.full_name AS lead_name, c.name AS course_name, p.name AS plan_name
        FROM admissions a
        LEFT JOIN users u ON u.id = a.student_id
        LEFT JOIN leads l ON l.id = a.lead_id
        JOIN courses c ON c.id = a.course_id
        JOIN course_plans p ON p.id = a.course_plan_id
        WHERE a.id = $1 AND a.deleted_at IS NULL`
	var detail models.AdmissionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns admissions filtered by the provided criteria.
func (r *AdmissionRepository) List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionDetail, int, error) {
	base := `FROM admissions a
LEFT JOIN users u ON u.id = a.student_id
LEFT JOIN leads l ON l.id = a.lead_id
JOIN courses c ON c.id = a.course_id
JOIN course_plans p ON p.id = a.course_plan_id`
	where := []string{"a.deleted_at IS NULL"}
	var args []interface{}
	if filter.LeadID != "" {
		where = append(where, fmt.Sprintf("a.lead_id = $%d", len(args)+1))
		args = append(args, filter.LeadID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("a.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := strings.Join(where, " AND ")

	allowedSorts := map[string]string{
		"created_at":   "a.created_at",
		"start_date":   "a.start_date",
		"student_name": "u.full_name",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.lead_id, a.student_id, a.course_plan_id, a.course_id, a.start_date, a.weekly_slots,
        a.base_classes, a.extra_classes, a.final_classes, a.discount_type, a.discount_value, a.price_cents, a.final_price_cents,
        a.status, a.notes, a.created_at, a.updated_at, a.deleted_at,
        u.full_name AS student_name, l.full_name AS lead_name, c.name AS course_name, p.name AS plan_name
        %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, clause, orderBy, order, size, offset)

	var admissions []models.AdmissionDetail
	if err := r.db.SelectContext(ctx, &admissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list admissions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count admissions: %w", err)
	}
	return admissions, total, nil
}

// Update persists the lighter-weight admission edits.
func (r *AdmissionRepository) Update(ctx context.Context, adm *models.Admission) error {
	adm.UpdatedAt = time.Now().UTC()
	const query = `UPDATE admissions SET extra_classes = :extra_classes, final_classes = :final_classes,
        discount_type = :discount_type, discount_value = :discount_value, final_price_cents = :final_price_cents,
        notes = :notes, status = :status, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, adm); err != nil {
		return fmt.Errorf("update admission: %w", err)
	}
	return nil
}

// SoftDelete marks an admission as deleted without removing rows.
func (r *AdmissionRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE admissions SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete admission: %w", err)
	}
	return nil
}

// HardDelete removes an admission and its dependent rows, including the
// generated SCHEDULED attendance for its classroom slots. Marked attendance
// (PRESENT, ABSENT, ...) is historical and stays. Reserved for privileged
// callers.
func (r *AdmissionRepository) HardDelete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin hard delete: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	const deleteAttendance = `DELETE FROM attendance
        WHERE student_id = (SELECT student_id FROM admissions WHERE id = $1)
          AND classroom_slot_id IN (SELECT classroom_slot_id FROM admission_time_slots WHERE admission_id = $1)
          AND status = $2`
	if _, err := tx.ExecContext(ctx, deleteAttendance, id, models.AttendanceStatusScheduled); err != nil {
		return fmt.Errorf("hard delete attendance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM classroom_enrollments WHERE admission_id = $1`, id); err != nil {
		return fmt.Errorf("hard delete enrollments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM admission_time_slots WHERE admission_id = $1`, id); err != nil {
		return fmt.Errorf("hard delete slot links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM admissions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("hard delete admission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit hard delete: %w", err)
	}
	committed = true
	return nil
}

// ListSlotLinks returns the classroom slot associations for an admission.
func (r *AdmissionRepository) ListSlotLinks(ctx context.Context, admissionID string) ([]models.AdmissionSlotLink, error) {
	const query = `SELECT admission_id, time_slot_id, classroom_slot_id, day_of_week
        FROM admission_time_slots WHERE admission_id = $1 ORDER BY day_of_week ASC`
	var links []models.AdmissionSlotLink
	if err := r.db.SelectContext(ctx, &links, query, admissionID); err != nil {
		return nil, fmt.Errorf("list admission slot links: %w", err)
	}
	return links, nil
}
