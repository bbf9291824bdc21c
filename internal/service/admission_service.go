package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cadenza-hq/music-crm-api/internal/dto"
	"github.com/cadenza-hq/music-crm-api/internal/models"
	"github.com/cadenza-hq/music-crm-api/internal/repository"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
	"github.com/cadenza-hq/music-crm-api/pkg/export"
)

type admissionRepository interface {
	CreateAllocation(ctx context.Context, commit repository.AllocationCommit) (*models.Admission, error)
	FindByID(ctx context.Context, id string) (*models.Admission, error)
	FindDetailByID(ctx context.Context, id string) (*models.AdmissionDetail, error)
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionDetail, int, error)
	Update(ctx context.Context, adm *models.Admission) error
	SoftDelete(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
	ListSlotLinks(ctx context.Context, admissionID string) ([]models.AdmissionSlotLink, error)
}

type leadStore interface {
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	FindStageByName(ctx context.Context, name string) (*models.LeadStage, error)
	UpdateStage(ctx context.Context, leadID, stageID string) error
}

type coursePlanReader interface {
	FindByID(ctx context.Context, id string) (*models.CoursePlan, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type studentAccounts interface {
	ProvisionStudent(ctx context.Context, fullName, email, phone, password string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type weeklySlotResolver interface {
	Resolve(ctx context.Context, requested []dto.WeeklySlotSelection) (*ResolvedSlots, error)
}

type slotCapacityValidator interface {
	Validate(ctx context.Context, courseID string, resolved models.WeeklySlots) ([]SlotAllocation, error)
}

type attendanceReader interface {
	ListByStudentAndSlots(ctx context.Context, studentID string, slotIDs []string) ([]models.Attendance, error)
}

type admissionMetrics interface {
	ObserveAdmissionOutcome(outcome string)
}

// AdmissionConfig governs allocation behaviour.
type AdmissionConfig struct {
	OnboardedStageName string
}

// AdmissionService orchestrates the admission allocation pipeline: slot
// resolution, capacity validation, calendar generation and the atomic commit,
// plus the lead-stage side effect.
type AdmissionService struct {
	admissions admissionRepository
	leads      leadStore
	plans      coursePlanReader
	courses    courseReader
	students   studentAccounts
	resolver   weeklySlotResolver
	capacity   slotCapacityValidator
	attendance attendanceReader
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	metrics    admissionMetrics
	validator  *validator.Validate
	logger     *zap.Logger
	config     AdmissionConfig
}

// NewAdmissionService wires allocation dependencies.
func NewAdmissionService(
	admissions admissionRepository,
	leads leadStore,
	plans coursePlanReader,
	courses courseReader,
	students studentAccounts,
	resolver weeklySlotResolver,
	capacity slotCapacityValidator,
	attendance attendanceReader,
	metrics admissionMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AdmissionConfig,
) *AdmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OnboardedStageName == "" {
		cfg.OnboardedStageName = "onboarded"
	}
	return &AdmissionService{
		admissions: admissions,
		leads:      leads,
		plans:      plans,
		courses:    courses,
		students:   students,
		resolver:   resolver,
		capacity:   capacity,
		attendance: attendance,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		config:     cfg,
	}
}

// Create allocates one admission end to end. Every validation failure aborts
// before any write; the commit itself is all-or-nothing.
func (s *AdmissionService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateAdmissionRequest) (*models.AdmissionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must be a calendar date (YYYY-MM-DD)")
	}
	startDate = startDate.UTC()

	if req.LeadID == nil && req.StudentID == nil && req.WalkIn == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either a lead or a student identity is required")
	}

	var (
		lead           *models.Lead
		onboardedStage *models.LeadStage
	)
	if req.LeadID != nil {
		onboardedStage, err = s.leads.FindStageByName(ctx, s.config.OnboardedStageName)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "onboarded lead stage is not configured")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead stages")
		}
		lead, err = s.leads.FindByID(ctx, *req.LeadID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
		}
		if actor != nil && actor.Role == models.RoleStaff && lead.OwnerID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "lead belongs to another staff member")
		}
		if lead.StageID == onboardedStage.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lead is already onboarded")
		}
	}

	plan, err := s.plans.FindByID(ctx, req.CoursePlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course plan")
	}
	if !plan.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course plan is inactive")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is inactive")
	}

	if len(req.WeeklySlots) != plan.ClassesPerWeek {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("plan requires exactly %d weekly slots, got %d", plan.ClassesPerWeek, len(req.WeeklySlots)))
	}

	discountType, discountValue, err := normalizeDiscount(req.DiscountType, req.DiscountValue)
	if err != nil {
		return nil, err
	}

	extraClasses := 0
	if req.ExtraClasses != nil {
		extraClasses = *req.ExtraClasses
	}
	if extraClasses < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "extra classes must not be negative")
	}
	baseClasses := plan.TotalClasses
	finalClasses := baseClasses + extraClasses

	resolved, err := s.resolver.Resolve(ctx, req.WeeklySlots)
	if err != nil {
		return nil, err
	}
	allocations, err := s.capacity.Validate(ctx, req.CourseID, resolved.Slots)
	if err != nil {
		return nil, err
	}

	student, err := s.resolveStudent(ctx, req, lead)
	if err != nil {
		return nil, err
	}

	commit := repository.AllocationCommit{
		SlotLinks:  make([]models.AdmissionSlotLink, 0, len(allocations)),
		Capacities: make(map[string]int, len(allocations)),
	}
	for _, alloc := range allocations {
		commit.SlotLinks = append(commit.SlotLinks, models.AdmissionSlotLink{
			TimeSlotID:      alloc.TimeSlotID,
			ClassroomSlotID: alloc.ClassroomSlotID,
			DayOfWeek:       alloc.DayOfWeek,
		})
		commit.Capacities[alloc.ClassroomSlotID] = alloc.Capacity
	}

	status := models.AdmissionStatusPending
	if student != nil {
		status = models.AdmissionStatusActive

		calendarSlots := make([]CalendarSlot, 0, len(allocations))
		for _, alloc := range allocations {
			calendarSlots = append(calendarSlots, CalendarSlot{DayOfWeek: alloc.DayOfWeek, ClassroomSlotID: alloc.ClassroomSlotID})
		}
		occurrences, genErr := GenerateAttendanceCalendar(startDate, finalClasses, calendarSlots)
		if genErr != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, genErr.Error())
		}

		seenSlots := make(map[string]struct{}, len(allocations))
		for _, alloc := range allocations {
			if _, ok := seenSlots[alloc.ClassroomSlotID]; ok {
				continue
			}
			seenSlots[alloc.ClassroomSlotID] = struct{}{}
			commit.Enrollments = append(commit.Enrollments, models.ClassroomEnrollment{
				StudentID:       student.ID,
				ClassroomSlotID: alloc.ClassroomSlotID,
				StartDate:       startDate,
				Status:          models.EnrollmentStatusActive,
			})
		}
		for _, occ := range occurrences {
			commit.Attendance = append(commit.Attendance, models.Attendance{
				StudentID:       student.ID,
				ClassroomSlotID: occ.ClassroomSlotID,
				ClassDate:       occ.Date,
				Status:          models.AttendanceStatusScheduled,
			})
		}
	}

	admission := &models.Admission{
		LeadID:          req.LeadID,
		CoursePlanID:    plan.ID,
		CourseID:        course.ID,
		StartDate:       startDate,
		WeeklySlots:     resolved.Slots,
		BaseClasses:     baseClasses,
		ExtraClasses:    extraClasses,
		FinalClasses:    finalClasses,
		DiscountType:    discountType,
		DiscountValue:   discountValue,
		PriceCents:      plan.PriceCents,
		FinalPriceCents: applyDiscount(plan.PriceCents, discountType, discountValue),
		Status:          status,
		Notes:           req.Notes,
	}
	if student != nil {
		admission.StudentID = &student.ID
	}
	commit.Admission = admission

	stored, err := s.admissions.CreateAllocation(ctx, commit)
	if err != nil {
		s.observeOutcome("rejected")
		var capErr *models.CapacityExceededError
		if errors.As(err, &capErr) {
			return nil, appErrors.WithDetails(appErrors.ErrCapacityExceeded,
				"selected classroom slots are full", map[string]interface{}{"slots": capErr.Slots})
		}
		if errors.Is(err, repository.ErrDuplicateActiveEnrollment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already actively enrolled in a selected classroom slot")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit admission")
	}
	s.observeOutcome("committed")

	if lead != nil && lead.StageID != onboardedStage.ID {
		if err := s.leads.UpdateStage(ctx, lead.ID, onboardedStage.ID); err != nil {
			// The admission is already durable; surface the miss in logs.
			s.logger.Error("failed to advance lead stage",
				zap.String("lead_id", lead.ID),
				zap.String("admission_id", stored.ID),
				zap.Error(err))
		}
	}

	detail, err := s.admissions.FindDetailByID(ctx, stored.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission detail")
	}
	return detail, nil
}

func (s *AdmissionService) resolveStudent(ctx context.Context, req dto.CreateAdmissionRequest, lead *models.Lead) (*models.User, error) {
	if req.StudentID != nil {
		student, err := s.students.FindByID(ctx, *req.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if student.Role != models.RoleStudent {
			return nil, appErrors.Clone(appErrors.ErrValidation, "referenced user is not a student")
		}
		return student, nil
	}
	if req.WalkIn != nil {
		return s.students.ProvisionStudent(ctx, req.WalkIn.FullName, req.WalkIn.Email, req.WalkIn.Phone, req.WalkIn.Password)
	}
	// Typical from-lead flow: bind a fresh student account to the lead's
	// contact details. A lead without an email stays student-less until
	// attachment.
	if lead != nil && lead.Email != "" {
		return s.students.ProvisionStudent(ctx, lead.FullName, lead.Email, lead.Phone, "")
	}
	return nil, nil
}

func (s *AdmissionService) observeOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveAdmissionOutcome(outcome)
	}
}

// Get returns an admission with contextual names.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.AdmissionDetail, error) {
	detail, err := s.admissions.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	return detail, nil
}

// List returns admissions with pagination metadata.
func (s *AdmissionService) List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionDetail, *models.Pagination, error) {
	admissions, total, err := s.admissions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admissions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return admissions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update recomputes finalClasses from the stored baseClasses plus the new
// extraClasses and re-normalizes the discount. Slots, enrollments and
// attendance are never re-touched here.
func (s *AdmissionService) Update(ctx context.Context, id string, req dto.UpdateAdmissionRequest) (*models.AdmissionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission update payload")
	}
	admission, err := s.admissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}

	if req.ExtraClasses != nil {
		admission.ExtraClasses = *req.ExtraClasses
	}
	admission.FinalClasses = admission.BaseClasses + admission.ExtraClasses

	rawType := string(admission.DiscountType)
	if req.DiscountType != nil {
		rawType = *req.DiscountType
	}
	rawValue := admission.DiscountValue
	if req.DiscountValue != nil {
		rawValue = *req.DiscountValue
	}
	discountType, discountValue, err := normalizeDiscount(rawType, &rawValue)
	if err != nil {
		return nil, err
	}
	admission.DiscountType = discountType
	admission.DiscountValue = discountValue
	admission.FinalPriceCents = applyDiscount(admission.PriceCents, discountType, discountValue)

	if req.Notes != nil {
		admission.Notes = *req.Notes
	}
	if req.Status != nil {
		status := models.AdmissionStatus(strings.ToUpper(*req.Status))
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown admission status %q", *req.Status))
		}
		admission.Status = status
	}

	if err := s.admissions.Update(ctx, admission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admission")
	}
	detail, err := s.admissions.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission detail")
	}
	return detail, nil
}

// Delete soft-deletes an admission.
func (s *AdmissionService) Delete(ctx context.Context, id string) error {
	if _, err := s.admissions.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	if err := s.admissions.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete admission")
	}
	return nil
}

// HardDelete removes an admission and its dependent rows. Route-level RBAC
// restricts this to privileged callers.
func (s *AdmissionService) HardDelete(ctx context.Context, id string) error {
	if err := s.admissions.HardDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hard delete admission")
	}
	return nil
}

// ExportSchedule renders the generated attendance calendar as CSV or PDF.
func (s *AdmissionService) ExportSchedule(ctx context.Context, id, format string) ([]byte, string, string, error) {
	admission, err := s.admissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	if admission.StudentID == nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "admission has no generated schedule yet")
	}

	links, err := s.admissions.ListSlotLinks(ctx, id)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission slots")
	}
	slotIDs := make([]string, 0, len(links))
	for _, link := range links {
		slotIDs = append(slotIDs, link.ClassroomSlotID)
	}
	rows, err := s.attendance.ListByStudentAndSlots(ctx, *admission.StudentID, slotIDs)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance rows")
	}

	data := export.Dataset{Headers: []string{"Date", "Weekday", "Classroom Slot", "Status"}}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Date":           row.ClassDate.Format("2006-01-02"),
			"Weekday":        row.ClassDate.Weekday().String(),
			"Classroom Slot": row.ClassroomSlotID,
			"Status":         string(row.Status),
		})
	}

	switch strings.ToLower(format) {
	case "pdf":
		payload, err := s.pdf.Render(data, "Class Schedule")
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
		}
		return payload, fmt.Sprintf("admission-%s-schedule.pdf", id), "application/pdf", nil
	default:
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
		}
		return payload, fmt.Sprintf("admission-%s-schedule.csv", id), "text/csv", nil
	}
}

// normalizeDiscount applies defaults and bounds: NONE zeroes the value,
// negatives are rejected, PERCENT caps at 100.
func normalizeDiscount(rawType string, rawValue *int64) (models.DiscountType, int64, error) {
	discountType := models.DiscountNone
	if rawType != "" {
		discountType = models.DiscountType(strings.ToUpper(rawType))
	}
	if !discountType.Valid() {
		return "", 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown discount type %q", rawType))
	}
	var value int64
	if rawValue != nil {
		value = *rawValue
	}
	if discountType == models.DiscountNone {
		return discountType, 0, nil
	}
	if value < 0 {
		return "", 0, appErrors.Clone(appErrors.ErrValidation, "discount value must not be negative")
	}
	if discountType == models.DiscountPercent && value > 100 {
		return "", 0, appErrors.Clone(appErrors.ErrValidation, "percent discount cannot exceed 100")
	}
	return discountType, value, nil
}

// applyDiscount computes the final price in minor currency units, clamped at
// zero.
func applyDiscount(priceCents int64, discountType models.DiscountType, value int64) int64 {
	var final int64
	switch discountType {
	case models.DiscountPercent:
		final = priceCents - priceCents*value/100
	case models.DiscountAmount:
		final = priceCents - value
	default:
		final = priceCents
	}
	if final < 0 {
		return 0
	}
	return final
}
