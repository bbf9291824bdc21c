package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cadenza-hq/music-crm-api/internal/models"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

type classroomSlotReader interface {
	ListActiveByCourseAndTimeSlots(ctx context.Context, courseID string, timeSlotIDs []string) ([]models.ClassroomSlot, error)
	CountActiveEnrollments(ctx context.Context, slotIDs []string) ([]models.SlotEnrollmentCount, error)
}

// SlotAllocation maps one resolved weekly slot to its concrete classroom
// slot, ready for calendar generation.
type SlotAllocation struct {
	TimeSlotID      string
	ClassroomSlotID string
	DayOfWeek       int
	Capacity        int
}

// CapacityValidator maps resolved slots to classroom allocations for a course
// and enforces each classroom's capacity ceiling.
type CapacityValidator struct {
	classrooms classroomSlotReader
	logger     *zap.Logger
}

// NewCapacityValidator constructs CapacityValidator.
func NewCapacityValidator(classrooms classroomSlotReader, logger *zap.Logger) *CapacityValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityValidator{classrooms: classrooms, logger: logger}
}

// Validate resolves classroom bindings and checks current active enrollment
// against capacity. A slot at exactly capacity is full: the check is >=, not
// >. Failures carry the offending slot ids so the UI can offer alternatives.
func (v *CapacityValidator) Validate(ctx context.Context, courseID string, resolved models.WeeklySlots) ([]SlotAllocation, error) {
	timeSlotIDs := make([]string, 0, len(resolved))
	for _, slot := range resolved {
		timeSlotIDs = append(timeSlotIDs, slot.TimeSlotID)
	}

	bindings, err := v.classrooms.ListActiveByCourseAndTimeSlots(ctx, courseID, timeSlotIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom slots")
	}

	byTimeSlot := make(map[string]models.ClassroomSlot, len(bindings))
	for _, binding := range bindings {
		if existing, ok := byTimeSlot[binding.TimeSlotID]; ok {
			// Should be prevented by the (time_slot_id, course_id) uniqueness
			// constraint; reject rather than pick arbitrarily.
			v.logger.Error("duplicate classroom slot binding",
				zap.String("course_id", courseID),
				zap.String("time_slot_id", binding.TimeSlotID),
				zap.Strings("classroom_slot_ids", []string{existing.ID, binding.ID}))
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("multiple classroom slots configured for time slot %s", binding.TimeSlotID))
		}
		byTimeSlot[binding.TimeSlotID] = binding
	}

	var missing []models.SlotCapacityDetail
	for _, slot := range resolved {
		if _, ok := byTimeSlot[slot.TimeSlotID]; !ok {
			missing = append(missing, models.SlotCapacityDetail{TimeSlotID: slot.TimeSlotID})
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation,
			"selected time slots are not staffed for this course", map[string]interface{}{"slots": missing})
	}

	slotIDs := make([]string, 0, len(byTimeSlot))
	for _, binding := range byTimeSlot {
		slotIDs = append(slotIDs, binding.ID)
	}
	counts, err := v.classrooms.CountActiveEnrollments(ctx, slotIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	countBySlot := make(map[string]int, len(counts))
	for _, c := range counts {
		countBySlot[c.ClassroomSlotID] = c.Count
	}

	var full []models.SlotCapacityDetail
	allocations := make([]SlotAllocation, 0, len(resolved))
	for _, slot := range resolved {
		binding := byTimeSlot[slot.TimeSlotID]
		if countBySlot[binding.ID] >= binding.Capacity {
			full = append(full, models.SlotCapacityDetail{
				TimeSlotID:      slot.TimeSlotID,
				ClassroomSlotID: binding.ID,
				Capacity:        binding.Capacity,
				Enrolled:        countBySlot[binding.ID],
			})
			continue
		}
		allocations = append(allocations, SlotAllocation{
			TimeSlotID:      slot.TimeSlotID,
			ClassroomSlotID: binding.ID,
			DayOfWeek:       slot.DayOfWeek,
			Capacity:        binding.Capacity,
		})
	}
	if len(full) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrCapacityExceeded,
			"selected classroom slots are full", map[string]interface{}{"slots": full})
	}
	return allocations, nil
}
