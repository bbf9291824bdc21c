package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cadenza-hq/music-crm-api/internal/dto"
	"github.com/cadenza-hq/music-crm-api/internal/models"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

type timeSlotReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.TimeSlotTemplate, error)
	ListOperatingDays(ctx context.Context, days []int) ([]models.OperatingDay, error)
}

// ResolvedSlots is the canonical weekly selection plus the distinct weekdays
// it touches.
type ResolvedSlots struct {
	Slots    models.WeeklySlots
	Weekdays []int
}

// SlotResolver canonicalises requested weekly slots against their stored
// templates and validates operating days.
type SlotResolver struct {
	slots  timeSlotReader
	logger *zap.Logger
}

// NewSlotResolver constructs SlotResolver.
func NewSlotResolver(slots timeSlotReader, logger *zap.Logger) *SlotResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotResolver{slots: slots, logger: logger}
}

// Resolve maps requested slot ids to canonical {timeSlotId, dayOfWeek} pairs.
// A stale client-supplied weekday that disagrees with the template is
// rejected rather than silently corrected. Repeating a slot id is rejected
// too: one admission books each weekly slot at most once.
func (r *SlotResolver) Resolve(ctx context.Context, requested []dto.WeeklySlotSelection) (*ResolvedSlots, error) {
	ids := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, sel := range requested {
		if _, ok := seen[sel.TimeSlotID]; ok {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("time slot %s selected more than once", sel.TimeSlotID))
		}
		seen[sel.TimeSlotID] = struct{}{}
		ids = append(ids, sel.TimeSlotID)
	}

	templates, err := r.slots.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slot templates")
	}
	byID := make(map[string]models.TimeSlotTemplate, len(templates))
	for _, tpl := range templates {
		byID[tpl.ID] = tpl
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrNotFound, "time slot not found", map[string]interface{}{"time_slot_ids": missing})
	}

	resolved := make(models.WeeklySlots, 0, len(requested))
	daySet := make(map[int]struct{})
	for _, sel := range requested {
		tpl := byID[sel.TimeSlotID]
		if !tpl.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("time slot %s is inactive", tpl.ID))
		}
		if sel.DayOfWeek != nil && *sel.DayOfWeek != tpl.DayOfWeek {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("time slot %s is on %s, not %s", tpl.ID, time.Weekday(tpl.DayOfWeek), time.Weekday(*sel.DayOfWeek)))
		}
		resolved = append(resolved, models.WeeklySlot{TimeSlotID: tpl.ID, DayOfWeek: tpl.DayOfWeek})
		daySet[tpl.DayOfWeek] = struct{}{}
	}

	weekdays := make([]int, 0, len(daySet))
	for day := range daySet {
		weekdays = append(weekdays, day)
	}
	sort.Ints(weekdays)

	if err := r.checkOperatingDays(ctx, weekdays); err != nil {
		return nil, err
	}

	return &ResolvedSlots{Slots: resolved, Weekdays: weekdays}, nil
}

func (r *SlotResolver) checkOperatingDays(ctx context.Context, weekdays []int) error {
	rows, err := r.slots.ListOperatingDays(ctx, weekdays)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load operating days")
	}
	open := make(map[int]bool, len(rows))
	for _, row := range rows {
		open[row.DayOfWeek] = row.IsOpen
	}
	for _, day := range weekdays {
		if !open[day] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("school is closed on %s", time.Weekday(day)))
		}
	}
	return nil
}
