package service

import (
	"fmt"
	"time"
)

// CalendarSlot pairs a weekday with the classroom slot meeting on it. A plan
// with three classes per week supplies three entries; two entries may share a
// weekday.
type CalendarSlot struct {
	DayOfWeek       int
	ClassroomSlotID string
}

// SlotOccurrence is one generated class date for one classroom slot.
type SlotOccurrence struct {
	ClassroomSlotID string
	Date            time.Time
}

// ErrScheduleHorizonExhausted signals that the bounded date walk could not
// produce the requested number of occurrences. A safety valve: it should not
// trigger for any plan whose weekly cadence matches real weekday coverage.
var ErrScheduleHorizonExhausted = fmt.Errorf("unable to generate attendance schedule for selected slots")

// GenerateAttendanceCalendar walks calendar dates forward from startDate and
// emits exactly targetClassCount occurrences, one per weekly slot entry per
// matching date, in stable input order within a date. The walk is bounded at
// targetClassCount*7+7 days so sparse weekday coverage can never loop
// forever. Dates are UTC civil dates; no timezone adjustment is applied.
func GenerateAttendanceCalendar(startDate time.Time, targetClassCount int, slots []CalendarSlot) ([]SlotOccurrence, error) {
	if targetClassCount <= 0 {
		return nil, fmt.Errorf("target class count must be positive")
	}
	if len(slots) == 0 {
		return nil, ErrScheduleHorizonExhausted
	}

	byDay := make(map[int][]string, len(slots))
	for _, slot := range slots {
		byDay[slot.DayOfWeek] = append(byDay[slot.DayOfWeek], slot.ClassroomSlotID)
	}

	date := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC)
	maxDays := targetClassCount*7 + 7

	occurrences := make([]SlotOccurrence, 0, targetClassCount)
	for day := 0; day < maxDays && len(occurrences) < targetClassCount; day++ {
		for _, slotID := range byDay[int(date.Weekday())] {
			if len(occurrences) == targetClassCount {
				break
			}
			occurrences = append(occurrences, SlotOccurrence{ClassroomSlotID: slotID, Date: date})
		}
		date = date.AddDate(0, 0, 1)
	}

	if len(occurrences) < targetClassCount {
		return nil, ErrScheduleHorizonExhausted
	}
	return occurrences, nil
}
