package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestGenerateAttendanceCalendarMondayThursday(t *testing.T) {
	// Plan of 9 classes, twice a week, starting Monday 2024-01-01.
	slots := []CalendarSlot{
		{DayOfWeek: 1, ClassroomSlotID: "slot-mon"},
		{DayOfWeek: 4, ClassroomSlotID: "slot-thu"},
	}

	occurrences, err := GenerateAttendanceCalendar(civil(2024, time.January, 1), 9, slots)
	require.NoError(t, err)
	require.Len(t, occurrences, 9)

	expected := []time.Time{
		civil(2024, time.January, 1),
		civil(2024, time.January, 4),
		civil(2024, time.January, 8),
		civil(2024, time.January, 11),
		civil(2024, time.January, 15),
		civil(2024, time.January, 18),
		civil(2024, time.January, 22),
		civil(2024, time.January, 25),
		civil(2024, time.January, 29),
	}
	for i, occ := range occurrences {
		assert.Equal(t, expected[i], occ.Date, "occurrence %d", i)
	}
	assert.Equal(t, "slot-mon", occurrences[0].ClassroomSlotID)
	assert.Equal(t, "slot-thu", occurrences[1].ClassroomSlotID)
	assert.Equal(t, "slot-mon", occurrences[8].ClassroomSlotID)
}

func TestGenerateAttendanceCalendarStartsMidWeek(t *testing.T) {
	// 2024-01-02 is a Tuesday; the first Monday occurrence lands on the 8th.
	slots := []CalendarSlot{{DayOfWeek: 1, ClassroomSlotID: "slot-mon"}}

	occurrences, err := GenerateAttendanceCalendar(civil(2024, time.January, 2), 2, slots)
	require.NoError(t, err)
	require.Len(t, occurrences, 2)
	assert.Equal(t, civil(2024, time.January, 8), occurrences[0].Date)
	assert.Equal(t, civil(2024, time.January, 15), occurrences[1].Date)
}

func TestGenerateAttendanceCalendarSameDayKeepsInputOrder(t *testing.T) {
	slots := []CalendarSlot{
		{DayOfWeek: 1, ClassroomSlotID: "slot-morning"},
		{DayOfWeek: 1, ClassroomSlotID: "slot-evening"},
	}

	occurrences, err := GenerateAttendanceCalendar(civil(2024, time.January, 1), 4, slots)
	require.NoError(t, err)
	require.Len(t, occurrences, 4)
	assert.Equal(t, "slot-morning", occurrences[0].ClassroomSlotID)
	assert.Equal(t, "slot-evening", occurrences[1].ClassroomSlotID)
	assert.Equal(t, occurrences[0].Date, occurrences[1].Date)
	assert.Equal(t, civil(2024, time.January, 8), occurrences[2].Date)
}

func TestGenerateAttendanceCalendarExactCount(t *testing.T) {
	slots := []CalendarSlot{
		{DayOfWeek: 1, ClassroomSlotID: "a"},
		{DayOfWeek: 3, ClassroomSlotID: "b"},
	}

	occurrences, err := GenerateAttendanceCalendar(civil(2024, time.March, 4), 7, slots)
	require.NoError(t, err)
	// Odd target with two slots per week still yields exactly the target.
	assert.Len(t, occurrences, 7)
}

func TestGenerateAttendanceCalendarNoSlots(t *testing.T) {
	_, err := GenerateAttendanceCalendar(civil(2024, time.January, 1), 5, nil)
	assert.ErrorIs(t, err, ErrScheduleHorizonExhausted)
}

func TestGenerateAttendanceCalendarInvalidTarget(t *testing.T) {
	_, err := GenerateAttendanceCalendar(civil(2024, time.January, 1), 0, []CalendarSlot{{DayOfWeek: 1, ClassroomSlotID: "a"}})
	assert.Error(t, err)
}

func TestGenerateAttendanceCalendarNormalizesTime(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	start := time.Date(2024, time.January, 1, 18, 30, 0, 0, loc)

	occurrences, err := GenerateAttendanceCalendar(start, 1, []CalendarSlot{{DayOfWeek: 1, ClassroomSlotID: "a"}})
	require.NoError(t, err)
	assert.Equal(t, civil(2024, time.January, 1), occurrences[0].Date)
}
