package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-hq/music-crm-api/internal/dto"
	"github.com/cadenza-hq/music-crm-api/internal/models"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

type timeSlotReaderStub struct {
	templates []models.TimeSlotTemplate
	openDays  map[int]bool
}

func (s timeSlotReaderStub) ListByIDs(_ context.Context, ids []string) ([]models.TimeSlotTemplate, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []models.TimeSlotTemplate
	for _, tpl := range s.templates {
		if _, ok := want[tpl.ID]; ok {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (s timeSlotReaderStub) ListOperatingDays(_ context.Context, days []int) ([]models.OperatingDay, error) {
	var out []models.OperatingDay
	for _, day := range days {
		open, ok := s.openDays[day]
		if !ok {
			continue
		}
		out = append(out, models.OperatingDay{DayOfWeek: day, IsOpen: open})
	}
	return out, nil
}

func intPtr(v int) *int { return &v }

func TestSlotResolverResolve(t *testing.T) {
	stub := timeSlotReaderStub{
		templates: []models.TimeSlotTemplate{
			{ID: "ts-mon", DayOfWeek: 1, Active: true},
			{ID: "ts-thu", DayOfWeek: 4, Active: true},
		},
		openDays: map[int]bool{1: true, 4: true},
	}
	resolver := NewSlotResolver(stub, nil)

	resolved, err := resolver.Resolve(context.Background(), []dto.WeeklySlotSelection{
		{TimeSlotID: "ts-thu"},
		{TimeSlotID: "ts-mon", DayOfWeek: intPtr(1)},
	})
	require.NoError(t, err)
	require.Len(t, resolved.Slots, 2)
	assert.Equal(t, models.WeeklySlot{TimeSlotID: "ts-thu", DayOfWeek: 4}, resolved.Slots[0])
	assert.Equal(t, models.WeeklySlot{TimeSlotID: "ts-mon", DayOfWeek: 1}, resolved.Slots[1])
	assert.Equal(t, []int{1, 4}, resolved.Weekdays)
}

func TestSlotResolverDuplicateSelection(t *testing.T) {
	stub := timeSlotReaderStub{
		templates: []models.TimeSlotTemplate{{ID: "ts-mon", DayOfWeek: 1, Active: true}},
		openDays:  map[int]bool{1: true},
	}
	resolver := NewSlotResolver(stub, nil)

	_, err := resolver.Resolve(context.Background(), []dto.WeeklySlotSelection{
		{TimeSlotID: "ts-mon"},
		{TimeSlotID: "ts-mon"},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "more than once")
}

func TestSlotResolverUnknownSlot(t *testing.T) {
	stub := timeSlotReaderStub{openDays: map[int]bool{1: true}}
	resolver := NewSlotResolver(stub, nil)

	_, err := resolver.Resolve(context.Background(), []dto.WeeklySlotSelection{{TimeSlotID: "ts-missing"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.NotNil(t, appErr.Details)
}

func TestSlotResolverInactiveSlot(t *testing.T) {
	stub := timeSlotReaderStub{
		templates: []models.TimeSlotTemplate{{ID: "ts-mon", DayOfWeek: 1, Active: false}},
		openDays:  map[int]bool{1: true},
	}
	resolver := NewSlotResolver(stub, nil)

	_, err := resolver.Resolve(context.Background(), []dto.WeeklySlotSelection{{TimeSlotID: "ts-mon"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotResolverDayMismatch(t *testing.T) {
	stub := timeSlotReaderStub{
		templates: []models.TimeSlotTemplate{{ID: "ts-mon", DayOfWeek: 1, Active: true}},
		openDays:  map[int]bool{1: true},
	}
	resolver := NewSlotResolver(stub, nil)

	_, err := resolver.Resolve(context.Background(), []dto.WeeklySlotSelection{
		{TimeSlotID: "ts-mon", DayOfWeek: intPtr(3)},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotResolverClosedDay(t *testing.T) {
	stub := timeSlotReaderStub{
		templates: []models.TimeSlotTemplate{{ID: "ts-sun", DayOfWeek: 0, Active: true}},
		openDays:  map[int]bool{0: false},
	}
	resolver := NewSlotResolver(stub, nil)

	_, err := resolver.Resolve(context.Background(), []dto.WeeklySlotSelection{{TimeSlotID: "ts-sun"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "closed")
}

func TestSlotResolverMissingOperatingDayRowIsClosed(t *testing.T) {
	stub := timeSlotReaderStub{
		templates: []models.TimeSlotTemplate{{ID: "ts-sat", DayOfWeek: 6, Active: true}},
		openDays:  map[int]bool{},
	}
	resolver := NewSlotResolver(stub, nil)

	_, err := resolver.Resolve(context.Background(), []dto.WeeklySlotSelection{{TimeSlotID: "ts-sat"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
