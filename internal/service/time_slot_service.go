package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/cadenza-hq/music-crm-api/internal/models"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

type timeSlotCatalogReader interface {
	ListViews(ctx context.Context) ([]models.TimeSlotView, error)
}

// TimeSlotService exposes the weekly slot catalog for admission forms.
type TimeSlotService struct {
	slots  timeSlotCatalogReader
	logger *zap.Logger
}

// NewTimeSlotService constructs TimeSlotService.
func NewTimeSlotService(slots timeSlotCatalogReader, logger *zap.Logger) *TimeSlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeSlotService{slots: slots, logger: logger}
}

// ListCatalog returns all templates with operating-day openness so the UI can
// grey out closed days instead of hiding them.
func (s *TimeSlotService) ListCatalog(ctx context.Context) ([]models.TimeSlotView, error) {
	views, err := s.slots.ListViews(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time slots")
	}
	return views, nil
}
