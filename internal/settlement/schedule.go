package settlement

import (
	"context"
	"fmt"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/google/uuid"
)

// AddRecord stores a new schedule record. Records are written when an employer
// accepts a job application.
func (s *Service) AddRecord(ctx context.Context, record *domain.ScheduleRecord) error {
	if record == nil || record.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	if record.Wage < 0 {
		return fmt.Errorf("%w: wage must not be negative", domain.ErrValidation)
	}

	return s.store.CreateScheduleRecord(ctx, record)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.ScheduleRecord, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}

	return withRetry(ctx, s, "list schedule records", func(ctx context.Context) ([]*domain.ScheduleRecord, error) {
		return s.store.GetScheduleRecordsByOwner(ctx, ownerID)
	})
}
