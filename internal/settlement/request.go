package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/google/uuid"
)

// CreateRequest files a pending settlement request for the declared total.
// The total comes from the client and is not checked against the schedule
// records here; Approve reports a mismatch instead.
//
// The insert is never retried: a lost acknowledgement would otherwise turn into
// a duplicate request.
func (s *Service) CreateRequest(ctx context.Context, ownerID uuid.UUID, totalWage int64) (uuid.UUID, error) {
	if ownerID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	if totalWage <= 0 {
		return uuid.Nil, fmt.Errorf("%w: total wage must be positive", domain.ErrValidation)
	}

	// several pending requests per owner are allowed, but worth a warning
	if existing, err := s.store.GetSettlementRequestsByOwner(ctx, ownerID); err != nil {
		slog.Warn("failed to look up existing settlement requests", "owner_id", ownerID, "error", err)
	} else if pending := countPending(existing); pending > 0 {
		slog.Warn("owner already has pending settlement requests", "owner_id", ownerID, "pending", pending)
	}

	req := &domain.SettlementRequest{
		OwnerID:   ownerID,
		TotalWage: totalWage,
		Status:    domain.SettlementStatusPending,
	}
	if err := s.store.CreateSettlementRequest(ctx, req); err != nil {
		return uuid.Nil, err
	}

	if s.metrics != nil {
		s.metrics.SettlementRequests.Inc()
	}
	slog.Info("settlement requested", "request_id", req.ID, "owner_id", ownerID, "total_wage", totalWage)

	s.notify(ctx, domain.NotificationSettlementRequested, domain.NotificationPayload{
		OwnerID: ownerID,
		Amount:  totalWage,
		Message: fmt.Sprintf("settlement of %d requested", totalWage),
	})

	return req.ID, nil
}

// ListPending returns every pending request with the owner's display name.
// A failed name lookup yields UnknownOwnerName rather than failing the listing.
func (s *Service) ListPending(ctx context.Context) ([]*domain.PendingSettlement, error) {
	reqs, err := withRetry(ctx, s, "list pending settlements", func(ctx context.Context) ([]*domain.SettlementRequest, error) {
		return s.store.GetPendingSettlementRequests(ctx)
	})
	if err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string)
	pending := make([]*domain.PendingSettlement, 0, len(reqs))
	for _, req := range reqs {
		name, ok := names[req.OwnerID]
		if !ok {
			name = s.ownerName(ctx, req.OwnerID)
			names[req.OwnerID] = name
		}

		pending = append(pending, &domain.PendingSettlement{
			SettlementRequest: *req,
			OwnerName:         name,
		})
	}

	return pending, nil
}

func (s *Service) ownerName(ctx context.Context, ownerID uuid.UUID) string {
	if s.directory == nil {
		return UnknownOwnerName
	}

	name, err := s.directory.DisplayName(ctx, ownerID)
	if err != nil {
		slog.Warn("failed to resolve owner name", "owner_id", ownerID, "error", err)
		return UnknownOwnerName
	}

	return name
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*domain.SettlementRequest, error) {
	return withRetry(ctx, s, "get settlement request", func(ctx context.Context) (*domain.SettlementRequest, error) {
		return s.store.GetSettlementRequestByID(ctx, id)
	})
}

func (s *Service) ListRequestsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.SettlementRequest, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}

	return withRetry(ctx, s, "list settlement requests", func(ctx context.Context) ([]*domain.SettlementRequest, error) {
		return s.store.GetSettlementRequestsByOwner(ctx, ownerID)
	})
}

// Summary computes what the worker is owed from the schedule records, next to
// what is already waiting for approval.
func (s *Service) Summary(ctx context.Context, ownerID uuid.UUID) (*domain.SettlementSummary, error) {
	records, err := s.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.ListRequestsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summary := &domain.SettlementSummary{
		OwnerID:     ownerID,
		RecordCount: len(records),
	}
	for _, record := range records {
		summary.ScheduledTotal += record.Wage
	}
	for _, req := range reqs {
		if req.Status == domain.SettlementStatusPending {
			summary.PendingTotal += req.TotalWage
			summary.PendingRequests++
		}
	}

	return summary, nil
}

func countPending(reqs []*domain.SettlementRequest) int {
	n := 0
	for _, req := range reqs {
		if req.Status == domain.SettlementStatusPending {
			n++
		}
	}
	return n
}
