package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/google/uuid"
)

// Approve marks a pending request approved and clears the owner's schedule
// records in one atomic unit. It fails with ErrNotFound for an unknown id and
// with ErrInvalidState when the request is no longer pending, so a retried call
// never clears records twice.
//
// A storage failure rolls the whole unit back, leaving the request pending, so
// the unit is retried as a whole. A failed commit may still have landed; the
// retry then finds the request approved and recoverApproval decides whether it
// was this call that approved it. The notification afterwards is best-effort.
func (s *Service) Approve(ctx context.Context, requestID uuid.UUID, adminID uuid.UUID) (*domain.SettlementApproval, error) {
	if requestID == uuid.Nil {
		return nil, fmt.Errorf("%w: request id is required", domain.ErrValidation)
	}

	started := s.now()
	storageFailed := false
	approval, err := withRetry(ctx, s, "approve settlement", func(ctx context.Context) (*domain.SettlementApproval, error) {
		approval, err := s.store.ApproveSettlementRequest(ctx, requestID, adminID)
		if isStorageError(err) {
			storageFailed = true
		}
		return approval, err
	})
	if err != nil && storageFailed && errors.Is(err, domain.ErrInvalidState) {
		approval, err = s.recoverApproval(ctx, requestID, adminID, started, err)
	}
	if err != nil {
		s.countApproval(err)
		return nil, err
	}
	s.countApproval(nil)

	req := approval.Request
	if s.metrics != nil {
		s.metrics.DeletedRecords.Add(float64(approval.DeletedRecords))
	}
	slog.Info("settlement approved",
		"request_id", req.ID,
		"owner_id", req.OwnerID,
		"total_wage", req.TotalWage,
		"deleted_records", approval.DeletedRecords,
	)

	if approval.ScheduledTotal != req.TotalWage {
		slog.Warn("declared settlement total differs from cleared schedule wages",
			"request_id", req.ID,
			"owner_id", req.OwnerID,
			"declared", req.TotalWage,
			"scheduled", approval.ScheduledTotal,
		)
		if s.metrics != nil {
			s.metrics.WageMismatches.Inc()
		}
	}

	s.notify(ctx, domain.NotificationSettlementApproved, domain.NotificationPayload{
		OwnerID: req.OwnerID,
		Amount:  req.TotalWage,
		Message: fmt.Sprintf("settlement of %d approved", req.TotalWage),
	})

	return approval, nil
}

// recoverApproval returns the stored outcome when the request was approved by
// adminID after started, which means an earlier attempt committed although it
// reported a storage error. Otherwise stateErr is returned unchanged.
func (s *Service) recoverApproval(ctx context.Context, requestID uuid.UUID, adminID uuid.UUID, started time.Time, stateErr error) (*domain.SettlementApproval, error) {
	req, err := withRetry(ctx, s, "reload settlement request", func(ctx context.Context) (*domain.SettlementRequest, error) {
		return s.store.GetSettlementRequestByID(ctx, requestID)
	})
	if err != nil {
		slog.Error("failed to reload settlement request after storage error", "request_id", requestID, "error", err)
		return nil, stateErr
	}

	if req.Status != domain.SettlementStatusApproved ||
		req.ApprovedBy == nil || *req.ApprovedBy != adminID ||
		req.ApprovedAt == nil || req.ApprovedAt.Before(started) {
		return nil, stateErr
	}

	slog.Warn("settlement approval committed despite a storage error", "request_id", requestID)
	return &domain.SettlementApproval{
		Request:        req,
		DeletedRecords: req.DeletedRecords,
		ScheduledTotal: req.ClearedWages,
	}, nil
}

func (s *Service) countApproval(err error) {
	if s.metrics == nil {
		return
	}

	result := "approved"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		result = "not_found"
	case errors.Is(err, domain.ErrInvalidState):
		result = "invalid_state"
	default:
		result = "error"
	}
	s.metrics.SettlementApprovals.WithLabelValues(result).Inc()
}
