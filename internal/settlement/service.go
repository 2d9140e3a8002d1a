// Package settlement holds the settlement lifecycle: workers accumulate
// schedule records, request settlement of the total, and an administrator
// approves the request, which clears the records it paid for.
package settlement

import (
	"context"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/config"
	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/gigmatch-dev/settlement/backend/internal/metrics"
	"github.com/gigmatch-dev/settlement/backend/internal/retry"
	"github.com/google/uuid"
)

// UnknownOwnerName replaces the display name of an owner the directory could not resolve.
const UnknownOwnerName = "unknown"

// Store is the persistence the service needs. *repository.Repository implements it.
type Store interface {
	CreateScheduleRecord(ctx context.Context, record *domain.ScheduleRecord) error
	GetScheduleRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.ScheduleRecord, error)

	CreateSettlementRequest(ctx context.Context, req *domain.SettlementRequest) error
	GetSettlementRequestByID(ctx context.Context, id uuid.UUID) (*domain.SettlementRequest, error)
	GetPendingSettlementRequests(ctx context.Context) ([]*domain.SettlementRequest, error)
	GetSettlementRequestsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.SettlementRequest, error)

	// ApproveSettlementRequest must flip the status and delete the owner's
	// schedule records atomically.
	ApproveSettlementRequest(ctx context.Context, id uuid.UUID, approvedBy uuid.UUID) (*domain.SettlementApproval, error)
}

type Notifier interface {
	Notify(ctx context.Context, kind domain.NotificationKind, payload domain.NotificationPayload) error
}

type UserDirectory interface {
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

type Service struct {
	store     Store
	notifier  Notifier
	directory UserDirectory
	metrics   *metrics.Metrics

	retryPolicy         retry.Policy
	notificationTimeout time.Duration

	now func() time.Time
}

func NewService(cfg *config.Config, store Store, notifier Notifier, directory UserDirectory, m *metrics.Metrics) *Service {
	notificationTimeout := time.Duration(cfg.RabbitMQ.PublishTimeout) * time.Second
	if notificationTimeout <= 0 {
		notificationTimeout = 10 * time.Second
	}

	return &Service{
		store:     store,
		notifier:  notifier,
		directory: directory,
		metrics:   m,

		retryPolicy:         retry.Policy{Attempts: cfg.Settlement.RetryAttempts, Interval: time.Duration(cfg.Settlement.RetryBackoff) * time.Millisecond},
		notificationTimeout: notificationTimeout,

		now: time.Now,
	}
}
