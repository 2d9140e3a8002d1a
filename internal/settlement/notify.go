package settlement

import (
	"context"
	"log/slog"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
)

// notify dispatches a notification and swallows the failure. The state change
// it reports has already been committed and must stand regardless.
func (s *Service) notify(ctx context.Context, kind domain.NotificationKind, payload domain.NotificationPayload) {
	if s.notifier == nil {
		return
	}

	// detach from the caller so an abandoned request does not cancel the publish
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notificationTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, kind, payload); err != nil {
		slog.Error("failed to dispatch notification", "kind", kind, "owner_id", payload.OwnerID, "error", err)
		if s.metrics != nil {
			s.metrics.NotificationFailures.WithLabelValues(string(kind)).Inc()
		}
	}
}
