package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationSettlementRequested NotificationKind = "settlement_requested"
	NotificationSettlementApproved  NotificationKind = "settlement_approved"
)

type NotificationPayload struct {
	OwnerID uuid.UUID `json:"ownerId"`
	Amount  int64     `json:"amount"`
	Message string    `json:"message,omitempty"`
}

// Notification is the message published to the notification queue.
type Notification struct {
	Kind      NotificationKind    `json:"kind"`
	Payload   NotificationPayload `json:"payload"`
	CreatedAt time.Time           `json:"createdAt"`
}
