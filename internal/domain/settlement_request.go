package domain

import (
	"time"

	"github.com/google/uuid"
)

type SettlementStatus string

const (
	SettlementStatusPending  SettlementStatus = "pending"
	SettlementStatusApproved SettlementStatus = "approved"
)

type SettlementRequest struct {
	ID             uuid.UUID        `json:"id"`
	OwnerID        uuid.UUID        `json:"ownerID"`
	TotalWage      int64            `json:"totalWage"`
	Status         SettlementStatus `json:"status"`
	RequestedAt    time.Time        `json:"requestedAt"`
	ApprovedAt     *time.Time       `json:"approvedAt"`
	ApprovedBy     *uuid.UUID       `json:"approvedBy"`
	DeletedRecords int64            `json:"deletedRecords"`
	ClearedWages   int64            `json:"clearedWages"`
	Version        int32            `json:"-"`
}

// PendingSettlement is a pending request together with the owner's display name.
type PendingSettlement struct {
	SettlementRequest
	OwnerName string `json:"ownerName"`
}

// SettlementSummary compares what the worker is owed according to the schedule
// records with what the worker has already asked for.
type SettlementSummary struct {
	OwnerID         uuid.UUID `json:"ownerID"`
	ScheduledTotal  int64     `json:"scheduledTotal"`
	RecordCount     int       `json:"recordCount"`
	PendingTotal    int64     `json:"pendingTotal"`
	PendingRequests int       `json:"pendingRequests"`
}

// SettlementApproval is the outcome of approving a request. ScheduledTotal is
// the sum of the wages that were cleared, which may differ from the total the
// worker declared.
type SettlementApproval struct {
	Request        *SettlementRequest `json:"request"`
	DeletedRecords int64              `json:"deletedRecords"`
	ScheduledTotal int64              `json:"scheduledTotal"`
}
