package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleRecord is one worked or assigned shift owed to OwnerID.
// WorkDate, StartTime and EndTime are for display only.
type ScheduleRecord struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"ownerID"`
	Wage        int64     `json:"wage"`
	WorkDate    time.Time `json:"workDate"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}
