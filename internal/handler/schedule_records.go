package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func (h *Handler) GetMyScheduleRecords(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	records, err := h.settlements.ListByOwner(r.Context(), myInfo.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "fetched schedule records", records)
}

func (h *Handler) CreateScheduleRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID     uuid.UUID `json:"ownerID" validate:"required"`
		Wage        int64     `json:"wage" validate:"gte=0"`
		WorkDate    string    `json:"workDate" validate:"required,datetime=2006-01-02"`
		StartTime   string    `json:"startTime" validate:"required,datetime=15:04"`
		EndTime     string    `json:"endTime" validate:"required,datetime=15:04"`
		Description string    `json:"description" validate:"max=255"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// the validator has already checked the layout
	workDate, _ := time.Parse(time.DateOnly, req.WorkDate)
	if req.EndTime <= req.StartTime {
		h.errorResponse(w, r, "end time must be after start time")
		return
	}

	record := &domain.ScheduleRecord{
		OwnerID:     req.OwnerID,
		Wage:        req.Wage,
		WorkDate:    workDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Description: req.Description,
	}

	if err := h.settlements.AddRecord(r.Context(), record); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "schedule_records_owner_id_fkey":
			h.errorResponse(w, r, "worker does not exist")
		default:
			h.serviceError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "schedule record created", record)
}
