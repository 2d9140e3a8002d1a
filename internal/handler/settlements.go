package handler

import (
	"net/http"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
)

func (h *Handler) RequestSettlement(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		TotalWage int64 `json:"totalWage" validate:"required,gt=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	id, err := h.settlements.CreateRequest(r.Context(), myInfo.ID, req.TotalWage)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "settlement requested", map[string]any{"id": id})
}

func (h *Handler) GetMySettlements(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	reqs, err := h.settlements.ListRequestsByOwner(r.Context(), myInfo.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "fetched settlement requests", reqs)
}

func (h *Handler) GetMySettlementSummary(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	summary, err := h.settlements.Summary(r.Context(), myInfo.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "fetched settlement summary", summary)
}

func (h *Handler) GetPendingSettlements(w http.ResponseWriter, r *http.Request) {
	pending, err := h.settlements.ListPending(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "fetched pending settlement requests", pending)
}

func (h *Handler) GetSettlementRequest(w http.ResponseWriter, r *http.Request) {
	req := r.Context().Value(SettlementRequestCtx).(*domain.SettlementRequest)

	h.successResponse(w, r, "fetched settlement request", req)
}

func (h *Handler) ApproveSettlementRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	req := r.Context().Value(SettlementRequestCtx).(*domain.SettlementRequest)

	approval, err := h.settlements.Approve(r.Context(), req.ID, myInfo.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "settlement approved", approval)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "ok", map[string]string{"environment": h.config.Environment})
}
