package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"garmentshop-be/internal/order"
	"garmentshop-be/internal/utils"

	"github.com/google/uuid"
)

type OrderHandler struct {
	svc order.Service
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input order.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	o, err := h.svc.Create(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status *order.Status
	if s := q.Get("status"); s != "" {
		st := order.Status(s)
		if !order.ValidStatus(st) {
			respondBadRequest(w, "invalid status filter")
			return
		}
		status = &st
	}

	limit := parseInt32(q.Get("limit"), 20)
	page := parseInt32(q.Get("page"), 1)

	orders, err := h.svc.List(r.Context(), status, limit, page)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}

	utils.RespondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondBadRequest(w, "invalid order id")
		return
	}

	o, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondBadRequest(w, "invalid order id")
		return
	}

	var input order.UpdateStatusInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	o, err := h.svc.UpdateStatus(r.Context(), id, input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondBadRequest(w, "invalid order id")
		return
	}

	o, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, o)
}

func parseInt32(raw string, fallback int32) int32 {
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n <= 0 {
		return fallback
	}
	return int32(n)
}
