package transport

import (
	"encoding/json"
	"net/http"

	"garmentshop-be/internal/product"
	"garmentshop-be/internal/utils"

	"github.com/google/uuid"
)

type ProductHandler struct {
	svc product.Service
}

func NewProductHandler(svc product.Service) *ProductHandler {
	return &ProductHandler{svc: svc}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := product.ListOptions{
		Limit: parseInt32(q.Get("limit"), 20),
		Page:  parseInt32(q.Get("page"), 1),
	}
	if s := q.Get("search"); s != "" {
		opts.Search = &s
	}

	products, err := h.svc.List(r.Context(), opts)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []*product.Product{}
	}

	utils.RespondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondBadRequest(w, "invalid product id")
		return
	}

	p, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, p)
}

type createProductRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       int64   `json:"price"`
	Stock       int     `json:"stock"`
	ImageURL    *string `json:"image_url"`
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	p, err := h.svc.Create(r.Context(), req.Name, req.Description, req.Price, req.Stock, req.ImageURL)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, p)
}

type setStockRequest struct {
	Stock int `json:"stock"`
}

func (h *ProductHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondBadRequest(w, "invalid product id")
		return
	}

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	p, err := h.svc.SetStock(r.Context(), id, req.Stock)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, p)
}
