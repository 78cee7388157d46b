package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// TransferHandler handles the stock transfer workflow endpoints
type TransferHandler struct {
	service *service.TransferService
	logger  *logger.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(svc *service.TransferService, log *logger.Logger) *TransferHandler {
	return &TransferHandler{
		service: svc,
		logger:  log,
	}
}

// Create opens a draft transfer between two shops
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	tr, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, tr)
}

// AddItem adds a product line to a draft transfer
func (h *TransferHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.TransferItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.AddItem(r.Context(), id, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// UpdateItemQuantity replaces the quantity of a line
func (h *TransferHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	productID := chi.URLParam(r, "productId")

	var req service.TransferItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.UpdateItemQuantity(r.Context(), id, productID, req.Quantity); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// RemoveItem deletes a line from a draft transfer
func (h *TransferHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	productID := chi.URLParam(r, "productId")

	if err := h.service.RemoveItem(r.Context(), id, productID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Validate executes the transfer
func (h *TransferHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tr, err := h.service.Validate(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tr)
}

// Cancel abandons a draft transfer
func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tr, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tr)
}

// Get returns a transfer with its item lines
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tr, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tr)
}

// List returns a filtered page of transfers
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := transferFilterFromQuery(r)

	transfers, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, transfers, pageMeta(filter.Page, filter.PerPage, total))
}

func transferFilterFromQuery(r *http.Request) repository.TransferFilter {
	q := r.URL.Query()

	filter := repository.TransferFilter{
		FromShopID: q.Get("from_shop_id"),
		ToShopID:   q.Get("to_shop_id"),
		Status:     domain.TransferStatus(q.Get("status")),
	}
	filter.Page, filter.PerPage = pagination(r)

	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filter.To = &to
	}

	return filter
}
