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

// InventoryHandler handles the inventory count workflow endpoints
type InventoryHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(svc *service.InventoryService, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: svc,
		logger:  log,
	}
}

// Create opens a new draft inventory for a shop
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateInventoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	inv, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, inv)
}

// Start snapshots stock and opens counting. An optional body narrows
// the count to a product subset; with no body the whole shop is counted.
func (h *InventoryHandler) Start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.StartInventoryRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if err := httputil.Validate(&req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	inv, err := h.service.Start(r.Context(), id, req.ProductIDs)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

// UpdateItemCount records a physical count for one product line
func (h *InventoryHandler) UpdateItemCount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	productID := chi.URLParam(r, "productId")

	var req service.CountItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.UpdateItemCount(r.Context(), id, productID, req.CountedQuantity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Validate closes the count and applies the adjustments
func (h *InventoryHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.service.Validate(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

// Cancel abandons an unvalidated inventory
func (h *InventoryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

// Get returns an inventory with its item lines
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

// List returns a filtered page of inventories
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := inventoryFilterFromQuery(r)

	inventories, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, inventories, pageMeta(filter.Page, filter.PerPage, total))
}

func inventoryFilterFromQuery(r *http.Request) repository.InventoryFilter {
	q := r.URL.Query()

	filter := repository.InventoryFilter{
		ShopID: q.Get("shop_id"),
		Status: domain.InventoryStatus(q.Get("status")),
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
