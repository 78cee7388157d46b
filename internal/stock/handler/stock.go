package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// StockHandler handles receipts, adjustments, the movement report and the
// batch monitoring endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// ReceiveStock books a delivered batch into stock
func (h *StockHandler) ReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req service.ReceiveStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.ReceiveStock(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// AdjustStock applies a signed manual stock correction
func (h *StockHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req service.AdjustStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	movement, err := h.service.AdjustStock(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, movement)
}

// ListMovements returns a filtered page of the stock ledger
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	filter := movementFilterFromQuery(r)

	movements, total, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, pageMeta(filter.Page, filter.PerPage, total))
}

// ExpiringBatches lists batches nearing expiry
func (h *StockHandler) ExpiringBatches(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	batches, err := h.service.ExpiringBatches(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// ExpiredBatches lists batches past expiry that still hold stock
func (h *StockHandler) ExpiredBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.ExpiredBatches(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// LowStockBatches lists batches at or below the low-stock threshold
func (h *StockHandler) LowStockBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.LowStockBatches(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// LowStockProducts lists products at or below their minimum stock
func (h *StockHandler) LowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStockProducts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// PublishExpiryAlerts triggers the expiry alert sweep for the caller's
// tenant. Hit by the platform scheduler.
func (h *StockHandler) PublishExpiryAlerts(w http.ResponseWriter, r *http.Request) {
	published, err := h.service.PublishExpiryAlerts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"published": published})
}

// GetDashboardStats returns the stock dashboard summary
func (h *StockHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

func movementFilterFromQuery(r *http.Request) repository.MovementFilter {
	q := r.URL.Query()

	filter := repository.MovementFilter{
		ShopID:    q.Get("shop_id"),
		ProductID: q.Get("product_id"),
		Type:      domain.MovementType(q.Get("type")),
		Reference: q.Get("reference"),
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

// pagination reads page/per_page query params with sane bounds
func pagination(r *http.Request) (page, perPage int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(q.Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

func pageMeta(page, perPage int, total int64) *httputil.Meta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	return &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
