package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// StockService handles stock receipts, manual adjustments, the movements
// report, batch monitoring and dashboard statistics.
type StockService struct {
	txm       TxManager
	products  ProductStore
	batches   BatchStore
	movements MovementStore
	shops     ShopStore
	publisher EventPublisher
	cfg       config.StockConfig
	logger    *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	txm TxManager,
	products ProductStore,
	batches BatchStore,
	movements MovementStore,
	shops ShopStore,
	publisher EventPublisher,
	cfg config.StockConfig,
	log *logger.Logger,
) *StockService {
	return &StockService{
		txm:       txm,
		products:  products,
		batches:   batches,
		movements: movements,
		shops:     shops,
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
	}
}

// ReceiveStockRequest is a batch receipt (purchase order delivery)
type ReceiveStockRequest struct {
	ShopID            string          `json:"shop_id" validate:"required,uuid"`
	ProductID         string          `json:"product_id" validate:"required,uuid"`
	BatchNumber       string          `json:"batch_number" validate:"required,max=100"`
	Quantity          decimal.Decimal `json:"quantity" validate:"required"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	SupplierReference *string         `json:"supplier_reference,omitempty"`
	Reference         string          `json:"reference" validate:"required,max=100"`
}

// ReceiptResult is what a stock receipt produced
type ReceiptResult struct {
	Product  *domain.Product       `json:"product"`
	Batch    *domain.ProductBatch  `json:"batch"`
	Movement *domain.StockMovement `json:"movement"`
}

// ReceiveStock books a delivered batch into stock: product stock and the
// batch quantity both rise, and an IN movement is written, all in one
// transaction. Receiving the same batch number again restocks that batch.
func (s *StockService) ReceiveStock(ctx context.Context, req *ReceiveStockRequest) (*ReceiptResult, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	actorID := actor.IDFromContext(ctx)

	var result ReceiptResult

	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		product, err := s.products.GetByID(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if product.ShopID != req.ShopID {
			return errors.BadRequest("product does not belong to this shop")
		}
		if err := product.ValidateQuantity(req.Quantity); err != nil {
			return err
		}

		// Receipts only add, so the atomic increment needs no row lock.
		newStock, err := s.products.IncrementStock(ctx, product.ID, req.Quantity)
		if err != nil {
			return err
		}
		product.Stock = newStock

		batch, err := s.batches.GetByProductAndNumber(ctx, req.ProductID, req.BatchNumber)
		switch {
		case err == nil:
			if err := batch.AddStock(req.Quantity); err != nil {
				return err
			}
			if err := s.batches.UpdateQuantities(ctx, batch); err != nil {
				return err
			}
		case errors.Is(err, errors.ErrNotFound):
			batch = &domain.ProductBatch{
				ProductID:         req.ProductID,
				BatchNumber:       req.BatchNumber,
				Quantity:          req.Quantity,
				InitialQuantity:   req.Quantity,
				ExpiryDate:        req.ExpiryDate,
				SupplierReference: req.SupplierReference,
				IsActive:          true,
			}
			if err := s.batches.Create(ctx, batch); err != nil {
				return err
			}
		default:
			return err
		}

		movement, err := domain.NewStockMovement(req.ShopID, req.ProductID,
			domain.MovementIn, req.Quantity, req.Reference, actorID)
		if err != nil {
			return err
		}
		if err := s.movements.Record(ctx, movement); err != nil {
			return err
		}

		result = ReceiptResult{Product: product, Batch: batch, Movement: movement}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.MovementRecorded(ctx, result.Movement)

	s.logger.Info().
		Str("product_id", req.ProductID).
		Str("batch_number", req.BatchNumber).
		Str("quantity", req.Quantity.String()).
		Str("actor", actorID).
		Msg("stock received")

	return &result, nil
}

// AdjustStockRequest is a manual stock correction. Quantity is signed:
// positive adds, negative removes.
type AdjustStockRequest struct {
	ShopID    string          `json:"shop_id" validate:"required,uuid"`
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	Reason    string          `json:"reason" validate:"required,max=255"`
}

// AdjustStock applies a signed manual correction and writes an ADJUSTMENT
// ledger row. A removal larger than the current stock fails; stock never
// goes negative.
func (s *StockService) AdjustStock(ctx context.Context, req *AdjustStockRequest) (*domain.StockMovement, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	actorID := actor.IDFromContext(ctx)

	if req.Quantity.IsZero() {
		return nil, errors.InvalidQuantity("adjustment quantity cannot be zero")
	}

	var movement *domain.StockMovement
	var lowProduct *domain.Product

	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		product, err := s.products.GetByIDForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if product.ShopID != req.ShopID {
			return errors.BadRequest("product does not belong to this shop")
		}

		magnitude := req.Quantity.Abs()
		if req.Quantity.IsPositive() {
			err = product.AddStock(magnitude)
		} else {
			err = product.RemoveStock(magnitude)
		}
		if err != nil {
			return err
		}

		if err := s.products.UpdateStock(ctx, product.ID, product.Stock); err != nil {
			return err
		}

		movement, err = domain.NewStockMovement(req.ShopID, req.ProductID,
			domain.MovementAdjustment, magnitude, adjustmentReference(req.Quantity, req.Reason), actorID)
		if err != nil {
			return err
		}
		if err := s.movements.Record(ctx, movement); err != nil {
			return err
		}

		if product.IsLowStock() {
			lowProduct = product
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.MovementRecorded(ctx, movement)
	if lowProduct != nil {
		s.publisher.StockLow(ctx, lowProduct)
	}

	s.logger.Info().
		Str("product_id", req.ProductID).
		Str("quantity", req.Quantity.String()).
		Str("reason", req.Reason).
		Str("actor", actorID).
		Msg("stock adjusted")

	return movement, nil
}

// adjustmentReference encodes the signed delta and the reason:
// "ADJ:-2:damaged in storage".
func adjustmentReference(signed decimal.Decimal, reason string) string {
	sign := "+"
	if signed.IsNegative() {
		sign = "-"
	}
	ref := "ADJ:" + sign + signed.Abs().String()
	if reason != "" {
		ref += ":" + reason
	}
	return ref
}

// ListMovements returns a filtered page of the stock ledger
func (s *StockService) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]domain.StockMovement, int64, error) {
	return s.movements.List(ctx, filter)
}

// ExpiringBatches lists batches expiring within days (config default when 0)
func (s *StockService) ExpiringBatches(ctx context.Context, days int) ([]domain.ProductBatch, error) {
	if days <= 0 {
		days = s.cfg.ExpiryHorizonDays
	}
	return s.batches.ListExpiring(ctx, days)
}

// ExpiredBatches lists batches past their expiry date that still hold stock
func (s *StockService) ExpiredBatches(ctx context.Context) ([]domain.ProductBatch, error) {
	return s.batches.ListExpired(ctx)
}

// LowStockBatches lists batches at or below the configured threshold
func (s *StockService) LowStockBatches(ctx context.Context) ([]domain.ProductBatch, error) {
	return s.batches.ListLowStock(ctx, decimal.NewFromInt(int64(s.cfg.LowStockThreshold)))
}

// PublishExpiryAlerts publishes a batch.expiring event for every batch
// inside the configured horizon. Called periodically by the expiry
// monitor in main.
func (s *StockService) PublishExpiryAlerts(ctx context.Context) (int, error) {
	batches, err := s.batches.ListExpiring(ctx, s.cfg.ExpiryHorizonDays)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for i := range batches {
		b := &batches[i]
		daysUntil := 0
		if b.ExpiryDate != nil && b.ExpiryDate.After(now) {
			daysUntil = int(b.ExpiryDate.Sub(now).Hours() / 24)
		}
		s.publisher.BatchExpiring(ctx, b, daysUntil)
	}

	if len(batches) > 0 {
		s.logger.Info().Int("batches", len(batches)).Msg("expiry alerts published")
	}
	return len(batches), nil
}

// LowStockProducts lists active products at or below their minimum stock
func (s *StockService) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.products.ListLowStock(ctx)
}

// DashboardStats summarizes the stock situation for the dashboard
type DashboardStats struct {
	TotalProducts int64 `json:"total_products"`
	LowStockCount int   `json:"low_stock_count"`
	ExpiringCount int64 `json:"expiring_count"`
}

// GetDashboardStats computes the dashboard summary
func (s *StockService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	total, err := s.products.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	low, err := s.products.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}

	expiring, err := s.batches.CountExpiring(ctx, s.cfg.ExpiryHorizonDays)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalProducts: total,
		LowStockCount: len(low),
		ExpiringCount: expiring,
	}, nil
}
