package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// InventoryService runs the physical inventory workflow: draft, snapshot,
// count, validate. Validation reconciles counted stock with system stock
// through ADJUSTMENT ledger rows, atomically.
type InventoryService struct {
	txm         TxManager
	inventories InventoryStore
	products    ProductStore
	movements   MovementStore
	shops       ShopStore
	publisher   EventPublisher
	logger      *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	txm TxManager,
	inventories InventoryStore,
	products ProductStore,
	movements MovementStore,
	shops ShopStore,
	publisher EventPublisher,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		txm:         txm,
		inventories: inventories,
		products:    products,
		movements:   movements,
		shops:       shops,
		publisher:   publisher,
		logger:      log,
	}
}

// CreateInventoryRequest opens a new inventory count for a shop
type CreateInventoryRequest struct {
	ShopID string `json:"shop_id" validate:"required,uuid"`
}

// Create opens a draft inventory with a generated reference
func (s *InventoryService) Create(ctx context.Context, req *CreateInventoryRequest) (*domain.Inventory, error) {
	ok, err := s.shops.ExistsActive(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NotFound("shop")
	}

	inv := &domain.Inventory{
		ShopID:    req.ShopID,
		Reference: domain.NewInventoryReference(time.Now()),
		Status:    domain.InventoryDraft,
		CreatedBy: actor.IDFromContext(ctx),
	}

	if err := s.inventories.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("inventory_id", inv.ID).
		Str("reference", inv.Reference).
		Str("shop_id", inv.ShopID).
		Msg("inventory created")

	return inv, nil
}

// StartInventoryRequest optionally narrows the snapshot to a product
// subset, for partial counts of one aisle or category
type StartInventoryRequest struct {
	ProductIDs []string `json:"product_ids,omitempty" validate:"omitempty,dive,uuid"`
}

// Start moves a draft inventory to in_progress and snapshots one line
// per product in scope with the current stock as system quantity. The
// scope is the given product subset, or every active product of the
// shop when none is given. The snapshot is idempotent, so retrying a
// failed start adds only the missing lines.
func (s *InventoryService) Start(ctx context.Context, id string, productIDs []string) (*domain.Inventory, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var inv *domain.Inventory
	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		inv, err = s.inventories.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := inv.Transition(domain.InventoryInProgress); err != nil {
			return err
		}
		now := time.Now()
		inv.StartedAt = &now

		if err := s.inventories.SnapshotItems(ctx, inv.ID, inv.ShopID, productIDs); err != nil {
			return err
		}
		return s.inventories.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("inventory_id", id).Msg("inventory started")
	return inv, nil
}

// CountItemRequest records the physically counted quantity of one product
type CountItemRequest struct {
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
}

// UpdateItemCount records a physical count for one product line. Only
// editable inventories accept counts.
func (s *InventoryService) UpdateItemCount(ctx context.Context, inventoryID, productID string, counted decimal.Decimal) (*domain.InventoryItem, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var item *domain.InventoryItem
	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		inv, err := s.inventories.GetByIDForUpdate(ctx, inventoryID)
		if err != nil {
			return err
		}
		if !inv.IsEditable() {
			return errors.NotEditable("inventory", string(inv.Status))
		}

		item, err = s.inventories.GetItem(ctx, inventoryID, productID)
		if err != nil {
			return err
		}

		if err := item.SetCount(counted); err != nil {
			return err
		}
		return s.inventories.UpdateItemCount(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// Validate closes the count: every non-zero difference becomes a stock
// mutation plus an ADJUSTMENT ledger row, in one transaction with every
// touched product row-locked. A deficit larger than the product's current
// stock fails the whole validation; nothing is applied partially.
func (s *InventoryService) Validate(ctx context.Context, id string) (*domain.Inventory, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	actorID := actor.IDFromContext(ctx)

	var inv *domain.Inventory
	var adjustments []*domain.StockMovement
	var lowProducts []*domain.Product
	itemCount := 0

	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		inv, err = s.inventories.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := inv.Transition(domain.InventoryValidated); err != nil {
			return err
		}

		items, err := s.inventories.ListItems(ctx, id)
		if err != nil {
			return err
		}
		itemCount = len(items)

		for i := range items {
			item := &items[i]
			if !item.IsCounted() || item.Difference.IsZero() {
				continue
			}

			product, err := s.products.GetByIDForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}

			if item.Difference.IsPositive() {
				err = product.AddStock(item.Difference)
			} else {
				// The count found less than the system expected. If even the
				// current stock cannot cover the deficit the count is stale;
				// fail everything rather than applying it partially.
				err = product.RemoveStock(item.Difference.Abs())
			}
			if err != nil {
				return err
			}

			if err := s.products.UpdateStock(ctx, product.ID, product.Stock); err != nil {
				return err
			}

			movement, err := domain.NewStockMovement(inv.ShopID, item.ProductID,
				domain.MovementAdjustment, item.Difference.Abs(),
				domain.InventoryAdjustmentReference(inv.Reference, item.Difference), actorID)
			if err != nil {
				return err
			}
			if err := s.movements.Record(ctx, movement); err != nil {
				return err
			}
			adjustments = append(adjustments, movement)

			if product.IsLowStock() {
				lowProducts = append(lowProducts, product)
			}
		}

		now := time.Now()
		inv.ValidatedAt = &now
		inv.ValidatedBy = &actorID
		return s.inventories.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	for _, m := range adjustments {
		s.publisher.MovementRecorded(ctx, m)
	}
	for _, p := range lowProducts {
		s.publisher.StockLow(ctx, p)
	}
	s.publisher.InventoryValidated(ctx, inv, itemCount, len(adjustments))

	s.logger.Info().
		Str("inventory_id", id).
		Str("reference", inv.Reference).
		Int("items", itemCount).
		Int("adjustments", len(adjustments)).
		Str("actor", actorID).
		Msg("inventory validated")

	return inv, nil
}

// Cancel abandons an inventory that has not been validated
func (s *InventoryService) Cancel(ctx context.Context, id string) (*domain.Inventory, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	actorID := actor.IDFromContext(ctx)

	var inv *domain.Inventory
	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		inv, err = s.inventories.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := inv.Transition(domain.InventoryCancelled); err != nil {
			return err
		}
		return s.inventories.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.InventoryCancelled(ctx, inv, actorID)
	s.logger.Info().Str("inventory_id", id).Str("actor", actorID).Msg("inventory cancelled")

	return inv, nil
}

// Get returns an inventory with its item lines
func (s *InventoryService) Get(ctx context.Context, id string) (*domain.Inventory, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var inv *domain.Inventory
	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		inv, err = s.inventories.GetByID(ctx, id)
		if err != nil {
			return err
		}
		inv.Items, err = s.inventories.ListItems(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return inv, nil
}

// List returns a page of inventories matching the filter plus the
// total count
func (s *InventoryService) List(ctx context.Context, filter repository.InventoryFilter) ([]domain.Inventory, int64, error) {
	return s.inventories.List(ctx, filter)
}
