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

// TransferService runs the stock transfer workflow. Items are edited on a
// draft; validation moves the stock and writes both ledger legs in one
// transaction.
type TransferService struct {
	txm       TxManager
	transfers TransferStore
	products  ProductStore
	movements MovementStore
	shops     ShopStore
	publisher EventPublisher
	logger    *logger.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	txm TxManager,
	transfers TransferStore,
	products ProductStore,
	movements MovementStore,
	shops ShopStore,
	publisher EventPublisher,
	log *logger.Logger,
) *TransferService {
	return &TransferService{
		txm:       txm,
		transfers: transfers,
		products:  products,
		movements: movements,
		shops:     shops,
		publisher: publisher,
		logger:    log,
	}
}

// CreateTransferRequest opens a transfer between two shops
type CreateTransferRequest struct {
	FromShopID string  `json:"from_shop_id" validate:"required,uuid"`
	ToShopID   string  `json:"to_shop_id" validate:"required,uuid"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// Create opens a draft transfer. Both shops must be active shops of the
// caller's tenant and must differ.
func (s *TransferService) Create(ctx context.Context, req *CreateTransferRequest) (*domain.StockTransfer, error) {
	if req.FromShopID == req.ToShopID {
		return nil, errors.BadRequest("source and destination shops must differ")
	}

	for _, shopID := range []string{req.FromShopID, req.ToShopID} {
		ok, err := s.shops.ExistsActive(ctx, shopID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.NotFound("shop")
		}
	}

	tr := &domain.StockTransfer{
		Reference:  domain.NewTransferDocReference(time.Now()),
		FromShopID: req.FromShopID,
		ToShopID:   req.ToShopID,
		Status:     domain.TransferDraft,
		Notes:      req.Notes,
		CreatedBy:  actor.IDFromContext(ctx),
	}

	if err := s.transfers.Create(ctx, tr); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", tr.ID).
		Str("reference", tr.Reference).
		Str("from_shop", tr.FromShopID).
		Str("to_shop", tr.ToShopID).
		Msg("transfer created")

	return tr, nil
}

// TransferItemRequest adds a product line to a transfer
type TransferItemRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
}

// AddItem adds a product line to a draft transfer. Adding a product that
// is already on the transfer merges the quantities into one line.
func (s *TransferService) AddItem(ctx context.Context, transferID string, req *TransferItemRequest) (*domain.StockTransferItem, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var item *domain.StockTransferItem
	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		tr, err := s.transfers.GetByIDForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !tr.IsEditable() {
			return errors.NotEditable("stock transfer", string(tr.Status))
		}

		product, err := s.products.GetByID(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if product.ShopID != tr.FromShopID {
			return errors.BadRequest("product does not belong to the source shop")
		}
		if err := product.ValidateQuantity(req.Quantity); err != nil {
			return err
		}

		item = &domain.StockTransferItem{
			StockTransferID: transferID,
			ProductID:       req.ProductID,
			Quantity:        req.Quantity,
		}
		return s.transfers.UpsertItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// UpdateItemQuantity replaces the quantity of a line on a draft transfer
func (s *TransferService) UpdateItemQuantity(ctx context.Context, transferID, productID string, qty decimal.Decimal) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		tr, err := s.transfers.GetByIDForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !tr.IsEditable() {
			return errors.NotEditable("stock transfer", string(tr.Status))
		}

		product, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if err := product.ValidateQuantity(qty); err != nil {
			return err
		}

		return s.transfers.UpdateItemQuantity(ctx, transferID, productID, qty)
	})
}

// RemoveItem deletes a line from a draft transfer
func (s *TransferService) RemoveItem(ctx context.Context, transferID, productID string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		tr, err := s.transfers.GetByIDForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !tr.IsEditable() {
			return errors.NotEditable("stock transfer", string(tr.Status))
		}

		return s.transfers.RemoveItem(ctx, transferID, productID)
	})
}

// Validate executes the transfer: in one transaction every source stock
// is conditionally decremented, and an OUT leg at the source shop plus
// an IN leg at the destination shop are written to the ledger. Any
// insufficient product fails the whole transfer. The decrement itself
// guards against concurrent sales, so no row lock on the product is
// needed.
func (s *TransferService) Validate(ctx context.Context, id string) (*domain.StockTransfer, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	actorID := actor.IDFromContext(ctx)

	var tr *domain.StockTransfer
	var movements []*domain.StockMovement
	var lowProducts []*domain.Product
	itemCount := 0

	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		tr, err = s.transfers.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := tr.Transition(domain.TransferValidated); err != nil {
			return err
		}
		if err := tr.Validate(); err != nil {
			return err
		}

		items, err := s.transfers.ListItems(ctx, id)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return errors.BadRequest("transfer has no items")
		}
		itemCount = len(items)

		reference := domain.TransferReference(tr.Reference)

		for _, item := range items {
			product, err := s.products.GetByID(ctx, item.ProductID)
			if err != nil {
				return err
			}

			newStock, ok, err := s.products.DecrementStock(ctx, product.ID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return errors.InsufficientStock(product.Code, product.Stock.String(), item.Quantity.String())
			}
			product.Stock = newStock

			out, err := domain.NewStockMovement(tr.FromShopID, item.ProductID,
				domain.MovementOut, item.Quantity, reference, actorID)
			if err != nil {
				return err
			}
			if err := s.movements.Record(ctx, out); err != nil {
				return err
			}

			in, err := domain.NewStockMovement(tr.ToShopID, item.ProductID,
				domain.MovementIn, item.Quantity, reference, actorID)
			if err != nil {
				return err
			}
			if err := s.movements.Record(ctx, in); err != nil {
				return err
			}

			movements = append(movements, out, in)
			if product.IsLowStock() {
				lowProducts = append(lowProducts, product)
			}
		}

		now := time.Now()
		tr.ValidatedAt = &now
		tr.ValidatedBy = &actorID
		return s.transfers.Update(ctx, tr)
	})
	if err != nil {
		return nil, err
	}

	for _, m := range movements {
		s.publisher.MovementRecorded(ctx, m)
	}
	for _, p := range lowProducts {
		s.publisher.StockLow(ctx, p)
	}
	s.publisher.TransferValidated(ctx, tr, itemCount)

	s.logger.Info().
		Str("transfer_id", id).
		Str("reference", tr.Reference).
		Int("items", itemCount).
		Str("actor", actorID).
		Msg("transfer validated")

	return tr, nil
}

// Cancel abandons a draft transfer. Validated transfers have moved stock
// already and cannot be cancelled; they need a counter-transfer.
func (s *TransferService) Cancel(ctx context.Context, id string) (*domain.StockTransfer, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	actorID := actor.IDFromContext(ctx)

	var tr *domain.StockTransfer
	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		tr, err = s.transfers.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tr.Transition(domain.TransferCancelled); err != nil {
			return err
		}
		return s.transfers.Update(ctx, tr)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.TransferCancelled(ctx, tr, actorID)
	s.logger.Info().Str("transfer_id", id).Str("actor", actorID).Msg("transfer cancelled")

	return tr, nil
}

// Get returns a transfer with its item lines
func (s *TransferService) Get(ctx context.Context, id string) (*domain.StockTransfer, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var tr *domain.StockTransfer
	err = s.txm.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		tr, err = s.transfers.GetByID(ctx, id)
		if err != nil {
			return err
		}
		tr.Items, err = s.transfers.ListItems(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return tr, nil
}

// List returns a page of transfers matching the filter plus the total
// count
func (s *TransferService) List(ctx context.Context, filter repository.TransferFilter) ([]domain.StockTransfer, int64, error) {
	return s.transfers.List(ctx, filter)
}
