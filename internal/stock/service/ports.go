package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
)

// The services program against these narrow ports instead of concrete
// repositories so the reconciliation and transfer flows can be tested
// against in-memory fakes. pkg/database.DB satisfies TxManager; the
// repository types satisfy the stores.

// TxManager opens a tenant-scoped transaction. Every repository call made
// with the context it passes to fn joins that transaction, which is what
// makes validate flows all-or-nothing.
type TxManager interface {
	WithTenantRLS(ctx context.Context, tenantID string, fn func(context.Context) error) error
}

// ProductStore is the product persistence port
type ProductStore interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Product, error)
	UpdateStock(ctx context.Context, id string, stock decimal.Decimal) error
	IncrementStock(ctx context.Context, id string, qty decimal.Decimal) (decimal.Decimal, error)
	DecrementStock(ctx context.Context, id string, qty decimal.Decimal) (decimal.Decimal, bool, error)
	CountActive(ctx context.Context) (int64, error)
	ListLowStock(ctx context.Context) ([]domain.Product, error)
}

// BatchStore is the product batch persistence port
type BatchStore interface {
	Create(ctx context.Context, batch *domain.ProductBatch) error
	GetByProductAndNumber(ctx context.Context, productID, batchNumber string) (*domain.ProductBatch, error)
	UpdateQuantities(ctx context.Context, batch *domain.ProductBatch) error
	ListExpiring(ctx context.Context, days int) ([]domain.ProductBatch, error)
	ListExpired(ctx context.Context) ([]domain.ProductBatch, error)
	ListLowStock(ctx context.Context, threshold decimal.Decimal) ([]domain.ProductBatch, error)
	CountExpiring(ctx context.Context, days int) (int64, error)
}

// MovementStore is the stock ledger port. Append-only: there is no
// update or delete.
type MovementStore interface {
	Record(ctx context.Context, m *domain.StockMovement) error
	List(ctx context.Context, filter repository.MovementFilter) ([]domain.StockMovement, int64, error)
}

// InventoryStore is the inventory count persistence port
type InventoryStore interface {
	Create(ctx context.Context, inv *domain.Inventory) error
	GetByID(ctx context.Context, id string) (*domain.Inventory, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Inventory, error)
	Update(ctx context.Context, inv *domain.Inventory) error
	List(ctx context.Context, filter repository.InventoryFilter) ([]domain.Inventory, int64, error)
	SnapshotItems(ctx context.Context, inventoryID, shopID string, productIDs []string) error
	GetItem(ctx context.Context, inventoryID, productID string) (*domain.InventoryItem, error)
	UpdateItemCount(ctx context.Context, item *domain.InventoryItem) error
	ListItems(ctx context.Context, inventoryID string) ([]domain.InventoryItem, error)
}

// TransferStore is the stock transfer persistence port
type TransferStore interface {
	Create(ctx context.Context, tr *domain.StockTransfer) error
	GetByID(ctx context.Context, id string) (*domain.StockTransfer, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.StockTransfer, error)
	Update(ctx context.Context, tr *domain.StockTransfer) error
	List(ctx context.Context, filter repository.TransferFilter) ([]domain.StockTransfer, int64, error)
	UpsertItem(ctx context.Context, item *domain.StockTransferItem) error
	UpdateItemQuantity(ctx context.Context, transferID, productID string, qty decimal.Decimal) error
	RemoveItem(ctx context.Context, transferID, productID string) error
	ListItems(ctx context.Context, transferID string) ([]domain.StockTransferItem, error)
}

// ShopStore is the shop lookup port
type ShopStore interface {
	ExistsActive(ctx context.Context, id string) (bool, error)
}

// EventPublisher publishes stock events after a transaction commits.
// Implementations must tolerate failures without affecting the caller;
// publishing is best-effort.
type EventPublisher interface {
	MovementRecorded(ctx context.Context, m *domain.StockMovement)
	StockLow(ctx context.Context, p *domain.Product)
	BatchExpiring(ctx context.Context, b *domain.ProductBatch, daysUntil int)
	InventoryValidated(ctx context.Context, inv *domain.Inventory, itemCount, adjustmentCount int)
	InventoryCancelled(ctx context.Context, inv *domain.Inventory, actor string)
	TransferValidated(ctx context.Context, tr *domain.StockTransfer, itemCount int)
	TransferCancelled(ctx context.Context, tr *domain.StockTransfer, actor string)
}
