package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// MovementType classifies a stock ledger entry
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// IsValid reports whether the movement type is a known value
func (t MovementType) IsValid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// StockMovement is one row of the append-only stock ledger. Quantity is
// always a positive magnitude; for adjustments the direction is encoded
// in the reference ("INV:<ref>:+2" / "INV:<ref>:-2"). Ledger rows are
// never updated or deleted.
type StockMovement struct {
	ID        string          `db:"id" json:"id"`
	ShopID    string          `db:"shop_id" json:"shop_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Type      MovementType    `db:"type" json:"type"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	Reference string          `db:"reference" json:"reference"`
	CreatedBy string          `db:"created_by" json:"created_by"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`

	// Joined from user_cache for reports, not persisted on the movement
	CreatedByName *string `db:"created_by_name" json:"created_by_name,omitempty"`
}

// NewStockMovement builds a valid ledger entry
func NewStockMovement(shopID, productID string, movementType MovementType, quantity decimal.Decimal, reference, createdBy string) (*StockMovement, error) {
	if !movementType.IsValid() {
		return nil, errors.BadRequest("invalid movement type: " + string(movementType))
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, errors.InvalidQuantity("movement quantity must be greater than zero")
	}

	return &StockMovement{
		ShopID:    shopID,
		ProductID: productID,
		Type:      movementType,
		Quantity:  quantity,
		Reference: reference,
		CreatedBy: createdBy,
	}, nil
}

// InventoryAdjustmentReference builds the ledger reference for an
// inventory validation adjustment, carrying the signed difference:
// "INV:INV-20260831-ABCD1234:+2" or "INV:INV-20260831-ABCD1234:-1.5".
func InventoryAdjustmentReference(inventoryReference string, difference decimal.Decimal) string {
	sign := "+"
	if difference.IsNegative() {
		sign = "-"
	}
	return "INV:" + inventoryReference + ":" + sign + difference.Abs().String()
}

// TransferReference builds the ledger reference shared by the OUT and IN
// legs of a stock transfer.
func TransferReference(transferReference string) string {
	return "TRANSFER-" + transferReference
}
