package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// ProductBatch tracks a received lot of a product with its own quantity
// and expiry date. Invariant: 0 <= Quantity <= InitialQuantity.
type ProductBatch struct {
	ID                string          `db:"id" json:"id"`
	ProductID         string          `db:"product_id" json:"product_id"`
	BatchNumber       string          `db:"batch_number" json:"batch_number"`
	Quantity          decimal.Decimal `db:"quantity" json:"quantity"`
	InitialQuantity   decimal.Decimal `db:"initial_quantity" json:"initial_quantity"`
	ExpiryDate        *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	SupplierReference *string         `db:"supplier_reference" json:"supplier_reference,omitempty"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Consume removes qty from the batch
func (b *ProductBatch) Consume(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return errors.InvalidQuantity("quantity must be greater than zero")
	}
	if b.Quantity.LessThan(qty) {
		return errors.InsufficientBatchQuantity(b.BatchNumber, b.Quantity.String(), qty.String())
	}
	b.Quantity = b.Quantity.Sub(qty)
	return nil
}

// AddStock adds qty to the batch, raising the initial quantity so the
// invariant Quantity <= InitialQuantity holds for restocked batches.
func (b *ProductBatch) AddStock(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return errors.InvalidQuantity("quantity must be greater than zero")
	}
	b.Quantity = b.Quantity.Add(qty)
	b.InitialQuantity = b.InitialQuantity.Add(qty)
	return nil
}

// IsExpired reports whether the batch expiry date has passed
func (b *ProductBatch) IsExpired() bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(time.Now())
}

// IsExpiringSoon reports whether the batch expires within the given number of days
func (b *ProductBatch) IsExpiringSoon(days int) bool {
	if b.ExpiryDate == nil {
		return false
	}
	horizon := time.Now().AddDate(0, 0, days)
	return b.ExpiryDate.Before(horizon) && !b.IsExpired()
}

// IsLowStock reports whether remaining quantity is at or below threshold
func (b *ProductBatch) IsLowStock(threshold decimal.Decimal) bool {
	return b.Quantity.LessThanOrEqual(threshold)
}

// StockPercentage returns the remaining quantity as a percentage of the
// initial quantity, rounded to two decimal places.
func (b *ProductBatch) StockPercentage() decimal.Decimal {
	if b.InitialQuantity.IsZero() {
		return decimal.Zero
	}
	return b.Quantity.Div(b.InitialQuantity).Mul(decimal.NewFromInt(100)).Round(2)
}
