package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// UnitType describes how a product is counted and sold
type UnitType string

const (
	UnitPiece UnitType = "PIECE"
	UnitLot   UnitType = "LOT"
	UnitKg    UnitType = "KG"
	UnitLiter UnitType = "LITER"
	UnitBox   UnitType = "BOX"
)

// IsValid reports whether the unit type is a known value
func (u UnitType) IsValid() bool {
	switch u {
	case UnitPiece, UnitLot, UnitKg, UnitLiter, UnitBox:
		return true
	}
	return false
}

// Product is the stock-carrying aggregate. Stock is a decimal so weighed
// and measured goods (KG, LITER) can hold fractional quantities. Every
// stock mutation must be paired with a ledger row by the calling service;
// the entity itself never writes the ledger.
type Product struct {
	ID              string          `db:"id" json:"id"`
	ShopID          string          `db:"shop_id" json:"shop_id"`
	Code            string          `db:"code" json:"code"`
	Name            string          `db:"name" json:"name"`
	Description     *string         `db:"description" json:"description,omitempty"`
	PriceAmount     decimal.Decimal `db:"price_amount" json:"price_amount"`
	PriceCurrency   string          `db:"price_currency" json:"price_currency"`
	Stock           decimal.Decimal `db:"stock" json:"stock"`
	MinimumStock    decimal.Decimal `db:"minimum_stock" json:"minimum_stock"`
	IsDivisible     bool            `db:"is_divisible" json:"is_divisible"`
	UnitType        UnitType        `db:"unit_type" json:"unit_type"`
	QuantityPerUnit decimal.Decimal `db:"quantity_per_unit" json:"quantity_per_unit"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ValidateQuantity checks that qty is a legal quantity for this product:
// strictly positive, and integral when the product is not divisible.
func (p *Product) ValidateQuantity(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return errors.InvalidQuantity("quantity must be greater than zero")
	}
	if !p.IsDivisible && !qty.IsInteger() {
		return errors.InvalidQuantity("product " + p.Code + " is not divisible, quantity must be a whole number")
	}
	return nil
}

// AddStock increases the stock level by qty
func (p *Product) AddStock(qty decimal.Decimal) error {
	if err := p.ValidateQuantity(qty); err != nil {
		return err
	}
	p.Stock = p.Stock.Add(qty)
	return nil
}

// RemoveStock decreases the stock level by qty. Stock can never go negative.
func (p *Product) RemoveStock(qty decimal.Decimal) error {
	if err := p.ValidateQuantity(qty); err != nil {
		return err
	}
	if p.Stock.LessThan(qty) {
		return errors.InsufficientStock(p.Code, p.Stock.String(), qty.String())
	}
	p.Stock = p.Stock.Sub(qty)
	return nil
}

// HasStock reports whether at least qty units are on hand
func (p *Product) HasStock(qty decimal.Decimal) bool {
	return p.Stock.GreaterThanOrEqual(qty)
}

// IsLowStock reports whether stock has fallen to or below the minimum
func (p *Product) IsLowStock() bool {
	return p.Stock.LessThanOrEqual(p.MinimumStock)
}
