package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ShopFixture represents test shop data
type ShopFixture struct {
	ID       string
	Name     string
	Code     string
	IsActive bool
}

// ProductFixture represents test product data
type ProductFixture struct {
	ID              string
	ShopID          string
	Code            string
	Name            string
	PriceAmount     decimal.Decimal
	PriceCurrency   string
	Stock           decimal.Decimal
	MinimumStock    decimal.Decimal
	IsDivisible     bool
	UnitType        string
	QuantityPerUnit decimal.Decimal
	IsActive        bool
}

// BatchFixture represents test product batch data
type BatchFixture struct {
	ID              string
	ProductID       string
	BatchNumber     string
	Quantity        decimal.Decimal
	InitialQuantity decimal.Decimal
	ExpiryDate      *time.Time
	IsActive        bool
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Shop creates a shop fixture with defaults
func (f *FixtureFactory) Shop(opts ...func(*ShopFixture)) ShopFixture {
	seq := f.nextSeq()

	shop := ShopFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Test Shop %d", seq),
		Code:     fmt.Sprintf("SHOP-%04d", seq),
		IsActive: true,
	}

	for _, opt := range opts {
		opt(&shop)
	}

	return shop
}

// WithShopName sets the shop name
func WithShopName(name string) func(*ShopFixture) {
	return func(s *ShopFixture) {
		s.Name = name
	}
}

// WithShopActive sets the shop active flag
func WithShopActive(active bool) func(*ShopFixture) {
	return func(s *ShopFixture) {
		s.IsActive = active
	}
}

// Product creates a product fixture with defaults: a non-divisible boxed
// product with 100 units in stock and a minimum of 10.
func (f *FixtureFactory) Product(shopID string, opts ...func(*ProductFixture)) ProductFixture {
	seq := f.nextSeq()

	product := ProductFixture{
		ID:              uuid.New().String(),
		ShopID:          shopID,
		Code:            fmt.Sprintf("PRD-%04d", seq),
		Name:            fmt.Sprintf("Test Product %d", seq),
		PriceAmount:     decimal.NewFromFloat(9.99),
		PriceCurrency:   "EUR",
		Stock:           decimal.NewFromInt(100),
		MinimumStock:    decimal.NewFromInt(10),
		IsDivisible:     false,
		UnitType:        "BOX",
		QuantityPerUnit: decimal.NewFromInt(1),
		IsActive:        true,
	}

	for _, opt := range opts {
		opt(&product)
	}

	return product
}

// WithProductCode sets the product code
func WithProductCode(code string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Code = code
	}
}

// WithStock sets the product stock level
func WithStock(stock decimal.Decimal) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Stock = stock
	}
}

// WithMinimumStock sets the product minimum stock threshold
func WithMinimumStock(min decimal.Decimal) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.MinimumStock = min
	}
}

// WithDivisible marks the product as divisible with the given unit
func WithDivisible(unitType string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.IsDivisible = true
		p.UnitType = unitType
	}
}

// WithProductActive sets the product active flag
func WithProductActive(active bool) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.IsActive = active
	}
}

// Batch creates a product batch fixture with defaults
func (f *FixtureFactory) Batch(productID string, opts ...func(*BatchFixture)) BatchFixture {
	seq := f.nextSeq()
	expiry := time.Now().AddDate(1, 0, 0)

	batch := BatchFixture{
		ID:              uuid.New().String(),
		ProductID:       productID,
		BatchNumber:     fmt.Sprintf("LOT-%04d", seq),
		Quantity:        decimal.NewFromInt(50),
		InitialQuantity: decimal.NewFromInt(50),
		ExpiryDate:      &expiry,
		IsActive:        true,
	}

	for _, opt := range opts {
		opt(&batch)
	}

	return batch
}

// WithBatchNumber sets the batch number
func WithBatchNumber(number string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.BatchNumber = number
	}
}

// WithBatchQuantity sets both the current and initial batch quantity
func WithBatchQuantity(qty decimal.Decimal) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.Quantity = qty
		b.InitialQuantity = qty
	}
}

// WithExpiryDate sets the batch expiry date
func WithExpiryDate(expiry time.Time) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiryDate = &expiry
	}
}

// WithExpiryIn sets the batch expiry relative to now
func WithExpiryIn(days int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		expiry := time.Now().AddDate(0, 0, days)
		b.ExpiryDate = &expiry
	}
}

// SeedShop inserts a shop row with an explicit tenant_id. Seeding goes
// through the raw connection because the test container connects as a
// superuser, for whom RLS does not apply.
func SeedShop(ctx context.Context, db *sqlx.DB, tenantID string, s ShopFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock.shops (id, tenant_id, name, code, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, tenantID, s.Name, s.Code, s.IsActive)
	return err
}

// SeedProduct inserts a product row with an explicit tenant_id
func SeedProduct(ctx context.Context, db *sqlx.DB, tenantID string, p ProductFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock.products (
			id, tenant_id, shop_id, code, name,
			price_amount, price_currency, stock, minimum_stock,
			is_divisible, unit_type, quantity_per_unit, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, p.ID, tenantID, p.ShopID, p.Code, p.Name,
		p.PriceAmount, p.PriceCurrency, p.Stock, p.MinimumStock,
		p.IsDivisible, p.UnitType, p.QuantityPerUnit, p.IsActive)
	return err
}

// SeedBatch inserts a product batch row with an explicit tenant_id
func SeedBatch(ctx context.Context, db *sqlx.DB, tenantID string, b BatchFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock.product_batches (
			id, tenant_id, product_id, batch_number,
			quantity, initial_quantity, expiry_date, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, tenantID, b.ProductID, b.BatchNumber,
		b.Quantity, b.InitialQuantity, b.ExpiryDate, b.IsActive)
	return err
}
