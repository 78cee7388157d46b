package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

const productColumns = `id, shop_id, code, name, description, price_amount, price_currency,
	       stock, minimum_stock, is_divisible, unit_type, quantity_per_unit, is_active,
	       created_at, updated_at`

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
// TENANT-ISOLATED: Inserts with the tenant ID from context, RLS enforced
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO products (
				id, tenant_id, shop_id, code, name, description, price_amount, price_currency,
				stock, minimum_stock, is_divisible, unit_type, quantity_per_unit, is_active
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING created_at, updated_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			product.ID, tenantID, product.ShopID, product.Code, product.Name,
			product.Description, product.PriceAmount, product.PriceCurrency,
			product.Stock, product.MinimumStock, product.IsDivisible,
			product.UnitType, product.QuantityPerUnit, product.IsActive,
		).Scan(&product.CreatedAt, &product.UpdatedAt)

		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	})
}

// GetByID gets a product by ID
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var product domain.Product
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
		return r.db.GetContext(ctx, &product, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("product")
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

// GetByIDForUpdate gets a product and row-locks it for the remainder of
// the transaction. Must run inside the caller's WithTenantRLS scope;
// the lock would be pointless in its own transaction.
func (r *ProductRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	err := r.db.GetContext(ctx, &product, query, id)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("product")
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

// GetByCode gets a product by its shop-scoped code
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *ProductRepository) GetByCode(ctx context.Context, shopID, code string) (*domain.Product, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var product domain.Product
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + productColumns + ` FROM products WHERE shop_id = $1 AND code = $2`
		return r.db.GetContext(ctx, &product, query, shopID, code)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("product")
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

// ListActiveByShop lists the active products of a shop
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *ProductRepository) ListActiveByShop(ctx context.Context, shopID string) ([]domain.Product, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var products []domain.Product
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + productColumns + ` FROM products
			WHERE shop_id = $1 AND is_active = true
			ORDER BY code`
		return r.db.SelectContext(ctx, &products, query, shopID)
	})
	if err != nil {
		return nil, err
	}

	return products, nil
}

// UpdateStock persists a new absolute stock level. Intended for use after
// GetByIDForUpdate inside a transaction, where the new level was computed
// on the locked row.
func (r *ProductRepository) UpdateStock(ctx context.Context, id string, stock decimal.Decimal) error {
	query := `UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, stock)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("product")
	}
	return nil
}

// DecrementStock atomically removes qty from a product's stock. The
// conditional WHERE makes concurrent decrements race-safe: the statement
// only succeeds when enough stock remains at execution time. Returns the
// new stock level, or false without error when stock was insufficient.
// Must run inside the caller's WithTenantRLS scope.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty decimal.Decimal) (decimal.Decimal, bool, error) {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`
	var newStock decimal.Decimal
	err := r.db.QueryRowxContext(ctx, query, id, qty).Scan(&newStock)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return decimal.Zero, false, mapped
		}
		return decimal.Zero, false, err
	}
	return newStock, true, nil
}

// IncrementStock atomically adds qty to a product's stock and returns
// the new level. Additions never race into negative territory, so no
// row lock is needed.
// Must run inside the caller's WithTenantRLS scope.
func (r *ProductRepository) IncrementStock(ctx context.Context, id string, qty decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`
	var newStock decimal.Decimal
	err := r.db.QueryRowxContext(ctx, query, id, qty).Scan(&newStock)
	if err == sql.ErrNoRows {
		return decimal.Zero, errors.NotFound("product")
	}
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return decimal.Zero, mapped
		}
		return decimal.Zero, err
	}
	return newStock, nil
}

// CountActive counts the tenant's active products
func (r *ProductRepository) CountActive(ctx context.Context) (int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM products WHERE is_active = true`)
	})
	return count, err
}

// ListLowStock lists active products at or below their minimum stock
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *ProductRepository) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var products []domain.Product
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + productColumns + ` FROM products
			WHERE is_active = true AND stock <= minimum_stock
			ORDER BY stock ASC`
		return r.db.SelectContext(ctx, &products, query)
	})
	if err != nil {
		return nil, err
	}

	return products, nil
}
