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

const batchColumns = `id, product_id, batch_number, quantity, initial_quantity,
	       expiry_date, supplier_reference, is_active, created_at, updated_at`

// BatchRepository handles product batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch
// TENANT-ISOLATED: Inserts with the tenant ID from context, RLS enforced
func (r *BatchRepository) Create(ctx context.Context, batch *domain.ProductBatch) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO product_batches (
				id, tenant_id, product_id, batch_number, quantity, initial_quantity,
				expiry_date, supplier_reference, is_active
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			batch.ID, tenantID, batch.ProductID, batch.BatchNumber,
			batch.Quantity, batch.InitialQuantity, batch.ExpiryDate,
			batch.SupplierReference, batch.IsActive,
		).Scan(&batch.CreatedAt, &batch.UpdatedAt)

		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	})
}

// GetByID gets a batch by ID
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.ProductBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batch domain.ProductBatch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + batchColumns + ` FROM product_batches WHERE id = $1`
		return r.db.GetContext(ctx, &batch, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("batch")
	}
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

// GetByProductAndNumber gets a batch by its product-scoped batch number
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *BatchRepository) GetByProductAndNumber(ctx context.Context, productID, batchNumber string) (*domain.ProductBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batch domain.ProductBatch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + batchColumns + ` FROM product_batches
			WHERE product_id = $1 AND batch_number = $2`
		return r.db.GetContext(ctx, &batch, query, productID, batchNumber)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("batch")
	}
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

// UpdateQuantities persists batch quantities after a domain mutation
func (r *BatchRepository) UpdateQuantities(ctx context.Context, batch *domain.ProductBatch) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE product_batches
			SET quantity = $2, initial_quantity = $3, updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query, batch.ID, batch.Quantity, batch.InitialQuantity)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.NotFound("batch")
		}
		return nil
	})
}

// ListByProduct lists the active batches of a product, earliest expiry first
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *BatchRepository) ListByProduct(ctx context.Context, productID string) ([]domain.ProductBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []domain.ProductBatch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + batchColumns + ` FROM product_batches
			WHERE product_id = $1 AND is_active = true
			ORDER BY expiry_date ASC NULLS LAST`
		return r.db.SelectContext(ctx, &batches, query, productID)
	})
	if err != nil {
		return nil, err
	}

	return batches, nil
}

// ListExpiring lists active batches with stock that expire within the
// horizon. Batches already past their expiry date are included; they need
// attention even more urgently than the ones about to turn.
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *BatchRepository) ListExpiring(ctx context.Context, days int) ([]domain.ProductBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []domain.ProductBatch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + batchColumns + ` FROM product_batches
			WHERE is_active = true
			  AND quantity > 0
			  AND expiry_date IS NOT NULL
			  AND expiry_date <= NOW() + ($1 || ' days')::interval
			ORDER BY expiry_date ASC`
		return r.db.SelectContext(ctx, &batches, query, days)
	})
	if err != nil {
		return nil, err
	}

	return batches, nil
}

// ListExpired lists active batches with stock whose expiry date has passed
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *BatchRepository) ListExpired(ctx context.Context) ([]domain.ProductBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []domain.ProductBatch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + batchColumns + ` FROM product_batches
			WHERE is_active = true
			  AND quantity > 0
			  AND expiry_date IS NOT NULL
			  AND expiry_date <= NOW()
			ORDER BY expiry_date ASC`
		return r.db.SelectContext(ctx, &batches, query)
	})
	if err != nil {
		return nil, err
	}

	return batches, nil
}

// ListLowStock lists active batches at or below the quantity threshold
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *BatchRepository) ListLowStock(ctx context.Context, threshold decimal.Decimal) ([]domain.ProductBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []domain.ProductBatch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + batchColumns + ` FROM product_batches
			WHERE is_active = true AND quantity <= $1
			ORDER BY quantity ASC`
		return r.db.SelectContext(ctx, &batches, query, threshold)
	})
	if err != nil {
		return nil, err
	}

	return batches, nil
}

// CountExpiring counts active batches expiring within the horizon
func (r *BatchRepository) CountExpiring(ctx context.Context, days int) (int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT COUNT(*) FROM product_batches
			WHERE is_active = true
			  AND quantity > 0
			  AND expiry_date IS NOT NULL
			  AND expiry_date <= NOW() + ($1 || ' days')::interval`
		return r.db.GetContext(ctx, &count, query, days)
	})
	return count, err
}
