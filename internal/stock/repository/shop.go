package repository

import (
	"context"
	"database/sql"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// ShopRepository handles shop lookups. Shops are managed upstream; the
// stock service only reads them to scope products and validate transfer
// endpoints.
type ShopRepository struct {
	db *database.DB
}

// NewShopRepository creates a new shop repository
func NewShopRepository(db *database.DB) *ShopRepository {
	return &ShopRepository{db: db}
}

// GetByID gets a shop by ID
// TENANT-ISOLATED: RLS guarantees the shop belongs to the caller's tenant
func (r *ShopRepository) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var shop domain.Shop
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT id, name, code, is_active, created_at, updated_at FROM shops WHERE id = $1`
		return r.db.GetContext(ctx, &shop, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("shop")
	}
	if err != nil {
		return nil, err
	}

	return &shop, nil
}

// ExistsActive reports whether an active shop with this ID belongs to the
// caller's tenant
func (r *ShopRepository) ExistsActive(ctx context.Context, id string) (bool, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT EXISTS(SELECT 1 FROM shops WHERE id = $1 AND is_active = true)`
		return r.db.GetContext(ctx, &exists, query, id)
	})
	return exists, err
}
