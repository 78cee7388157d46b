package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

const inventoryColumns = `id, shop_id, reference, status, started_at, validated_at,
	       created_by, validated_by, created_at, updated_at`

// InventoryRepository handles inventory count persistence
type InventoryRepository struct {
	db *database.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *database.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Create creates a new inventory in draft status
// TENANT-ISOLATED: Inserts with the tenant ID from context, RLS enforced
func (r *InventoryRepository) Create(ctx context.Context, inv *domain.Inventory) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO inventories (id, tenant_id, shop_id, reference, status, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			inv.ID, tenantID, inv.ShopID, inv.Reference, inv.Status, inv.CreatedBy,
		).Scan(&inv.CreatedAt, &inv.UpdatedAt)

		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	})
}

// GetByID gets an inventory by ID, without its items
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *InventoryRepository) GetByID(ctx context.Context, id string) (*domain.Inventory, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var inv domain.Inventory
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + inventoryColumns + ` FROM inventories WHERE id = $1`
		return r.db.GetContext(ctx, &inv, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("inventory")
	}
	if err != nil {
		return nil, err
	}

	return &inv, nil
}

// GetByIDForUpdate gets an inventory and row-locks it so concurrent
// workflow transitions serialize. Must run inside the caller's
// WithTenantRLS scope.
func (r *InventoryRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Inventory, error) {
	var inv domain.Inventory
	query := `SELECT ` + inventoryColumns + ` FROM inventories WHERE id = $1 FOR UPDATE`
	err := r.db.GetContext(ctx, &inv, query, id)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("inventory")
	}
	if err != nil {
		return nil, err
	}

	return &inv, nil
}

// Update persists workflow fields after a domain transition
func (r *InventoryRepository) Update(ctx context.Context, inv *domain.Inventory) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE inventories
			SET status = $2, started_at = $3, validated_at = $4, validated_by = $5, updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query,
			inv.ID, inv.Status, inv.StartedAt, inv.ValidatedAt, inv.ValidatedBy)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.NotFound("inventory")
		}
		return nil
	})
}

// InventoryFilter narrows the inventory listing
type InventoryFilter struct {
	ShopID  string
	Status  domain.InventoryStatus
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

// List returns a page of inventories matching the filter, newest first,
// plus the total count
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *InventoryRepository) List(ctx context.Context, filter InventoryFilter) ([]domain.Inventory, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where, args := buildInventoryWhere(filter)

	if filter.PerPage <= 0 {
		filter.PerPage = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	var inventories []domain.Inventory
	var total int64

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM inventories `+where, args...); err != nil {
			return err
		}

		query := fmt.Sprintf(`SELECT `+inventoryColumns+` FROM inventories
			%s
			ORDER BY created_at DESC
			LIMIT %d OFFSET %d`, where, filter.PerPage, (filter.Page-1)*filter.PerPage)
		return r.db.SelectContext(ctx, &inventories, query, args...)
	})
	if err != nil {
		return nil, 0, err
	}

	return inventories, total, nil
}

func buildInventoryWhere(filter InventoryFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.ShopID != "" {
		add("shop_id = $%d", filter.ShopID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// SnapshotItems inserts one line per product in scope with the current
// stock as system quantity. An empty productIDs snapshots every active
// product of the shop; a non-empty list narrows the count to those
// products. Existing lines are kept untouched, so restarting an
// in-progress inventory is idempotent.
func (r *InventoryRepository) SnapshotItems(ctx context.Context, inventoryID, shopID string, productIDs []string) error {
	query := `
		INSERT INTO inventory_items (id, inventory_id, product_id, system_quantity, difference)
		SELECT gen_random_uuid(), $1, p.id, p.stock, 0
		FROM products p
		WHERE p.shop_id = $2 AND p.is_active = true
	`
	args := []interface{}{inventoryID, shopID}
	if len(productIDs) > 0 {
		query += ` AND p.id = ANY($3)`
		args = append(args, pq.Array(productIDs))
	}
	query += ` ON CONFLICT (inventory_id, product_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, args...)
	if mapped := database.MapPQError(err); mapped != nil {
		return mapped
	}
	return err
}

// GetItem gets one inventory line
func (r *InventoryRepository) GetItem(ctx context.Context, inventoryID, productID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	query := `
		SELECT id, inventory_id, product_id, system_quantity, counted_quantity, difference
		FROM inventory_items
		WHERE inventory_id = $1 AND product_id = $2
	`
	err := r.db.GetContext(ctx, &item, query, inventoryID, productID)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("inventory item")
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// UpdateItemCount persists a counted quantity and its difference
func (r *InventoryRepository) UpdateItemCount(ctx context.Context, item *domain.InventoryItem) error {
	query := `
		UPDATE inventory_items
		SET counted_quantity = $3, difference = $4
		WHERE inventory_id = $1 AND product_id = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		item.InventoryID, item.ProductID, item.CountedQuantity, item.Difference)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("inventory item")
	}
	return nil
}

// ListItems lists the lines of an inventory with product details joined
func (r *InventoryRepository) ListItems(ctx context.Context, inventoryID string) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	query := `
		SELECT i.id, i.inventory_id, i.product_id, i.system_quantity, i.counted_quantity, i.difference,
		       p.code AS product_code, p.name AS product_name
		FROM inventory_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.inventory_id = $1
		ORDER BY p.code
	`
	if err := r.db.SelectContext(ctx, &items, query, inventoryID); err != nil {
		return nil, err
	}
	return items, nil
}
