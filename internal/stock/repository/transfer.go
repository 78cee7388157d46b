package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

const transferColumns = `id, reference, from_shop_id, to_shop_id, status, notes,
	       created_by, validated_by, validated_at, created_at, updated_at`

// TransferRepository handles stock transfer persistence
type TransferRepository struct {
	db *database.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *database.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create creates a new transfer in draft status
// TENANT-ISOLATED: Inserts with the tenant ID from context, RLS enforced
func (r *TransferRepository) Create(ctx context.Context, tr *domain.StockTransfer) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO stock_transfers (id, tenant_id, reference, from_shop_id, to_shop_id, status, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			tr.ID, tenantID, tr.Reference, tr.FromShopID, tr.ToShopID,
			tr.Status, tr.Notes, tr.CreatedBy,
		).Scan(&tr.CreatedAt, &tr.UpdatedAt)

		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	})
}

// GetByID gets a transfer by ID, without its items
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.StockTransfer, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var tr domain.StockTransfer
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + transferColumns + ` FROM stock_transfers WHERE id = $1`
		return r.db.GetContext(ctx, &tr, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("stock transfer")
	}
	if err != nil {
		return nil, err
	}

	return &tr, nil
}

// GetByIDForUpdate gets a transfer and row-locks it so concurrent
// workflow transitions serialize. Must run inside the caller's
// WithTenantRLS scope.
func (r *TransferRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.StockTransfer, error) {
	var tr domain.StockTransfer
	query := `SELECT ` + transferColumns + ` FROM stock_transfers WHERE id = $1 FOR UPDATE`
	err := r.db.GetContext(ctx, &tr, query, id)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("stock transfer")
	}
	if err != nil {
		return nil, err
	}

	return &tr, nil
}

// Update persists workflow fields after a domain transition
func (r *TransferRepository) Update(ctx context.Context, tr *domain.StockTransfer) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE stock_transfers
			SET status = $2, notes = $3, validated_by = $4, validated_at = $5, updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query,
			tr.ID, tr.Status, tr.Notes, tr.ValidatedBy, tr.ValidatedAt)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.NotFound("stock transfer")
		}
		return nil
	})
}

// TransferFilter narrows the transfer listing
type TransferFilter struct {
	FromShopID string
	ToShopID   string
	Status     domain.TransferStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

// List returns a page of transfers matching the filter, newest first,
// plus the total count
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *TransferRepository) List(ctx context.Context, filter TransferFilter) ([]domain.StockTransfer, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where, args := buildTransferWhere(filter)

	if filter.PerPage <= 0 {
		filter.PerPage = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	var transfers []domain.StockTransfer
	var total int64

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_transfers `+where, args...); err != nil {
			return err
		}

		query := fmt.Sprintf(`SELECT `+transferColumns+` FROM stock_transfers
			%s
			ORDER BY created_at DESC
			LIMIT %d OFFSET %d`, where, filter.PerPage, (filter.Page-1)*filter.PerPage)
		return r.db.SelectContext(ctx, &transfers, query, args...)
	})
	if err != nil {
		return nil, 0, err
	}

	return transfers, total, nil
}

func buildTransferWhere(filter TransferFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.FromShopID != "" {
		add("from_shop_id = $%d", filter.FromShopID)
	}
	if filter.ToShopID != "" {
		add("to_shop_id = $%d", filter.ToShopID)
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

// UpsertItem adds a product line to a transfer, merging quantities when
// the product is already on it. A product appears at most once per
// transfer; UNIQUE(stock_transfer_id, product_id) backs the merge.
func (r *TransferRepository) UpsertItem(ctx context.Context, item *domain.StockTransferItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_transfer_items (id, stock_transfer_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stock_transfer_id, product_id)
		DO UPDATE SET quantity = stock_transfer_items.quantity + EXCLUDED.quantity
		RETURNING id, quantity
	`
	err := r.db.QueryRowxContext(ctx, query,
		item.ID, item.StockTransferID, item.ProductID, item.Quantity,
	).Scan(&item.ID, &item.Quantity)

	if mapped := database.MapPQError(err); mapped != nil {
		return mapped
	}
	return err
}

// UpdateItemQuantity replaces the quantity of a transfer line
func (r *TransferRepository) UpdateItemQuantity(ctx context.Context, transferID, productID string, qty decimal.Decimal) error {
	query := `
		UPDATE stock_transfer_items
		SET quantity = $3
		WHERE stock_transfer_id = $1 AND product_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, transferID, productID, qty)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("transfer item")
	}
	return nil
}

// RemoveItem deletes a product line from a transfer
func (r *TransferRepository) RemoveItem(ctx context.Context, transferID, productID string) error {
	query := `DELETE FROM stock_transfer_items WHERE stock_transfer_id = $1 AND product_id = $2`
	result, err := r.db.ExecContext(ctx, query, transferID, productID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("transfer item")
	}
	return nil
}

// ListItems lists the lines of a transfer with product details joined
func (r *TransferRepository) ListItems(ctx context.Context, transferID string) ([]domain.StockTransferItem, error) {
	var items []domain.StockTransferItem
	query := `
		SELECT i.id, i.stock_transfer_id, i.product_id, i.quantity,
		       p.code AS product_code, p.name AS product_name
		FROM stock_transfer_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.stock_transfer_id = $1
		ORDER BY p.code
	`
	if err := r.db.SelectContext(ctx, &items, query, transferID); err != nil {
		return nil, err
	}
	return items, nil
}
