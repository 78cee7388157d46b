package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// MovementFilter narrows the movements report
type MovementFilter struct {
	ShopID    string
	ProductID string
	Type      domain.MovementType
	Reference string
	From      *time.Time
	To        *time.Time
	Page      int
	PerPage   int
}

// MovementRepository handles the append-only stock ledger. Rows are only
// ever inserted; there is no update or delete path.
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Record appends a ledger row. When called inside a WithTenantRLS scope it
// joins the caller's transaction, so a failed insert aborts the whole
// stock mutation with it.
func (r *MovementRepository) Record(ctx context.Context, m *domain.StockMovement) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO stock_movements (id, tenant_id, shop_id, product_id, type, quantity, reference, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			m.ID, tenantID, m.ShopID, m.ProductID, m.Type, m.Quantity, m.Reference, m.CreatedBy,
		).Scan(&m.CreatedAt)

		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	})
}

// List returns a filtered page of the ledger plus the total row count.
// Performer names are joined from user_cache when available.
func (r *MovementRepository) List(ctx context.Context, filter MovementFilter) ([]domain.StockMovement, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where, args := buildMovementWhere(filter)

	if filter.PerPage <= 0 {
		filter.PerPage = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.PerPage

	var movements []domain.StockMovement
	var total int64

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		countQuery := `SELECT COUNT(*) FROM stock_movements m ` + where
		if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return err
		}

		listQuery := fmt.Sprintf(`
			SELECT m.id, m.shop_id, m.product_id, m.type, m.quantity, m.reference,
			       m.created_by, m.created_at,
			       NULLIF(TRIM(u.first_name || ' ' || u.last_name), '') AS created_by_name
			FROM stock_movements m
			LEFT JOIN user_cache u ON u.user_id = m.created_by
			%s
			ORDER BY m.created_at DESC
			LIMIT %d OFFSET %d
		`, where, filter.PerPage, offset)

		return r.db.SelectContext(ctx, &movements, listQuery, args...)
	})
	if err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

// buildMovementWhere builds the WHERE clause for the report filters using
// positional args so the clause is shared by the count and list queries.
func buildMovementWhere(filter MovementFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.ShopID != "" {
		add("m.shop_id = $%d", filter.ShopID)
	}
	if filter.ProductID != "" {
		add("m.product_id = $%d", filter.ProductID)
	}
	if filter.Type != "" {
		add("m.type = $%d", filter.Type)
	}
	if filter.Reference != "" {
		add("m.reference ILIKE $%d", "%"+filter.Reference+"%")
	}
	if filter.From != nil {
		add("m.created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("m.created_at <= $%d", *filter.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
