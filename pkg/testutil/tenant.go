package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// TestTenant represents a tenant created for testing
type TestTenant struct {
	ID   string
	Name string
	Slug string
}

// TenantManager manages test tenants. All tenants share the stock schema;
// isolation comes from the tenant_id column and RLS, the same as in
// production.
type TenantManager struct {
	db      *sqlx.DB
	tenants []TestTenant
	mu      sync.Mutex
}

// NewTenantManager creates a new tenant manager for tests
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{
		db:      db,
		tenants: make([]TestTenant, 0),
	}
}

// CreateTenant registers a new tenant for testing. Each test should use
// its own tenant for isolation.
//
// Usage:
//
//	tm := testutil.NewTenantManager(db)
//	tenant, _ := tm.CreateTenant(ctx, "test-pharmacy")
//	ctx = testutil.WithTestTenant(ctx, tenant)
//
//	// All repository operations now run under this tenant
//	product, err := productRepo.GetByID(ctx, productID)
func (tm *TenantManager) CreateTenant(ctx context.Context, name string) (*TestTenant, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	id := uuid.New().String()
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))

	_, err := tm.db.ExecContext(ctx, `
		INSERT INTO public.tenants (id, name, slug, subscription_status)
		VALUES ($1, $2, $3, 'active')
		ON CONFLICT (slug) DO NOTHING
	`, id, name, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to register tenant: %w", err)
	}

	t := TestTenant{
		ID:   id,
		Name: name,
		Slug: slug,
	}

	tm.tenants = append(tm.tenants, t)
	return &t, nil
}

// DropTenant removes a tenant and all its rows
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if err := tm.deleteTenantRows(ctx, t.ID); err != nil {
		return err
	}

	for i, tracked := range tm.tenants {
		if tracked.ID == t.ID {
			tm.tenants = append(tm.tenants[:i], tm.tenants[i+1:]...)
			break
		}
	}

	return nil
}

// Cleanup removes all tenants created by this manager.
// Call this in TestMain or test cleanup.
func (tm *TenantManager) Cleanup(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var lastErr error
	for _, t := range tm.tenants {
		if err := tm.deleteTenantRows(ctx, t.ID); err != nil {
			lastErr = err
		}
	}

	tm.tenants = make([]TestTenant, 0)
	return lastErr
}

func (tm *TenantManager) deleteTenantRows(ctx context.Context, tenantID string) error {
	// Child tables cascade from their parents
	for _, table := range []string{
		"stock.stock_transfers",
		"stock.inventories",
		"stock.stock_movements",
		"stock.product_batches",
		"stock.products",
		"stock.shops",
		"stock.user_cache",
	} {
		if _, err := tm.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE tenant_id = $1", table), tenantID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := tm.db.ExecContext(ctx, "DELETE FROM public.tenants WHERE id = $1", tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant record: %w", err)
	}
	return nil
}

// WithTestTenant creates a context with tenant information for testing.
// This is the primary way to set up tenant context in tests.
func WithTestTenant(ctx context.Context, t *TestTenant) context.Context {
	return tenant.WithTenantContext(ctx, t.ID, t.Slug)
}

// TestTenantContext creates a context with a fake tenant for simple unit
// tests that don't need actual database isolation.
func TestTenantContext() context.Context {
	return tenant.WithTenantContext(
		context.Background(),
		"test-tenant-id",
		"test-tenant",
	)
}

// AppRole is the unprivileged database role tests connect with so that
// row level security is actually enforced (the container's default user
// is a superuser, and superusers bypass RLS).
const AppRole = "stockflow_app"

// StockMigrations returns the stock schema migrations for tests. The
// constraint names match what pkg/database.MapPQError translates.
func StockMigrations() []string {
	return []string{
		`CREATE SCHEMA IF NOT EXISTS stock`,

		`CREATE TABLE IF NOT EXISTS stock.shops (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			code VARCHAR(50) NOT NULL,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (tenant_id, code)
		)`,

		`CREATE TABLE IF NOT EXISTS stock.products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			shop_id UUID NOT NULL REFERENCES stock.shops(id),
			code VARCHAR(100) NOT NULL,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			price_amount NUMERIC(20,4) NOT NULL DEFAULT 0,
			price_currency CHAR(3) NOT NULL DEFAULT 'EUR',
			stock NUMERIC(20,4) NOT NULL DEFAULT 0,
			minimum_stock NUMERIC(20,4) NOT NULL DEFAULT 0,
			is_divisible BOOLEAN NOT NULL DEFAULT FALSE,
			unit_type VARCHAR(20) NOT NULL DEFAULT 'PIECE',
			quantity_per_unit NUMERIC(20,4) NOT NULL DEFAULT 1,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT products_code_key UNIQUE (shop_id, code),
			CONSTRAINT products_stock_non_negative CHECK (stock >= 0),
			CONSTRAINT products_unit_type_valid CHECK
				(unit_type IN ('PIECE', 'LOT', 'KG', 'LITER', 'BOX'))
		)`,

		`CREATE TABLE IF NOT EXISTS stock.product_batches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			product_id UUID NOT NULL REFERENCES stock.products(id) ON DELETE CASCADE,
			batch_number VARCHAR(100) NOT NULL,
			quantity NUMERIC(20,4) NOT NULL DEFAULT 0,
			initial_quantity NUMERIC(20,4) NOT NULL DEFAULT 0,
			expiry_date DATE,
			supplier_reference VARCHAR(100),
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT product_batches_batch_number_key UNIQUE (product_id, batch_number),
			CONSTRAINT product_batches_quantity_non_negative CHECK (quantity >= 0)
		)`,

		`CREATE TABLE IF NOT EXISTS stock.stock_movements (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			shop_id UUID NOT NULL REFERENCES stock.shops(id),
			product_id UUID NOT NULL REFERENCES stock.products(id),
			type VARCHAR(20) NOT NULL,
			quantity NUMERIC(20,4) NOT NULL,
			reference VARCHAR(255) NOT NULL DEFAULT '',
			created_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_movements_movement_type_valid CHECK
				(type IN ('IN', 'OUT', 'ADJUSTMENT')),
			CONSTRAINT stock_movements_quantity_positive CHECK (quantity > 0)
		)`,

		`CREATE TABLE IF NOT EXISTS stock.inventories (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			shop_id UUID NOT NULL REFERENCES stock.shops(id),
			reference VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			started_at TIMESTAMPTZ,
			validated_at TIMESTAMPTZ,
			created_by UUID,
			validated_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT inventories_reference_key UNIQUE (tenant_id, reference),
			CONSTRAINT inventories_status_valid CHECK
				(status IN ('draft', 'in_progress', 'validated', 'cancelled'))
		)`,

		`CREATE TABLE IF NOT EXISTS stock.inventory_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			inventory_id UUID NOT NULL REFERENCES stock.inventories(id) ON DELETE CASCADE,
			product_id UUID NOT NULL REFERENCES stock.products(id),
			system_quantity NUMERIC(20,4) NOT NULL DEFAULT 0,
			counted_quantity NUMERIC(20,4),
			difference NUMERIC(20,4) NOT NULL DEFAULT 0,
			CONSTRAINT inventory_items_inventory_id_product_id_key
				UNIQUE (inventory_id, product_id)
		)`,

		`CREATE TABLE IF NOT EXISTS stock.stock_transfers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			reference VARCHAR(50) NOT NULL,
			from_shop_id UUID NOT NULL REFERENCES stock.shops(id),
			to_shop_id UUID NOT NULL REFERENCES stock.shops(id),
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			notes TEXT,
			created_by UUID,
			validated_by UUID,
			validated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_transfers_reference_key UNIQUE (tenant_id, reference),
			CONSTRAINT stock_transfers_status_valid CHECK
				(status IN ('draft', 'validated', 'cancelled')),
			CONSTRAINT stock_transfers_shops_differ CHECK (from_shop_id <> to_shop_id)
		)`,

		`CREATE TABLE IF NOT EXISTS stock.stock_transfer_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			stock_transfer_id UUID NOT NULL REFERENCES stock.stock_transfers(id) ON DELETE CASCADE,
			product_id UUID NOT NULL REFERENCES stock.products(id),
			quantity NUMERIC(20,4) NOT NULL,
			CONSTRAINT stock_transfer_items_stock_transfer_id_product_id_key
				UNIQUE (stock_transfer_id, product_id),
			CONSTRAINT stock_transfer_items_quantity_positive CHECK (quantity > 0)
		)`,

		`CREATE TABLE IF NOT EXISTS stock.user_cache (
			user_id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			email VARCHAR(255),
			role_name VARCHAR(50),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// RLS policies: tenant rows are only visible when
		// app.current_tenant matches
		`DO $$
		DECLARE t TEXT;
		BEGIN
			FOREACH t IN ARRAY ARRAY['shops', 'products', 'product_batches',
				'stock_movements', 'inventories', 'stock_transfers', 'user_cache']
			LOOP
				EXECUTE format('ALTER TABLE stock.%I ENABLE ROW LEVEL SECURITY', t);
				IF NOT EXISTS (
					SELECT 1 FROM pg_policies
					WHERE schemaname = 'stock' AND tablename = t AND policyname = 'tenant_isolation'
				) THEN
					EXECUTE format(
						'CREATE POLICY tenant_isolation ON stock.%I
						 USING (tenant_id = current_setting(''app.current_tenant'')::uuid)
						 WITH CHECK (tenant_id = current_setting(''app.current_tenant'')::uuid)', t);
				END IF;
			END LOOP;
		END $$`,

		`CREATE INDEX IF NOT EXISTS idx_stock_movements_product
			ON stock.stock_movements (product_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_movements_reference
			ON stock.stock_movements (reference)`,
		`CREATE INDEX IF NOT EXISTS idx_product_batches_expiry
			ON stock.product_batches (expiry_date) WHERE is_active`,

		// Unprivileged role the tests connect with; the table owner
		// would bypass the policies above
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '` + AppRole + `') THEN
				CREATE ROLE ` + AppRole + ` LOGIN PASSWORD 'test';
			END IF;
		END $$`,
		`GRANT USAGE ON SCHEMA stock, public TO ` + AppRole,
		`GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA stock TO ` + AppRole,
		`GRANT SELECT ON public.tenants TO ` + AppRole,
	}
}
