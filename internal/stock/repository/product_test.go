package repository_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	apperrors "github.com/stockflow/stockflow-backend/pkg/errors"
)

func TestProductRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "prod-create")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	repo := repository.NewProductRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, repo, shop.ID)
	assert.NotEmpty(t, product.ID)
	assert.False(t, product.CreatedAt.IsZero())

	got, err := repo.GetByID(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Code, got.Code)
	assert.True(t, got.Stock.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, domain.UnitBox, got.UnitType)
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "prod-notfound")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)

	_, err := repo.GetByID(tenantCtx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_Create_DuplicateCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "prod-dup")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	repo := repository.NewProductRepository(suite.DB)

	first := createTestProduct(t, tenantCtx, repo, shop.ID)

	dup := &domain.Product{
		ShopID:          shop.ID,
		Code:            first.Code,
		Name:            "Same Code Again",
		PriceCurrency:   "EUR",
		QuantityPerUnit: decimal.NewFromInt(1),
		UnitType:        domain.UnitBox,
		IsActive:        true,
	}
	err := repo.Create(tenantCtx, dup)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestProductRepository_GetByCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "prod-bycode")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	repo := repository.NewProductRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, repo, shop.ID)

	got, err := repo.GetByCode(tenantCtx, shop.ID, product.Code)
	require.NoError(t, err)
	assert.Equal(t, product.ID, got.ID)

	_, err = repo.GetByCode(tenantCtx, shop.ID, "NO-SUCH-CODE")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_DecrementStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "prod-decrement")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	repo := repository.NewProductRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, repo, shop.ID)

	// DecrementStock joins the caller's transaction, the way services
	// invoke it
	err := suite.DB.WithTenantRLS(tenantCtx, tenant.ID, func(txCtx context.Context) error {
		newStock, ok, err := repo.DecrementStock(txCtx, product.ID, decimal.NewFromInt(40))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, newStock.Equal(decimal.NewFromInt(60)))
		return nil
	})
	require.NoError(t, err)

	got, err := repo.GetByID(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.True(t, got.Stock.Equal(decimal.NewFromInt(60)), "stock should be 60, got %s", got.Stock)

	// Insufficient stock: the conditional update matches no row
	err = suite.DB.WithTenantRLS(tenantCtx, tenant.ID, func(txCtx context.Context) error {
		_, ok, err := repo.DecrementStock(txCtx, product.ID, decimal.NewFromInt(200))
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	got, err = repo.GetByID(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.True(t, got.Stock.Equal(decimal.NewFromInt(60)), "stock must be unchanged after failed decrement")
}

func TestProductRepository_IncrementStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "prod-increment")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	repo := repository.NewProductRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, repo, shop.ID)

	err := suite.DB.WithTenantRLS(tenantCtx, tenant.ID, func(txCtx context.Context) error {
		newStock, err := repo.IncrementStock(txCtx, product.ID, decimal.NewFromFloat(2.5))
		require.NoError(t, err)
		assert.True(t, newStock.Equal(decimal.NewFromFloat(102.5)))
		return nil
	})
	require.NoError(t, err)

	got, err := repo.GetByID(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.True(t, got.Stock.Equal(decimal.NewFromFloat(102.5)))
}

func TestProductRepository_UpdateStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "prod-updatestock")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	repo := repository.NewProductRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, repo, shop.ID)

	err := suite.DB.WithTenantRLS(tenantCtx, tenant.ID, func(txCtx context.Context) error {
		return repo.UpdateStock(txCtx, product.ID, decimal.NewFromInt(42))
	})
	require.NoError(t, err)

	got, err := repo.GetByID(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.True(t, got.Stock.Equal(decimal.NewFromInt(42)))

	err = suite.DB.WithTenantRLS(tenantCtx, tenant.ID, func(txCtx context.Context) error {
		return repo.UpdateStock(txCtx, "00000000-0000-0000-0000-000000000000", decimal.NewFromInt(1))
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_ListLowStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "prod-lowstock")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	repo := repository.NewProductRepository(suite.DB)

	low := createTestProduct(t, tenantCtx, repo, shop.ID, func(p *domain.Product) {
		p.Stock = decimal.NewFromInt(5)
		p.MinimumStock = decimal.NewFromInt(10)
	})
	createTestProduct(t, tenantCtx, repo, shop.ID) // healthy stock
	createTestProduct(t, tenantCtx, repo, shop.ID, func(p *domain.Product) {
		p.Stock = decimal.NewFromInt(2)
		p.MinimumStock = decimal.NewFromInt(10)
		p.IsActive = false // inactive products are excluded
	})

	products, err := repo.ListLowStock(tenantCtx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, low.ID, products[0].ID)
}

func TestProductRepository_TenantIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenantA := suite.SetupStockTenant(t, ctx, "prod-iso-a")
	tenantB := suite.SetupStockTenant(t, ctx, "prod-iso-b")
	ctxA := suite.TenantContext(tenantA)
	ctxB := suite.TenantContext(tenantB)

	shopA := seedTestShop(t, ctx, tenantA)
	shopB := seedTestShop(t, ctx, tenantB)
	repo := repository.NewProductRepository(suite.DB)

	productA := createTestProduct(t, ctxA, repo, shopA.ID)
	createTestProduct(t, ctxB, repo, shopB.ID)

	countA, err := repo.CountActive(ctxA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countA)

	// Tenant B cannot see tenant A's product, even by ID
	_, err = repo.GetByID(ctxB, productA.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
