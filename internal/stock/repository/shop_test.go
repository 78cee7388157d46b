package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	apperrors "github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
)

func TestShopRepository_GetByID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "shop-get")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	repo := repository.NewShopRepository(suite.DB)

	got, err := repo.GetByID(tenantCtx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.Name, got.Name)
	assert.Equal(t, shop.Code, got.Code)

	_, err = repo.GetByID(tenantCtx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestShopRepository_ExistsActive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "shop-exists")
	tenantCtx := suite.TenantContext(tenant)

	active := seedTestShop(t, ctx, tenant)

	inactive := suite.Fixtures.Shop(testutil.WithShopActive(false))
	require.NoError(t, testutil.SeedShop(ctx, suite.RawDB, tenant.ID, inactive))

	repo := repository.NewShopRepository(suite.DB)

	exists, err := repo.ExistsActive(tenantCtx, active.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsActive(tenantCtx, inactive.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}
