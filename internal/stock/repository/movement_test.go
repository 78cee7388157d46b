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

func recordMovement(t *testing.T, tenantCtx context.Context, repo *repository.MovementRepository, shopID, productID string, mType domain.MovementType, qty int64, reference string) *domain.StockMovement {
	t.Helper()
	m := &domain.StockMovement{
		ShopID:    shopID,
		ProductID: productID,
		Type:      mType,
		Quantity:  decimal.NewFromInt(qty),
		Reference: reference,
		CreatedBy: testActor,
	}
	require.NoError(t, repo.Record(tenantCtx, m))
	return m
}

func TestMovementRepository_Record(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "mov-record")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	productRepo := repository.NewProductRepository(suite.DB)
	product := createTestProduct(t, tenantCtx, productRepo, shop.ID)

	repo := repository.NewMovementRepository(suite.DB)
	m := recordMovement(t, tenantCtx, repo, shop.ID, product.ID, domain.MovementIn, 25, "LOT-001")
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestMovementRepository_Record_RejectsZeroQuantity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "mov-zeroqty")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	productRepo := repository.NewProductRepository(suite.DB)
	product := createTestProduct(t, tenantCtx, productRepo, shop.ID)

	repo := repository.NewMovementRepository(suite.DB)

	// The check constraint is the last line of defense behind the domain
	// constructor
	m := &domain.StockMovement{
		ShopID:    shop.ID,
		ProductID: product.ID,
		Type:      domain.MovementIn,
		Quantity:  decimal.Zero,
		CreatedBy: testActor,
	}
	err := repo.Record(tenantCtx, m)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
}

func TestMovementRepository_List_Filters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "mov-filters")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	productRepo := repository.NewProductRepository(suite.DB)
	productA := createTestProduct(t, tenantCtx, productRepo, shop.ID)
	productB := createTestProduct(t, tenantCtx, productRepo, shop.ID)

	repo := repository.NewMovementRepository(suite.DB)
	recordMovement(t, tenantCtx, repo, shop.ID, productA.ID, domain.MovementIn, 50, "LOT-REC-1")
	recordMovement(t, tenantCtx, repo, shop.ID, productA.ID, domain.MovementOut, 10, "TRANSFER-TRF-20260115-ABCD1234")
	recordMovement(t, tenantCtx, repo, shop.ID, productB.ID, domain.MovementAdjustment, 5, "INV:INV-20260115-ABCD1234:+5")

	all, total, err := repo.List(tenantCtx, repository.MovementFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	byProduct, total, err := repo.List(tenantCtx, repository.MovementFilter{ProductID: productA.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, byProduct, 2)

	byType, _, err := repo.List(tenantCtx, repository.MovementFilter{Type: domain.MovementAdjustment})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, productB.ID, byType[0].ProductID)

	// Reference filter matches substrings, so one document reference
	// finds both transfer legs and inventory adjustments alike
	byRef, _, err := repo.List(tenantCtx, repository.MovementFilter{Reference: "trf-20260115"})
	require.NoError(t, err)
	assert.Len(t, byRef, 1)
}

func TestMovementRepository_List_Pagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "mov-pages")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	productRepo := repository.NewProductRepository(suite.DB)
	product := createTestProduct(t, tenantCtx, productRepo, shop.ID)

	repo := repository.NewMovementRepository(suite.DB)
	for i := 0; i < 5; i++ {
		recordMovement(t, tenantCtx, repo, shop.ID, product.ID, domain.MovementIn, 1, "")
	}

	page1, total, err := repo.List(tenantCtx, repository.MovementFilter{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page1, 2)

	page3, _, err := repo.List(tenantCtx, repository.MovementFilter{Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, page3, 1)
}

func TestMovementRepository_List_JoinsPerformerName(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupStockTenant(t, ctx, "mov-names")
	tenantCtx := suite.TenantContext(tenant)

	shop := seedTestShop(t, ctx, tenant)
	productRepo := repository.NewProductRepository(suite.DB)
	product := createTestProduct(t, tenantCtx, productRepo, shop.ID)

	userRepo := repository.NewUserCacheRepository(suite.DB)
	require.NoError(t, userRepo.Set(tenantCtx, &repository.CachedUser{
		UserID:    testActor,
		FirstName: "Marie",
		LastName:  "Dupont",
	}))

	repo := repository.NewMovementRepository(suite.DB)
	recordMovement(t, tenantCtx, repo, shop.ID, product.ID, domain.MovementIn, 5, "")

	movements, _, err := repo.List(tenantCtx, repository.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.NotNil(t, movements[0].CreatedByName)
	assert.Equal(t, "Marie Dupont", *movements[0].CreatedByName)
}
