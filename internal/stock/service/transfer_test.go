package service_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

type transferFixture struct {
	svc       *service.TransferService
	products  *fakeProducts
	transfers *fakeTransfers
	movements *fakeMovements
	publisher *fakePublisher
}

func newTransferFixture(t *testing.T, products ...*domain.Product) *transferFixture {
	t.Helper()
	f := &transferFixture{
		products:  newFakeProducts(products...),
		transfers: newFakeTransfers(),
		movements: &fakeMovements{},
		publisher: &fakePublisher{},
	}
	f.svc = service.NewTransferService(fakeTxm{}, f.transfers, f.products,
		f.movements, newFakeShops(shopA, shopB), f.publisher, testLogger())
	return f
}

func (f *transferFixture) draftTransfer(t *testing.T) *domain.StockTransfer {
	t.Helper()
	tr, err := f.svc.Create(testContext(), &service.CreateTransferRequest{
		FromShopID: shopA,
		ToShopID:   shopB,
	})
	require.NoError(t, err)
	return tr
}

func TestTransferService_Create(t *testing.T) {
	ctx := testContext()

	t.Run("opens a draft between two shops", func(t *testing.T) {
		f := newTransferFixture(t)

		tr := f.draftTransfer(t)
		assert.Equal(t, domain.TransferDraft, tr.Status)
		assert.True(t, strings.HasPrefix(tr.Reference, "TRF-"))
		assert.Equal(t, shopA, tr.FromShopID)
		assert.Equal(t, shopB, tr.ToShopID)
		assert.Equal(t, "user-1", tr.CreatedBy)
	})

	t.Run("same source and destination rejected", func(t *testing.T) {
		f := newTransferFixture(t)

		_, err := f.svc.Create(ctx, &service.CreateTransferRequest{
			FromShopID: shopA,
			ToShopID:   shopA,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	})

	t.Run("unknown destination shop rejected", func(t *testing.T) {
		f := newTransferFixture(t)

		_, err := f.svc.Create(ctx, &service.CreateTransferRequest{
			FromShopID: shopA,
			ToShopID:   "aaaaaaaa-0000-0000-0000-00000000dead",
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})
}

func TestTransferService_AddItem(t *testing.T) {
	ctx := testContext()

	t.Run("adds a line to a draft", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		item, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		assert.True(t, item.Quantity.Equal(decimal.NewFromInt(10)))
	})

	t.Run("adding the same product merges quantities", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		item, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(5),
		})
		require.NoError(t, err)

		assert.True(t, item.Quantity.Equal(decimal.NewFromInt(15)))
		items, err := f.transfers.ListItems(ctx, tr.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.True(t, items[0].Quantity.Equal(decimal.NewFromInt(15)))
	})

	t.Run("product of another shop rejected", func(t *testing.T) {
		elsewhere := paracetamol()
		elsewhere.ID = "prod-b"
		elsewhere.ShopID = shopB

		f := newTransferFixture(t, elsewhere)
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-b",
			Quantity:  decimal.NewFromInt(1),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	})

	t.Run("fractional quantity on non-divisible product rejected", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromFloat(1.5),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
	})

	t.Run("validated transfer is frozen", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(5),
		})
		require.NoError(t, err)
		_, err = f.svc.Validate(ctx, tr.ID)
		require.NoError(t, err)

		_, err = f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(1),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotEditable))
	})
}

func TestTransferService_EditItems(t *testing.T) {
	ctx := testContext()

	t.Run("update replaces the quantity", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(10),
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.UpdateItemQuantity(ctx, tr.ID, "prod-1", decimal.NewFromInt(3)))

		items, err := f.transfers.ListItems(ctx, tr.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.True(t, items[0].Quantity.Equal(decimal.NewFromInt(3)))
	})

	t.Run("remove deletes the line", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(10),
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.RemoveItem(ctx, tr.ID, "prod-1"))

		items, err := f.transfers.ListItems(ctx, tr.ID)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("removing an absent line fails", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		err := f.svc.RemoveItem(ctx, tr.ID, "prod-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})
}

func TestTransferService_Validate(t *testing.T) {
	ctx := testContext()

	t.Run("moves stock and writes both ledger legs", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol(), syrup())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(40),
		})
		require.NoError(t, err)
		_, err = f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-2",
			Quantity:  decimal.NewFromFloat(1.5),
		})
		require.NoError(t, err)

		validated, err := f.svc.Validate(ctx, tr.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.TransferValidated, validated.Status)
		require.NotNil(t, validated.ValidatedAt)
		require.NotNil(t, validated.ValidatedBy)

		p1, _ := f.products.GetByID(ctx, "prod-1")
		assert.True(t, p1.Stock.Equal(decimal.NewFromInt(60)))
		p2, _ := f.products.GetByID(ctx, "prod-2")
		assert.True(t, p2.Stock.Equal(decimal.NewFromInt(4)))

		// one OUT at the source and one IN at the destination per item,
		// all under the same reference
		require.Len(t, f.movements.recorded, 4)
		ref := domain.TransferReference(tr.Reference)
		outLegs, inLegs := 0, 0
		for _, m := range f.movements.recorded {
			assert.Equal(t, ref, m.Reference)
			switch m.Type {
			case domain.MovementOut:
				assert.Equal(t, shopA, m.ShopID)
				outLegs++
			case domain.MovementIn:
				assert.Equal(t, shopB, m.ShopID)
				inLegs++
			}
		}
		assert.Equal(t, 2, outLegs)
		assert.Equal(t, 2, inLegs)

		assert.Len(t, f.publisher.movements, 4)
		assert.Equal(t, 1, f.publisher.transferValidated)
	})

	t.Run("empty transfer rejected", func(t *testing.T) {
		f := newTransferFixture(t)
		tr := f.draftTransfer(t)

		_, err := f.svc.Validate(ctx, tr.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))

		stored, err := f.transfers.GetByID(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransferDraft, stored.Status)
	})

	t.Run("insufficient stock fails the whole transfer", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(40),
		})
		require.NoError(t, err)

		// stock dropped below the requested quantity after the draft was
		// prepared
		f.products.byID["prod-1"].Stock = decimal.NewFromInt(30)

		_, err = f.svc.Validate(ctx, tr.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

		stored, err := f.transfers.GetByID(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransferDraft, stored.Status)
		assert.Nil(t, stored.ValidatedAt)
		assert.Empty(t, f.publisher.movements)
		assert.Equal(t, 0, f.publisher.transferValidated)
	})

	t.Run("validating twice rejected", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(5),
		})
		require.NoError(t, err)

		_, err = f.svc.Validate(ctx, tr.ID)
		require.NoError(t, err)
		_, err = f.svc.Validate(ctx, tr.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotEditable))
	})

	t.Run("source emptied to minimum publishes low stock", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(90),
		})
		require.NoError(t, err)

		_, err = f.svc.Validate(ctx, tr.ID)
		require.NoError(t, err)

		require.Len(t, f.publisher.lowStock, 1)
		assert.True(t, f.publisher.lowStock[0].Stock.Equal(decimal.NewFromInt(10)))
	})
}

func TestTransferService_Cancel(t *testing.T) {
	ctx := testContext()

	t.Run("draft can be cancelled", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		cancelled, err := f.svc.Cancel(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransferCancelled, cancelled.Status)
		assert.Equal(t, 1, f.publisher.transferCancelled)

		p, _ := f.products.GetByID(ctx, "prod-1")
		assert.True(t, p.Stock.Equal(decimal.NewFromInt(100)))
	})

	t.Run("validated cannot be cancelled", func(t *testing.T) {
		f := newTransferFixture(t, paracetamol())
		tr := f.draftTransfer(t)

		_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
			ProductID: "prod-1",
			Quantity:  decimal.NewFromInt(5),
		})
		require.NoError(t, err)
		_, err = f.svc.Validate(ctx, tr.ID)
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, tr.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotEditable))
	})
}

func TestTransferService_Get(t *testing.T) {
	ctx := testContext()

	f := newTransferFixture(t, paracetamol())
	tr := f.draftTransfer(t)

	_, err := f.svc.AddItem(ctx, tr.ID, &service.TransferItemRequest{
		ProductID: "prod-1",
		Quantity:  decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Quantity.Equal(decimal.NewFromInt(2)))
}
