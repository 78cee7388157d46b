package service_test

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

const testTenantID = "11111111-1111-1111-1111-111111111111"

func testContext() context.Context {
	ctx := tenant.WithTenantContext(context.Background(), testTenantID, "central-pharmacy")
	return actor.WithActor(ctx, &actor.Actor{ID: "user-1", Name: "Jo Doe", TenantID: testTenantID})
}

func testLogger() *logger.Logger {
	return logger.New("stock-service-test", "development")
}

// fakeTxm runs the function directly; the in-memory stores have no
// transactions to join.
type fakeTxm struct{}

func (fakeTxm) WithTenantRLS(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	return fn(ctx)
}

// fakeProducts stores products by ID and hands out copies the way a row
// scan would, so failed flows don't leak half-applied mutations.
type fakeProducts struct {
	byID map[string]*domain.Product
}

func newFakeProducts(products ...*domain.Product) *fakeProducts {
	f := &fakeProducts{byID: make(map[string]*domain.Product)}
	for _, p := range products {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProducts) get(id string) (*domain.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("product")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return f.get(id)
}

func (f *fakeProducts) GetByIDForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	return f.get(id)
}

func (f *fakeProducts) UpdateStock(ctx context.Context, id string, stock decimal.Decimal) error {
	p, ok := f.byID[id]
	if !ok {
		return errors.NotFound("product")
	}
	p.Stock = stock
	return nil
}

func (f *fakeProducts) IncrementStock(ctx context.Context, id string, qty decimal.Decimal) (decimal.Decimal, error) {
	p, ok := f.byID[id]
	if !ok {
		return decimal.Zero, errors.NotFound("product")
	}
	p.Stock = p.Stock.Add(qty)
	return p.Stock, nil
}

func (f *fakeProducts) DecrementStock(ctx context.Context, id string, qty decimal.Decimal) (decimal.Decimal, bool, error) {
	p, ok := f.byID[id]
	if !ok {
		return decimal.Zero, false, nil
	}
	if p.Stock.LessThan(qty) {
		return decimal.Zero, false, nil
	}
	p.Stock = p.Stock.Sub(qty)
	return p.Stock, true, nil
}

func (f *fakeProducts) CountActive(ctx context.Context) (int64, error) {
	var n int64
	for _, p := range f.byID {
		if p.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeProducts) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.byID {
		if p.IsActive && p.IsLowStock() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeBatches struct {
	byID    map[string]*domain.ProductBatch
	created int
}

func newFakeBatches(batches ...*domain.ProductBatch) *fakeBatches {
	f := &fakeBatches{byID: make(map[string]*domain.ProductBatch)}
	for _, b := range batches {
		f.byID[b.ID] = b
	}
	return f
}

func (f *fakeBatches) Create(ctx context.Context, batch *domain.ProductBatch) error {
	if batch.ID == "" {
		batch.ID = "batch-" + batch.BatchNumber
	}
	cp := *batch
	f.byID[batch.ID] = &cp
	f.created++
	return nil
}

func (f *fakeBatches) GetByProductAndNumber(ctx context.Context, productID, batchNumber string) (*domain.ProductBatch, error) {
	for _, b := range f.byID {
		if b.ProductID == productID && b.BatchNumber == batchNumber {
			cp := *b
			return &cp, nil
		}
	}
	return nil, errors.NotFound("batch")
}

func (f *fakeBatches) UpdateQuantities(ctx context.Context, batch *domain.ProductBatch) error {
	b, ok := f.byID[batch.ID]
	if !ok {
		return errors.NotFound("batch")
	}
	b.Quantity = batch.Quantity
	b.InitialQuantity = batch.InitialQuantity
	return nil
}

func (f *fakeBatches) ListExpiring(ctx context.Context, days int) ([]domain.ProductBatch, error) {
	// mirrors the SQL "expiry_date <= NOW() + interval": already expired
	// batches are part of the expiring report
	var out []domain.ProductBatch
	for _, b := range f.byID {
		if b.IsActive && b.Quantity.IsPositive() && (b.IsExpired() || b.IsExpiringSoon(days)) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBatches) ListExpired(ctx context.Context) ([]domain.ProductBatch, error) {
	var out []domain.ProductBatch
	for _, b := range f.byID {
		if b.IsActive && b.Quantity.IsPositive() && b.IsExpired() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBatches) ListLowStock(ctx context.Context, threshold decimal.Decimal) ([]domain.ProductBatch, error) {
	var out []domain.ProductBatch
	for _, b := range f.byID {
		if b.IsActive && b.IsLowStock(threshold) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBatches) CountExpiring(ctx context.Context, days int) (int64, error) {
	batches, _ := f.ListExpiring(ctx, days)
	return int64(len(batches)), nil
}

// fakeMovements is an append-only slice, like the real ledger
type fakeMovements struct {
	recorded []domain.StockMovement
}

func (f *fakeMovements) Record(ctx context.Context, m *domain.StockMovement) error {
	if m.ID == "" {
		m.ID = "mov-" + string(rune('a'+len(f.recorded)))
	}
	f.recorded = append(f.recorded, *m)
	return nil
}

func (f *fakeMovements) List(ctx context.Context, filter repository.MovementFilter) ([]domain.StockMovement, int64, error) {
	return append([]domain.StockMovement(nil), f.recorded...), int64(len(f.recorded)), nil
}

type fakeShops struct {
	active map[string]bool
}

func newFakeShops(ids ...string) *fakeShops {
	f := &fakeShops{active: make(map[string]bool)}
	for _, id := range ids {
		f.active[id] = true
	}
	return f
}

func (f *fakeShops) ExistsActive(ctx context.Context, id string) (bool, error) {
	return f.active[id], nil
}

type fakeInventories struct {
	byID     map[string]*domain.Inventory
	items    map[string][]*domain.InventoryItem // keyed by inventory ID
	products *fakeProducts                      // snapshot source
}

func newFakeInventories(products *fakeProducts) *fakeInventories {
	return &fakeInventories{
		byID:     make(map[string]*domain.Inventory),
		items:    make(map[string][]*domain.InventoryItem),
		products: products,
	}
}

func (f *fakeInventories) Create(ctx context.Context, inv *domain.Inventory) error {
	if inv.ID == "" {
		inv.ID = "inv-" + inv.Reference
	}
	cp := *inv
	f.byID[inv.ID] = &cp
	return nil
}

func (f *fakeInventories) get(id string) (*domain.Inventory, error) {
	inv, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("inventory")
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInventories) GetByID(ctx context.Context, id string) (*domain.Inventory, error) {
	return f.get(id)
}

func (f *fakeInventories) GetByIDForUpdate(ctx context.Context, id string) (*domain.Inventory, error) {
	return f.get(id)
}

func (f *fakeInventories) Update(ctx context.Context, inv *domain.Inventory) error {
	if _, ok := f.byID[inv.ID]; !ok {
		return errors.NotFound("inventory")
	}
	cp := *inv
	f.byID[inv.ID] = &cp
	return nil
}

func (f *fakeInventories) List(ctx context.Context, filter repository.InventoryFilter) ([]domain.Inventory, int64, error) {
	var out []domain.Inventory
	for _, inv := range f.byID {
		if filter.ShopID != "" && inv.ShopID != filter.ShopID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeInventories) SnapshotItems(ctx context.Context, inventoryID, shopID string, productIDs []string) error {
	scope := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		scope[id] = true
	}
	existing := make(map[string]bool)
	for _, item := range f.items[inventoryID] {
		existing[item.ProductID] = true
	}
	for _, p := range f.products.byID {
		if p.ShopID != shopID || !p.IsActive || existing[p.ID] {
			continue
		}
		if len(scope) > 0 && !scope[p.ID] {
			continue
		}
		f.items[inventoryID] = append(f.items[inventoryID], &domain.InventoryItem{
			ID:             "item-" + inventoryID + "-" + p.ID,
			InventoryID:    inventoryID,
			ProductID:      p.ID,
			SystemQuantity: p.Stock,
		})
	}
	sort.Slice(f.items[inventoryID], func(i, j int) bool {
		return f.items[inventoryID][i].ProductID < f.items[inventoryID][j].ProductID
	})
	return nil
}

func (f *fakeInventories) GetItem(ctx context.Context, inventoryID, productID string) (*domain.InventoryItem, error) {
	for _, item := range f.items[inventoryID] {
		if item.ProductID == productID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, errors.NotFound("inventory item")
}

func (f *fakeInventories) UpdateItemCount(ctx context.Context, item *domain.InventoryItem) error {
	for _, stored := range f.items[item.InventoryID] {
		if stored.ProductID == item.ProductID {
			stored.CountedQuantity = item.CountedQuantity
			stored.Difference = item.Difference
			return nil
		}
	}
	return errors.NotFound("inventory item")
}

func (f *fakeInventories) ListItems(ctx context.Context, inventoryID string) ([]domain.InventoryItem, error) {
	var out []domain.InventoryItem
	for _, item := range f.items[inventoryID] {
		out = append(out, *item)
	}
	return out, nil
}

type fakeTransfers struct {
	byID  map[string]*domain.StockTransfer
	items map[string][]*domain.StockTransferItem
}

func newFakeTransfers() *fakeTransfers {
	return &fakeTransfers{
		byID:  make(map[string]*domain.StockTransfer),
		items: make(map[string][]*domain.StockTransferItem),
	}
}

func (f *fakeTransfers) Create(ctx context.Context, tr *domain.StockTransfer) error {
	if tr.ID == "" {
		tr.ID = "tr-" + tr.Reference
	}
	cp := *tr
	f.byID[tr.ID] = &cp
	return nil
}

func (f *fakeTransfers) get(id string) (*domain.StockTransfer, error) {
	tr, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("stock transfer")
	}
	cp := *tr
	return &cp, nil
}

func (f *fakeTransfers) GetByID(ctx context.Context, id string) (*domain.StockTransfer, error) {
	return f.get(id)
}

func (f *fakeTransfers) GetByIDForUpdate(ctx context.Context, id string) (*domain.StockTransfer, error) {
	return f.get(id)
}

func (f *fakeTransfers) Update(ctx context.Context, tr *domain.StockTransfer) error {
	if _, ok := f.byID[tr.ID]; !ok {
		return errors.NotFound("stock transfer")
	}
	cp := *tr
	f.byID[tr.ID] = &cp
	return nil
}

func (f *fakeTransfers) List(ctx context.Context, filter repository.TransferFilter) ([]domain.StockTransfer, int64, error) {
	var out []domain.StockTransfer
	for _, tr := range f.byID {
		if filter.FromShopID != "" && tr.FromShopID != filter.FromShopID {
			continue
		}
		if filter.Status != "" && tr.Status != filter.Status {
			continue
		}
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeTransfers) UpsertItem(ctx context.Context, item *domain.StockTransferItem) error {
	for _, stored := range f.items[item.StockTransferID] {
		if stored.ProductID == item.ProductID {
			stored.Quantity = stored.Quantity.Add(item.Quantity)
			item.ID = stored.ID
			item.Quantity = stored.Quantity
			return nil
		}
	}
	if item.ID == "" {
		item.ID = "tri-" + item.StockTransferID + "-" + item.ProductID
	}
	cp := *item
	f.items[item.StockTransferID] = append(f.items[item.StockTransferID], &cp)
	return nil
}

func (f *fakeTransfers) UpdateItemQuantity(ctx context.Context, transferID, productID string, qty decimal.Decimal) error {
	for _, stored := range f.items[transferID] {
		if stored.ProductID == productID {
			stored.Quantity = qty
			return nil
		}
	}
	return errors.NotFound("transfer item")
}

func (f *fakeTransfers) RemoveItem(ctx context.Context, transferID, productID string) error {
	items := f.items[transferID]
	for i, stored := range items {
		if stored.ProductID == productID {
			f.items[transferID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return errors.NotFound("transfer item")
}

func (f *fakeTransfers) ListItems(ctx context.Context, transferID string) ([]domain.StockTransferItem, error) {
	var out []domain.StockTransferItem
	for _, item := range f.items[transferID] {
		out = append(out, *item)
	}
	return out, nil
}

// fakePublisher records published events for assertions
type fakePublisher struct {
	movements          []domain.StockMovement
	lowStock           []domain.Product
	expiring           []domain.ProductBatch
	inventoryValidated int
	inventoryCancelled int
	transferValidated  int
	transferCancelled  int
}

func (f *fakePublisher) MovementRecorded(ctx context.Context, m *domain.StockMovement) {
	f.movements = append(f.movements, *m)
}

func (f *fakePublisher) StockLow(ctx context.Context, p *domain.Product) {
	f.lowStock = append(f.lowStock, *p)
}

func (f *fakePublisher) BatchExpiring(ctx context.Context, b *domain.ProductBatch, daysUntil int) {
	f.expiring = append(f.expiring, *b)
}

func (f *fakePublisher) InventoryValidated(ctx context.Context, inv *domain.Inventory, itemCount, adjustmentCount int) {
	f.inventoryValidated++
}

func (f *fakePublisher) InventoryCancelled(ctx context.Context, inv *domain.Inventory, actor string) {
	f.inventoryCancelled++
}

func (f *fakePublisher) TransferValidated(ctx context.Context, tr *domain.StockTransfer, itemCount int) {
	f.transferValidated++
}

func (f *fakePublisher) TransferCancelled(ctx context.Context, tr *domain.StockTransfer, actor string) {
	f.transferCancelled++
}
