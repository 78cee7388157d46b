package events

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

// StockEventPublisher publishes stock events to the stock.events exchange.
// All methods are nil-safe and best-effort: a broker failure is logged and
// never surfaces to the caller, whose transaction has already committed.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// MovementRecorded publishes a stock movement recorded event
func (p *StockEventPublisher) MovementRecorded(ctx context.Context, m *domain.StockMovement) {
	if p == nil {
		return
	}

	data := messaging.StockMovementRecordedEvent{
		MovementID: m.ID,
		ShopID:     m.ShopID,
		ProductID:  m.ProductID,
		Type:       string(m.Type),
		Quantity:   m.Quantity.String(),
		Reference:  m.Reference,
		CreatedBy:  m.CreatedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockMovementRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", m.ID).Msg("failed to publish stock movement event")
	}
}

// StockLow publishes a low stock alert for the product
func (p *StockEventPublisher) StockLow(ctx context.Context, product *domain.Product) {
	if p == nil {
		return
	}

	data := messaging.StockLowEvent{
		ProductID:   product.ID,
		ProductCode: product.Code,
		ProductName: product.Name,
		Stock:       product.Stock.String(),
		Threshold:   product.MinimumStock.String(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockLow, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to publish stock low event")
	}
}

// BatchExpiring publishes an expiry alert for the batch
func (p *StockEventPublisher) BatchExpiring(ctx context.Context, b *domain.ProductBatch, daysUntil int) {
	if p == nil || b.ExpiryDate == nil {
		return
	}

	data := messaging.BatchExpiringEvent{
		BatchID:     b.ID,
		ProductID:   b.ProductID,
		BatchNumber: b.BatchNumber,
		ExpiryDate:  *b.ExpiryDate,
		DaysUntil:   daysUntil,
		Quantity:    b.Quantity.String(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", b.ID).Msg("failed to publish batch expiring event")
	}
}

// InventoryValidated publishes an inventory validated event
func (p *StockEventPublisher) InventoryValidated(ctx context.Context, inv *domain.Inventory, itemCount, adjustmentCount int) {
	if p == nil {
		return
	}

	validatedBy := ""
	if inv.ValidatedBy != nil {
		validatedBy = *inv.ValidatedBy
	}

	data := messaging.InventoryValidatedEvent{
		InventoryID:     inv.ID,
		Reference:       inv.Reference,
		ItemCount:       itemCount,
		AdjustmentCount: adjustmentCount,
		ValidatedBy:     validatedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventInventoryValidated, data); err != nil {
		p.logger.Error().Err(err).Str("inventory_id", inv.ID).Msg("failed to publish inventory validated event")
	}
}

// InventoryCancelled publishes an inventory cancelled event
func (p *StockEventPublisher) InventoryCancelled(ctx context.Context, inv *domain.Inventory, actor string) {
	if p == nil {
		return
	}

	data := messaging.InventoryCancelledEvent{
		InventoryID: inv.ID,
		Reference:   inv.Reference,
		CancelledBy: actor,
	}

	if err := p.publisher.Publish(ctx, messaging.EventInventoryCancelled, data); err != nil {
		p.logger.Error().Err(err).Str("inventory_id", inv.ID).Msg("failed to publish inventory cancelled event")
	}
}

// TransferValidated publishes a transfer validated event
func (p *StockEventPublisher) TransferValidated(ctx context.Context, tr *domain.StockTransfer, itemCount int) {
	if p == nil {
		return
	}

	validatedBy := ""
	if tr.ValidatedBy != nil {
		validatedBy = *tr.ValidatedBy
	}

	data := messaging.TransferValidatedEvent{
		TransferID:  tr.ID,
		Reference:   tr.Reference,
		FromShopID:  tr.FromShopID,
		ToShopID:    tr.ToShopID,
		ItemCount:   itemCount,
		ValidatedBy: validatedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferValidated, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", tr.ID).Msg("failed to publish transfer validated event")
	}
}

// TransferCancelled publishes a transfer cancelled event
func (p *StockEventPublisher) TransferCancelled(ctx context.Context, tr *domain.StockTransfer, actor string) {
	if p == nil {
		return
	}

	data := messaging.TransferCancelledEvent{
		TransferID:  tr.ID,
		Reference:   tr.Reference,
		CancelledBy: actor,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferCancelled, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", tr.ID).Msg("failed to publish transfer cancelled event")
	}
}
