package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// User events (consumed from the user service)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Stock events
	EventStockMovementRecorded = "stock.movement.recorded"
	EventStockLow              = "stock.level.low"
	EventBatchExpiring         = "stock.batch.expiring"

	// Inventory events
	EventInventoryValidated = "stock.inventory.validated"
	EventInventoryCancelled = "stock.inventory.cancelled"

	// Transfer events
	EventTransferValidated = "stock.transfer.validated"
	EventTransferCancelled = "stock.transfer.cancelled"
)

// Exchange names
const (
	ExchangeUserEvents  = "user.events"
	ExchangeStockEvents = "stock.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is consumed when a user is created in the user service.
// The stock service caches the user for display names on movements.
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`

	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
}

// FullName returns the user's full name
func (e *UserCreatedEvent) FullName() string {
	return e.FirstName + " " + e.LastName
}

// UserUpdatedEvent is consumed when a user is updated
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"` // Changed fields

	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
}

// UserDeletedEvent is consumed when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`

	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
}

// Stock Events
//
// Quantities travel as decimal strings ("2.500") so consumers never lose
// precision to float encoding.

// StockMovementRecordedEvent is published for every ledger entry
type StockMovementRecordedEvent struct {
	MovementID string `json:"movement_id"`
	ShopID     string `json:"shop_id"`
	ProductID  string `json:"product_id"`
	Type       string `json:"type"` // IN, OUT, ADJUSTMENT
	Quantity   string `json:"quantity"`
	Reference  string `json:"reference,omitempty"`
	CreatedBy  string `json:"created_by"`
}

// StockLowEvent is published when a product's stock falls to or below
// its alert threshold
type StockLowEvent struct {
	ProductID   string `json:"product_id"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	Stock       string `json:"stock"`
	Threshold   string `json:"threshold"`
}

// BatchExpiringEvent is published when a batch is nearing expiry
type BatchExpiringEvent struct {
	BatchID     string    `json:"batch_id"`
	ProductID   string    `json:"product_id"`
	BatchNumber string    `json:"batch_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	DaysUntil   int       `json:"days_until"`
	Quantity    string    `json:"quantity"`
}

// Inventory Events

// InventoryValidatedEvent is published when an inventory count is validated
// and its adjustments applied
type InventoryValidatedEvent struct {
	InventoryID     string `json:"inventory_id"`
	Reference       string `json:"reference"`
	ItemCount       int    `json:"item_count"`
	AdjustmentCount int    `json:"adjustment_count"`
	ValidatedBy     string `json:"validated_by"`
}

// InventoryCancelledEvent is published when an inventory count is cancelled
type InventoryCancelledEvent struct {
	InventoryID string `json:"inventory_id"`
	Reference   string `json:"reference"`
	CancelledBy string `json:"cancelled_by"`
}

// Transfer Events

// TransferValidatedEvent is published when a stock transfer is validated
type TransferValidatedEvent struct {
	TransferID  string `json:"transfer_id"`
	Reference   string `json:"reference"`
	FromShopID  string `json:"from_shop_id"`
	ToShopID    string `json:"to_shop_id"`
	ItemCount   int    `json:"item_count"`
	ValidatedBy string `json:"validated_by"`
}

// TransferCancelledEvent is published when a stock transfer is cancelled
type TransferCancelledEvent struct {
	TransferID  string `json:"transfer_id"`
	Reference   string `json:"reference"`
	CancelledBy string `json:"cancelled_by"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
