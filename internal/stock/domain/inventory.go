package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// InventoryStatus is the state of a physical inventory count
type InventoryStatus string

const (
	InventoryDraft      InventoryStatus = "draft"
	InventoryInProgress InventoryStatus = "in_progress"
	InventoryValidated  InventoryStatus = "validated"
	InventoryCancelled  InventoryStatus = "cancelled"
)

// CanTransitionTo reports whether the status transition is legal.
// validated and cancelled are terminal.
func (s InventoryStatus) CanTransitionTo(target InventoryStatus) bool {
	switch s {
	case InventoryDraft:
		return target == InventoryInProgress || target == InventoryCancelled
	case InventoryInProgress:
		return target == InventoryValidated || target == InventoryCancelled
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible
func (s InventoryStatus) IsTerminal() bool {
	return s == InventoryValidated || s == InventoryCancelled
}

// Inventory is a physical stock count for one shop. Items snapshot the
// system quantity when the count starts; validation turns non-zero
// differences into stock adjustments.
type Inventory struct {
	ID          string          `db:"id" json:"id"`
	ShopID      string          `db:"shop_id" json:"shop_id"`
	Reference   string          `db:"reference" json:"reference"`
	Status      InventoryStatus `db:"status" json:"status"`
	StartedAt   *time.Time      `db:"started_at" json:"started_at,omitempty"`
	ValidatedAt *time.Time      `db:"validated_at" json:"validated_at,omitempty"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	ValidatedBy *string         `db:"validated_by" json:"validated_by,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`

	Items []InventoryItem `db:"-" json:"items,omitempty"`
}

// InventoryItem is one counted line of an inventory. SystemQuantity is
// the stock level snapshotted when the count started; Difference is
// counted minus system once a count has been entered.
type InventoryItem struct {
	ID              string              `db:"id" json:"id"`
	InventoryID     string              `db:"inventory_id" json:"inventory_id"`
	ProductID       string              `db:"product_id" json:"product_id"`
	SystemQuantity  decimal.Decimal     `db:"system_quantity" json:"system_quantity"`
	CountedQuantity decimal.NullDecimal `db:"counted_quantity" json:"counted_quantity,omitempty"`
	Difference      decimal.Decimal     `db:"difference" json:"difference"`

	// Joined for reports
	ProductCode *string `db:"product_code" json:"product_code,omitempty"`
	ProductName *string `db:"product_name" json:"product_name,omitempty"`
}

// SetCount records the physically counted quantity and recomputes the difference
func (i *InventoryItem) SetCount(counted decimal.Decimal) error {
	if counted.IsNegative() {
		return errors.InvalidQuantity("counted quantity cannot be negative")
	}
	i.CountedQuantity = decimal.NewNullDecimal(counted)
	i.Difference = counted.Sub(i.SystemQuantity)
	return nil
}

// IsCounted reports whether a physical count has been entered for this line
func (i *InventoryItem) IsCounted() bool {
	return i.CountedQuantity.Valid
}

// IsEditable reports whether counts can still be changed
func (inv *Inventory) IsEditable() bool {
	return inv.Status == InventoryDraft || inv.Status == InventoryInProgress
}

// Transition moves the inventory to the target status, rejecting illegal moves
func (inv *Inventory) Transition(target InventoryStatus) error {
	if !inv.Status.CanTransitionTo(target) {
		return errors.NotEditable("inventory", string(inv.Status))
	}
	inv.Status = target
	return nil
}

// NewInventoryReference generates a document reference like
// "INV-20260831-1A2B3C4D".
func NewInventoryReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "INV-" + now.Format("20060102") + "-" + suffix
}

// NewTransferDocReference generates a document reference like
// "TRF-20260831-1A2B3C4D".
func NewTransferDocReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "TRF-" + now.Format("20060102") + "-" + suffix
}
