package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// TransferStatus is the state of a stock transfer between shops
type TransferStatus string

const (
	TransferDraft     TransferStatus = "draft"
	TransferValidated TransferStatus = "validated"
	TransferCancelled TransferStatus = "cancelled"
)

// CanTransitionTo reports whether the status transition is legal.
// Both validated and cancelled are terminal; a validated transfer has
// already moved stock and can only be undone by a counter-transfer.
func (s TransferStatus) CanTransitionTo(target TransferStatus) bool {
	if s != TransferDraft {
		return false
	}
	return target == TransferValidated || target == TransferCancelled
}

// StockTransfer moves stock from one shop to another. Items are editable
// only while the transfer is a draft; validation decrements source stock
// and writes both ledger legs in one transaction.
type StockTransfer struct {
	ID          string         `db:"id" json:"id"`
	Reference   string         `db:"reference" json:"reference"`
	FromShopID  string         `db:"from_shop_id" json:"from_shop_id"`
	ToShopID    string         `db:"to_shop_id" json:"to_shop_id"`
	Status      TransferStatus `db:"status" json:"status"`
	Notes       *string        `db:"notes" json:"notes,omitempty"`
	CreatedBy   string         `db:"created_by" json:"created_by"`
	ValidatedBy *string        `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt *time.Time     `db:"validated_at" json:"validated_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`

	Items []StockTransferItem `db:"-" json:"items,omitempty"`
}

// StockTransferItem is one product line of a transfer. A product appears
// at most once per transfer; adding the same product again merges quantities.
type StockTransferItem struct {
	ID              string          `db:"id" json:"id"`
	StockTransferID string          `db:"stock_transfer_id" json:"stock_transfer_id"`
	ProductID       string          `db:"product_id" json:"product_id"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`

	// Joined for reports
	ProductCode *string `db:"product_code" json:"product_code,omitempty"`
	ProductName *string `db:"product_name" json:"product_name,omitempty"`
}

// IsEditable reports whether items can still be added or changed
func (t *StockTransfer) IsEditable() bool {
	return t.Status == TransferDraft
}

// Transition moves the transfer to the target status, rejecting illegal moves
func (t *StockTransfer) Transition(target TransferStatus) error {
	if !t.Status.CanTransitionTo(target) {
		return errors.NotEditable("stock transfer", string(t.Status))
	}
	t.Status = target
	return nil
}

// Validate checks the transfer document itself (not stock levels)
func (t *StockTransfer) Validate() error {
	if t.FromShopID == t.ToShopID {
		return errors.BadRequest("source and destination shops must differ")
	}
	return nil
}
