package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/larder-erp/larder-erp/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementReceived represents goods received into stock.
	MovementReceived MovementType = "RECEIVED"
	// MovementAdjusted indicates a manual adjustment.
	MovementAdjusted MovementType = "ADJUSTED"
)

// ItemStatus is derived from quantity versus reorder threshold.
type ItemStatus string

const (
	StatusInStock    ItemStatus = "IN_STOCK"
	StatusLowStock   ItemStatus = "LOW_STOCK"
	StatusOutOfStock ItemStatus = "OUT_OF_STOCK"
)

// QuantityScale is the stored precision for stock quantities.
const QuantityScale = 3

// MaxNameLength bounds item and brand names.
const MaxNameLength = 255

// StockItem is a trackable raw material with a quantity on hand.
type StockItem struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Unit             string           `json:"unit"`
	Quantity         decimal.Decimal  `json:"quantity"`
	ReorderThreshold *decimal.Decimal `json:"reorder_threshold,omitempty"`
	DeletedAt        *time.Time       `json:"deleted_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Status derives the stock state from quantity and threshold. It is never
// stored; callers recompute it on every read.
func (i StockItem) Status() ItemStatus {
	if i.Quantity.Sign() <= 0 {
		return StatusOutOfStock
	}
	if i.ReorderThreshold != nil && i.Quantity.Cmp(*i.ReorderThreshold) <= 0 {
		return StatusLowStock
	}
	return StatusInStock
}

// Movement is one immutable record of a quantity change.
type Movement struct {
	ID          int64           `json:"id"`
	StockItemID int64           `json:"stock_item_id"`
	Type        MovementType    `json:"type"`
	QtyDelta    decimal.Decimal `json:"qty_delta"`
	PreviousQty decimal.Decimal `json:"previous_qty"`
	NewQty      decimal.Decimal `json:"new_qty"`
	Reason      string          `json:"reason,omitempty"`
	RefType     string          `json:"ref_type,omitempty"`
	RefID       string          `json:"ref_id,omitempty"`
	ActorID     string          `json:"actor_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MovementRecord joins presentation fields onto a movement for listings.
type MovementRecord struct {
	Movement
	StockItemName string `json:"stock_item_name"`
	ActorName     string `json:"actor_name,omitempty"`
}

// CreateItemInput describes a new stock item.
type CreateItemInput struct {
	Name             string
	Description      string
	Unit             string
	InitialQuantity  decimal.Decimal
	ReorderThreshold *decimal.Decimal
}

// UpdateItemInput carries a partial update. Quantity is deliberately absent:
// it only changes through Receive and Adjust.
type UpdateItemInput struct {
	Name             *string
	Description      *string
	Unit             *string
	ReorderThreshold *decimal.Decimal
	ClearThreshold   bool
}

// ReceiveInput describes an inbound quantity.
type ReceiveInput struct {
	Quantity decimal.Decimal
	Reason   string
	RefType  string
	RefID    string
	ActorID  string
}

// AdjustInput describes a signed correction. Reason is mandatory.
type AdjustInput struct {
	Delta   decimal.Decimal
	Reason  string
	RefType string
	RefID   string
	ActorID string
}

// ListFilter filters stock item listings.
type ListFilter struct {
	Search         string
	Status         ItemStatus
	IncludeDeleted bool
	shared.ListParams
}

// MovementFilter filters the movement audit log.
type MovementFilter struct {
	StockItemID int64
	Type        MovementType
	ActorID     string
	From        time.Time
	To          time.Time
	shared.ListParams
}
