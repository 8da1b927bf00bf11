// Package stock_movement provides the StockMovement document: a receipt,
// issue, transfer or adjustment of goods between warehouses.
package stock_movement

import (
	"slices"
	"time"

	"kardex/internal/core/id"
	"kardex/internal/core/types"
	"kardex/internal/domain/registers/stock"
)

// Kind is the movement type.
type Kind string

const (
	KindReceipt    Kind = "RECEIPT"
	KindIssue      Kind = "ISSUE"
	KindTransfer   Kind = "TRANSFER"
	KindAdjustment Kind = "ADJUSTMENT"
)

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindReceipt, KindIssue, KindTransfer, KindAdjustment:
		return true
	}
	return false
}

// State is the workflow state. Only APPLIED movements change stock.
type State string

const (
	StateDraft     State = "DRAFT"
	StateApplied   State = "APPLIED"
	StateCancelled State = "CANCELLED"
)

// Movement is a proposed stock operation.
type Movement struct {
	ID        id.ID     `db:"id" json:"id"`
	Kind      Kind      `db:"kind" json:"kind"`
	State     State     `db:"state" json:"state"`
	Date      time.Time `db:"movement_date" json:"date"`
	Reference string    `db:"reference" json:"reference"`

	SourceWarehouseID      *id.ID `db:"source_warehouse_id" json:"sourceWarehouseId,omitempty"`
	DestinationWarehouseID *id.ID `db:"destination_warehouse_id" json:"destinationWarehouseId,omitempty"`

	// Table part, processed in order
	Lines []Line `db:"-" json:"lines"`
}

// Line is one product row of a movement.
type Line struct {
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`

	// UnitCost is required for anything entering stock except transfers.
	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`

	LotCode    string     `db:"lot_code" json:"lotCode,omitempty"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
}

// NewMovement creates an APPLIED movement dated now.
func NewMovement(kind Kind) *Movement {
	return &Movement{
		ID:    id.New(),
		Kind:  kind,
		State: StateApplied,
		Date:  time.Now().UTC(),
		Lines: make([]Line, 0),
	}
}

// AddLine appends a line.
func (m *Movement) AddLine(productID id.ID, quantity types.Quantity, unitCost *types.Money) *Line {
	m.Lines = append(m.Lines, Line{
		ProductID: productID,
		Quantity:  quantity,
		UnitCost:  unitCost,
	})
	return &m.Lines[len(m.Lines)-1]
}

// WarehouseIDs returns the distinct source/destination warehouses in
// source, destination order.
func (m *Movement) WarehouseIDs() []id.ID {
	ids := make([]id.ID, 0, 2)
	if m.SourceWarehouseID != nil {
		ids = append(ids, *m.SourceWarehouseID)
	}
	if m.DestinationWarehouseID != nil && !slices.Contains(ids, *m.DestinationWarehouseID) {
		ids = append(ids, *m.DestinationWarehouseID)
	}
	return ids
}

// Keys returns the sorted, distinct balance keys the movement may touch.
// Used to lock and load balances before processing.
func (m *Movement) Keys() []stock.Key {
	seen := make(map[stock.Key]struct{})
	keys := make([]stock.Key, 0, len(m.Lines))
	add := func(productID id.ID, warehouseID *id.ID) {
		if warehouseID == nil {
			return
		}
		k := stock.Key{ProductID: productID, WarehouseID: *warehouseID}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	for _, line := range m.Lines {
		switch m.Kind {
		case KindReceipt:
			add(line.ProductID, m.DestinationWarehouseID)
		case KindIssue:
			add(line.ProductID, m.SourceWarehouseID)
		case KindAdjustment:
			if line.Quantity.IsNegative() {
				add(line.ProductID, m.SourceWarehouseID)
			} else {
				add(line.ProductID, m.DestinationWarehouseID)
			}
		default:
			add(line.ProductID, m.SourceWarehouseID)
			add(line.ProductID, m.DestinationWarehouseID)
		}
	}

	slices.SortFunc(keys, func(a, b stock.Key) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return keys
}
