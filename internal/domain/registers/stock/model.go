// Package stock provides the stock balance register: per product and warehouse
// quantity, weighted-average cost, valuation and lot buckets.
package stock

import (
	"fmt"
	"time"

	"kardex/internal/core/id"
	"kardex/internal/core/types"
)

// Key identifies a balance row.
type Key struct {
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`
}

// String returns "product:warehouse"; used for lock names and log fields.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.ProductID, k.WarehouseID)
}

// Less orders keys by product then warehouse.
func (k Key) Less(other Key) bool {
	if k.ProductID != other.ProductID {
		return id.Less(k.ProductID, other.ProductID)
	}
	return id.Less(k.WarehouseID, other.WarehouseID)
}

// Lot is a quantity bucket inside a lot-tracked balance.
type Lot struct {
	Code       string         `db:"lot_code" json:"code"`
	ExpiryDate *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
}

// Balance is the current stock state of one product in one warehouse.
// A zero Balance is a valid starting point; rows are never deleted.
type Balance struct {
	ProductID   id.ID          `db:"product_id" json:"productId"`
	WarehouseID id.ID          `db:"warehouse_id" json:"warehouseId"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Reserved    types.Quantity `db:"reserved" json:"reserved"`
	AverageCost types.Money    `db:"average_cost" json:"averageCost"`
	Valuation   types.Money    `db:"valuation" json:"valuation"`

	// Lots is populated only for lot-tracked warehouses, ordered by first receipt.
	Lots []Lot `db:"-" json:"lots,omitempty"`

	LastMovementRef string    `db:"last_movement_ref" json:"lastMovementRef,omitempty"`
	LastMovementAt  time.Time `db:"last_movement_at" json:"lastMovementAt,omitempty"`

	// Version is incremented on every save; 0 means the row does not exist yet.
	Version int `db:"version" json:"version"`
}

// NewBalance returns a zero-initialized balance for key.
func NewBalance(key Key) Balance {
	return Balance{
		ProductID:   key.ProductID,
		WarehouseID: key.WarehouseID,
		Quantity:    types.Zero(),
		Reserved:    types.Zero(),
		AverageCost: types.Zero(),
		Valuation:   types.Zero(),
	}
}

// Key returns the balance's composite key.
func (b Balance) Key() Key {
	return Key{ProductID: b.ProductID, WarehouseID: b.WarehouseID}
}

// Available is on-hand quantity minus reservations.
func (b Balance) Available() types.Quantity {
	return b.Quantity.Sub(b.Reserved)
}

// Clone returns a copy that shares no mutable state with b.
func (b Balance) Clone() Balance {
	out := b
	if b.Lots != nil {
		out.Lots = make([]Lot, len(b.Lots))
		for i, l := range b.Lots {
			out.Lots[i] = l
			if l.ExpiryDate != nil {
				exp := *l.ExpiryDate
				out.Lots[i].ExpiryDate = &exp
			}
		}
	}
	return out
}

// LotIndex returns the index of the lot with the given code, or -1.
func (b Balance) LotIndex(code string) int {
	for i := range b.Lots {
		if b.Lots[i].Code == code {
			return i
		}
	}
	return -1
}

// LotTotal sums all lot quantities.
func (b Balance) LotTotal() types.Quantity {
	total := types.Zero()
	for _, l := range b.Lots {
		total = total.Add(l.Quantity)
	}
	return total
}

// IsZero reports whether the balance holds no stock and no value.
func (b Balance) IsZero() bool {
	return b.Quantity.IsZero() && b.Valuation.IsZero() && len(b.Lots) == 0
}
