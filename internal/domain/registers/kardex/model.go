// Package kardex provides the append-only stock movement history register.
package kardex

import (
	"context"
	"time"

	"kardex/internal/core/id"
	"kardex/internal/core/types"
)

// Direction of a kardex line relative to its warehouse.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Line is one immutable history record: a single quantity change of one
// product in one warehouse, with the balance state it produced.
type Line struct {
	LineID      id.ID     `db:"line_id" json:"lineId"`
	MovementID  id.ID     `db:"movement_id" json:"movementId"`
	LineNo      int       `db:"line_no" json:"lineNo"`
	ProductID   id.ID     `db:"product_id" json:"productId"`
	WarehouseID id.ID     `db:"warehouse_id" json:"warehouseId"`
	Date        time.Time `db:"movement_date" json:"date"`
	Reference   string    `db:"reference" json:"reference"`
	Kind        string    `db:"movement_kind" json:"kind"`
	Direction   Direction `db:"direction" json:"direction"`
	LotCode     string    `db:"lot_code" json:"lotCode,omitempty"`

	QuantityIn  types.Quantity `db:"quantity_in" json:"quantityIn"`
	QuantityOut types.Quantity `db:"quantity_out" json:"quantityOut"`
	UnitCost    types.Money    `db:"unit_cost" json:"unitCost"`
	LineValue   types.Money    `db:"line_value" json:"lineValue"`

	ResultingStock       types.Quantity `db:"resulting_stock" json:"resultingStock"`
	ResultingAverageCost types.Money    `db:"resulting_average_cost" json:"resultingAverageCost"`
	ResultingValuation   types.Money    `db:"resulting_valuation" json:"resultingValuation"`
}

// Quantity returns the signed quantity change: positive for IN, negative for OUT.
func (l Line) Quantity() types.Quantity {
	return l.QuantityIn.Sub(l.QuantityOut)
}

// Filter narrows History queries. Zero values mean "no constraint".
type Filter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	MovementID  *id.ID
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}

// Repository persists kardex lines. Lines are never updated or deleted.
type Repository interface {
	// Append inserts lines in order within the caller's transaction.
	Append(ctx context.Context, lines []Line) error

	// History returns lines ordered by date, then by insertion.
	History(ctx context.Context, filter Filter) ([]Line, error)
}
