package dto

import (
	"time"

	"kardex/internal/core/types"
	"kardex/internal/domain/registers/kardex"
)

// KardexLineResponse represents a kardex line in API responses.
type KardexLineResponse struct {
	LineID      string    `json:"lineId"`
	MovementID  string    `json:"movementId"`
	LineNo      int       `json:"lineNo"`
	ProductID   string    `json:"productId"`
	WarehouseID string    `json:"warehouseId"`
	Date        time.Time `json:"date"`
	Reference   string    `json:"reference"`
	Kind        string    `json:"kind"`
	Direction   string    `json:"direction"`
	LotCode     string    `json:"lotCode,omitempty"`

	QuantityIn  types.Quantity `json:"quantityIn"`
	QuantityOut types.Quantity `json:"quantityOut"`
	UnitCost    types.Money    `json:"unitCost"`
	LineValue   types.Money    `json:"lineValue"`

	ResultingStock       types.Quantity `json:"resultingStock"`
	ResultingAverageCost types.Money    `json:"resultingAverageCost"`
	ResultingValuation   types.Money    `json:"resultingValuation"`
}

// FromKardexLine converts a kardex line to its response DTO.
func FromKardexLine(l kardex.Line) KardexLineResponse {
	return KardexLineResponse{
		LineID:               l.LineID.String(),
		MovementID:           l.MovementID.String(),
		LineNo:               l.LineNo,
		ProductID:            l.ProductID.String(),
		WarehouseID:          l.WarehouseID.String(),
		Date:                 l.Date,
		Reference:            l.Reference,
		Kind:                 l.Kind,
		Direction:            string(l.Direction),
		LotCode:              l.LotCode,
		QuantityIn:           l.QuantityIn,
		QuantityOut:          l.QuantityOut,
		UnitCost:             l.UnitCost,
		LineValue:            l.LineValue,
		ResultingStock:       l.ResultingStock,
		ResultingAverageCost: l.ResultingAverageCost,
		ResultingValuation:   l.ResultingValuation,
	}
}

// FromKardexLines converts a slice of kardex lines.
func FromKardexLines(lines []kardex.Line) []KardexLineResponse {
	out := make([]KardexLineResponse, len(lines))
	for i, l := range lines {
		out[i] = FromKardexLine(l)
	}
	return out
}

// KardexQuery holds kardex history query parameters.
type KardexQuery struct {
	ProductID   string `form:"productId"`
	WarehouseID string `form:"warehouseId"`
	MovementID  string `form:"movementId"`
	FromDate    string `form:"fromDate"`
	ToDate      string `form:"toDate"`
	Limit       int    `form:"limit" binding:"omitempty,min=1"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter parses the query into a kardex filter.
func (q KardexQuery) ToFilter() (kardex.Filter, error) {
	var (
		f   = kardex.Filter{Limit: q.Limit, Offset: q.Offset}
		err error
	)
	if f.ProductID, err = ParseOptionalID("productId", q.ProductID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = ParseOptionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	if f.MovementID, err = ParseOptionalID("movementId", q.MovementID); err != nil {
		return f, err
	}
	if f.FromDate, err = ParseOptionalTime("fromDate", q.FromDate); err != nil {
		return f, err
	}
	if f.ToDate, err = ParseOptionalTime("toDate", q.ToDate); err != nil {
		return f, err
	}
	return f, nil
}
