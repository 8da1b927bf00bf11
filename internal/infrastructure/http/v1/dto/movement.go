package dto

import (
	"time"

	"kardex/internal/core/apperror"
	"kardex/internal/core/types"
	"kardex/internal/domain/documents/stock_movement"
	"kardex/internal/domain/posting"
)

// MovementRequest is the body of POST /movements and /movements/preview.
// Quantities and costs accept JSON numbers or strings.
type MovementRequest struct {
	ID                     string                `json:"id,omitempty"`
	Kind                   string                `json:"kind"`
	State                  string                `json:"state,omitempty"`
	Date                   *time.Time            `json:"date,omitempty"`
	Reference              string                `json:"reference,omitempty"`
	SourceWarehouseID      string                `json:"sourceWarehouseId,omitempty"`
	DestinationWarehouseID string                `json:"destinationWarehouseId,omitempty"`
	Lines                  []MovementLineRequest `json:"lines"`
}

// MovementLineRequest is one line of a movement request.
type MovementLineRequest struct {
	ProductID  string         `json:"productId"`
	Quantity   types.Quantity `json:"quantity"`
	UnitCost   *types.Money   `json:"unitCost,omitempty"`
	LotCode    string         `json:"lotCode,omitempty"`
	ExpiryDate *time.Time     `json:"expiryDate,omitempty"`
}

// ToMovement converts the request into a movement. Malformed identifiers
// are rejected here; business rules are left to the engine.
func (r *MovementRequest) ToMovement() (*stock_movement.Movement, error) {
	m := stock_movement.NewMovement(stock_movement.Kind(r.Kind))
	if r.ID != "" {
		parsed, err := ParseID("id", r.ID)
		if err != nil {
			return nil, err
		}
		m.ID = parsed
	}
	if r.State != "" {
		m.State = stock_movement.State(r.State)
	}
	if r.Date != nil {
		m.Date = r.Date.UTC()
	}
	m.Reference = r.Reference

	var err error
	if m.SourceWarehouseID, err = ParseOptionalID("sourceWarehouseId", r.SourceWarehouseID); err != nil {
		return nil, err
	}
	if m.DestinationWarehouseID, err = ParseOptionalID("destinationWarehouseId", r.DestinationWarehouseID); err != nil {
		return nil, err
	}

	for i, l := range r.Lines {
		productID, err := ParseID("productId", l.ProductID)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("line_no", i+1)
			}
			return nil, err
		}
		line := m.AddLine(productID, l.Quantity, l.UnitCost)
		line.LotCode = l.LotCode
		line.ExpiryDate = l.ExpiryDate
	}
	return m, nil
}

// MovementResultResponse is returned after an apply or a preview.
type MovementResultResponse struct {
	MovementID string                 `json:"movementId"`
	Reference  string                 `json:"reference"`
	Kind       string                 `json:"kind"`
	Date       time.Time              `json:"date"`
	Balances   []StockBalanceResponse `json:"balances"`
	Kardex     []KardexLineResponse   `json:"kardex"`
	Applied    bool                   `json:"applied"`
}

// FromMovementResult builds the response from the movement and the
// balances it touched.
func FromMovementResult(m *stock_movement.Movement, res *posting.Result, applied bool) MovementResultResponse {
	return MovementResultResponse{
		MovementID: m.ID.String(),
		Reference:  m.Reference,
		Kind:       string(m.Kind),
		Date:       m.Date,
		Balances:   FromStockBalances(res.TouchedBalances()),
		Kardex:     FromKardexLines(res.Kardex),
		Applied:    applied,
	}
}

// MovementAcceptedResponse is returned when a movement is queued.
type MovementAcceptedResponse struct {
	MovementID string `json:"movementId"`
	TaskID     string `json:"taskId"`
	Queue      string `json:"queue"`
}
