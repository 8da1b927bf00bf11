package dto

import (
	"time"

	"kardex/internal/core/types"
	"kardex/internal/domain/registers/stock"
)

// LotResponse is a lot bucket of a balance.
type LotResponse struct {
	Code       string         `json:"code"`
	ExpiryDate *time.Time     `json:"expiryDate,omitempty"`
	Quantity   types.Quantity `json:"quantity"`
}

// StockBalanceResponse represents a stock balance in API responses.
// Decimals are rendered as JSON strings.
type StockBalanceResponse struct {
	ProductID       string         `json:"productId"`
	WarehouseID     string         `json:"warehouseId"`
	Quantity        types.Quantity `json:"quantity"`
	Reserved        types.Quantity `json:"reserved"`
	Available       types.Quantity `json:"available"`
	AverageCost     types.Money    `json:"averageCost"`
	Valuation       types.Money    `json:"valuation"`
	Lots            []LotResponse  `json:"lots,omitempty"`
	LastMovementRef string         `json:"lastMovementRef,omitempty"`
	LastMovementAt  *time.Time     `json:"lastMovementAt,omitempty"`
}

// FromStockBalance converts a balance to its response DTO.
func FromStockBalance(b stock.Balance) StockBalanceResponse {
	resp := StockBalanceResponse{
		ProductID:       b.ProductID.String(),
		WarehouseID:     b.WarehouseID.String(),
		Quantity:        b.Quantity,
		Reserved:        b.Reserved,
		Available:       b.Available(),
		AverageCost:     b.AverageCost,
		Valuation:       b.Valuation,
		LastMovementRef: b.LastMovementRef,
		LastMovementAt:  timePtr(b.LastMovementAt),
	}
	for _, l := range b.Lots {
		resp.Lots = append(resp.Lots, LotResponse{Code: l.Code, ExpiryDate: l.ExpiryDate, Quantity: l.Quantity})
	}
	return resp
}

// FromStockBalances converts a slice of balances.
func FromStockBalances(balances []stock.Balance) []StockBalanceResponse {
	out := make([]StockBalanceResponse, len(balances))
	for i, b := range balances {
		out[i] = FromStockBalance(b)
	}
	return out
}

// AvailabilityResponse is the available quantity of a product across warehouses.
type AvailabilityResponse struct {
	ProductID string         `json:"productId"`
	Available types.Quantity `json:"available"`
}
