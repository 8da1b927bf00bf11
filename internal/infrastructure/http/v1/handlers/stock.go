package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/types"
	"kardex/internal/domain/registers/stock"
	"kardex/internal/infrastructure/http/v1/dto"
)

// StockReader is the read side of the stock register.
type StockReader interface {
	GetBalance(ctx context.Context, key stock.Key) (stock.Balance, error)
	GetWarehouseStock(ctx context.Context, warehouseID id.ID) ([]stock.Balance, error)
	GetProductBalances(ctx context.Context, productID id.ID) ([]stock.Balance, error)
	GetProductAvailability(ctx context.Context, productID id.ID) (types.Quantity, error)
}

var _ StockReader = (*stock.Service)(nil)

// StockHandler handles stock balance queries.
type StockHandler struct {
	*BaseHandler
	service StockReader
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service StockReader) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
	}
}

// GetBalances returns balances filtered by warehouse, product, or both.
// GET /stock/balances?warehouseId=...&productId=...
func (h *StockHandler) GetBalances(c *gin.Context) {
	ctx := c.Request.Context()

	warehouseID, err := dto.ParseOptionalID("warehouseId", c.Query("warehouseId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	productID, err := dto.ParseOptionalID("productId", c.Query("productId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	var balances []stock.Balance
	switch {
	case warehouseID != nil && productID != nil:
		b, err := h.service.GetBalance(ctx, stock.Key{ProductID: *productID, WarehouseID: *warehouseID})
		if err != nil {
			h.Error(c, err)
			return
		}
		balances = []stock.Balance{b}
	case warehouseID != nil:
		balances, err = h.service.GetWarehouseStock(ctx, *warehouseID)
	case productID != nil:
		balances, err = h.service.GetProductBalances(ctx, *productID)
	default:
		h.Error(c, apperror.NewValidation("warehouseId or productId is required"))
		return
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromStockBalances(balances)))
}

// GetAvailability returns the available quantity of a product across warehouses.
// GET /stock/availability/:productId
func (h *StockHandler) GetAvailability(c *gin.Context) {
	productID, err := dto.ParseID("productId", c.Param("productId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	available, err := h.service.GetProductAvailability(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AvailabilityResponse{
		ProductID: productID.String(),
		Available: available,
	})
}
