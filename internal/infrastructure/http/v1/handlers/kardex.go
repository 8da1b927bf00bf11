package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"kardex/internal/domain/registers/kardex"
	"kardex/internal/infrastructure/http/v1/dto"
)

// KardexReader queries kardex history.
type KardexReader interface {
	History(ctx context.Context, filter kardex.Filter) ([]kardex.Line, error)
}

var _ KardexReader = (*kardex.Service)(nil)

// KardexHandler handles kardex history queries.
type KardexHandler struct {
	*BaseHandler
	service KardexReader
}

// NewKardexHandler creates a new kardex handler.
func NewKardexHandler(base *BaseHandler, service KardexReader) *KardexHandler {
	return &KardexHandler{
		BaseHandler: base,
		service:     service,
	}
}

// History returns kardex lines in movement order.
// GET /kardex?productId=...&warehouseId=...&fromDate=...&toDate=...&limit=...
func (h *KardexHandler) History(c *gin.Context) {
	var q dto.KardexQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	lines, err := h.service.History(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromKardexLines(lines)))
}
