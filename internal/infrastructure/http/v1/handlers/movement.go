package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"kardex/internal/core/apperror"
	"kardex/internal/domain/documents/stock_movement"
	"kardex/internal/domain/posting"
	"kardex/internal/infrastructure/http/v1/dto"
)

// MovementService applies and previews stock movements.
type MovementService interface {
	Apply(ctx context.Context, m *stock_movement.Movement) (*posting.Result, error)
	Preview(ctx context.Context, m *stock_movement.Movement) (*posting.Result, error)
}

var _ MovementService = (*posting.Service)(nil)

// Enqueuer hands a movement to the single-writer queue.
type Enqueuer interface {
	EnqueueApplyMovement(ctx context.Context, m *stock_movement.Movement) (taskID, queue string, err error)
}

// MovementHandler handles stock movement submission.
type MovementHandler struct {
	*BaseHandler
	service  MovementService
	enqueuer Enqueuer
}

// NewMovementHandler creates a movement handler. enqueuer may be nil, in
// which case async submission is rejected.
func NewMovementHandler(base *BaseHandler, service MovementService, enqueuer Enqueuer) *MovementHandler {
	return &MovementHandler{
		BaseHandler: base,
		service:     service,
		enqueuer:    enqueuer,
	}
}

// Apply applies a movement and returns the balances it touched.
// POST /movements[?async=true]
func (h *MovementHandler) Apply(c *gin.Context) {
	ctx := c.Request.Context()

	async, ok := h.QueryBool(c, "async")
	if !ok {
		return
	}

	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := req.ToMovement()
	if err != nil {
		h.Error(c, err)
		return
	}

	if async {
		h.enqueue(c, m)
		return
	}

	res, err := h.service.Apply(ctx, m)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromMovementResult(m, res, true))
}

func (h *MovementHandler) enqueue(c *gin.Context, m *stock_movement.Movement) {
	if h.enqueuer == nil {
		h.Error(c, apperror.NewValidation("async submission is not enabled"))
		return
	}

	taskID, queue, err := h.enqueuer.EnqueueApplyMovement(c.Request.Context(), m)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Accepted(c, dto.MovementAcceptedResponse{
		MovementID: m.ID.String(),
		TaskID:     taskID,
		Queue:      queue,
	})
}

// Preview runs a movement against current balances without persisting it.
// POST /movements/preview
func (h *MovementHandler) Preview(c *gin.Context) {
	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := req.ToMovement()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Preview(c.Request.Context(), m)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMovementResult(m, res, false))
}
