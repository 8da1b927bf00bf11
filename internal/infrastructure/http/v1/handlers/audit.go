package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"kardex/internal/core/apperror"
	"kardex/internal/domain/audit"
	"kardex/internal/domain/posting"
	"kardex/internal/infrastructure/http/v1/dto"
)

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 200
)

// AuditHandler serves the stored snapshots of applied movements.
type AuditHandler struct {
	*BaseHandler
	reader audit.Reader
}

func NewAuditHandler(base *BaseHandler, reader audit.Reader) *AuditHandler {
	return &AuditHandler{BaseHandler: base, reader: reader}
}

// MovementHistory returns the audit records of one movement, newest first.
// GET /movements/:id/audit?limit=...
func (h *AuditHandler) MovementHistory(c *gin.Context) {
	movementID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxAuditLimit {
			h.Error(c, apperror.NewValidation("limit must be between 1 and "+strconv.Itoa(maxAuditLimit)).
				WithDetail("field", "limit"))
			return
		}
	}

	records, err := h.reader.History(c.Request.Context(), posting.AuditEntityType, movementID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(records))
}
