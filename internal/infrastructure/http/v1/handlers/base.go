package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kardex/internal/core/apperror"
)

// BaseHandler holds the binding and response helpers shared by handlers.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON decodes the request body into obj.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the gin context and aborts the request.
// The JSON body is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// QueryBool reads an optional boolean flag. An absent flag is false; a
// malformed one is reported and the request aborted (ok == false).
func (h *BaseHandler) QueryBool(c *gin.Context, key string) (value, ok bool) {
	raw := c.Query(key)
	if raw == "" {
		return false, true
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+key+" flag").
			WithDetail("field", key).
			WithDetail("value", raw))
		return false, false
	}
	return parsed, true
}

func (h *BaseHandler) OK(c *gin.Context, data any) { c.JSON(http.StatusOK, data) }

// Created answers a synchronously applied movement.
func (h *BaseHandler) Created(c *gin.Context, data any) { c.JSON(http.StatusCreated, data) }

// Accepted answers a movement handed to the worker queue.
func (h *BaseHandler) Accepted(c *gin.Context, data any) { c.JSON(http.StatusAccepted, data) }
