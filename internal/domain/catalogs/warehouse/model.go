// Package warehouse provides the Warehouse catalog.
// Warehouses are physical locations whose configuration drives stock policy:
// lot tracking, negative stock allowance and the active flag.
package warehouse

import (
	"context"
	"strings"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
)

// Warehouse represents a storage location and its stock policy.
// Loaded fresh before every movement and treated as immutable during processing.
type Warehouse struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// IsActive indicates if warehouse is operational
	IsActive bool `db:"is_active" json:"isActive"`

	// AllowNegativeStock indicates if negative stock is allowed
	AllowNegativeStock bool `db:"allow_negative_stock" json:"allowNegativeStock"`

	// TrackLots requires every line touching this warehouse to carry a lot code
	TrackLots bool `db:"track_lots" json:"trackLots"`
}

// NewWarehouse creates an active warehouse with default policy.
func NewWarehouse(code, name string) *Warehouse {
	return &Warehouse{
		ID:       id.New(),
		Code:     code,
		Name:     name,
		IsActive: true,
	}
}

// Validate checks required fields.
func (w *Warehouse) Validate(ctx context.Context) error {
	if id.IsNil(w.ID) {
		return apperror.NewValidation("warehouse id is required").
			WithDetail("field", "id")
	}
	if strings.TrimSpace(w.Code) == "" {
		return apperror.NewValidation("warehouse code is required").
			WithDetail("field", "code")
	}
	return nil
}

// CanAcceptStock returns true if warehouse can accept stock.
func (w *Warehouse) CanAcceptStock() bool {
	return w.IsActive
}

// CanIssueBelowZero returns true if issues may drive stock negative.
func (w *Warehouse) CanIssueBelowZero() bool {
	return w.IsActive && w.AllowNegativeStock
}
