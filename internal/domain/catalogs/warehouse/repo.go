package warehouse

import (
	"context"

	"kardex/internal/core/id"
)

// Repository defines the interface for Warehouse persistence.
// Warehouses are created and edited elsewhere; this engine only reads them.
type Repository interface {
	// GetByIDs returns the warehouses that exist; unknown IDs are silently skipped.
	GetByIDs(ctx context.Context, ids []id.ID) ([]*Warehouse, error)
}
