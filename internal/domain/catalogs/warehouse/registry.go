package warehouse

import (
	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
)

// Registry is a read-only snapshot of warehouse configurations for one movement.
type Registry struct {
	byID map[id.ID]Warehouse
}

// NewRegistry builds a registry from loaded warehouses. Later duplicates win.
func NewRegistry(warehouses ...Warehouse) *Registry {
	r := &Registry{byID: make(map[id.ID]Warehouse, len(warehouses))}
	for _, w := range warehouses {
		r.byID[w.ID] = w
	}
	return r
}

// With returns a new registry containing r's warehouses plus the given ones.
func (r *Registry) With(warehouses ...Warehouse) *Registry {
	out := &Registry{byID: make(map[id.ID]Warehouse, r.Len()+len(warehouses))}
	if r != nil {
		for k, w := range r.byID {
			out.byID[k] = w
		}
	}
	for _, w := range warehouses {
		out.byID[w.ID] = w
	}
	return out
}

// Get returns the warehouse without checking its state.
func (r *Registry) Get(warehouseID id.ID) (Warehouse, bool) {
	if r == nil {
		return Warehouse{}, false
	}
	w, ok := r.byID[warehouseID]
	return w, ok
}

// Active returns the warehouse if it exists and is active.
func (r *Registry) Active(warehouseID id.ID) (Warehouse, error) {
	w, ok := r.Get(warehouseID)
	if !ok {
		return Warehouse{}, apperror.NewWarehouseNotFound(warehouseID.String())
	}
	if !w.IsActive {
		return Warehouse{}, apperror.NewWarehouseInactive(warehouseID.String()).
			WithDetail("warehouse_code", w.Code)
	}
	return w, nil
}

// Len returns the number of registered warehouses.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byID)
}
