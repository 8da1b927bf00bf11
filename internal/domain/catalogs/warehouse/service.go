package warehouse

import (
	"context"
	"fmt"

	"kardex/internal/core/id"
)

// Service loads warehouse configuration for movement processing.
type Service struct {
	repo Repository
}

// NewService creates a new Warehouse service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// LoadRegistry loads the given warehouses into a Registry.
// Missing warehouses are not an error here; the posting engine reports them
// against the movement line that references them.
func (s *Service) LoadRegistry(ctx context.Context, ids []id.ID) (*Registry, error) {
	if len(ids) == 0 {
		return NewRegistry(), nil
	}

	warehouses, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load warehouses: %w", err)
	}

	values := make([]Warehouse, 0, len(warehouses))
	for _, w := range warehouses {
		if w != nil {
			values = append(values, *w)
		}
	}
	return NewRegistry(values...), nil
}

