package kardex

import (
	"context"

	"kardex/internal/core/apperror"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Service exposes kardex history queries.
type Service struct {
	repo Repository
}

// NewService creates a new kardex service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// History returns lines matching filter. At least a product or a movement
// must be given; the limit is clamped to MaxLimit.
func (s *Service) History(ctx context.Context, filter Filter) ([]Line, error) {
	if filter.ProductID == nil && filter.MovementID == nil {
		return nil, apperror.NewValidation("productId or movementId is required")
	}
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		return nil, apperror.NewValidation("toDate is before fromDate").
			WithDetail("fromDate", filter.FromDate).
			WithDetail("toDate", filter.ToDate)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultLimit
	case filter.Limit > MaxLimit:
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.History(ctx, filter)
}
