package stock

import (
	"context"
	"fmt"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/tx"
	"kardex/internal/core/types"
)

// Service provides read operations over the stock register.
// Writes go through the movement service, which owns the transaction.
type Service struct {
	repo   Repository
	reader tx.ReadOnlyManager
}

// NewService creates a new stock register service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// WithSnapshot makes every read run in one read-only transaction, so a
// balance and its lots come from the same snapshot.
func (s *Service) WithSnapshot(m tx.ReadOnlyManager) *Service {
	s.reader = m
	return s
}

func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.reader == nil {
		return fn(ctx)
	}
	return s.reader.ReadOnly(ctx, fn)
}

// GetBalance returns the balance of one product in one warehouse.
func (s *Service) GetBalance(ctx context.Context, key Key) (Balance, error) {
	if id.IsNil(key.ProductID) || id.IsNil(key.WarehouseID) {
		return Balance{}, apperror.NewValidation("productId and warehouseId are required")
	}
	var out Balance
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.GetBalance(ctx, key)
		return err
	})
	return out, err
}

// GetWarehouseStock returns all products with stock in a warehouse.
func (s *Service) GetWarehouseStock(ctx context.Context, warehouseID id.ID) ([]Balance, error) {
	var out []Balance
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.GetBalancesByWarehouse(ctx, warehouseID, BalanceFilter{
			ExcludeZero: true,
		})
		return err
	})
	return out, err
}

// GetProductBalances returns a product's balances across warehouses.
func (s *Service) GetProductBalances(ctx context.Context, productID id.ID) ([]Balance, error) {
	var out []Balance
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.GetBalancesByProduct(ctx, productID)
		return err
	})
	return out, err
}

// GetProductAvailability returns available quantity across warehouses.
func (s *Service) GetProductAvailability(ctx context.Context, productID id.ID) (types.Quantity, error) {
	balances, err := s.GetProductBalances(ctx, productID)
	if err != nil {
		return types.Zero(), fmt.Errorf("get balances: %w", err)
	}

	total := types.Zero()
	for _, b := range balances {
		total = total.Add(b.Available())
	}

	return total, nil
}
