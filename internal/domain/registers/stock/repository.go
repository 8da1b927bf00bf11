package stock

import (
	"context"

	"kardex/internal/core/id"
	"kardex/internal/core/types"
)

// Repository defines persistence for the stock balance register.
type Repository interface {
	// GetBalancesForUpdate loads existing balances (with lots) and locks their rows.
	// Keys without a row are omitted from the result.
	// Must be called inside a transaction.
	GetBalancesForUpdate(ctx context.Context, keys []Key) ([]Balance, error)

	// SaveBalances upserts balances and replaces their lots.
	// A balance whose Version no longer matches the stored row yields
	// apperror CONCURRENT_MODIFICATION. Saved versions are incremented.
	SaveBalances(ctx context.Context, balances []Balance) error

	// GetBalance returns the balance for key, or a zero balance if none exists.
	GetBalance(ctx context.Context, key Key) (Balance, error)

	// GetBalancesByWarehouse returns balances in a warehouse.
	GetBalancesByWarehouse(ctx context.Context, warehouseID id.ID, filter BalanceFilter) ([]Balance, error)

	// GetBalancesByProduct returns balances across all warehouses for a product.
	GetBalancesByProduct(ctx context.Context, productID id.ID) ([]Balance, error)
}

// BalanceFilter for filtering balance queries.
type BalanceFilter struct {
	ProductIDs  []id.ID
	ExcludeZero bool
	MinQuantity *types.Quantity
	MaxQuantity *types.Quantity
}
