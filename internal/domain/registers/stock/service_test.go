package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/tx"
	"kardex/internal/core/types"
)

type memRepo struct {
	balances []Balance
	err      error
}

func (r *memRepo) GetBalancesForUpdate(context.Context, []Key) ([]Balance, error) {
	return nil, errors.New("not used")
}

func (r *memRepo) SaveBalances(context.Context, []Balance) error { return errors.New("not used") }

func (r *memRepo) GetBalance(_ context.Context, key Key) (Balance, error) {
	for _, b := range r.balances {
		if b.Key() == key {
			return b, nil
		}
	}
	return Balance{ProductID: key.ProductID, WarehouseID: key.WarehouseID}, r.err
}

func (r *memRepo) GetBalancesByWarehouse(_ context.Context, warehouseID id.ID, filter BalanceFilter) ([]Balance, error) {
	var out []Balance
	for _, b := range r.balances {
		if b.WarehouseID != warehouseID {
			continue
		}
		if filter.ExcludeZero && b.Quantity.IsZero() {
			continue
		}
		out = append(out, b)
	}
	return out, r.err
}

func (r *memRepo) GetBalancesByProduct(_ context.Context, productID id.ID) ([]Balance, error) {
	var out []Balance
	for _, b := range r.balances {
		if b.ProductID == productID {
			out = append(out, b)
		}
	}
	return out, r.err
}

type countingReader struct {
	tx.NoopManager
	calls int
}

func (c *countingReader) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	c.calls++
	return fn(ctx)
}

func TestService_Reads(t *testing.T) {
	product, other := id.New(), id.New()
	wh1, wh2 := id.New(), id.New()
	repo := &memRepo{balances: []Balance{
		{ProductID: product, WarehouseID: wh1, Quantity: types.MustQuantity("10"), Reserved: types.MustQuantity("2")},
		{ProductID: product, WarehouseID: wh2, Quantity: types.MustQuantity("1.5")},
		{ProductID: other, WarehouseID: wh1, Quantity: types.Zero()},
	}}
	reader := &countingReader{}
	svc := NewService(repo).WithSnapshot(reader)
	ctx := context.Background()

	b, err := svc.GetBalance(ctx, Key{ProductID: product, WarehouseID: wh2})
	require.NoError(t, err)
	assert.True(t, types.MustQuantity("1.5").Equal(b.Quantity))

	inWh1, err := svc.GetWarehouseStock(ctx, wh1)
	require.NoError(t, err)
	require.Len(t, inWh1, 1)
	assert.Equal(t, product, inWh1[0].ProductID)

	all, err := svc.GetProductBalances(ctx, product)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	avail, err := svc.GetProductAvailability(ctx, product)
	require.NoError(t, err)
	assert.True(t, types.MustQuantity("9.5").Equal(avail), avail.String())

	assert.Equal(t, 4, reader.calls)
}

func TestService_GetBalance_RequiresKey(t *testing.T) {
	svc := NewService(&memRepo{})
	_, err := svc.GetBalance(context.Background(), Key{ProductID: id.New()})

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestService_AvailabilityWrapsRepoError(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&memRepo{err: boom})

	_, err := svc.GetProductAvailability(context.Background(), id.New())
	assert.ErrorIs(t, err, boom)
}
