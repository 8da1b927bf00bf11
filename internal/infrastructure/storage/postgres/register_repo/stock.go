// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/domain/registers/stock"
	"kardex/internal/infrastructure/storage/postgres"
)

const (
	stockBalancesTable = "reg_stock_balances"
	stockLotsTable     = "reg_stock_lots"
)

var lotColumns = []string{"product_id", "warehouse_id", "position", "lot_code", "expiry_date", "quantity"}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
	columns   []string
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns:   postgres.ExtractDBColumns[stock.Balance](),
	}
}

var _ stock.Repository = (*StockRepo)(nil)

type lotRow struct {
	stock.Key
	stock.Lot
	Position int `db:"position"`
}

func keysPredicate(keys []stock.Key) squirrel.Or {
	or := make(squirrel.Or, 0, len(keys))
	for _, k := range keys {
		or = append(or, squirrel.And{squirrel.Eq{"product_id": k.ProductID, "warehouse_id": k.WarehouseID}})
	}
	return or
}

// GetBalancesForUpdate loads and row-locks existing balances in key order.
func (r *StockRepo) GetBalancesForUpdate(ctx context.Context, keys []stock.Key) ([]stock.Balance, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetBalancesForUpdate requires transaction context")
	}

	q := r.builder.Select(r.columns...).
		From(stockBalancesTable).
		Where(keysPredicate(keys)).
		OrderBy("product_id", "warehouse_id").
		Suffix("FOR UPDATE")

	balances, err := r.selectBalances(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := r.attachLots(ctx, balances); err != nil {
		return nil, err
	}
	return balances, nil
}

// SaveBalances upserts balances under optimistic version checks and
// replaces their lots.
func (r *StockRepo) SaveBalances(ctx context.Context, balances []stock.Balance) error {
	if len(balances) == 0 {
		return nil
	}

	queries := make([]postgres.BatchQuery, 0, len(balances))
	for _, b := range balances {
		q, err := r.saveQuery(b)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}

	tags, err := postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries)
	if err != nil {
		return fmt.Errorf("save balances: %w", err)
	}
	for i, tag := range tags {
		if tag.RowsAffected() != 1 {
			return apperror.NewConcurrentModification("stock_balance", balances[i].Key().String()).
				WithDetail("version", balances[i].Version)
		}
	}

	return r.replaceLots(ctx, balances)
}

// saveQuery inserts a new row (Version 0) or updates the row at the
// expected version.
func (r *StockRepo) saveQuery(b stock.Balance) (postgres.BatchQuery, error) {
	values := postgres.StructToMap(b)
	values["version"] = b.Version + 1

	var (
		sql  string
		args []any
		err  error
	)
	if b.Version == 0 {
		sql, args, err = r.builder.Insert(stockBalancesTable).
			SetMap(values).
			Suffix("ON CONFLICT (product_id, warehouse_id) DO NOTHING").
			ToSql()
	} else {
		delete(values, "product_id")
		delete(values, "warehouse_id")
		sql, args, err = r.builder.Update(stockBalancesTable).
			SetMap(values).
			Where(squirrel.Eq{
				"product_id":   b.ProductID,
				"warehouse_id": b.WarehouseID,
				"version":      b.Version,
			}).
			ToSql()
	}
	if err != nil {
		return postgres.BatchQuery{}, fmt.Errorf("build save: %w", err)
	}
	return postgres.BatchQuery{SQL: sql, Args: args}, nil
}

func (r *StockRepo) replaceLots(ctx context.Context, balances []stock.Balance) error {
	keys := make([]stock.Key, len(balances))
	var rows [][]any
	for i, b := range balances {
		keys[i] = b.Key()
		for pos, lot := range b.Lots {
			rows = append(rows, []any{b.ProductID, b.WarehouseID, pos, lot.Code, lot.ExpiryDate, lot.Quantity})
		}
	}

	sql, args, err := r.builder.Delete(stockLotsTable).Where(keysPredicate(keys)).ToSql()
	if err != nil {
		return fmt.Errorf("build delete lots: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete lots: %w", err)
	}

	if _, err := postgres.NewBatchInserter(r.txManager).CopyFromSlice(ctx, stockLotsTable, lotColumns, rows); err != nil {
		return fmt.Errorf("copy lots: %w", err)
	}
	return nil
}

// GetBalance returns the balance for key, or a zero balance if none exists.
func (r *StockRepo) GetBalance(ctx context.Context, key stock.Key) (stock.Balance, error) {
	q := r.builder.Select(r.columns...).
		From(stockBalancesTable).
		Where(squirrel.Eq{"product_id": key.ProductID, "warehouse_id": key.WarehouseID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return stock.Balance{}, fmt.Errorf("build query: %w", err)
	}

	var b stock.Balance
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return stock.NewBalance(key), nil
		}
		return stock.Balance{}, fmt.Errorf("get balance: %w", err)
	}

	balances := []stock.Balance{b}
	if err := r.attachLots(ctx, balances); err != nil {
		return stock.Balance{}, err
	}
	return balances[0], nil
}

// GetBalancesByWarehouse returns balances in a warehouse.
func (r *StockRepo) GetBalancesByWarehouse(ctx context.Context, warehouseID id.ID, filter stock.BalanceFilter) ([]stock.Balance, error) {
	q := r.builder.Select(r.columns...).
		From(stockBalancesTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID})

	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": 0})
	}
	if len(filter.ProductIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductIDs})
	}
	if filter.MinQuantity != nil {
		q = q.Where(squirrel.GtOrEq{"quantity": *filter.MinQuantity})
	}
	if filter.MaxQuantity != nil {
		q = q.Where(squirrel.LtOrEq{"quantity": *filter.MaxQuantity})
	}

	balances, err := r.selectBalances(ctx, q.OrderBy("product_id"))
	if err != nil {
		return nil, err
	}
	return balances, r.attachLots(ctx, balances)
}

// GetBalancesByProduct returns non-zero balances for a product across warehouses.
func (r *StockRepo) GetBalancesByProduct(ctx context.Context, productID id.ID) ([]stock.Balance, error) {
	q := r.builder.Select(r.columns...).
		From(stockBalancesTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.NotEq{"quantity": 0}).
		OrderBy("warehouse_id")

	balances, err := r.selectBalances(ctx, q)
	if err != nil {
		return nil, err
	}
	return balances, r.attachLots(ctx, balances)
}

func (r *StockRepo) selectBalances(ctx context.Context, q squirrel.SelectBuilder) ([]stock.Balance, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []stock.Balance
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return balances, nil
}

// attachLots loads lots for balances in one query, preserving lot order.
func (r *StockRepo) attachLots(ctx context.Context, balances []stock.Balance) error {
	if len(balances) == 0 {
		return nil
	}

	index := make(map[stock.Key]int, len(balances))
	keys := make([]stock.Key, len(balances))
	for i, b := range balances {
		keys[i] = b.Key()
		index[b.Key()] = i
	}

	sql, args, err := r.builder.Select(lotColumns...).
		From(stockLotsTable).
		Where(keysPredicate(keys)).
		OrderBy("product_id", "warehouse_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lots query: %w", err)
	}

	var rows []lotRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("select lots: %w", err)
	}

	for _, row := range rows {
		i, ok := index[row.Key]
		if !ok {
			continue
		}
		balances[i].Lots = append(balances[i].Lots, row.Lot)
	}
	return nil
}
