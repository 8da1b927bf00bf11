package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"kardex/internal/core/apperror"
	"kardex/internal/domain/registers/kardex"
	"kardex/internal/infrastructure/storage/postgres"
)

const kardexTable = "reg_kardex"

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// KardexRepo implements kardex.Repository. Lines are written with COPY and
// ordered on read by movement date, then by the table's insertion sequence.
type KardexRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
	columns   []string
}

// NewKardexRepo creates a new kardex repository.
func NewKardexRepo(txManager *postgres.TxManager) *KardexRepo {
	return &KardexRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns:   postgres.ExtractDBColumns[kardex.Line](),
	}
}

var _ kardex.Repository = (*KardexRepo)(nil)

// Append copies lines into reg_kardex. A movement that was already recorded
// violates the (movement_id, line_no, direction) key and yields CONFLICT.
func (r *KardexRepo) Append(ctx context.Context, lines []kardex.Line) error {
	if len(lines) == 0 {
		return nil
	}

	rows := make([][]any, len(lines))
	for i, l := range lines {
		values := postgres.StructToMap(l)
		row := make([]any, len(r.columns))
		for j, col := range r.columns {
			row[j] = values[col]
		}
		rows[i] = row
	}

	if _, err := postgres.NewBatchInserter(r.txManager).CopyFromSlice(ctx, kardexTable, r.columns, rows); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.NewConflict("movement already recorded in kardex").
				WithDetail("movement_id", lines[0].MovementID.String())
		}
		return fmt.Errorf("copy kardex lines: %w", err)
	}
	return nil
}

// History returns lines matching filter. Callers validate and clamp the filter.
func (r *KardexRepo) History(ctx context.Context, filter kardex.Filter) ([]kardex.Line, error) {
	q := r.builder.Select(r.columns...).From(kardexTable)

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.MovementID != nil {
		q = q.Where(squirrel.Eq{"movement_id": *filter.MovementID})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"movement_date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"movement_date": *filter.ToDate})
	}

	q = q.OrderBy("movement_date", "seq")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []kardex.Line
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select kardex: %w", err)
	}
	return lines, nil
}
