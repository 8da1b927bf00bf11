// Package posting applies stock movements to the stock register.
//
// Engine is the pure part: given a movement, the current balances and the
// warehouse configuration it returns the new balances and kardex lines, or an
// *apperror.AppError and nothing else. Service wraps it with locking,
// persistence and auditing.
package posting

import (
	"fmt"
	"slices"
	"time"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/types"
	"kardex/internal/domain/catalogs/warehouse"
	"kardex/internal/domain/documents/stock_movement"
	"kardex/internal/domain/registers/kardex"
	"kardex/internal/domain/registers/stock"
)

// Result is the outcome of a successful Apply.
type Result struct {
	// Balances holds every input balance in input order (touched ones
	// replaced), followed by balances created by this movement in
	// first-touch order.
	Balances []stock.Balance

	// Touched lists the keys changed by this movement in first-touch order.
	Touched []stock.Key

	// Kardex lines in processing order. A transfer line yields OUT then IN.
	Kardex []kardex.Line
}

// TouchedBalances returns the balances listed in Touched.
func (r *Result) TouchedBalances() []stock.Balance {
	index := make(map[stock.Key]int, len(r.Balances))
	for i, b := range r.Balances {
		index[b.Key()] = i
	}
	out := make([]stock.Balance, 0, len(r.Touched))
	for _, k := range r.Touched {
		if i, ok := index[k]; ok {
			out = append(out, r.Balances[i])
		}
	}
	return out
}

// Engine computes stock movements. It holds no state and is safe for
// concurrent use; callers serialize writers per balance key.
type Engine struct{}

// NewEngine creates a new posting engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply processes m against balances. Lines are applied strictly in order and
// each line sees the effect of the previous ones. Inputs are never modified.
func (e *Engine) Apply(m *stock_movement.Movement, balances []stock.Balance, warehouses *warehouse.Registry) (*Result, error) {
	if m == nil {
		return nil, apperror.NewValidation("movement is required")
	}

	src, dst, err := e.validate(m, warehouses)
	if err != nil {
		return nil, err
	}
	if err := uniqueKeys(balances); err != nil {
		return nil, err
	}

	st := &run{
		movement: m,
		ledger:   stock.NewLedger(balances),
		touched:  make(map[stock.Key]struct{}),
	}

	for i, line := range m.Lines {
		op := lineOp{
			lineNo:    i + 1,
			productID: line.ProductID,
			quantity:  types.RoundQuantity(line.Quantity),
			lotCode:   line.LotCode,
			expiry:    line.ExpiryDate,
		}

		switch m.Kind {
		case stock_movement.KindReceipt:
			err = st.receive(op, dst, line.UnitCost)

		case stock_movement.KindIssue:
			_, err = st.dispatch(op, src)

		case stock_movement.KindTransfer:
			var out dispatched
			out, err = st.dispatch(op, src)
			if err == nil {
				if op.expiry == nil {
					op.expiry = out.lotExpiry
				}
				err = st.receive(op, dst, &out.unitCost)
			}

		case stock_movement.KindAdjustment:
			if op.quantity.IsPositive() {
				err = st.receive(op, dst, line.UnitCost)
			} else {
				op.quantity = op.quantity.Neg()
				_, err = st.dispatch(op, src)
			}
		}

		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Balances: st.ledger.Entries(),
		Touched:  st.order,
		Kardex:   st.lines,
	}, nil
}

// validate checks the movement as a whole before any line is processed and
// resolves the warehouses it needs. A nil warehouse means "not used".
func (e *Engine) validate(m *stock_movement.Movement, warehouses *warehouse.Registry) (src, dst *warehouse.Warehouse, err error) {
	if m.State != stock_movement.StateApplied {
		return nil, nil, apperror.NewMovementValidation(apperror.CodeInvalidState,
			fmt.Sprintf("movement in state %q cannot be applied", m.State)).
			WithDetail("state", m.State)
	}
	if !m.Kind.IsValid() {
		return nil, nil, apperror.NewMovementValidation(apperror.CodeUnsupportedMovementKind,
			fmt.Sprintf("unsupported movement kind %q", m.Kind)).
			WithDetail("kind", m.Kind)
	}
	if len(m.Lines) == 0 {
		return nil, nil, apperror.NewMovementValidation(apperror.CodeEmptyMovement,
			"movement has no lines")
	}

	// Kinds with fixed directions check their references before the lines;
	// an adjustment derives its references from the line signs.
	var hasIn, hasOut bool
	switch m.Kind {
	case stock_movement.KindReceipt:
		hasIn = true
	case stock_movement.KindIssue:
		hasOut = true
	case stock_movement.KindTransfer:
		hasIn, hasOut = true, true
	}
	if err := requireReferences(m, hasIn, hasOut); err != nil {
		return nil, nil, err
	}

	for i, line := range m.Lines {
		if id.IsNil(line.ProductID) {
			return nil, nil, apperror.NewValidation("product is required").
				WithDetail("field", "productId").
				WithDetail("line_no", i+1)
		}

		q := types.RoundQuantity(line.Quantity)
		if m.Kind == stock_movement.KindAdjustment {
			if q.IsZero() {
				return nil, nil, invalidQuantity(i+1, line, "adjustment quantity must not be zero")
			}
		} else if !q.IsPositive() {
			return nil, nil, invalidQuantity(i+1, line, "quantity must be positive")
		}

		if m.Kind == stock_movement.KindAdjustment {
			if q.IsPositive() {
				hasIn = true
			} else {
				hasOut = true
			}
		}
	}

	if err := requireReferences(m, hasIn, hasOut); err != nil {
		return nil, nil, err
	}

	if hasOut {
		w, err := warehouses.Active(*m.SourceWarehouseID)
		if err != nil {
			return nil, nil, err
		}
		src = &w
	}
	if hasIn {
		w, err := warehouses.Active(*m.DestinationWarehouseID)
		if err != nil {
			return nil, nil, err
		}
		dst = &w
	}
	return src, dst, nil
}

func requireReferences(m *stock_movement.Movement, hasIn, hasOut bool) error {
	if hasOut && m.SourceWarehouseID == nil {
		return missingWarehouse(m.Kind, "sourceWarehouseId")
	}
	if hasIn && m.DestinationWarehouseID == nil {
		return missingWarehouse(m.Kind, "destinationWarehouseId")
	}
	return nil
}

// uniqueKeys rejects a snapshot listing the same product and warehouse twice.
func uniqueKeys(balances []stock.Balance) error {
	seen := make(map[stock.Key]int, len(balances))
	for i, b := range balances {
		key := b.Key()
		if first, ok := seen[key]; ok {
			return apperror.NewValidation("duplicate balance for product and warehouse").
				WithDetail("product_id", key.ProductID).
				WithDetail("warehouse_id", key.WarehouseID).
				WithDetail("positions", []int{first, i})
		}
		seen[key] = i
	}
	return nil
}

func invalidQuantity(lineNo int, line stock_movement.Line, msg string) *apperror.AppError {
	return apperror.NewMovementValidation(apperror.CodeInvalidQuantity, msg).
		WithDetail("line_no", lineNo).
		WithDetail("product_id", line.ProductID).
		WithDetail("quantity", line.Quantity.String())
}

func missingWarehouse(kind stock_movement.Kind, field string) *apperror.AppError {
	return apperror.NewMovementValidation(apperror.CodeMissingWarehouseReference,
		fmt.Sprintf("%s movement requires %s", kind, field)).
		WithDetail("field", field).
		WithDetail("kind", kind)
}

// lineOp is one receive or dispatch step. quantity is always positive.
type lineOp struct {
	lineNo    int
	productID id.ID
	quantity  types.Quantity
	lotCode   string
	expiry    *time.Time
}

type dispatched struct {
	unitCost  types.Money
	lotExpiry *time.Time
}

// run carries the working state of a single Apply call.
type run struct {
	movement *stock_movement.Movement
	ledger   *stock.Ledger
	touched  map[stock.Key]struct{}
	order    []stock.Key
	lines    []kardex.Line
}

func (r *run) receive(op lineOp, w *warehouse.Warehouse, unitCost *types.Money) error {
	if unitCost == nil || unitCost.IsNegative() {
		return apperror.NewMovementValidation(apperror.CodeMissingUnitCost,
			"unit cost is required and must not be negative").
			WithDetail("line_no", op.lineNo).
			WithDetail("product_id", op.productID)
	}
	if w.TrackLots && op.lotCode == "" {
		return missingLot(op, w)
	}

	cost := types.RoundCost(*unitCost)
	key := stock.Key{ProductID: op.productID, WarehouseID: w.ID}
	b, _ := r.ledger.Get(key)

	if w.TrackLots {
		i := b.LotIndex(op.lotCode)
		if i < 0 {
			b.Lots = append(b.Lots, stock.Lot{Code: op.lotCode, ExpiryDate: copyTime(op.expiry), Quantity: types.Zero()})
			i = len(b.Lots) - 1
		}
		b.Lots[i].Quantity = b.Lots[i].Quantity.Add(op.quantity)
		if b.Lots[i].ExpiryDate == nil {
			b.Lots[i].ExpiryDate = copyTime(op.expiry)
		}
		b.Lots = dropEmptyLot(b.Lots, i)
	}

	newQty := b.Quantity.Add(op.quantity)
	newVal := types.RoundMoney(b.Valuation.Add(op.quantity.Mul(cost)))
	newAvg := types.Zero()
	if newQty.IsZero() {
		// Can only happen when receiving into negative stock.
		newVal = types.Zero()
	} else {
		newAvg = types.RoundCost(newVal.Div(newQty))
	}

	b.Quantity, b.Valuation, b.AverageCost = newQty, newVal, newAvg
	r.put(b)
	r.emit(op, w.ID, kardex.DirectionIn, cost, b)
	return nil
}

func (r *run) dispatch(op lineOp, w *warehouse.Warehouse) (dispatched, error) {
	key := stock.Key{ProductID: op.productID, WarehouseID: w.ID}
	b, _ := r.ledger.Get(key)

	if !w.CanIssueBelowZero() && op.quantity.GreaterThan(b.Available()) {
		return dispatched{}, apperror.NewInsufficientStock(
			op.productID, w.ID, op.quantity.String(), b.Available().String()).
			WithDetail("line_no", op.lineNo).
			WithDetail("warehouse_code", w.Code)
	}

	var lotExpiry *time.Time
	if w.TrackLots {
		if op.lotCode == "" {
			return dispatched{}, missingLot(op, w)
		}
		i := b.LotIndex(op.lotCode)
		if i < 0 {
			return dispatched{}, apperror.NewLotNotFound(op.productID, w.ID, op.lotCode).
				WithDetail("line_no", op.lineNo)
		}
		// Negative stock only waives the quantity check; the lot must exist.
		lot := b.Lots[i]
		if !w.AllowNegativeStock && lot.Quantity.LessThan(op.quantity) {
			return dispatched{}, apperror.NewInsufficientLotStock(
				op.productID, w.ID, op.lotCode, op.quantity.String(), lot.Quantity.String()).
				WithDetail("line_no", op.lineNo)
		}
		lotExpiry = copyTime(lot.ExpiryDate)
		b.Lots[i].Quantity = lot.Quantity.Sub(op.quantity)
		b.Lots = dropEmptyLot(b.Lots, i)
	}

	avg := b.AverageCost
	newQty := b.Quantity.Sub(op.quantity)
	if newQty.IsZero() {
		b.Valuation, b.AverageCost = types.Zero(), types.Zero()
	} else {
		b.Valuation = types.RoundMoney(b.Valuation.Sub(op.quantity.Mul(avg)))
	}
	b.Quantity = newQty

	r.put(b)
	r.emit(op, w.ID, kardex.DirectionOut, avg, b)
	return dispatched{unitCost: avg, lotExpiry: lotExpiry}, nil
}

func (r *run) put(b stock.Balance) {
	b.LastMovementRef = r.movement.Reference
	b.LastMovementAt = r.movement.Date
	r.ledger.Put(b)

	key := b.Key()
	if _, ok := r.touched[key]; !ok {
		r.touched[key] = struct{}{}
		r.order = append(r.order, key)
	}
}

func (r *run) emit(op lineOp, warehouseID id.ID, dir kardex.Direction, unitCost types.Money, b stock.Balance) {
	line := kardex.Line{
		LineID:               id.New(),
		MovementID:           r.movement.ID,
		LineNo:               op.lineNo,
		ProductID:            op.productID,
		WarehouseID:          warehouseID,
		Date:                 r.movement.Date,
		Reference:            r.movement.Reference,
		Kind:                 string(r.movement.Kind),
		Direction:            dir,
		LotCode:              op.lotCode,
		QuantityIn:           types.Zero(),
		QuantityOut:          types.Zero(),
		UnitCost:             unitCost,
		LineValue:            types.RoundMoney(op.quantity.Mul(unitCost)),
		ResultingStock:       b.Quantity,
		ResultingAverageCost: b.AverageCost,
		ResultingValuation:   b.Valuation,
	}
	if dir == kardex.DirectionIn {
		line.QuantityIn = op.quantity
	} else {
		line.QuantityOut = op.quantity
	}
	r.lines = append(r.lines, line)
}

func missingLot(op lineOp, w *warehouse.Warehouse) *apperror.AppError {
	return apperror.NewMovementValidation(apperror.CodeMissingLot,
		fmt.Sprintf("warehouse %s tracks lots; lot code is required", w.Code)).
		WithDetail("line_no", op.lineNo).
		WithDetail("product_id", op.productID).
		WithDetail("warehouse_id", w.ID)
}

// dropEmptyLot removes lots[i] when its quantity is exactly zero.
func dropEmptyLot(lots []stock.Lot, i int) []stock.Lot {
	if lots[i].Quantity.IsZero() {
		return slices.Delete(lots, i, i+1)
	}
	return lots
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
