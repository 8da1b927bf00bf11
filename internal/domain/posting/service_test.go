package posting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/tx"
	"kardex/internal/domain/audit"
	"kardex/internal/domain/catalogs/warehouse"
	"kardex/internal/domain/documents/stock_movement"
	"kardex/internal/domain/registers/kardex"
	"kardex/internal/domain/registers/stock"
	"kardex/pkg/numerator"
)

type memWarehouses struct {
	items map[id.ID]*warehouse.Warehouse
}

func (r *memWarehouses) GetByIDs(ctx context.Context, ids []id.ID) ([]*warehouse.Warehouse, error) {
	var out []*warehouse.Warehouse
	for _, wid := range ids {
		if w, ok := r.items[wid]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

// memBalances mimics the optimistic version check of the SQL repository.
type memBalances struct {
	mu    sync.Mutex
	rows  map[stock.Key]stock.Balance
	saves int
}

func newMemBalances() *memBalances {
	return &memBalances{rows: make(map[stock.Key]stock.Balance)}
}

func (r *memBalances) GetBalancesForUpdate(ctx context.Context, keys []stock.Key) ([]stock.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.Balance
	for _, k := range keys {
		if b, ok := r.rows[k]; ok {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (r *memBalances) SaveBalances(ctx context.Context, balances []stock.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range balances {
		if r.rows[b.Key()].Version != b.Version {
			return apperror.NewConcurrentModification("stock_balance", b.Key().String())
		}
	}
	for _, b := range balances {
		b.Version++
		r.rows[b.Key()] = b.Clone()
	}
	r.saves++
	return nil
}

func (r *memBalances) GetBalance(ctx context.Context, key stock.Key) (stock.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.rows[key]; ok {
		return b.Clone(), nil
	}
	return stock.NewBalance(key), nil
}

func (r *memBalances) GetBalancesByWarehouse(ctx context.Context, warehouseID id.ID, filter stock.BalanceFilter) ([]stock.Balance, error) {
	return nil, nil
}

func (r *memBalances) GetBalancesByProduct(ctx context.Context, productID id.ID) ([]stock.Balance, error) {
	return nil, nil
}

type memKardex struct {
	lines []kardex.Line
	err   error
}

func (r *memKardex) Append(ctx context.Context, lines []kardex.Line) error {
	if r.err != nil {
		return r.err
	}
	r.lines = append(r.lines, lines...)
	return nil
}

func (r *memKardex) History(ctx context.Context, filter kardex.Filter) ([]kardex.Line, error) {
	return r.lines, nil
}

// rollbackManager discards staged writes when fn fails.
type rollbackManager struct {
	balances *memBalances
	kardex   *memKardex
}

func (m *rollbackManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.balances.mu.Lock()
	snapshot := make(map[stock.Key]stock.Balance, len(m.balances.rows))
	for k, v := range m.balances.rows {
		snapshot[k] = v
	}
	m.balances.mu.Unlock()
	lines := len(m.kardex.lines)

	if err := fn(ctx); err != nil {
		m.balances.rows = snapshot
		m.kardex.lines = m.kardex.lines[:lines]
		return err
	}
	return nil
}

var _ tx.Manager = (*rollbackManager)(nil)

type recordingLocker struct {
	locked   [][]string
	released int
	err      error
}

func (l *recordingLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked = append(l.locked, keys)
	return func() { l.released++ }, nil
}

type sequenceNumerator struct {
	next int
	cfgs []numerator.Config
}

func (n *sequenceNumerator) GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error) {
	n.next++
	n.cfgs = append(n.cfgs, cfg)
	return fmt.Sprintf("%s-%s-%05d", cfg.Prefix, period.Format("2006"), n.next), nil
}

type recordingAudit struct {
	entries []audit.Action
}

func (a *recordingAudit) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	a.entries = append(a.entries, action)
	return nil
}

type serviceFixture struct {
	*fixture
	balances *memBalances
	kardex   *memKardex
	locker   *recordingLocker
	numbers  *sequenceNumerator
	audit    *recordingAudit
	svc      *Service
}

func newServiceFixture() *serviceFixture {
	f := newFixture()
	whs := &memWarehouses{items: map[id.ID]*warehouse.Warehouse{
		f.main.ID: f.main, f.branch.ID: f.branch, f.lots.ID: f.lots, f.closed.ID: f.closed,
	}}
	sf := &serviceFixture{
		fixture:  f,
		balances: newMemBalances(),
		kardex:   &memKardex{},
		locker:   &recordingLocker{},
		numbers:  &sequenceNumerator{},
		audit:    &recordingAudit{},
	}
	sf.svc = NewService(NewEngine(), Deps{
		Warehouses: warehouse.NewService(whs),
		Balances:   sf.balances,
		Kardex:     sf.kardex,
		TxManager:  &rollbackManager{balances: sf.balances, kardex: sf.kardex},
		Locker:     sf.locker,
		Numerator:  sf.numbers,
		Audit:      sf.audit,
	})
	return sf
}

func (sf *serviceFixture) put(b stock.Balance) {
	sf.balances.rows[b.Key()] = b
}

func TestService_ApplyPersistsResult(t *testing.T) {
	sf := newServiceFixture()
	ctx := context.Background()

	mv := movement(stock_movement.KindReceipt, nil, sf.main)
	mv.Reference = ""
	mv.AddLine(sf.product, q("10"), cost("2"))

	res, err := sf.svc.Apply(ctx, mv)
	require.NoError(t, err)
	require.Len(t, res.Kardex, 1)

	assert.Equal(t, "RCV-2026-00001", mv.Reference)
	assert.Equal(t, "RCV", sf.numbers.cfgs[0].Prefix)
	assert.Equal(t, mv.Reference, res.Kardex[0].Reference)

	stored, err := sf.balances.GetBalance(ctx, stock.Key{ProductID: sf.product, WarehouseID: sf.main.ID})
	require.NoError(t, err)
	assertDecimal(t, "10", stored.Quantity)
	assertDecimal(t, "20", stored.Valuation)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, mv.Reference, stored.LastMovementRef)

	assert.Len(t, sf.kardex.lines, 1)
	assert.Equal(t, []audit.Action{audit.ActionApply}, sf.audit.entries)
	assert.Equal(t, 1, sf.locker.released)
}

func TestService_ApplyLocksSortedKeys(t *testing.T) {
	sf := newServiceFixture()
	p2 := id.New()
	sf.put(balance(sf.product, sf.main.ID, "5", "1"))
	sf.put(balance(p2, sf.main.ID, "5", "1"))

	mv := movement(stock_movement.KindTransfer, sf.main, sf.branch)
	mv.AddLine(sf.product, q("1"), nil)
	mv.AddLine(p2, q("1"), nil)

	_, err := sf.svc.Apply(context.Background(), mv)
	require.NoError(t, err)

	require.Len(t, sf.locker.locked, 1)
	names := sf.locker.locked[0]
	require.Len(t, names, 4)
	keys := mv.Keys()
	for i, k := range keys {
		assert.Equal(t, LockName(k), names[i])
	}
	assert.Equal(t, "REF-1", mv.Reference, "an existing reference is kept")
	assert.Empty(t, sf.numbers.cfgs)
}

func TestService_ApplyRejectionPersistsNothing(t *testing.T) {
	sf := newServiceFixture()
	sf.put(balance(sf.product, sf.main.ID, "2", "1"))

	mv := movement(stock_movement.KindIssue, sf.main, nil)
	mv.Reference = ""
	mv.AddLine(sf.product, q("1"), nil)
	mv.AddLine(sf.product, q("5"), nil)

	res, err := sf.svc.Apply(context.Background(), mv)
	assertCode(t, err, apperror.CodeInsufficientStock)
	assert.Nil(t, res)
	assert.Empty(t, mv.Reference, "reference released with the rolled back transaction")

	stored, _ := sf.balances.GetBalance(context.Background(), stock.Key{ProductID: sf.product, WarehouseID: sf.main.ID})
	assertDecimal(t, "2", stored.Quantity)
	assert.Zero(t, sf.balances.saves)
	assert.Empty(t, sf.kardex.lines)
	assert.Empty(t, sf.audit.entries)
	assert.Equal(t, 1, sf.locker.released)
}

func TestService_ApplyKardexFailureRollsBack(t *testing.T) {
	sf := newServiceFixture()
	sf.kardex.err = errors.New("disk full")

	mv := movement(stock_movement.KindReceipt, nil, sf.main)
	mv.AddLine(sf.product, q("3"), cost("1"))

	_, err := sf.svc.Apply(context.Background(), mv)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")

	stored, _ := sf.balances.GetBalance(context.Background(), stock.Key{ProductID: sf.product, WarehouseID: sf.main.ID})
	assert.True(t, stored.Quantity.IsZero())
}

func TestService_ApplyLockFailure(t *testing.T) {
	sf := newServiceFixture()
	sf.locker.err = apperror.NewLocked("stock:x:y")

	mv := movement(stock_movement.KindReceipt, nil, sf.main)
	mv.AddLine(sf.product, q("3"), cost("1"))

	_, err := sf.svc.Apply(context.Background(), mv)
	assertCode(t, err, apperror.CodeLocked)
	assert.Zero(t, sf.balances.saves)
}

func TestService_ApplyStaleVersion(t *testing.T) {
	sf := newServiceFixture()
	sf.put(balance(sf.product, sf.main.ID, "1", "1"))
	stale := &staleBalances{memBalances: sf.balances}
	sf.svc.balances = stale

	mv := movement(stock_movement.KindReceipt, nil, sf.main)
	mv.AddLine(sf.product, q("3"), cost("1"))

	_, err := sf.svc.Apply(context.Background(), mv)
	assert.True(t, apperror.IsConcurrentModification(err))
}

// staleBalances returns rows whose version lags behind storage.
type staleBalances struct {
	*memBalances
}

func (s *staleBalances) GetBalancesForUpdate(ctx context.Context, keys []stock.Key) ([]stock.Balance, error) {
	out, err := s.memBalances.GetBalancesForUpdate(ctx, keys)
	s.memBalances.mu.Lock()
	for k, b := range s.memBalances.rows {
		b.Version += 5
		s.memBalances.rows[k] = b
	}
	s.memBalances.mu.Unlock()
	return out, err
}

func TestService_Preview(t *testing.T) {
	sf := newServiceFixture()
	sf.put(balance(sf.product, sf.main.ID, "10", "2"))

	mv := movement(stock_movement.KindIssue, sf.main, nil)
	mv.AddLine(sf.product, q("4"), nil)

	res, err := sf.svc.Preview(context.Background(), mv)
	require.NoError(t, err)
	assertDecimal(t, "6", find(t, res, sf.product, sf.main.ID).Quantity)

	assert.Zero(t, sf.balances.saves)
	assert.Empty(t, sf.kardex.lines)
	assert.Empty(t, sf.locker.locked)

	_, err = sf.svc.Preview(context.Background(), nil)
	assertCode(t, err, apperror.CodeValidation)
}

func TestService_ApplyAssignsIdentity(t *testing.T) {
	sf := newServiceFixture()
	mv := &stock_movement.Movement{
		Kind:                   stock_movement.KindReceipt,
		State:                  stock_movement.StateApplied,
		DestinationWarehouseID: &sf.main.ID,
	}
	mv.AddLine(sf.product, q("1"), cost("1"))

	res, err := sf.svc.Apply(context.Background(), mv)
	require.NoError(t, err)
	assert.False(t, id.IsNil(mv.ID))
	assert.False(t, mv.Date.IsZero())
	assert.Equal(t, mv.ID, res.Kardex[0].MovementID)
}
