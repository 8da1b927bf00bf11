package posting

import (
	"context"
	"fmt"
	"time"

	"kardex/internal/core/apperror"
	appctx "kardex/internal/core/context"
	"kardex/internal/core/id"
	"kardex/internal/core/tx"
	"kardex/internal/domain/audit"
	"kardex/internal/domain/catalogs/warehouse"
	"kardex/internal/domain/documents/stock_movement"
	"kardex/internal/domain/registers/kardex"
	"kardex/internal/domain/registers/stock"
	"kardex/pkg/logger"
	"kardex/pkg/numerator"
)

// AuditEntityType is the entity type written to the audit trail.
const AuditEntityType = "StockMovement"

// Locker serializes writers per balance key across processes.
type Locker interface {
	// Lock obtains all keys or none. The returned function releases them.
	Lock(ctx context.Context, keys []string) (unlock func(), err error)
}

// Numerator issues movement references.
type Numerator interface {
	GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error)
}

// Deps groups Service collaborators.
type Deps struct {
	Warehouses *warehouse.Service
	Balances   stock.Repository
	Kardex     kardex.Repository
	TxManager  tx.Manager
	Locker     Locker
	Numerator  Numerator    // Optional. Without it, references must be supplied.
	Audit      audit.Logger // Optional.
}

// Service applies movements to persisted stock: it locks the touched
// balances, runs the Engine on a fresh snapshot and writes balances, kardex
// lines and the audit entry in one transaction.
type Service struct {
	engine     *Engine
	warehouses *warehouse.Service
	balances   stock.Repository
	kardex     kardex.Repository
	txManager  tx.Manager
	locker     Locker
	numerator  Numerator
	audit      audit.Logger
}

// NewService creates a new posting service.
func NewService(engine *Engine, deps Deps) *Service {
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	return &Service{
		engine:     engine,
		warehouses: deps.Warehouses,
		balances:   deps.Balances,
		kardex:     deps.Kardex,
		txManager:  deps.TxManager,
		locker:     deps.Locker,
		numerator:  deps.Numerator,
		audit:      deps.Audit,
	}
}

// LockName returns the lock key guarding a balance.
func LockName(k stock.Key) string {
	return "stock:" + k.ProductID.String() + ":" + k.WarehouseID.String()
}

// Apply processes and persists m. On error nothing is persisted.
func (s *Service) Apply(ctx context.Context, m *stock_movement.Movement) (*Result, error) {
	if m == nil {
		return nil, apperror.NewValidation("movement is required")
	}
	prepare(m)
	ctx = appctx.WithMovement(ctx, m.ID.String(), string(m.Kind))

	keys := m.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = LockName(k)
	}

	unlock, err := s.locker.Lock(ctx, names)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		result      *Result
		assignedRef bool
	)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		registry, err := s.warehouses.LoadRegistry(ctx, m.WarehouseIDs())
		if err != nil {
			return err
		}

		current, err := s.balances.GetBalancesForUpdate(ctx, keys)
		if err != nil {
			return fmt.Errorf("lock balances: %w", err)
		}

		if m.Reference == "" && s.numerator != nil && m.Kind.IsValid() && len(m.Lines) > 0 {
			cfg := numerator.DefaultConfig(stock_movement.NumberPrefix(m.Kind))
			ref, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: stock_movement.NumeratorStrategy}, m.Date)
			if err != nil {
				return fmt.Errorf("generate reference: %w", err)
			}
			m.Reference = ref
			assignedRef = true
		}

		res, err := s.engine.Apply(m, current, registry)
		if err != nil {
			return err
		}

		touched := res.TouchedBalances()
		if err := verify(ctx, touched, registry); err != nil {
			return err
		}

		if err := s.balances.SaveBalances(ctx, touched); err != nil {
			return fmt.Errorf("save balances: %w", err)
		}
		if err := s.kardex.Append(ctx, res.Kardex); err != nil {
			return fmt.Errorf("append kardex: %w", err)
		}
		if err := s.audit.LogChange(ctx, AuditEntityType, m.ID, audit.ActionApply, map[string]any{
			"movement": m,
			"balances": touched,
			"actor":    audit.Actor(ctx),
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		result = res
		return nil
	})
	if err != nil {
		if assignedRef {
			// The sequence increment was rolled back with the transaction.
			m.Reference = ""
		}
		if apperror.IsClientError(err) {
			logger.Warn(ctx, "stock movement rejected",
				"movement_id", m.ID,
				"kind", m.Kind,
				"error", err,
			)
		}
		return nil, err
	}

	logger.Info(ctx, "stock movement applied",
		"movement_id", m.ID,
		"reference", m.Reference,
		"kind", m.Kind,
		"lines", len(m.Lines),
		"kardex_lines", len(result.Kardex),
	)
	return result, nil
}

// Preview runs the engine against current balances without locking or
// persisting anything.
func (s *Service) Preview(ctx context.Context, m *stock_movement.Movement) (*Result, error) {
	if m == nil {
		return nil, apperror.NewValidation("movement is required")
	}
	prepare(m)

	registry, err := s.warehouses.LoadRegistry(ctx, m.WarehouseIDs())
	if err != nil {
		return nil, err
	}

	keys := m.Keys()
	current := make([]stock.Balance, 0, len(keys))
	for _, k := range keys {
		b, err := s.balances.GetBalance(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("get balance %s: %w", k, err)
		}
		current = append(current, b)
	}

	return s.engine.Apply(m, current, registry)
}

func prepare(m *stock_movement.Movement) {
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	if m.Date.IsZero() {
		m.Date = time.Now().UTC()
	}
}

// verify re-checks balance invariants before anything is written.
func verify(ctx context.Context, balances []stock.Balance, registry *warehouse.Registry) error {
	for _, b := range balances {
		w, _ := registry.Get(b.WarehouseID)
		if err := stock.VerifyBalance(b, w.TrackLots); err != nil {
			logger.Error(ctx, "balance invariant violated", "key", b.Key().String(), "error", err)
			return apperror.NewInternal(err)
		}
	}
	return nil
}
