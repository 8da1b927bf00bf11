package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kardex/internal/core/apperror"
	appctx "kardex/internal/core/context"
	"kardex/internal/core/id"
	"kardex/internal/core/types"
	"kardex/internal/domain/audit"
	"kardex/internal/domain/documents/stock_movement"
	"kardex/internal/domain/posting"
	"kardex/internal/domain/registers/kardex"
	"kardex/internal/domain/registers/stock"
	"kardex/internal/infrastructure/http/v1/handlers"
	"kardex/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeMovements books every receipt line into a fresh balance.
type fakeMovements struct {
	err     error
	panics  bool
	applied []*stock_movement.Movement
}

func (f *fakeMovements) result(m *stock_movement.Movement) (*posting.Result, error) {
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	res := &posting.Result{}
	for _, l := range m.Lines {
		key := stock.Key{ProductID: l.ProductID, WarehouseID: *m.DestinationWarehouseID}
		b := stock.NewBalance(key)
		b.Quantity = l.Quantity
		res.Balances = append(res.Balances, b)
		res.Touched = append(res.Touched, key)
	}
	return res, nil
}

func (f *fakeMovements) Apply(_ context.Context, m *stock_movement.Movement) (*posting.Result, error) {
	f.applied = append(f.applied, m)
	return f.result(m)
}

func (f *fakeMovements) Preview(_ context.Context, m *stock_movement.Movement) (*posting.Result, error) {
	return f.result(m)
}

type fakeEnqueuer struct {
	queued []*stock_movement.Movement
}

func (f *fakeEnqueuer) EnqueueApplyMovement(_ context.Context, m *stock_movement.Movement) (string, string, error) {
	f.queued = append(f.queued, m)
	return m.ID.String(), "movements", nil
}

type fakeStock struct {
	warehouseCalls int
	productCalls   int
	keys           []stock.Key
}

func (f *fakeStock) GetBalance(_ context.Context, key stock.Key) (stock.Balance, error) {
	f.keys = append(f.keys, key)
	return stock.NewBalance(key), nil
}

func (f *fakeStock) GetWarehouseStock(_ context.Context, warehouseID id.ID) ([]stock.Balance, error) {
	f.warehouseCalls++
	return []stock.Balance{stock.NewBalance(stock.Key{ProductID: id.New(), WarehouseID: warehouseID})}, nil
}

func (f *fakeStock) GetProductBalances(_ context.Context, productID id.ID) ([]stock.Balance, error) {
	f.productCalls++
	return nil, nil
}

func (f *fakeStock) GetProductAvailability(_ context.Context, _ id.ID) (types.Quantity, error) {
	return types.MustQuantity("7.5"), nil
}

type fakeKardex struct {
	filter kardex.Filter
}

func (f *fakeKardex) History(_ context.Context, filter kardex.Filter) ([]kardex.Line, error) {
	f.filter = filter
	return []kardex.Line{{MovementID: id.New(), Direction: kardex.DirectionIn, QuantityIn: types.MustQuantity("2")}}, nil
}

type fakeAudit struct {
	entityType string
	entityID   id.ID
	limit      int
}

func (f *fakeAudit) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Record, error) {
	f.entityType, f.entityID, f.limit = entityType, entityID, limit
	return []audit.Record{{ID: id.New(), Action: audit.ActionApply, Changes: json.RawMessage(`{"actor":"system"}`)}}, nil
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	switch token {
	case "writer":
		return &appctx.UserContext{UserID: "u-writer", Roles: []string{"stock:write"}}, nil
	case "reader":
		return &appctx.UserContext{UserID: "u-reader", Roles: []string{"stock:read"}}, nil
	}
	return nil, errors.New("bad token")
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router    *gin.Engine
	movements *fakeMovements
	enqueuer  *fakeEnqueuer
	stock     *fakeStock
	kardex    *fakeKardex
	audit     *fakeAudit
}

func newTestEnv(t *testing.T, mutate func(*RouterConfig)) *testEnv {
	t.Helper()
	env := &testEnv{
		movements: &fakeMovements{},
		enqueuer:  &fakeEnqueuer{},
		stock:     &fakeStock{},
		kardex:    &fakeKardex{},
		audit:     &fakeAudit{},
	}
	cfg := RouterConfig{
		Logger:          logger.NewNop(),
		MovementService: env.movements,
		Enqueuer:        env.enqueuer,
		StockService:    env.stock,
		KardexService:   env.kardex,
		AuditReader:     env.audit,
		HealthChecks:    map[string]handlers.Pinger{"database": pinger{}},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	env.router = NewRouter(cfg)
	return env
}

func (e *testEnv) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func receiptBody() map[string]any {
	return map[string]any{
		"kind":                   "RECEIPT",
		"destinationWarehouseId": id.New().String(),
		"lines": []map[string]any{
			{"productId": id.New().String(), "quantity": 5, "unitCost": "10.25"},
		},
	}
}

func TestMovements_Apply(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/movements", receiptBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["applied"])
	assert.Equal(t, "RECEIPT", body["kind"])
	balances := body["balances"].([]any)
	require.Len(t, balances, 1)
	assert.Equal(t, "5", balances[0].(map[string]any)["quantity"])

	require.Len(t, env.movements.applied, 1)
	m := env.movements.applied[0]
	assert.Equal(t, m.ID.String(), body["movementId"])
	assert.True(t, types.MustMoney("10.25").Equal(*m.Lines[0].UnitCost))
}

func TestMovements_Preview(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/movements/preview", receiptBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["applied"])
	assert.Empty(t, env.movements.applied)
}

func TestMovements_Async(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(http.MethodPost, "/api/v1/movements?async=true", receiptBody())
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		body := decode(t, w)
		require.Len(t, env.enqueuer.queued, 1)
		assert.Equal(t, env.enqueuer.queued[0].ID.String(), body["taskId"])
		assert.Equal(t, "movements", body["queue"])
		assert.Empty(t, env.movements.applied)
	})

	t.Run("no queue configured", func(t *testing.T) {
		env := newTestEnv(t, func(cfg *RouterConfig) { cfg.Enqueuer = nil })
		w := env.do(http.MethodPost, "/api/v1/movements?async=true", receiptBody())
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperror.CodeValidation, decode(t, w)["code"])
	})

	t.Run("malformed flag", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(http.MethodPost, "/api/v1/movements?async=maybe", receiptBody())
		require.Equal(t, http.StatusBadRequest, w.Code)

		body := decode(t, w)
		details, _ := body["details"].(map[string]any)
		assert.Equal(t, "async", details["field"])
		assert.Empty(t, env.enqueuer.queued)
		assert.Empty(t, env.movements.applied)
	})
}

func TestMovements_Errors(t *testing.T) {
	t.Run("engine rejection keeps code and details", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.movements.err = apperror.NewInsufficientStock("p-1", "w-1", "5", "2")

		w := env.do(http.MethodPost, "/api/v1/movements", receiptBody())
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decode(t, w)
		assert.Equal(t, apperror.CodeInsufficientStock, body["code"])
		assert.NotEmpty(t, body["details"])
	})

	t.Run("unknown error is hidden", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.movements.err = errors.New("pq: connection reset")

		w := env.do(http.MethodPost, "/api/v1/movements", receiptBody(), "X-Request-ID", "req-42")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, apperror.CodeInternal, body["code"])
		assert.NotContains(t, w.Body.String(), "connection reset")
		assert.Equal(t, "req-42", body["details"].(map[string]any)["request_id"])
	})

	t.Run("panic is recovered", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.movements.panics = true

		w := env.do(http.MethodPost, "/api/v1/movements", receiptBody())
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, apperror.CodeInternal, decode(t, w)["code"])
	})

	t.Run("malformed product id names the line", func(t *testing.T) {
		env := newTestEnv(t, nil)
		body := receiptBody()
		body["lines"] = []map[string]any{{"productId": "nope", "quantity": 1}}

		w := env.do(http.MethodPost, "/api/v1/movements", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		details := decode(t, w)["details"].(map[string]any)
		assert.Equal(t, float64(1), details["line_no"])
		assert.Equal(t, "productId", details["field"])
		assert.Empty(t, env.movements.applied)
	})

	t.Run("invalid json", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(http.MethodPost, "/api/v1/movements", "not an object")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStock_Balances(t *testing.T) {
	env := newTestEnv(t, nil)
	warehouseID := id.New()
	productID := id.New()

	w := env.do(http.MethodGet, "/api/v1/stock/balances?warehouseId="+warehouseID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["count"])
	assert.Equal(t, 1, env.stock.warehouseCalls)

	w = env.do(http.MethodGet, "/api/v1/stock/balances?productId="+productID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{}, body["items"])
	assert.Equal(t, 1, env.stock.productCalls)

	w = env.do(http.MethodGet, "/api/v1/stock/balances?productId="+productID.String()+"&warehouseId="+warehouseID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.stock.keys, 1)
	assert.Equal(t, stock.Key{ProductID: productID, WarehouseID: warehouseID}, env.stock.keys[0])

	w = env.do(http.MethodGet, "/api/v1/stock/balances", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/stock/balances?warehouseId=xyz", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStock_Availability(t *testing.T) {
	env := newTestEnv(t, nil)
	productID := id.New()

	w := env.do(http.MethodGet, "/api/v1/stock/availability/"+productID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, productID.String(), body["productId"])
	assert.Equal(t, "7.5", body["available"])
}

func TestKardex_History(t *testing.T) {
	env := newTestEnv(t, nil)
	productID := id.New()

	w := env.do(http.MethodGet, "/api/v1/kardex?productId="+productID.String()+"&fromDate=2024-01-01T00:00:00Z&limit=20", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "IN", items[0].(map[string]any)["direction"])

	require.NotNil(t, env.kardex.filter.ProductID)
	assert.Equal(t, productID, *env.kardex.filter.ProductID)
	require.NotNil(t, env.kardex.filter.FromDate)
	assert.Equal(t, 2024, env.kardex.filter.FromDate.Year())
	assert.Equal(t, 20, env.kardex.filter.Limit)

	w = env.do(http.MethodGet, "/api/v1/kardex?productId="+productID.String()+"&fromDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/kardex?productId="+productID.String()+"&limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, func(cfg *RouterConfig) {
		cfg.JWTValidator = fakeValidator{}
		cfg.WriteRoles = []string{"stock:write"}
	})

	w := env.do(http.MethodPost, "/api/v1/movements", receiptBody())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/v1/movements", receiptBody(), "Authorization", "Token writer")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/v1/movements", receiptBody(), "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/v1/movements", receiptBody(), "Authorization", "Bearer reader")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeForbidden, decode(t, w)["code"])

	w = env.do(http.MethodPost, "/api/v1/movements/preview", receiptBody(), "Authorization", "Bearer reader")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/movements", receiptBody(), "Authorization", "Bearer writer")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMovementAudit(t *testing.T) {
	env := newTestEnv(t, nil)
	movementID := id.New()

	w := env.do(http.MethodGet, "/api/v1/movements/"+movementID.String()+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, posting.AuditEntityType, env.audit.entityType)
	assert.Equal(t, movementID, env.audit.entityID)
	assert.Equal(t, 20, env.audit.limit)

	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])
	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "apply", item["action"])
	assert.Equal(t, "system", item["changes"].(map[string]any)["actor"])

	w = env.do(http.MethodGet, "/api/v1/movements/"+movementID.String()+"/audit?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, env.audit.limit)

	w = env.do(http.MethodGet, "/api/v1/movements/"+movementID.String()+"/audit?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/movements/nope/audit", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", decode(t, w)["details"].(map[string]any)["field"])
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["checks"].(map[string]any)["database"])

	env = newTestEnv(t, func(cfg *RouterConfig) {
		cfg.HealthChecks["redis"] = pinger{err: errors.New("dial tcp: refused")}
	})
	w = env.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "healthy", body["checks"].(map[string]any)["database"])
}

func TestTrace_EchoesRequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/health/live", nil, "X-Request-ID", "abc")
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = env.do(http.MethodGet, "/health/live", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}
