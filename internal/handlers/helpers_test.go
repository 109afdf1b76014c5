package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/fulfillment"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/orders"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/settings"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/validation"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePlacer struct {
	mu      sync.Mutex
	calls   int
	last    validation.PlaceOrderRequest
	err     error
	panicky bool
	onPlace func()
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, req validation.PlaceOrderRequest) (*fulfillment.PlaceOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.onPlace != nil {
		f.onPlace()
	}
	if f.panicky {
		panic("orchestrator bug")
	}
	if f.err != nil {
		return nil, f.err
	}
	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return &fulfillment.PlaceOrderResponse{
		OrderID:           "ORD123456780001",
		OrderTime:         at,
		EstimatedDelivery: at.AddDate(0, 0, 7),
		OrderStatus:       orders.StatusConfirmed,
		PaymentStatus:     orders.PaymentStatusPending,
		ShiprocketStatus:  orders.SyncDisabled,
	}, nil
}

// memoryIdempotency mimics the conditional writes of the DynamoDB store.
type memoryIdempotency struct {
	mu        sync.Mutex
	records   map[string]*idempotency.IdempotencyRecord
	createErr error
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{records: map[string]*idempotency.IdempotencyRecord{}}
}

func (m *memoryIdempotency) CreateIfNotExists(ctx context.Context, key, requestHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return false, m.createErr
	}
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	m.records[key] = &idempotency.IdempotencyRecord{IdempotencyKey: key, RequestHash: requestHash, Status: idempotency.StatusInProgress}
	return true, nil
}

func (m *memoryIdempotency) Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memoryIdempotency) Reclaim(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.Status != idempotency.StatusFailed {
		return idempotency.ErrConditionFailed
	}
	rec.Status = idempotency.StatusInProgress
	return nil
}

func (m *memoryIdempotency) MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[key]
	rec.Status = idempotency.StatusDone
	rec.OrderID = orderID
	rec.ResponseBody = responseBody
	rec.ResponseStatus = responseStatus
	return nil
}

func (m *memoryIdempotency) MarkFailed(ctx context.Context, key, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[key]
	rec.Status = idempotency.StatusFailed
	rec.Note = note
	return nil
}

func (m *memoryIdempotency) status(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[key]; ok {
		return rec.Status
	}
	return ""
}

type opCall struct {
	op   string
	args any
}

type fakeOps struct {
	mu     sync.Mutex
	calls  []opCall
	result *shipping.Result
	err    error
	acct   shipping.Account
}

func (f *fakeOps) record(op string, acct shipping.Account, args any) (*shipping.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opCall{op: op, args: args})
	f.acct = acct
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &shipping.Result{Success: true, StatusCode: http.StatusOK, Data: json.RawMessage(`{"ok":true}`)}, nil
}

func (f *fakeOps) TrackAWB(ctx context.Context, acct shipping.Account, awb string) (*shipping.Result, error) {
	return f.record("TrackAWB", acct, awb)
}

func (f *fakeOps) TrackAWBs(ctx context.Context, acct shipping.Account, awbs []string) (*shipping.Result, error) {
	return f.record("TrackAWBs", acct, awbs)
}

func (f *fakeOps) CheckServiceability(ctx context.Context, acct shipping.Account, q shipping.ServiceabilityQuery) (*shipping.Result, error) {
	return f.record("CheckServiceability", acct, q)
}

func (f *fakeOps) AssignAWB(ctx context.Context, acct shipping.Account, shipmentID string, courierID int) (*shipping.Result, error) {
	return f.record("AssignAWB", acct, []any{shipmentID, courierID})
}

func (f *fakeOps) GeneratePickup(ctx context.Context, acct shipping.Account, ids []string) (*shipping.Result, error) {
	return f.record("GeneratePickup", acct, ids)
}

func (f *fakeOps) GenerateManifest(ctx context.Context, acct shipping.Account, ids []string) (*shipping.Result, error) {
	return f.record("GenerateManifest", acct, ids)
}

func (f *fakeOps) GenerateLabel(ctx context.Context, acct shipping.Account, ids []string) (*shipping.Result, error) {
	return f.record("GenerateLabel", acct, ids)
}

func (f *fakeOps) GenerateInvoice(ctx context.Context, acct shipping.Account, ids []string) (*shipping.Result, error) {
	return f.record("GenerateInvoice", acct, ids)
}

func (f *fakeOps) lastCall(t *testing.T) opCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "no shipping operation called")
	return f.calls[len(f.calls)-1]
}

type memorySettings struct {
	sh      *settings.Shipping
	loadErr error
	saved   *settings.Shipping
}

func (m *memorySettings) LoadShipping(ctx context.Context) (*settings.Shipping, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	cp := *m.sh
	return &cp, nil
}

func (m *memorySettings) SaveShipping(ctx context.Context, sh *settings.Shipping) error {
	m.saved = sh
	m.sh = sh
	return nil
}

func enabledShipping() *settings.Shipping {
	return &settings.Shipping{
		Enabled:        true,
		Email:          "ops@shop.test",
		Password:       "secret",
		PickupLocation: "Primary Warehouse",
		Token:          &shipping.PersistedToken{Value: "tok-1", ExpiresAt: time.Now().Add(time.Hour)},
	}
}

var errBoom = errors.New("boom")

func newTestRouter(placer OrderPlacer, idem IdempotencyStore, ops ShippingOps, store SettingsStore, cfg RouterConfig) *gin.Engine {
	log := zap.NewNop()
	var admin *ShippingHandler
	if ops != nil {
		admin = NewShippingHandler(ops, store, log)
	}
	return NewRouter(cfg, log, NewOrdersHandler(placer, idem, log), admin)
}

func doJSON(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
