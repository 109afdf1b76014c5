package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/imrishuroy/go-fulfillment-orderflow/internal/fulfillment"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderBody = `{
	"name": "Asha Verma",
	"email": "asha@example.com",
	"phone": "9876543210",
	"address": "12 MG Road",
	"city": "Pune",
	"state": "Maharashtra",
	"pincode": "411001",
	"plan": "Family Pack",
	"amount": 499,
	"paymentMethod": "cash_on_delivery"
}`

func TestPlaceOrder_Success(t *testing.T) {
	placer := &fakePlacer{}
	r := newTestRouter(placer, nil, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodPost, "/api/orders", orderBody, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "ORD123456780001", data["orderId"])
	assert.Equal(t, "confirmed", data["orderStatus"])
	assert.Equal(t, "disabled", data["shiprocketStatus"])
	assert.Contains(t, data, "orderTime")
	assert.Contains(t, data, "estimatedDelivery")

	assert.Equal(t, "Asha Verma", placer.last.Name)
	assert.Equal(t, "499", placer.last.Amount.String())
}

func TestPlaceOrder_ValidationFailure(t *testing.T) {
	placer := &fakePlacer{err: &fulfillment.ValidationError{Fields: map[string]string{"pincode": "must be 6 characters"}}}
	r := newTestRouter(placer, nil, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodPost, "/api/orders", orderBody, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "validation failed", body["message"])
	assert.Equal(t, map[string]any{"pincode": "must be 6 characters"}, body["error"])
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	placer := &fakePlacer{}
	r := newTestRouter(placer, nil, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodPost, "/api/orders", `{"name": `, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
	assert.Equal(t, 0, placer.calls)
}

func TestPlaceOrder_InternalErrorHidesDetail(t *testing.T) {
	r := newTestRouter(&fakePlacer{err: errBoom}, nil, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodPost, "/api/orders", orderBody, nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestPlaceOrder_PanicIsRecovered(t *testing.T) {
	r := newTestRouter(&fakePlacer{panicky: true}, nil, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodPost, "/api/orders", orderBody, nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestPlaceOrder_IdempotentReplay(t *testing.T) {
	placer := &fakePlacer{}
	idem := newMemoryIdempotency()
	r := newTestRouter(placer, idem, nil, nil, RouterConfig{})
	headers := map[string]string{idempotencyKeyHeader: "checkout-1"}

	first := doJSON(r, http.MethodPost, "/api/orders", orderBody, headers)
	second := doJSON(r, http.MethodPost, "/api/orders", orderBody, headers)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Empty(t, first.Header().Get(replayedHeader))
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.Equal(t, 1, placer.calls)
	assert.Equal(t, idempotency.StatusDone, idem.status("checkout-1"))
}

func TestPlaceOrder_IdempotencyKeyReusedWithDifferentBody(t *testing.T) {
	placer := &fakePlacer{}
	r := newTestRouter(placer, newMemoryIdempotency(), nil, nil, RouterConfig{})
	headers := map[string]string{idempotencyKeyHeader: "checkout-1"}

	doJSON(r, http.MethodPost, "/api/orders", orderBody, headers)
	other := strings.Replace(orderBody, `"amount": 499`, `"amount": 999`, 1)
	w := doJSON(r, http.MethodPost, "/api/orders", other, headers)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 1, placer.calls)
}

func TestPlaceOrder_IdempotencyInProgress(t *testing.T) {
	placer := &fakePlacer{}
	idem := newMemoryIdempotency()
	_, err := idem.CreateIfNotExists(t.Context(), "checkout-1", idempotency.HashRequest([]byte(orderBody)))
	require.NoError(t, err)
	r := newTestRouter(placer, idem, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodPost, "/api/orders", orderBody, map[string]string{idempotencyKeyHeader: "checkout-1"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, placer.calls)
}

func TestPlaceOrder_FailedAttemptCanBeRetried(t *testing.T) {
	placer := &fakePlacer{err: errBoom}
	idem := newMemoryIdempotency()
	r := newTestRouter(placer, idem, nil, nil, RouterConfig{})
	headers := map[string]string{idempotencyKeyHeader: "checkout-1"}

	first := doJSON(r, http.MethodPost, "/api/orders", orderBody, headers)
	require.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, idempotency.StatusFailed, idem.status("checkout-1"))

	placer.err = nil
	second := doJSON(r, http.MethodPost, "/api/orders", orderBody, headers)

	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 2, placer.calls)
	assert.Equal(t, idempotency.StatusDone, idem.status("checkout-1"))
}

func TestPlaceOrder_IdempotencyStoreDownStillServes(t *testing.T) {
	placer := &fakePlacer{}
	idem := newMemoryIdempotency()
	idem.createErr = errBoom
	r := newTestRouter(placer, idem, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodPost, "/api/orders", orderBody, map[string]string{idempotencyKeyHeader: "checkout-1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, placer.calls)
}

func TestPlaceOrder_OutcomeRecordedAfterClientDisconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	placer := &fakePlacer{onPlace: cancel}
	idem := newMemoryIdempotency()
	r := newTestRouter(placer, idem, nil, nil, RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(orderBody)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyKeyHeader, "checkout-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, placer.calls)
	assert.Equal(t, idempotency.StatusDone, idem.status("checkout-1"))

	replay := doJSON(r, http.MethodPost, "/api/orders", orderBody, map[string]string{idempotencyKeyHeader: "checkout-1"})
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(replayedHeader))
	assert.Equal(t, 1, placer.calls)
}
