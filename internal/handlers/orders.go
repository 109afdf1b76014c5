package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/fulfillment"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/logger"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/validation"
	"go.uber.org/zap"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxOrderBodyBytes    = 64 << 10
	jsonContentType      = "application/json; charset=utf-8"
	rememberTimeout      = 5 * time.Second
)

// OrderPlacer runs the order pipeline. *fulfillment.Orchestrator implements it.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req validation.PlaceOrderRequest) (*fulfillment.PlaceOrderResponse, error)
}

// IdempotencyStore remembers responses per Idempotency-Key. *idempotency.Store implements it.
type IdempotencyStore interface {
	CreateIfNotExists(ctx context.Context, key, requestHash string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	Reclaim(ctx context.Context, key string) error
	MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// OrdersHandler serves the checkout endpoint.
type OrdersHandler struct {
	orders OrderPlacer
	idem   IdempotencyStore
	log    *zap.Logger
}

// NewOrdersHandler returns an OrdersHandler. idem may be nil, in which case
// the Idempotency-Key header is ignored.
func NewOrdersHandler(orders OrderPlacer, idem IdempotencyStore, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, idem: idem, log: log}
}

func (h *OrdersHandler) Register(r gin.IRouter) {
	r.POST("/api/orders", h.PlaceOrder)
}

// PlaceOrder handles POST /api/orders.
func (h *OrdersHandler) PlaceOrder(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c, h.log)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxOrderBodyBytes))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var req validation.PlaceOrderRequest
	if err := validation.BindJSON(c, &req); err != nil {
		return
	}

	key := strings.TrimSpace(c.GetHeader(idempotencyKeyHeader))
	guarded := false
	if key != "" && h.idem != nil {
		var handled bool
		guarded, handled = h.claim(c, log, key, idempotency.HashRequest(raw))
		if handled {
			return
		}
	}

	status, body, orderID := h.place(ctx, log, req)

	if guarded {
		h.remember(ctx, log, key, orderID, status, body)
	}
	c.Data(status, jsonContentType, body)
}

func (h *OrdersHandler) place(ctx context.Context, log *zap.Logger, req validation.PlaceOrderRequest) (status int, body []byte, orderID string) {
	resp, err := h.orders.PlaceOrder(ctx, req)

	var verr *fulfillment.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, encode(envelope{Message: "validation failed", Error: verr.Fields}), ""
	case err != nil:
		log.Error("place order failed", zap.Error(err))
		return http.StatusInternalServerError, encode(envelope{Message: "could not place order", Error: "internal error"}), ""
	}
	return http.StatusOK, encode(envelope{Success: true, Message: "Order placed successfully", Data: resp}), resp.OrderID
}

// claim reserves key for this request. handled means a response has already
// been written; guarded means the outcome must be recorded under key.
func (h *OrdersHandler) claim(c *gin.Context, log *zap.Logger, key, hash string) (guarded, handled bool) {
	ctx := c.Request.Context()
	log = log.With(zap.String("idempotency_key", key))

	created, err := h.idem.CreateIfNotExists(ctx, key, hash)
	if err != nil {
		log.Warn("idempotency store unavailable, processing unguarded", zap.Error(err))
		return false, false
	}
	if created {
		return true, false
	}

	rec, err := h.idem.Get(ctx, key)
	if err != nil || rec == nil {
		log.Warn("idempotency record unreadable, processing unguarded", zap.Error(err))
		return false, false
	}
	if rec.RequestHash != "" && rec.RequestHash != hash {
		fail(c, http.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request", nil)
		return false, true
	}

	switch rec.Status {
	case idempotency.StatusDone:
		c.Header(replayedHeader, "true")
		c.Data(rec.ResponseStatus, jsonContentType, []byte(rec.ResponseBody))
		return false, true
	case idempotency.StatusFailed:
		err := h.idem.Reclaim(ctx, key)
		if err == nil {
			return true, false
		}
		if !errors.Is(err, idempotency.ErrConditionFailed) {
			log.Warn("idempotency reclaim failed, processing unguarded", zap.Error(err))
			return false, false
		}
	}
	fail(c, http.StatusConflict, "a request with this Idempotency-Key is already in progress", nil)
	return false, true
}

// remember stores the response for replay. Server errors are marked failed so
// the client may retry with the same key. It still runs after the client has gone.
func (h *OrdersHandler) remember(ctx context.Context, log *zap.Logger, key, orderID string, status int, body []byte) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rememberTimeout)
	defer cancel()

	var err error
	if status >= http.StatusInternalServerError {
		err = h.idem.MarkFailed(ctx, key, fmt.Sprintf("status %d", status))
	} else {
		err = h.idem.MarkDone(ctx, key, orderID, string(body), status)
	}
	if err != nil {
		log.Warn("idempotency record not updated", zap.String("idempotency_key", key), zap.Error(err))
	}
}
