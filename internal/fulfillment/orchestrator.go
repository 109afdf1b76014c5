package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/notify"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/orders"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/validation"
	"go.uber.org/zap"
)

const (
	defaultQuantity     = 1
	defaultDeliveryDays = 7

	defaultPersistTimeout = 10 * time.Second
	defaultSyncTimeout    = 90 * time.Second
	defaultTaskTimeout    = 15 * time.Second

	reasonSettingsUnavailable = "settings_unavailable"
	reasonFormatFailed        = "payload_invalid"
)

// Deps are the collaborators of an Orchestrator. Metrics may be nil.
type Deps struct {
	IDs      IDGenerator
	Store    OrderSaver
	Settings SettingsLoader
	Gateway  Gateway
	Customer notify.NotificationChannel
	Admin    Escalator
	Metrics  Metrics
	Log      *zap.Logger
}

// Options tune the pipeline.
type Options struct {
	// NotifyOnSync sends a normal-priority escalation when an order reaches the provider.
	NotifyOnSync bool
	// DetachSideEffects runs notifications and metrics after the response is built.
	DetachSideEffects bool
	// PersistTimeout bounds each save, SyncTimeout the whole shipping sync and
	// TaskTimeout each side effect. Zero selects the default.
	PersistTimeout time.Duration
	SyncTimeout    time.Duration
	TaskTimeout    time.Duration
}

// Orchestrator runs the order pipeline: create, persist, sync shipping,
// notify the customer, notify the admin. Once an order is accepted no
// downstream failure reaches the caller.
type Orchestrator struct {
	validate *validatorv10.Validate
	deps     Deps
	opts     Options
	tasks    *taskRunner
	log      *zap.Logger
	nowFunc  func() time.Time
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("fulfillment")
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = defaultSyncTimeout
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}
	return &Orchestrator{
		validate: validation.New(),
		deps:     deps,
		opts:     opts,
		tasks:    &taskRunner{detach: opts.DetachSideEffects, timeout: opts.TaskTimeout, log: log},
		log:      log,
		nowFunc:  time.Now,
	}
}

// Wait blocks until detached side effects have finished.
func (o *Orchestrator) Wait() {
	o.tasks.wait()
}

// PlaceOrder validates req and runs it through the pipeline. The only errors
// returned are a *ValidationError, or the context error when ctx is already
// done before the order is accepted. Once accepted, the order is carried
// through every step even if ctx is cancelled; each step has its own timeout.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req validation.PlaceOrderRequest) (*PlaceOrderResponse, error) {
	if err := o.validate.StructCtx(ctx, req); err != nil {
		return nil, &ValidationError{Fields: validation.FieldErrors(err)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	order := o.newOrder(req)
	log := o.log.With(zap.String("order_id", order.OrderID))
	log.Info("order accepted",
		zap.String("plan", order.Plan),
		zap.String("payment_method", string(order.PaymentMethod)),
	)

	o.persist(ctx, order)

	escalation := o.syncShipping(ctx, order)
	note := "shipping sync: " + string(order.SyncState())
	order.Transition(orders.StatusConfirmed, note, o.nowFunc())
	o.persist(ctx, order)

	log.Info("order confirmed", zap.String("sync_state", string(order.SyncState())))

	snapshot := *order
	side := []task{
		{name: "customer_confirmation", fn: func(ctx context.Context) error {
			return o.deps.Customer.SendOrderConfirmation(ctx, &snapshot)
		}},
	}
	if escalation != nil {
		e := *escalation
		side = append(side, task{name: "admin_escalation", fn: func(ctx context.Context) error {
			return o.deps.Admin.Notify(ctx, e).Err
		}})
	}
	if o.deps.Metrics != nil {
		state := string(order.SyncState())
		side = append(side, task{name: "sync_metric", fn: func(ctx context.Context) error {
			return o.deps.Metrics.RecordSync(ctx, state)
		}})
	}
	o.tasks.run(ctx, order.OrderID, side...)

	return newResponse(order), nil
}

func (o *Orchestrator) newOrder(req validation.PlaceOrderRequest) *orders.Order {
	now := o.nowFunc()
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = defaultQuantity
	}
	days := req.DeliveryDays
	if days <= 0 {
		days = defaultDeliveryDays
	}

	order := &orders.Order{
		OrderID: o.deps.IDs.Next(),
		Customer: orders.Customer{
			Name:  strings.TrimSpace(req.Name),
			Email: strings.TrimSpace(req.Email),
			Phone: strings.TrimSpace(req.Phone),
		},
		Address: orders.Address{
			Street:  strings.TrimSpace(req.Address),
			City:    strings.TrimSpace(req.City),
			State:   strings.TrimSpace(req.State),
			Pincode: strings.TrimSpace(req.Pincode),
		},
		Plan:              strings.TrimSpace(req.Plan),
		Amount:            req.Amount,
		Quantity:          quantity,
		PaymentMethod:     orders.PaymentMethod(req.PaymentMethod),
		PaymentStatus:     orders.PaymentStatusPending,
		CreatedAt:         now,
		EstimatedDelivery: now.AddDate(0, 0, days),
	}
	order.Transition(orders.StatusPending, "order received", now)
	return order
}

// persist never fails the pipeline; the in-memory order carries on regardless.
func (o *Orchestrator) persist(ctx context.Context, order *orders.Order) {
	saveCtx, cancel := context.WithTimeout(ctx, o.opts.PersistTimeout)
	report, err := o.deps.Store.Save(saveCtx, order)
	cancel()

	sink := report.Sink
	if err != nil {
		sink = "none"
		o.log.Error("order persistence failed",
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
	}
	if o.deps.Metrics != nil {
		metricCtx, cancel := context.WithTimeout(ctx, o.opts.TaskTimeout)
		defer cancel()
		if err := o.deps.Metrics.RecordPersistence(metricCtx, sink); err != nil {
			o.log.Warn("persistence metric failed", zap.String("order_id", order.OrderID), zap.Error(err))
		}
	}
}

// syncShipping records the outcome on order and returns the escalation to
// send, if any. Errors and panics from the gateway become system_error.
func (o *Orchestrator) syncShipping(ctx context.Context, order *orders.Order) (escalation *notify.Escalation) {
	defer func() {
		if rec := recover(); rec != nil {
			escalation = o.systemError(order, fmt.Errorf("panic during shipping sync: %v", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.opts.SyncTimeout)
	defer cancel()

	log := o.log.With(zap.String("order_id", order.OrderID))
	attempted := o.nowFunc()

	cfg, err := o.deps.Settings.LoadShipping(ctx)
	if err != nil {
		log.Error("shipping settings unavailable", zap.Error(err))
		order.Shipping = &orders.SyncRecord{
			State:       orders.SyncError,
			Reason:      reasonSettingsUnavailable,
			Error:       err.Error(),
			AttemptedAt: attempted,
		}
		order.NeedsManualSync = true
		return escalate(notify.SyncFailure(order))
	}

	if !cfg.Enabled {
		order.Shipping = &orders.SyncRecord{State: orders.SyncDisabled, AttemptedAt: attempted}
		log.Info("shipping sync disabled")
		return nil
	}
	acct := cfg.Account()
	if !acct.Credentials.Complete() {
		order.Shipping = &orders.SyncRecord{
			State:       orders.SyncCredentialsMissing,
			Reason:      "shipping enabled without email or password",
			AttemptedAt: attempted,
		}
		order.NeedsManualSync = true
		log.Warn("shipping credentials missing")
		return nil
	}

	payload, err := shipping.FormatOrder(order, cfg.FormatOptions())
	if err != nil {
		log.Error("shipping payload invalid", zap.Error(err))
		order.Shipping = &orders.SyncRecord{
			State:       orders.SyncFailed,
			Reason:      reasonFormatFailed,
			Error:       err.Error(),
			AttemptedAt: attempted,
		}
		order.NeedsManualSync = true
		return escalate(notify.SyncFailure(order))
	}

	res, err := o.deps.Gateway.CreateOrder(ctx, acct, payload)
	if err == nil && res == nil {
		err = errors.New("shipping gateway returned no result")
	}
	if err != nil {
		return o.systemError(order, err)
	}

	if !res.Success {
		log.Warn("shipping sync failed",
			zap.String("kind", string(res.Kind)),
			zap.Int("status_code", res.StatusCode),
			zap.String("error", res.Error),
		)
		order.Shipping = &orders.SyncRecord{
			State:       orders.SyncFailed,
			Kind:        string(res.Kind),
			Error:       res.Error,
			Details:     res.Details,
			AttemptedAt: attempted,
		}
		order.NeedsManualSync = true
		return escalate(notify.SyncFailure(order))
	}

	order.Shipping = &orders.SyncRecord{
		State:           orders.SyncSynchronized,
		ExternalOrderID: res.OrderID,
		ShipmentID:      res.ShipmentID,
		AttemptedAt:     attempted,
	}
	log.Info("shipping sync succeeded",
		zap.String("external_order_id", res.OrderID),
		zap.String("shipment_id", res.ShipmentID),
	)
	if o.opts.NotifyOnSync {
		return escalate(notify.SyncSuccess(order))
	}
	return nil
}

func (o *Orchestrator) systemError(order *orders.Order, err error) *notify.Escalation {
	o.log.Error("shipping sync system error", zap.String("order_id", order.OrderID), zap.Error(err))
	order.Shipping = &orders.SyncRecord{
		State:       orders.SyncSystemError,
		Error:       err.Error(),
		AttemptedAt: o.nowFunc(),
	}
	order.NeedsManualSync = true
	return escalate(notify.SystemError(order, err))
}

func escalate(e notify.Escalation) *notify.Escalation { return &e }

func newResponse(order *orders.Order) *PlaceOrderResponse {
	resp := &PlaceOrderResponse{
		OrderID:           order.OrderID,
		OrderTime:         order.CreatedAt,
		EstimatedDelivery: order.EstimatedDelivery,
		OrderStatus:       order.OrderStatus,
		PaymentStatus:     order.PaymentStatus,
		ShiprocketStatus:  order.SyncState(),
		Order:             order,
	}
	if rec := order.Shipping; rec != nil {
		resp.ShiprocketOrderID = rec.ExternalOrderID
		resp.ShipmentID = rec.ShipmentID
	}
	return resp
}
