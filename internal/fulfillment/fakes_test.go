package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/imrishuroy/go-fulfillment-orderflow/internal/notify"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/orders"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/settings"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping/shippingtest"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sequenceIDs struct{ n atomic.Int64 }

func (s *sequenceIDs) Next() string {
	return fmt.Sprintf("ORD%012d", s.n.Add(1))
}

type memorySaver struct {
	mu    sync.Mutex
	saved []orders.Order
	err   error
}

func (s *memorySaver) Save(ctx context.Context, o *orders.Order) (orders.SaveReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return orders.SaveReport{}, s.err
	}
	cp := *o
	cp.StatusHistory = append([]orders.StatusEntry(nil), o.StatusHistory...)
	s.saved = append(s.saved, cp)
	return orders.SaveReport{Sink: "memory"}, nil
}

func (s *memorySaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *memorySaver) last(t *testing.T) orders.Order {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.saved, "no order saved")
	return s.saved[len(s.saved)-1]
}

type staticSettings struct {
	cfg *settings.Shipping
	err error
}

func (s staticSettings) LoadShipping(ctx context.Context) (*settings.Shipping, error) {
	return s.cfg, s.err
}

type gatewayFunc func(ctx context.Context, acct shipping.Account, payload shipping.CreateOrderPayload) (*shipping.Result, error)

func (f gatewayFunc) CreateOrder(ctx context.Context, acct shipping.Account, payload shipping.CreateOrderPayload) (*shipping.Result, error) {
	return f(ctx, acct, payload)
}

func unusedGateway(t *testing.T) Gateway {
	return gatewayFunc(func(context.Context, shipping.Account, shipping.CreateOrderPayload) (*shipping.Result, error) {
		t.Errorf("gateway must not be called")
		return nil, errors.New("unexpected call")
	})
}

type sentMessage struct {
	to, subject, body string
}

type recordingChannel struct {
	mu            sync.Mutex
	confirmations []string
	emails        []sentMessage
	sms           []sentMessage
	ctxErrs       []error
	err           error
}

func (c *recordingChannel) SendOrderConfirmation(ctx context.Context, o *orders.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmations = append(c.confirmations, o.OrderID)
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	return c.err
}

func (c *recordingChannel) SendEmail(ctx context.Context, to, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emails = append(c.emails, sentMessage{to: to, subject: subject, body: body})
	return c.err
}

func (c *recordingChannel) SendSMS(ctx context.Context, to, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sms = append(c.sms, sentMessage{to: to, body: body})
	return c.err
}

func (c *recordingChannel) snapshot() (confirmations []string, emails, sms []sentMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.confirmations...),
		append([]sentMessage(nil), c.emails...),
		append([]sentMessage(nil), c.sms...)
}

type recordingEscalator struct {
	mu    sync.Mutex
	got   []notify.Escalation
	panic bool
}

func (r *recordingEscalator) Notify(ctx context.Context, e notify.Escalation) notify.Outcome {
	r.mu.Lock()
	r.got = append(r.got, e)
	r.mu.Unlock()
	if r.panic {
		panic("admin channel exploded")
	}
	return notify.Outcome{EmailAttempted: true, EmailSent: true}
}

func (r *recordingEscalator) escalations() []notify.Escalation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Escalation(nil), r.got...)
}

func (r *recordingEscalator) count(p notify.Priority) int {
	n := 0
	for _, e := range r.escalations() {
		if e.Priority == p {
			n++
		}
	}
	return n
}

type recordingMetrics struct {
	mu      sync.Mutex
	sync    []string
	persist []string
}

func (m *recordingMetrics) RecordSync(ctx context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sync = append(m.sync, state)
	return nil
}

func (m *recordingMetrics) RecordPersistence(ctx context.Context, sink string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persist = append(m.persist, sink)
	return nil
}

type harness struct {
	orch    *Orchestrator
	store   *memorySaver
	channel *recordingChannel
	admin   *recordingEscalator
	metrics *recordingMetrics
}

func newHarness(t *testing.T, loader SettingsLoader, gw Gateway, opts Options) *harness {
	t.Helper()
	h := &harness{
		store:   &memorySaver{},
		channel: &recordingChannel{},
		admin:   &recordingEscalator{},
		metrics: &recordingMetrics{},
	}
	h.orch = NewOrchestrator(Deps{
		IDs:      &sequenceIDs{},
		Store:    h.store,
		Settings: loader,
		Gateway:  gw,
		Customer: h.channel,
		Admin:    h.admin,
		Metrics:  h.metrics,
		Log:      zap.NewNop(),
	}, opts)
	return h
}

// place runs PlaceOrder and drains detached side effects.
func (h *harness) place(t *testing.T, req validation.PlaceOrderRequest) *PlaceOrderResponse {
	t.Helper()
	resp, err := h.orch.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	h.orch.Wait()
	return resp
}

var pipelineModes = []struct {
	name   string
	detach bool
}{
	{name: "inline", detach: false},
	{name: "detached", detach: true},
}

func validRequest() validation.PlaceOrderRequest {
	return validation.PlaceOrderRequest{
		Name:          "Asha Verma",
		Email:         "asha@example.com",
		Phone:         "9876543210",
		Address:       "12 MG Road",
		City:          "Pune",
		State:         "Maharashtra",
		Pincode:       "411001",
		Plan:          "Family Pack",
		Amount:        decimal.RequireFromString("499.00"),
		PaymentMethod: string(orders.PaymentCashOnDelivery),
	}
}

func enabledSettings() *settings.Shipping {
	return &settings.Shipping{
		Enabled:        true,
		Email:          "ops@shop.test",
		Password:       "secret",
		PickupLocation: "Primary Warehouse",
	}
}

func providerGateway(t *testing.T, provider *shippingtest.Provider, timeout time.Duration) *shipping.Client {
	t.Helper()
	c, err := shipping.NewClient(shipping.Config{BaseURL: provider.URL(), Timeout: timeout}, nil, zap.NewNop())
	require.NoError(t, err)
	return c
}
