package fulfillment

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/imrishuroy/go-fulfillment-orderflow/internal/notify"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/orders"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/settings"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping"
)

// SettingsLoader reads the current shipping settings.
type SettingsLoader interface {
	LoadShipping(ctx context.Context) (*settings.Shipping, error)
}

// Gateway creates orders with the shipping provider. A non-nil error means
// something broke outside the provider's normal failure modes.
type Gateway interface {
	CreateOrder(ctx context.Context, acct shipping.Account, payload shipping.CreateOrderPayload) (*shipping.Result, error)
}

// OrderSaver persists orders.
type OrderSaver interface {
	Save(ctx context.Context, o *orders.Order) (orders.SaveReport, error)
}

// Escalator alerts the shop operator.
type Escalator interface {
	Notify(ctx context.Context, e notify.Escalation) notify.Outcome
}

// Metrics records per-order outcomes.
type Metrics interface {
	RecordSync(ctx context.Context, state string) error
	RecordPersistence(ctx context.Context, sink string) error
}

// IDGenerator issues order ids.
type IDGenerator interface {
	Next() string
}

// PlaceOrderResponse is what the customer sees once an order is accepted.
type PlaceOrderResponse struct {
	OrderID           string           `json:"orderId"`
	OrderTime         time.Time        `json:"orderTime"`
	EstimatedDelivery time.Time        `json:"estimatedDelivery"`
	OrderStatus       string           `json:"orderStatus"`
	PaymentStatus     string           `json:"paymentStatus"`
	ShiprocketStatus  orders.SyncState `json:"shiprocketStatus"`
	ShiprocketOrderID string           `json:"shiprocketOrderId,omitempty"`
	ShipmentID        string           `json:"shipmentId,omitempty"`

	Order *orders.Order `json:"-"`
}

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+" "+msg)
	}
	sort.Strings(parts)
	return "invalid order: " + strings.Join(parts, "; ")
}
