package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)

// PaymentStatusPending is the only payment status set at acceptance; capture happens elsewhere.
const PaymentStatusPending = "pending"

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentOnline         PaymentMethod = "online"
)

// SyncState records the outcome of pushing an order to the shipping provider.
type SyncState string

const (
	SyncDisabled           SyncState = "disabled"
	SyncCredentialsMissing SyncState = "credentials_missing"
	SyncFailed             SyncState = "failed"
	SyncError              SyncState = "error"
	SyncSynchronized       SyncState = "synchronized"
	SyncSystemError        SyncState = "system_error"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone"`
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// StatusEntry is one line of an order's append-only status history.
type StatusEntry struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// SyncRecord captures the single shipping sync attempt made for an order.
// AWB and courier details are assigned later by an operator, never here.
type SyncRecord struct {
	State           SyncState `json:"state"`
	ExternalOrderID string    `json:"external_order_id,omitempty"`
	ShipmentID      string    `json:"shipment_id,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Kind            string    `json:"kind,omitempty"`
	Error           string    `json:"error,omitempty"`
	Details         string    `json:"details,omitempty"`
	AttemptedAt     time.Time `json:"attempted_at"`
}

// Order is the in-memory order record carried through the fulfillment pipeline.
type Order struct {
	OrderID           string          `json:"order_id"`
	Customer          Customer        `json:"customer"`
	Address           Address         `json:"address"`
	Plan              string          `json:"plan"`
	Amount            decimal.Decimal `json:"amount"`
	Quantity          int             `json:"quantity"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	PaymentStatus     string          `json:"payment_status"`
	OrderStatus       string          `json:"order_status"`
	StatusHistory     []StatusEntry   `json:"status_history"`
	Shipping          *SyncRecord     `json:"shipping,omitempty"`
	NeedsManualSync   bool            `json:"needs_manual_sync"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
}

// Transition moves the order to status and appends a history entry.
func (o *Order) Transition(status, note string, at time.Time) {
	o.OrderStatus = status
	o.UpdatedAt = at
	o.StatusHistory = append(o.StatusHistory, StatusEntry{Status: status, At: at, Note: note})
}

// SyncState returns the recorded shipping sync state, or "" when no attempt was made.
func (o *Order) SyncState() SyncState {
	if o.Shipping == nil {
		return ""
	}
	return o.Shipping.State
}
