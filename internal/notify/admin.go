package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imrishuroy/go-fulfillment-orderflow/internal/orders"
	"go.uber.org/zap"
)

// Priority decides which channels an escalation goes to.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Escalation types
const (
	TypeSyncSuccess = "shipping_sync_success"
	TypeSyncFailure = "shipping_sync_failure"
	TypeSystemError = "system_error"
)

const maxSMSRunes = 100

type Escalation struct {
	Subject  string
	Message  string
	Type     string
	Priority Priority
}

// Outcome records which channels were tried and which succeeded.
type Outcome struct {
	EmailAttempted bool
	EmailSent      bool
	SMSAttempted   bool
	SMSSent        bool
	Err            error
}

// AdminService alerts the shop operator.
type AdminService struct {
	channel NotificationChannel
	email   string
	phone   string
	log     *zap.Logger
}

func NewAdminService(channel NotificationChannel, email, phone string, log *zap.Logger) *AdminService {
	return &AdminService{channel: channel, email: email, phone: phone, log: log.Named("admin_notify")}
}

// Notify always tries email and adds an SMS for high and critical escalations.
// One channel failing never stops the other; failures are logged and reported in the Outcome.
func (s *AdminService) Notify(ctx context.Context, e Escalation) Outcome {
	var out Outcome
	var errs []error
	fields := []zap.Field{zap.String("type", e.Type), zap.String("priority", string(e.Priority))}

	out.EmailAttempted = true
	if err := s.channel.SendEmail(ctx, s.email, e.Subject, e.Message); err != nil {
		errs = append(errs, fmt.Errorf("email: %w", err))
		s.log.Error("admin email failed", append(fields, zap.Error(err))...)
	} else {
		out.EmailSent = true
	}

	if e.Priority == PriorityHigh || e.Priority == PriorityCritical {
		out.SMSAttempted = true
		if err := s.channel.SendSMS(ctx, s.phone, truncateRunes(e.Message, maxSMSRunes)); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
			s.log.Error("admin sms failed", append(fields, zap.Error(err))...)
		} else {
			out.SMSSent = true
		}
	}

	out.Err = errors.Join(errs...)
	if out.Err == nil {
		s.log.Info("admin notified", fields...)
	}
	return out
}

// SyncSuccess reports an order that reached the shipping provider.
func SyncSuccess(o *orders.Order) Escalation {
	lines := orderLines(o)
	if o.Shipping != nil {
		lines = append(lines,
			kv("Provider Order ID", o.Shipping.ExternalOrderID),
			kv("Shipment ID", o.Shipping.ShipmentID),
		)
	}
	return Escalation{
		Subject:  "Order " + o.OrderID + " synced to shipping",
		Message:  strings.Join(lines, "\n"),
		Type:     TypeSyncSuccess,
		Priority: PriorityNormal,
	}
}

// SyncFailure reports an order the provider did not accept; it needs manual shipment creation.
func SyncFailure(o *orders.Order) Escalation {
	lines := orderLines(o)
	if rec := o.Shipping; rec != nil {
		lines = append(lines, kv("Sync State", string(rec.State)))
		if rec.Reason != "" {
			lines = append(lines, kv("Reason", rec.Reason))
		}
		if rec.Kind != "" {
			lines = append(lines, kv("Failure Kind", rec.Kind))
		}
		if rec.Error != "" {
			lines = append(lines, kv("Error", rec.Error))
		}
		if rec.Details != "" {
			lines = append(lines, kv("Details", rec.Details))
		}
	}
	lines = append(lines, kv("Action", "create the shipment manually"))
	return Escalation{
		Subject:  "Shipping sync failed for order " + o.OrderID,
		Message:  strings.Join(lines, "\n"),
		Type:     TypeSyncFailure,
		Priority: PriorityHigh,
	}
}

// SystemError reports an unexpected fault while syncing an order.
func SystemError(o *orders.Order, err error) Escalation {
	lines := append(orderLines(o), kv("Error", err.Error()), kv("Action", "investigate and create the shipment manually"))
	return Escalation{
		Subject:  "System error while syncing order " + o.OrderID,
		Message:  strings.Join(lines, "\n"),
		Type:     TypeSystemError,
		Priority: PriorityCritical,
	}
}

func orderLines(o *orders.Order) []string {
	return []string{
		kv("Order ID", o.OrderID),
		kv("Customer", o.Customer.Name),
		kv("Phone", o.Customer.Phone),
		kv("Plan", o.Plan),
		kv("Amount", o.Amount.StringFixed(2)),
		kv("Payment Method", string(o.PaymentMethod)),
	}
}

func kv(k, v string) string { return k + ": " + v }

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
