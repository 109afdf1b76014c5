package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/orders"
)

// NotificationChannel delivers email and SMS. Delivery itself happens outside this service.
type NotificationChannel interface {
	SendOrderConfirmation(ctx context.Context, o *orders.Order) error
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, to, body string) error
}

// Message kinds
const (
	KindEmail = "email"
	KindSMS   = "sms"
)

// Message is the JSON document handed to the delivery queue.
type Message struct {
	MessageID string `json:"message_id"`
	Kind      string `json:"kind"`
	To        string `json:"to"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
	OrderID   string `json:"order_id,omitempty"`
}

// Publisher sends a JSON payload to a queue. *aws.Publisher implements it.
type Publisher interface {
	PublishJSON(ctx context.Context, payload any, attributes map[string]string) (string, error)
}

// QueueChannel implements NotificationChannel by enqueueing messages for a delivery worker.
type QueueChannel struct {
	pub   Publisher
	newID func() string
}

func NewQueueChannel(pub Publisher) *QueueChannel {
	return &QueueChannel{pub: pub, newID: uuid.NewString}
}

// SendOrderConfirmation emails the customer when an address is known and always texts the phone.
func (q *QueueChannel) SendOrderConfirmation(ctx context.Context, o *orders.Order) error {
	var errs []error
	if o.Customer.Email != "" {
		subject, body := confirmationEmail(o)
		if err := q.send(ctx, Message{Kind: KindEmail, To: o.Customer.Email, Subject: subject, Body: body, OrderID: o.OrderID}); err != nil {
			errs = append(errs, err)
		}
	}
	if o.Customer.Phone != "" {
		if err := q.send(ctx, Message{Kind: KindSMS, To: o.Customer.Phone, Body: confirmationSMS(o), OrderID: o.OrderID}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (q *QueueChannel) SendEmail(ctx context.Context, to, subject, body string) error {
	return q.send(ctx, Message{Kind: KindEmail, To: to, Subject: subject, Body: body})
}

func (q *QueueChannel) SendSMS(ctx context.Context, to, body string) error {
	return q.send(ctx, Message{Kind: KindSMS, To: to, Body: body})
}

func (q *QueueChannel) send(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("send %s: recipient is empty", m.Kind)
	}
	m.MessageID = q.newID()
	if _, err := q.pub.PublishJSON(ctx, m, map[string]string{
		"kind":     m.Kind,
		"order_id": m.OrderID,
	}); err != nil {
		return fmt.Errorf("send %s: %w", m.Kind, err)
	}
	return nil
}

func confirmationEmail(o *orders.Order) (subject, body string) {
	subject = fmt.Sprintf("Order %s confirmed", o.OrderID)
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", o.Customer.Name)
	fmt.Fprintf(&b, "Thank you for your order. Here are the details:\n\n")
	fmt.Fprintf(&b, "Order ID: %s\n", o.OrderID)
	fmt.Fprintf(&b, "Plan: %s\n", o.Plan)
	fmt.Fprintf(&b, "Quantity: %d\n", o.Quantity)
	fmt.Fprintf(&b, "Amount: %s\n", o.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Payment: %s\n", paymentLabel(o.PaymentMethod))
	fmt.Fprintf(&b, "Estimated delivery: %s\n", o.EstimatedDelivery.Format("02 Jan 2006"))
	return subject, b.String()
}

func confirmationSMS(o *orders.Order) string {
	return fmt.Sprintf("Order %s confirmed. Amount %s (%s). Expected by %s.",
		o.OrderID, o.Amount.StringFixed(2), paymentLabel(o.PaymentMethod), o.EstimatedDelivery.Format("02 Jan"))
}

func paymentLabel(m orders.PaymentMethod) string {
	if m == orders.PaymentCashOnDelivery {
		return "Cash on delivery"
	}
	return "Online"
}
