package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

func sampleOrder(id string) *Order {
	created := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	o := &Order{
		OrderID:           id,
		Customer:          Customer{Name: "Asha Verma", Email: "Asha@Example.com", Phone: "9876543210"},
		Address:           Address{Street: "12 MG Road", City: "Pune", State: "Maharashtra", Pincode: "411001"},
		Plan:              "Family Pack",
		Amount:            decimal.RequireFromString("499.00"),
		Quantity:          1,
		PaymentMethod:     PaymentCashOnDelivery,
		PaymentStatus:     PaymentStatusPending,
		CreatedAt:         created,
		EstimatedDelivery: created.AddDate(0, 0, 7),
	}
	o.Transition(StatusPending, "order received", created)
	return o
}
