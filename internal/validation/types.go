package validation

import "github.com/shopspring/decimal"

// PlaceOrderRequest is the payload for POST /api/orders.
type PlaceOrderRequest struct {
	Name          string          `json:"name" validate:"required,notblank,max=120"`
	Email         string          `json:"email,omitempty" validate:"omitempty,email"`
	Phone         string          `json:"phone" validate:"required,numeric,min=10,max=15"`
	Address       string          `json:"address" validate:"required,notblank,max=500"`
	City          string          `json:"city" validate:"required,notblank"`
	State         string          `json:"state" validate:"required,notblank"`
	Pincode       string          `json:"pincode" validate:"required,numeric,len=6"`
	Plan          string          `json:"plan" validate:"required,notblank,max=120"`
	Amount        decimal.Decimal `json:"amount"` // checked at struct level
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=cash_on_delivery online"`
	DeliveryDays  int             `json:"deliveryDays,omitempty" validate:"omitempty,min=1,max=60"`
	Quantity      int             `json:"quantity,omitempty" validate:"omitempty,min=1,max=100"`
}

// TrackAWBsRequest is the payload for POST /admin/shipping/track.
type TrackAWBsRequest struct {
	AWBs []string `json:"awbs" validate:"required,min=1,max=50,dive,required"`
}

// AssignAWBRequest is the payload for POST /admin/shipping/awb.
type AssignAWBRequest struct {
	ShipmentID string `json:"shipmentId" validate:"required"`
	CourierID  int    `json:"courierId,omitempty" validate:"omitempty,min=1"`
}

// ShipmentIDsRequest is the payload for the pickup, manifest and label routes.
type ShipmentIDsRequest struct {
	ShipmentIDs []string `json:"shipmentIds" validate:"required,min=1,max=50,dive,required"`
}

// InvoiceRequest is the payload for POST /admin/shipping/invoice.
type InvoiceRequest struct {
	OrderIDs []string `json:"orderIds" validate:"required,min=1,max=50,dive,required"`
}

// ShippingSettingsRequest is the payload for PUT /admin/shipping/settings.
// An empty password keeps the stored one. Email and pickup location are
// required only when Enabled is set.
type ShippingSettingsRequest struct {
	Enabled        bool    `json:"enabled"`
	TestMode       bool    `json:"testMode"`
	Email          string  `json:"email" validate:"omitempty,email"`
	Password       string  `json:"password,omitempty"`
	PickupLocation string  `json:"pickupLocation"`
	LengthCm       float64 `json:"lengthCm,omitempty" validate:"gte=0"`
	BreadthCm      float64 `json:"breadthCm,omitempty" validate:"gte=0"`
	HeightCm       float64 `json:"heightCm,omitempty" validate:"gte=0"`
	WeightKg       float64 `json:"weightKg,omitempty" validate:"gte=0"`
}
