package shipping

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FailureKind classifies why a provider call did not succeed.
type FailureKind string

const (
	KindAuthentication    FailureKind = "authentication"
	KindHTTP              FailureKind = "http"
	KindNetwork           FailureKind = "network"
	KindTimeout           FailureKind = "timeout"
	KindMalformedResponse FailureKind = "malformed_response"
)

// Result is the normalised outcome of every provider operation.
// Failures are reported here rather than as Go errors.
type Result struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`

	OrderID     string `json:"orderId,omitempty"`
	ShipmentID  string `json:"shipmentId,omitempty"`
	AWBCode     string `json:"awbCode,omitempty"`
	CourierName string `json:"courierName,omitempty"`

	Kind    FailureKind `json:"kind,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details string      `json:"details,omitempty"`
}

func failure(kind FailureKind, status int, msg, details string) *Result {
	return &Result{Kind: kind, StatusCode: status, Error: msg, Details: details}
}

// OrderItem is one line of a provider order.
type OrderItem struct {
	Name         string      `json:"name"`
	SKU          string      `json:"sku"`
	Units        int         `json:"units"`
	SellingPrice json.Number `json:"selling_price"`
	HSN          string      `json:"hsn"`
}

// CreateOrderPayload is the body of an ad-hoc order creation request.
type CreateOrderPayload struct {
	OrderID             string      `json:"order_id"`
	OrderDate           string      `json:"order_date"`
	PickupLocation      string      `json:"pickup_location"`
	BillingCustomerName string      `json:"billing_customer_name"`
	BillingLastName     string      `json:"billing_last_name"`
	BillingAddress      string      `json:"billing_address"`
	BillingCity         string      `json:"billing_city"`
	BillingPincode      string      `json:"billing_pincode"`
	BillingState        string      `json:"billing_state"`
	BillingCountry      string      `json:"billing_country"`
	BillingEmail        string      `json:"billing_email"`
	BillingPhone        string      `json:"billing_phone"`
	ShippingIsBilling   bool        `json:"shipping_is_billing"`
	OrderItems          []OrderItem `json:"order_items"`
	PaymentMethod       string      `json:"payment_method"`
	SubTotal            json.Number `json:"sub_total"`
	Length              json.Number `json:"length"`
	Breadth             json.Number `json:"breadth"`
	Height              json.Number `json:"height"`
	Weight              json.Number `json:"weight"`
}

// ServiceabilityQuery asks which couriers can carry a parcel between two pincodes.
type ServiceabilityQuery struct {
	PickupPostcode   string
	DeliveryPostcode string
	WeightKg         float64
	COD              bool
}

// providerID accepts ids the provider sends either as numbers or as strings.
type providerID string

func (p *providerID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = providerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*p = providerID(strconv.FormatInt(i, 10))
		return nil
	}
	*p = providerID(n.String())
	return nil
}

// envelope picks the identifiers out of any provider success body.
// AWB assignment nests them under response.data.
type envelope struct {
	OrderID     providerID `json:"order_id"`
	ShipmentID  providerID `json:"shipment_id"`
	AWBCode     providerID `json:"awb_code"`
	CourierName string     `json:"courier_name"`
	Response    *struct {
		Data *envelope `json:"data"`
	} `json:"response"`
}

type errorBody struct {
	Message string `json:"message"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}
