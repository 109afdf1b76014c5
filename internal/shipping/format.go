package shipping

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/imrishuroy/go-fulfillment-orderflow/internal/orders"
	"github.com/shopspring/decimal"
)

const (
	// DefaultHSN is the harmonised code sent for every plan line item.
	DefaultHSN = "441122"

	defaultLengthCm  = 15
	defaultBreadthCm = 10
	defaultHeightCm  = 5
	defaultWeightKg  = 0.5

	orderDateLayout = "2006-01-02 15:04"
	billingCountry  = "India"
)

// FormatOptions are the shop-level values needed to describe a parcel.
// Zero dimensions fall back to a 15x10x5 cm, 0.5 kg box.
type FormatOptions struct {
	PickupLocation string
	LengthCm       float64
	BreadthCm      float64
	HeightCm       float64
	WeightKg       float64
}

// FormatOrder maps an order to the provider's order payload. It reads no clock
// and no global state, so equal inputs give byte-identical payloads.
func FormatOrder(o *orders.Order, opts FormatOptions) (CreateOrderPayload, error) {
	if strings.TrimSpace(opts.PickupLocation) == "" {
		return CreateOrderPayload{}, errors.New("format order: pickup location is not configured")
	}
	if !o.Amount.IsPositive() {
		return CreateOrderPayload{}, errors.New("format order: amount must be positive")
	}

	first, last := splitName(o.Customer.Name)
	units := o.Quantity
	if units < 1 {
		units = 1
	}
	unitPrice := o.Amount.Div(decimal.NewFromInt(int64(units))).Round(2)

	payment := "Prepaid"
	if o.PaymentMethod == orders.PaymentCashOnDelivery {
		payment = "COD"
	}

	return CreateOrderPayload{
		OrderID:             o.OrderID,
		OrderDate:           o.CreatedAt.Format(orderDateLayout),
		PickupLocation:      opts.PickupLocation,
		BillingCustomerName: first,
		BillingLastName:     last,
		BillingAddress:      o.Address.Street,
		BillingCity:         o.Address.City,
		BillingPincode:      o.Address.Pincode,
		BillingState:        o.Address.State,
		BillingCountry:      billingCountry,
		BillingEmail:        o.Customer.Email,
		BillingPhone:        o.Customer.Phone,
		ShippingIsBilling:   true,
		OrderItems: []OrderItem{{
			Name:         o.Plan,
			SKU:          PlanSKU(o.Plan),
			Units:        units,
			SellingPrice: json.Number(unitPrice.StringFixed(2)),
			HSN:          DefaultHSN,
		}},
		PaymentMethod: payment,
		SubTotal:      json.Number(o.Amount.StringFixed(2)),
		Length:        number(opts.LengthCm, defaultLengthCm),
		Breadth:       number(opts.BreadthCm, defaultBreadthCm),
		Height:        number(opts.HeightCm, defaultHeightCm),
		Weight:        number(opts.WeightKg, defaultWeightKg),
	}, nil
}

// PlanSKU renders a plan name as PLAN-UPPER-KEBAB, e.g. "Family Pack" -> PLAN-FAMILY-PACK.
func PlanSKU(plan string) string {
	var b strings.Builder
	b.WriteString("PLAN")
	dash := true
	for _, r := range plan {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash {
				b.WriteByte('-')
				dash = false
			}
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		dash = true
	}
	return b.String()
}

func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	i := strings.IndexFunc(name, unicode.IsSpace)
	if i < 0 {
		return name, ""
	}
	return name[:i], strings.TrimSpace(name[i:])
}

func number(v, fallback float64) json.Number {
	if v <= 0 {
		v = fallback
	}
	return json.Number(strconv.FormatFloat(v, 'f', -1, 64))
}
