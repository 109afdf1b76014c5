package shipping

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// CreateOrder registers an ad-hoc order with the provider.
func (c *Client) CreateOrder(ctx context.Context, acct Account, payload CreateOrderPayload) (*Result, error) {
	if payload.OrderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidRequest)
	}
	return c.call(ctx, acct, http.MethodPost, "/orders/create/adhoc", nil, payload)
}

// TrackAWB returns tracking data for one airway bill.
func (c *Client) TrackAWB(ctx context.Context, acct Account, awb string) (*Result, error) {
	awb = strings.TrimSpace(awb)
	if awb == "" {
		return nil, fmt.Errorf("%w: awb is required", ErrInvalidRequest)
	}
	return c.call(ctx, acct, http.MethodGet, "/courier/track/awb/"+url.PathEscape(awb), nil, nil)
}

// TrackAWBs returns tracking data for several airway bills in one call.
func (c *Client) TrackAWBs(ctx context.Context, acct Account, awbs []string) (*Result, error) {
	if len(awbs) == 0 {
		return nil, fmt.Errorf("%w: at least one awb is required", ErrInvalidRequest)
	}
	return c.call(ctx, acct, http.MethodPost, "/courier/track/awbs", nil, map[string][]string{"awbs": awbs})
}

// CheckServiceability lists couriers able to deliver between two pincodes.
func (c *Client) CheckServiceability(ctx context.Context, acct Account, q ServiceabilityQuery) (*Result, error) {
	if q.PickupPostcode == "" || q.DeliveryPostcode == "" {
		return nil, fmt.Errorf("%w: pickup and delivery postcodes are required", ErrInvalidRequest)
	}
	weight := q.WeightKg
	if weight <= 0 {
		weight = defaultWeightKg
	}
	cod := "0"
	if q.COD {
		cod = "1"
	}
	query := url.Values{
		"pickup_postcode":   {q.PickupPostcode},
		"delivery_postcode": {q.DeliveryPostcode},
		"weight":            {strconv.FormatFloat(weight, 'f', -1, 64)},
		"cod":               {cod},
	}
	return c.call(ctx, acct, http.MethodGet, "/courier/serviceability/", query, nil)
}

// AssignAWB asks the provider to allocate an airway bill for a shipment.
// A zero courierID lets the provider choose.
func (c *Client) AssignAWB(ctx context.Context, acct Account, shipmentID string, courierID int) (*Result, error) {
	if shipmentID == "" {
		return nil, fmt.Errorf("%w: shipment id is required", ErrInvalidRequest)
	}
	body := map[string]any{"shipment_id": shipmentID}
	if courierID > 0 {
		body["courier_id"] = courierID
	}
	return c.call(ctx, acct, http.MethodPost, "/courier/assign/awb", nil, body)
}

// GeneratePickup schedules courier pickup for shipments.
func (c *Client) GeneratePickup(ctx context.Context, acct Account, shipmentIDs []string) (*Result, error) {
	return c.shipmentBatch(ctx, acct, "/courier/generate/pickup", shipmentIDs)
}

// GenerateManifest builds the handover manifest for shipments.
func (c *Client) GenerateManifest(ctx context.Context, acct Account, shipmentIDs []string) (*Result, error) {
	return c.shipmentBatch(ctx, acct, "/manifests/generate", shipmentIDs)
}

// GenerateLabel produces printable shipping labels.
func (c *Client) GenerateLabel(ctx context.Context, acct Account, shipmentIDs []string) (*Result, error) {
	return c.shipmentBatch(ctx, acct, "/courier/generate/label", shipmentIDs)
}

// GenerateInvoice produces invoices for provider order ids.
func (c *Client) GenerateInvoice(ctx context.Context, acct Account, orderIDs []string) (*Result, error) {
	if len(orderIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one order id is required", ErrInvalidRequest)
	}
	return c.call(ctx, acct, http.MethodPost, "/orders/print/invoice", nil, map[string][]string{"ids": orderIDs})
}

func (c *Client) shipmentBatch(ctx context.Context, acct Account, path string, shipmentIDs []string) (*Result, error) {
	if len(shipmentIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one shipment id is required", ErrInvalidRequest)
	}
	return c.call(ctx, acct, http.MethodPost, path, nil, map[string][]string{"shipment_id": shipmentIDs})
}
