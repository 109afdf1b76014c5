package orders

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by lookups for an order id that was never saved.
	ErrNotFound = errors.New("order not found")
	// ErrPersistenceFailed means no sink accepted the order.
	ErrPersistenceFailed = errors.New("order persistence failed")
)

// OrderSink is one place an order can be durably written.
// Save must be safe to call repeatedly for the same order id.
type OrderSink interface {
	Name() string
	Save(ctx context.Context, o *Order) error
}
