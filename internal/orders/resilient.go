package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SaveReport describes which sink accepted an order.
type SaveReport struct {
	Sink     string // empty when no sink accepted the order
	Degraded bool   // a preferred sink failed before Sink succeeded
	Failures []error
}

// Persisted reports whether any sink accepted the order.
func (r SaveReport) Persisted() bool {
	return r.Sink != ""
}

// ResilientSink writes an order to the first sink that accepts it.
type ResilientSink struct {
	sinks []OrderSink
	log   *zap.Logger
}

// NewResilientSink tries sinks in the given order, primary first.
func NewResilientSink(log *zap.Logger, sinks ...OrderSink) *ResilientSink {
	return &ResilientSink{sinks: sinks, log: log}
}

// Save returns an error wrapping ErrPersistenceFailed only when every sink fails.
func (r *ResilientSink) Save(ctx context.Context, o *Order) (SaveReport, error) {
	var report SaveReport

	for _, sink := range r.sinks {
		err := sink.Save(ctx, o)
		if err == nil {
			report.Sink = sink.Name()
			if report.Degraded {
				r.log.Warn("order persisted to fallback sink",
					zap.String("order_id", o.OrderID),
					zap.String("sink", sink.Name()),
					zap.Errors("failures", report.Failures),
				)
			}
			return report, nil
		}

		report.Degraded = true
		report.Failures = append(report.Failures, fmt.Errorf("%s: %w", sink.Name(), err))
		r.log.Warn("order sink failed",
			zap.String("order_id", o.OrderID),
			zap.String("sink", sink.Name()),
			zap.Error(err),
		)
	}

	report.Degraded = false
	err := errors.Join(append([]error{ErrPersistenceFailed}, report.Failures...)...)
	r.log.Error("order not persisted", zap.String("order_id", o.OrderID), zap.Error(err))
	return report, err
}
