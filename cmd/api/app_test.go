package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/imrishuroy/go-fulfillment-orderflow/internal/config"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOrderSinks_KeepPostgresWhenUnreachableAtStartup(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			DSN:          "host=127.0.0.1 port=1 user=postgres dbname=orderflow sslmode=disable connect_timeout=2",
			MaxOpenConns: 2,
		},
		Fallback: config.FallbackConfig{Path: filepath.Join(t.TempDir(), "orders.jsonl")},
	}

	sinks := orderSinks(context.Background(), cfg, zap.NewNop())

	require.Len(t, sinks, 2)
	assert.Equal(t, "postgres", sinks[0].Name())
	assert.Equal(t, "file", sinks[1].Name())

	report, err := orders.NewResilientSink(zap.NewNop(), sinks...).Save(context.Background(), &orders.Order{
		OrderID:  "ORD000000000001",
		Customer: orders.Customer{Name: "Asha Verma", Phone: "9876543210"},
	})
	require.NoError(t, err)
	assert.Equal(t, "file", report.Sink)
	assert.True(t, report.Degraded)
}
