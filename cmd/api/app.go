package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/aws"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/config"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/fulfillment"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/handlers"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/notify"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/orders"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/settings"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping"
	"go.uber.org/zap"
)

const dbConnectTimeout = 5 * time.Second

type app struct {
	router       *gin.Engine
	orchestrator *fulfillment.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	clients, err := aws.NewAWSClients(ctx, aws.Options{
		Region:           cfg.AWS.Region,
		EndpointOverride: cfg.AWS.EndpointOverride,
	})
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}

	settingsStore := settings.NewStore(clients.DynamoDB, cfg.Dynamo.SettingsTable)

	client, err := shipping.NewClient(shipping.Config{
		BaseURL:       cfg.Shipping.BaseURL,
		Timeout:       cfg.Shipping.Timeout,
		TokenValidity: cfg.Shipping.TokenValidity,
		TokenReissue:  cfg.Shipping.TokenReissue,
	}, settingsStore, log)
	if err != nil {
		return nil, fmt.Errorf("init shipping client: %w", err)
	}

	channel := notify.NewQueueChannel(aws.NewPublisher(clients.SQS, cfg.SQS.NotificationsQueueURL))

	orch := fulfillment.NewOrchestrator(fulfillment.Deps{
		IDs:      orders.NewIDGenerator(),
		Store:    orders.NewResilientSink(log, orderSinks(ctx, cfg, log)...),
		Settings: settingsStore,
		Gateway:  client,
		Customer: channel,
		Admin:    notify.NewAdminService(channel, cfg.Admin.Email, cfg.Admin.Phone, log),
		Metrics:  aws.NewSyncMetrics(clients.CloudWatch, cfg.CloudWatch.Namespace),
		Log:      log,
	}, fulfillment.Options{
		NotifyOnSync:      cfg.Admin.NotifyOnSync,
		DetachSideEffects: cfg.Pipeline.DetachSideEffects,
		PersistTimeout:    cfg.Pipeline.PersistTimeout,
		SyncTimeout:       cfg.Pipeline.SyncTimeout,
		TaskTimeout:       cfg.Pipeline.TaskTimeout,
	})

	var idem handlers.IdempotencyStore
	if cfg.Dynamo.IdempotencyTable != "" {
		idem = idempotency.NewStore(clients.DynamoDB, cfg.Dynamo.IdempotencyTable, cfg.Idempotency.TTL)
	}

	router := handlers.NewRouter(
		handlers.RouterConfig{
			CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AdminAPIKey:      cfg.Admin.APIKey,
		},
		log,
		handlers.NewOrdersHandler(orch, idem, log),
		handlers.NewShippingHandler(client, settingsStore, log),
	)
	return &app{router: router, orchestrator: orch}, nil
}

// orderSinks returns postgres then the fallback file. Postgres is kept even
// when it is unreachable at startup; each save tries it first.
func orderSinks(ctx context.Context, cfg *config.Config, log *zap.Logger) []orders.OrderSink {
	fallback := orders.NewFileStore(cfg.Fallback.Path)

	db, err := orders.OpenPostgres(orders.DBOptions{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Error("postgres misconfigured, orders will be written to the fallback file only",
			zap.String("fallback_path", cfg.Fallback.Path),
			zap.Error(err),
		)
		return []orders.OrderSink{fallback}
	}

	primary := orders.NewGormStore(db)

	dbCtx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
	defer cancel()
	if err := orders.Ping(dbCtx, db); err != nil {
		log.Warn("postgres unreachable at startup, saves will fall back until it recovers",
			zap.String("fallback_path", cfg.Fallback.Path),
			zap.Error(err),
		)
		primary.MigrateOnSave()
	} else if err := primary.AutoMigrate(dbCtx); err != nil {
		log.Warn("order schema migration failed, retrying on save", zap.Error(err))
		primary.MigrateOnSave()
	}
	return []orders.OrderSink{primary, fallback}
}
