package main

import (
	"context"
	stdlog "log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/aws"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/config"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/logger"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/settings"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot, _ := logger.NewForEnvironment(os.Getenv("ORDERFLOW_APP_ENV"), "info")
		boot.Fatal("failed to load config", zap.Error(err))
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		stdlog.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, aws.Options{
		Region:           cfg.AWS.Region,
		EndpointOverride: cfg.AWS.EndpointOverride,
	})
	if err != nil {
		log.Fatal("failed to init aws clients", zap.Error(err))
	}

	store := settings.NewStore(clients.DynamoDB, cfg.Dynamo.SettingsTable)
	client, err := shipping.NewClient(shipping.Config{
		BaseURL:       cfg.Shipping.BaseURL,
		Timeout:       cfg.Shipping.Timeout,
		TokenValidity: cfg.Shipping.TokenValidity,
		TokenReissue:  cfg.Shipping.TokenReissue,
	}, store, log)
	if err != nil {
		log.Fatal("failed to init shipping client", zap.Error(err))
	}

	r := NewRefresher(store, client, log)

	// RUN_LOCAL=true runs a single refresh and exits.
	if os.Getenv("RUN_LOCAL") == "true" {
		event := events.CloudWatchEvent{ID: "local", Source: "local", Time: time.Now()}
		if err := r.Handle(ctx, event); err != nil {
			log.Fatal("local refresh failed", zap.Error(err))
		}
		return
	}

	lambda.Start(r.Handle)
}
