package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/settings"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping"
	"go.uber.org/zap"
)

// SettingsLoader reads the shipping settings document.
type SettingsLoader interface {
	LoadShipping(ctx context.Context) (*settings.Shipping, error)
}

// TokenRefresher reissues the provider token once its soft window has passed.
type TokenRefresher interface {
	RefreshIfDue(ctx context.Context, acct shipping.Account) (bool, error)
}

// Refresher keeps the persisted provider token inside its reissue window so
// checkout requests rarely have to log in themselves.
type Refresher struct {
	settings SettingsLoader
	tokens   TokenRefresher
	log      *zap.Logger
}

func NewRefresher(loader SettingsLoader, tokens TokenRefresher, log *zap.Logger) *Refresher {
	return &Refresher{settings: loader, tokens: tokens, log: log.Named("token_refresher")}
}

// Handle runs on every scheduled event. Disabled shipping and missing
// credentials are skipped; any other failure is returned so the run is
// reported as failed.
func (r *Refresher) Handle(ctx context.Context, event events.CloudWatchEvent) error {
	log := r.log.With(zap.String("event_id", event.ID))

	cfg, err := r.settings.LoadShipping(ctx)
	if err != nil {
		return fmt.Errorf("load shipping settings: %w", err)
	}
	if !cfg.Enabled {
		log.Info("shipping disabled, nothing to refresh")
		return nil
	}
	acct := cfg.Account()
	if !acct.Credentials.Complete() {
		log.Warn("shipping credentials missing, skipping token refresh")
		return nil
	}

	refreshed, err := r.tokens.RefreshIfDue(ctx, acct)
	if err != nil {
		return fmt.Errorf("refresh shipping token: %w", err)
	}
	if refreshed {
		log.Info("shipping token reissued")
	} else {
		log.Debug("shipping token still within its reissue window")
	}
	return nil
}
