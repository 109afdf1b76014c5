package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every validation failure returned from Load.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	App         AppConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Fallback    FallbackConfig
	AWS         AWSConfig
	Dynamo      DynamoConfig
	Idempotency IdempotencyConfig
	SQS         SQSConfig
	CloudWatch  CloudWatchConfig
	Shipping    ShippingConfig
	Admin       AdminConfig
	Pipeline    PipelineConfig
}

type AppConfig struct {
	Env  string
	Port string
}

type LogConfig struct {
	Level  string
	Format string
}

type HTTPConfig struct {
	CORSAllowOrigins []string
}

type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// FallbackConfig points at the JSON-lines file used when the database rejects a write.
type FallbackConfig struct {
	Path string
}

type AWSConfig struct {
	Region           string
	EndpointOverride string
}

type DynamoConfig struct {
	SettingsTable    string
	IdempotencyTable string
}

type IdempotencyConfig struct {
	TTL time.Duration
}

type SQSConfig struct {
	NotificationsQueueURL string
}

type CloudWatchConfig struct {
	Namespace string
}

// ShippingConfig covers the provider endpoint and token lifetimes.
// TokenValidity is the hard expiry of a cached token; TokenReissue is the
// soft window after which the worker proactively logs in again.
type ShippingConfig struct {
	BaseURL       string
	Timeout       time.Duration
	TokenValidity time.Duration
	TokenReissue  time.Duration
}

type AdminConfig struct {
	Email        string
	Phone        string
	NotifyOnSync bool
	APIKey       string
}

// PipelineConfig bounds the steps run after an order is accepted.
// A zero timeout keeps the pipeline default.
type PipelineConfig struct {
	DetachSideEffects bool
	PersistTimeout    time.Duration
	SyncTimeout       time.Duration
	TaskTimeout       time.Duration
}

// Load reads config.toml from the given directories (or ".", "/app" when none
// are given), then applies ORDERFLOW_* environment overrides and defaults.
// A missing config file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{".", "/app"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("ORDERFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		HTTP: HTTPConfig{
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Fallback: FallbackConfig{
			Path: v.GetString("fallback.path"),
		},
		AWS: AWSConfig{
			Region:           v.GetString("aws.region"),
			EndpointOverride: v.GetString("aws.endpoint_override"),
		},
		Dynamo: DynamoConfig{
			SettingsTable:    v.GetString("dynamo.settings_table"),
			IdempotencyTable: v.GetString("dynamo.idempotency_table"),
		},
		Idempotency: IdempotencyConfig{
			TTL: v.GetDuration("idempotency.ttl"),
		},
		SQS: SQSConfig{
			NotificationsQueueURL: v.GetString("sqs.notifications_queue_url"),
		},
		CloudWatch: CloudWatchConfig{
			Namespace: v.GetString("cloudwatch.namespace"),
		},
		Shipping: ShippingConfig{
			BaseURL:       v.GetString("shipping.base_url"),
			Timeout:       v.GetDuration("shipping.timeout"),
			TokenValidity: v.GetDuration("shipping.token_validity"),
			TokenReissue:  v.GetDuration("shipping.token_reissue"),
		},
		Admin: AdminConfig{
			Email:        v.GetString("admin.email"),
			Phone:        v.GetString("admin.phone"),
			NotifyOnSync: v.GetBool("admin.notify_on_sync"),
			APIKey:       v.GetString("admin.api_key"),
		},
		Pipeline: PipelineConfig{
			DetachSideEffects: v.GetBool("pipeline.detach_side_effects"),
			PersistTimeout:    v.GetDuration("pipeline.persist_timeout"),
			SyncTimeout:       v.GetDuration("pipeline.sync_timeout"),
			TaskTimeout:       v.GetDuration("pipeline.task_timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		}
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "host=localhost port=5432 user=postgres dbname=orderflow sslmode=disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Fallback.Path == "" {
		cfg.Fallback.Path = "data/orders-fallback.jsonl"
	}
	if cfg.Dynamo.SettingsTable == "" {
		cfg.Dynamo.SettingsTable = "settings"
	}
	if cfg.Dynamo.IdempotencyTable == "" {
		cfg.Dynamo.IdempotencyTable = "idempotency"
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
	}
	if cfg.CloudWatch.Namespace == "" {
		cfg.CloudWatch.Namespace = "OrderFulfillment"
	}
	if cfg.Shipping.BaseURL == "" {
		cfg.Shipping.BaseURL = "https://apiv2.shiprocket.in/v1/external"
	}
	if cfg.Shipping.Timeout == 0 {
		cfg.Shipping.Timeout = 30 * time.Second
	}
	if cfg.Shipping.TokenValidity == 0 {
		cfg.Shipping.TokenValidity = 24 * time.Hour
	}
	if cfg.Shipping.TokenReissue == 0 {
		cfg.Shipping.TokenReissue = 10 * 24 * time.Hour
	}
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.App.Port); err != nil {
		return fmt.Errorf("%w: app.port %q is not a number", ErrInvalidConfig, c.App.Port)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log.format must be json or console, got %q", ErrInvalidConfig, c.Log.Format)
	}
	u, err := url.Parse(c.Shipping.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: shipping.base_url %q is not an absolute url", ErrInvalidConfig, c.Shipping.BaseURL)
	}
	if c.Shipping.Timeout < 0 {
		return fmt.Errorf("%w: shipping.timeout must be positive", ErrInvalidConfig)
	}
	if c.Pipeline.PersistTimeout < 0 || c.Pipeline.SyncTimeout < 0 || c.Pipeline.TaskTimeout < 0 {
		return fmt.Errorf("%w: pipeline timeouts must not be negative", ErrInvalidConfig)
	}
	if c.Shipping.TokenReissue < c.Shipping.TokenValidity {
		return fmt.Errorf("%w: shipping.token_reissue must not be shorter than shipping.token_validity", ErrInvalidConfig)
	}
	return nil
}

// IsProduction reports whether app.env is "production".
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
