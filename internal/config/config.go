// Package config loads storefront settings from defaults and the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/imrishuroy/go-storefront-cart/internal/money"
)

// EnvPrefix prefixes every storefront variable; "__" separates nesting
// levels, e.g. STOREFRONT_CATALOG__BASE_URL.
const EnvPrefix = "STOREFRONT_"

type Config struct {
	App struct {
		HTTPAddr        string        `koanf:"http_addr"`
		RunLocal        bool          `koanf:"run_local"`
		CartViewTimeout time.Duration `koanf:"cart_view_timeout"`
	} `koanf:"app"`

	Log struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"log"`

	Catalog struct {
		BaseURL       string        `koanf:"base_url"`
		Timeout       time.Duration `koanf:"timeout"`
		RatePerSecond float64       `koanf:"rate_per_second"`
		Burst         int           `koanf:"burst"`
	} `koanf:"catalog"`

	Pricing struct {
		ShippingFee string `koanf:"shipping_fee"`
	} `koanf:"pricing"`

	AWS struct {
		Region           string        `koanf:"region"`
		EndpointOverride string        `koanf:"endpoint_override"`
		OrdersTable      string        `koanf:"orders_table"`
		IdempotencyTable string        `koanf:"idempotency_table"`
		OrdersQueueURL   string        `koanf:"orders_queue_url"`
		IdempotencyTTL   time.Duration `koanf:"idempotency_ttl"`
		MetricsNamespace string        `koanf:"metrics_namespace"`
	} `koanf:"aws"`
}

var defaults = map[string]interface{}{
	"app.http_addr":           ":8080",
	"app.run_local":           false,
	"app.cart_view_timeout":   "2s",
	"log.level":               "info",
	"log.file":                "",
	"catalog.base_url":        "http://localhost:3000",
	"catalog.timeout":         "5s",
	"catalog.rate_per_second": 50.0,
	"catalog.burst":           10,
	"pricing.shipping_fee":    "3,50",
	"aws.region":              "us-east-1",
	"aws.endpoint_override":   "",
	"aws.orders_table":        "orders",
	"aws.idempotency_table":   "idempotency",
	"aws.orders_queue_url":    "",
	"aws.idempotency_ttl":     "48h",
	"aws.metrics_namespace":   "Storefront",
}

// Unprefixed variables understood for compatibility with existing deployments.
var legacyEnv = map[string]string{
	"RUN_LOCAL":             "app.run_local",
	"AWS_REGION":            "aws.region",
	"AWS_ENDPOINT_OVERRIDE": "aws.endpoint_override",
	"ORDERS_TABLE":          "aws.orders_table",
	"IDEMPOTENCY_TABLE":     "aws.idempotency_table",
	"ORDERS_QUEUE_URL":      "aws.orders_queue_url",
	"CATALOG_BASE_URL":      "catalog.base_url",
}

// Load builds the configuration: defaults, then legacy variables, then
// STOREFRONT_ variables. The result is validated.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("legacy env overlay: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	u, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("catalog.base_url must be an absolute URL, got %q", c.Catalog.BaseURL)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive")
	}
	if strings.TrimSpace(c.Pricing.ShippingFee) == "" {
		return fmt.Errorf("pricing.shipping_fee required")
	}
	if c.AWS.OrdersTable == "" || c.AWS.IdempotencyTable == "" {
		return fmt.Errorf("aws.orders_table and aws.idempotency_table required")
	}
	return nil
}

// ShippingFee is the fixed delivery fee added to every cart total.
func (c Config) ShippingFee() money.Money {
	return money.Parse(c.Pricing.ShippingFee)
}
