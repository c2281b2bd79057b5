package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	UAA     UAAConfig
	XSUAA   XSUAAConfig
	Binding BindingConfig
	HTTP    HTTPConfig
	Cache   CacheConfig
	Observe ObserveConfig
}

// UAAConfig supplies the IoT service credentials explicitly. When URL is
// empty the credentials are discovered from the service binding instead.
type UAAConfig struct {
	URL          string `env:"IOT_UAA_URL"`
	ClientID     string `env:"IOT_UAA_CLIENT_ID"`
	ClientSecret string `env:"IOT_UAA_CLIENT_SECRET"`

	// ClientSecretKMSCiphertext is a base64 AWS KMS ciphertext of the client
	// secret. It takes precedence over ClientSecret.
	ClientSecretKMSCiphertext string `env:"IOT_UAA_CLIENT_SECRET_KMS_CIPHERTEXT"`

	// Endpoints maps service names to base URLs, as name:url pairs.
	Endpoints map[string]string `env:"IOT_ENDPOINTS"`
}

// XSUAAConfig supplies the identity broker credentials used to exchange
// caller tokens.
type XSUAAConfig struct {
	URL          string `env:"XSUAA_URL"`
	ClientID     string `env:"XSUAA_CLIENT_ID"`
	ClientSecret string `env:"XSUAA_CLIENT_SECRET"`
	XSAppName    string `env:"XSUAA_XSAPPNAME"`
}

type BindingConfig struct {
	// ServiceName selects the bound IoT service instance by name. Without it
	// the first instance tagged "leonardoiot" is used.
	ServiceName    string `env:"IOT_SERVICE_NAME"`
	VCAPServices   string `env:"VCAP_SERVICES"`
	DefaultEnvFile string `env:"IOT_DEFAULT_ENV_FILE, default=default-env.json"`
}

type HTTPConfig struct {
	TimeoutSeconds  int     `env:"IOT_HTTP_TIMEOUT_SECS, default=30"`
	MaxIdleConns    int     `env:"IOT_HTTP_MAX_IDLE_CONNS, default=100"`
	MaxConnsPerHost int     `env:"IOT_HTTP_MAX_CONNS_PER_HOST, default=20"`
	RateLimit       float64 `env:"IOT_HTTP_RATE_LIMIT, default=0"`
	RateBurst       int     `env:"IOT_HTTP_RATE_BURST, default=10"`
}

// CacheConfig sizes the in-process caches.
type CacheConfig struct {
	KeySetTTLSeconds int `env:"IOT_CACHE_KEYSET_TTL_SECS, default=900"`
	TenantTTLSeconds int `env:"IOT_CACHE_TENANT_TTL_SECS, default=86400"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=iot-sdk-go"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	if err := cfg.HTTP.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid HTTP configuration: %w", err)
	}

	if err := cfg.Cache.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}

	if err := cfg.Observe.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid observability configuration: %w", err)
	}

	return cfg, nil
}

func (c *HTTPConfig) Validate() error {
	if c.TimeoutSeconds <= 0 {
		return errors.New("IOT_HTTP_TIMEOUT_SECS must be positive")
	}
	if c.RateLimit < 0 {
		return errors.New("IOT_HTTP_RATE_LIMIT must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return errors.New("IOT_HTTP_RATE_BURST must be positive when rate limiting")
	}
	return nil
}

func (c *CacheConfig) Validate() error {
	if c.KeySetTTLSeconds <= 0 || c.TenantTTLSeconds <= 0 {
		return errors.New("cache TTLs must be positive")
	}
	return nil
}

func (c *ObserveConfig) Validate() error {
	switch c.Type {
	case "grpc", "stdout":
		return nil
	default:
		return fmt.Errorf("OBSERVE_TYPE must be grpc or stdout, got %q", c.Type)
	}
}
