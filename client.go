// Package iot is a client for the SAP Leonardo IoT REST services. It resolves
// service endpoints, obtains and caches OAuth2 tokens, and turns service
// operations into authenticated HTTP requests.
package iot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/leonardo-iot/iot-sdk-go/internal/auth"
	"github.com/leonardo-iot/iot-sdk-go/internal/cache"
	"github.com/leonardo-iot/iot-sdk-go/internal/config"
	"github.com/leonardo-iot/iot-sdk-go/internal/destination"
	"github.com/leonardo-iot/iot-sdk-go/internal/xsuaa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/oauth2"
)

const maxKeySets = 64

type (
	// Service describes one IoT tenant: its UAA credentials, optional
	// identity broker, and service endpoints.
	Service = config.Service

	// Credentials are the OAuth2 client credentials of a service binding.
	Credentials = auth.Credentials
)

// Client calls the IoT services of a single tenant. It is safe for concurrent
// use.
type Client struct {
	authenticator *auth.Authenticator
	navigator     *destination.Navigator
	httpClient    *http.Client
	userAgent     string
}

type clientOptions struct {
	httpClient *http.Client
	userAgent  string
	broker     auth.Broker
	keySetTTL  time.Duration
	tenantTTL  time.Duration
}

type Option func(*clientOptions)

func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithUserAgent replaces the default User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		o.userAgent = userAgent
	}
}

// WithBroker replaces the XSUAA broker used to exchange forwarded tokens.
func WithBroker(broker auth.Broker) Option {
	return func(o *clientOptions) {
		o.broker = broker
	}
}

// WithKeySetTTL sets how long identity provider key sets are cached.
func WithKeySetTTL(ttl time.Duration) Option {
	return func(o *clientOptions) {
		o.keySetTTL = ttl
	}
}

// WithTenantTTL sets how long Tenants keeps a tenant client before building
// it again.
func WithTenantTTL(ttl time.Duration) Option {
	return func(o *clientOptions) {
		o.tenantTTL = ttl
	}
}

func defaultOptions() clientOptions {
	return clientOptions{
		httpClient: http.DefaultClient,
		userAgent:  DefaultUserAgent,
		keySetTTL:  15 * time.Minute,
		tenantTTL:  24 * time.Hour,
	}
}

func applyOptions(opts []Option) clientOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a client from the environment: explicit IOT_UAA_* settings,
// the service binding in VCAP_SERVICES, or a local default-env.json.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("configuration load failed: %w", err)
	}

	svc, err := config.ResolveService(ctx, cfg)
	if err != nil {
		return nil, err
	}

	defaults := []Option{
		WithHTTPClient(NewHTTPClient(cfg.HTTP, cfg.Observe)),
		WithKeySetTTL(time.Duration(cfg.Cache.KeySetTTLSeconds) * time.Second),
		WithTenantTTL(time.Duration(cfg.Cache.TenantTTLSeconds) * time.Second),
	}

	return NewWithService(svc, append(defaults, opts...)...)
}

// NewWithService creates a client for the given service. Token exchange is
// available when the service has identity broker credentials.
func NewWithService(svc Service, opts ...Option) (*Client, error) {
	o := applyOptions(opts)

	authOpts := []auth.Option{auth.WithHTTPClient(o.httpClient)}

	if svc.XSUAA != nil {
		broker := o.broker
		if broker == nil {
			keySets, err := cache.New[jwk.Set]("xsuaa.token_keys", o.keySetTTL, maxKeySets)
			if err != nil {
				return nil, err
			}

			broker, err = xsuaa.New(
				xsuaa.WithHTTPClient(o.httpClient),
				xsuaa.WithKeySetCache(keySets),
			)
			if err != nil {
				return nil, err
			}
		}
		authOpts = append(authOpts, auth.WithBroker(broker, *svc.XSUAA))
	}

	authenticator, err := auth.New(svc.UAA, authOpts...)
	if err != nil {
		return nil, err
	}

	navigator, err := destination.New(svc.Endpoints)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", svc.Name, err)
	}

	return &Client{
		authenticator: authenticator,
		navigator:     navigator,
		httpClient:    o.httpClient,
		userAgent:     o.userAgent,
	}, nil
}

// AccessToken returns a bearer token of the service's own identity, reusing
// the cached token when it is valid for the requested scopes.
func (c *Client) AccessToken(ctx context.Context, scopes ...string) (string, error) {
	token, err := c.authenticator.ObtainToken(ctx, scopes...)
	if err != nil {
		return "", err
	}
	return token.AccessToken(), nil
}

// TokenSource returns the client's own identity as an oauth2.TokenSource, for
// use with oauth2.NewClient against services this SDK does not cover.
func (c *Client) TokenSource(ctx context.Context, scopes ...string) oauth2.TokenSource {
	return c.authenticator.TokenSource(ctx, scopes...)
}

// ExchangeToken converts a forwarded caller token into a token for the IoT
// services. A "Bearer " prefix is accepted.
func (c *Client) ExchangeToken(ctx context.Context, callerToken string) (string, error) {
	return c.authenticator.ExchangeToken(ctx, callerToken)
}

// Destination returns the base URL of a service by name.
func (c *Client) Destination(name string) (string, error) {
	return c.navigator.Destination(name)
}
