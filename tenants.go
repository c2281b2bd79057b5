package iot

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/leonardo-iot/iot-sdk-go/internal/cache"
	"github.com/leonardo-iot/iot-sdk-go/internal/config"
	"github.com/rs/zerolog/log"
)

// ErrUnknownTenant is returned for a tenant name not in the registry.
var ErrUnknownTenant = errors.New("unknown tenant")

// Tenants holds one Client per tenant, each with its own credentials and
// token cache. Clients are built on first use and kept for the tenant TTL; a
// client built again after expiry starts with an empty token cache.
type Tenants struct {
	services map[string]Service
	clients  cache.Cache[*Client]
	opts     []Option
}

// NewTenants creates a registry for the given tenants. The options apply to
// every tenant client.
func NewTenants(tenants []Service, opts ...Option) (*Tenants, error) {
	if len(tenants) == 0 {
		return nil, errors.New("no tenants configured")
	}

	services := make(map[string]Service, len(tenants))
	for _, svc := range tenants {
		if svc.Name == "" {
			return nil, errors.New("tenant without a name")
		}
		if _, ok := services[svc.Name]; ok {
			return nil, fmt.Errorf("tenant %q is listed twice", svc.Name)
		}
		services[svc.Name] = svc
	}

	clients, err := cache.New[*Client]("iot.tenant_clients", applyOptions(opts).tenantTTL, len(services))
	if err != nil {
		return nil, err
	}

	return &Tenants{
		services: services,
		clients:  clients,
		opts:     opts,
	}, nil
}

// LoadTenants creates a registry from a YAML tenants file.
func LoadTenants(path string, opts ...Option) (*Tenants, error) {
	tenants, err := config.LoadTenants(path)
	if err != nil {
		return nil, err
	}
	return NewTenants(tenants, opts...)
}

// Client returns the client of the named tenant.
func (t *Tenants) Client(ctx context.Context, name string) (*Client, error) {
	svc, ok := t.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, name)
	}

	if client, found, err := t.clients.Get(ctx, name); err == nil && found {
		return client, nil
	}

	client, err := NewWithService(svc, t.opts...)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", name, err)
	}

	if err := t.clients.Set(ctx, name, client); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("tenant", name).Msg("could not cache tenant client")
	}

	return client, nil
}

// Names lists the tenants in sorted order.
func (t *Tenants) Names() []string {
	return slices.Sorted(maps.Keys(t.services))
}

// Close releases the cached tenant clients.
func (t *Tenants) Close() error {
	return t.clients.Close()
}
