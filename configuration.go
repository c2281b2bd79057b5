package iot

import (
	"context"
	"net/http"
	"net/url"

	"github.com/leonardo-iot/iot-sdk-go/internal/destination"
)

// Deletes of configuration entities require the entity's current ETag, as
// returned by the matching Get (see Response.ETag).

func (c *Client) CreatePackage(ctx context.Context, payload any, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigPackage, "/Package/v1/Packages")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodPost, URL: u, Body: payload}, opts)
}

func (c *Client) GetPackage(ctx context.Context, packageName string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigPackage, "/Package/v1/Packages(%s)", key(packageName))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u}, opts)
}

func (c *Client) ListPackages(ctx context.Context, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigPackage, "/Package/v1/Packages")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

func (c *Client) DeletePackage(ctx context.Context, packageName, etag string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigPackage, "/Package/v1/Packages(%s)", key(packageName))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodDelete, URL: u, ETag: etag}, opts)
}

// CreatePropertySetType creates a property set type in a package.
func (c *Client) CreatePropertySetType(ctx context.Context, packageName string, payload any, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v1/Packages(%s)/PropertySetTypes", key(packageName))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodPost, URL: u, Body: payload}, opts)
}

func (c *Client) GetPropertySetType(ctx context.Context, name string, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v1/PropertySetTypes(%s)", key(name))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

func (c *Client) ListPropertySetTypes(ctx context.Context, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v1/PropertySetTypes")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

func (c *Client) ListPropertySetTypesByPackage(ctx context.Context, packageName string, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v1/Packages(%s)/PropertySetTypes", key(packageName))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

func (c *Client) DeletePropertySetType(ctx context.Context, name, etag string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v1/PropertySetTypes(%s)", key(name))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodDelete, URL: u, ETag: etag}, opts)
}

// CreateThingType creates a thing type in a package. Creation uses the v2
// API, which accepts the full type definition in one payload.
func (c *Client) CreateThingType(ctx context.Context, packageName string, payload any, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v2/Packages(%s)/ThingTypes", key(packageName))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodPost, URL: u, Body: payload}, opts)
}

func (c *Client) GetThingType(ctx context.Context, name string, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v1/ThingTypes(%s)", key(name))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

func (c *Client) ListThingTypes(ctx context.Context, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v1/ThingTypes")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

func (c *Client) ListThingTypesByPackage(ctx context.Context, packageName string, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v1/Packages(%s)/ThingTypes", key(packageName))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

func (c *Client) DeleteThingType(ctx context.Context, name, etag string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.ConfigThing, "/ThingConfiguration/v1/ThingTypes(%s)", key(name))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodDelete, URL: u, ETag: etag}, opts)
}
