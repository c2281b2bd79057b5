package iot

import (
	"context"
	"net/http"
	"net/url"

	"github.com/leonardo-iot/iot-sdk-go/internal/destination"
)

func (c *Client) CreateObjectGroup(ctx context.Context, payload any, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.Authorization, "/ObjectGroups")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodPost, URL: u, Body: payload}, opts)
}

func (c *Client) GetObjectGroup(ctx context.Context, objectGroupID string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.Authorization, "/ObjectGroups(%s)", key(objectGroupID))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u}, opts)
}

func (c *Client) ListObjectGroups(ctx context.Context, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.Authorization, "/ObjectGroups")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

// GetRootObjectGroup reads the object group every tenant object belongs to.
func (c *Client) GetRootObjectGroup(ctx context.Context, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.Authorization, "/ObjectGroups/TenantRoot")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u}, opts)
}

func (c *Client) DeleteObjectGroup(ctx context.Context, objectGroupID, etag string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.Authorization, "/ObjectGroups(%s)", key(objectGroupID))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodDelete, URL: u, ETag: etag}, opts)
}
