package iot

import (
	"context"
	"net/http"
	"net/url"

	"github.com/leonardo-iot/iot-sdk-go/internal/destination"
)

// CreateThing creates a thing instance of an existing thing type.
func (c *Client) CreateThing(ctx context.Context, payload any, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "/Things")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodPost, URL: u, Body: payload}, opts)
}

func (c *Client) GetThing(ctx context.Context, thingID string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "/Things(%s)", key(thingID))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u}, opts)
}

// GetThingByAlternateID reads a thing by the identifier its creator assigned.
func (c *Client) GetThingByAlternateID(ctx context.Context, alternateID string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "/ThingsByAlternateId(%s)", key(alternateID))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u}, opts)
}

func (c *Client) ListThings(ctx context.Context, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "/Things")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

// ListThingsByThingType lists the things of one thing type. Any $filter in
// query is kept and narrowed to the type.
func (c *Client) ListThingsByThingType(ctx context.Context, thingType string, query url.Values, opts ...RequestOption) (*Response, error) {
	return c.ListThings(ctx, withFilter(query, "_thingType eq '"+literal(thingType)+"'"), opts...)
}

func (c *Client) DeleteThing(ctx context.Context, thingID string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "/Things(%s)", key(thingID))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodDelete, URL: u}, opts)
}

func (c *Client) CreateEvent(ctx context.Context, payload any, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "/Events")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodPost, URL: u, Body: payload}, opts)
}

func (c *Client) GetEvent(ctx context.Context, eventID string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "/Events(%s)", key(eventID))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u}, opts)
}

func (c *Client) ListEvents(ctx context.Context, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "/Events")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

// ListEventsByThing lists the events raised for one thing.
func (c *Client) ListEventsByThing(ctx context.Context, thingID string, query url.Values, opts ...RequestOption) (*Response, error) {
	return c.ListEvents(ctx, withFilter(query, "_thingId eq '"+literal(thingID)+"'"), opts...)
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "/Events(%s)", key(eventID))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodDelete, URL: u}, opts)
}
