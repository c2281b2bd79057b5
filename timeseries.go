package iot

import (
	"context"
	"maps"
	"net/http"
	"net/url"
	"time"

	"github.com/leonardo-iot/iot-sdk-go/internal/destination"
)

// PropertySet addresses the time series of one property set of a thing.
type PropertySet struct {
	ThingID       string
	ThingType     string
	PropertySetID string
}

func (p PropertySet) path() string {
	return "/Things(" + key(p.ThingID) + ")/" + segment(p.ThingType) + "/" + segment(p.PropertySetID)
}

// CreateTimeSeriesData writes measurements to the time series store.
func (c *Client) CreateTimeSeriesData(ctx context.Context, ps PropertySet, payload any, opts ...RequestOption) (*Response, error) {
	return c.putTimeSeries(ctx, destination.AppiotMDS, ps, payload, opts)
}

func (c *Client) GetTimeSeriesData(ctx context.Context, ps PropertySet, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "%s", ps.path())
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u, Query: query}, opts)
}

// DeleteTimeSeriesData deletes the measurements recorded between from and to.
func (c *Client) DeleteTimeSeriesData(ctx context.Context, ps PropertySet, from, to time.Time, opts ...RequestOption) (*Response, error) {
	return c.deleteTimeSeries(ctx, destination.AppiotMDS, ps, from, to, opts)
}

// RecalculateAggregate rebuilds the aggregates of a property set for a time
// range, after measurements were changed or deleted.
func (c *Client) RecalculateAggregate(ctx context.Context, ps PropertySet, from, to time.Time, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS, "%s/RecalculateAggregate", ps.path())
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{
		Method: http.MethodPost,
		URL:    u,
		Query:  url.Values{"timerange": {timerange(from, to)}},
	}, opts)
}

// CreateColdStoreTimeSeriesData writes measurements to the cold store.
func (c *Client) CreateColdStoreTimeSeriesData(ctx context.Context, ps PropertySet, payload any, opts ...RequestOption) (*Response, error) {
	return c.putTimeSeries(ctx, destination.AppiotColdstore, ps, payload, opts)
}

// GetColdStoreTimeSeriesData reads cold store measurements between from and
// to. The cold store rejects reads without a time range.
func (c *Client) GetColdStoreTimeSeriesData(ctx context.Context, ps PropertySet, from, to time.Time, query url.Values, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotColdstore, "%s", ps.path())
	if err != nil {
		return nil, err
	}

	q := maps.Clone(query)
	if q == nil {
		q = url.Values{}
	}
	q.Set("timerange", timerange(from, to))

	return c.send(ctx, RequestConfig{URL: u, Query: q}, opts)
}

func (c *Client) DeleteColdStoreTimeSeriesData(ctx context.Context, ps PropertySet, from, to time.Time, opts ...RequestOption) (*Response, error) {
	return c.deleteTimeSeries(ctx, destination.AppiotColdstore, ps, from, to, opts)
}

// GetThingSnapshot reads the latest value of every property of a thing. An
// empty dataCategory returns all categories.
func (c *Client) GetThingSnapshot(ctx context.Context, thingID, dataCategory string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS,
		"/Snapshot(thingId=%s,fromTime='',dataCategory=%s)",
		key(thingID), key(dataCategory))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u}, opts)
}

// GetThingSnapshotWithinTimeRange reads the latest value of every property
// of a thing recorded between from and to.
func (c *Client) GetThingSnapshotWithinTimeRange(ctx context.Context, thingID string, from, to time.Time, dataCategory string, opts ...RequestOption) (*Response, error) {
	u, err := c.endpoint(destination.AppiotMDS,
		"/v2/Snapshot(thingId=%s,fromTime=%s,toTime=%s,dataCategory=%s)",
		key(thingID), key(formatTime(from)), key(formatTime(to)), key(dataCategory))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{URL: u}, opts)
}

func (c *Client) putTimeSeries(ctx context.Context, store string, ps PropertySet, payload any, opts []RequestOption) (*Response, error) {
	u, err := c.endpoint(store, "%s", ps.path())
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{Method: http.MethodPut, URL: u, Body: payload}, opts)
}

func (c *Client) deleteTimeSeries(ctx context.Context, store string, ps PropertySet, from, to time.Time, opts []RequestOption) (*Response, error) {
	u, err := c.endpoint(store, "%s", ps.path())
	if err != nil {
		return nil, err
	}
	return c.send(ctx, RequestConfig{
		Method: http.MethodDelete,
		URL:    u,
		Query:  url.Values{"timerange": {timerange(from, to)}},
	}, opts)
}
