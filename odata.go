package iot

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"
)

// send applies opts to rc and dispatches it.
func (c *Client) send(ctx context.Context, rc RequestConfig, opts []RequestOption) (*Response, error) {
	for _, opt := range opts {
		opt(&rc)
	}
	return c.Request(ctx, rc)
}

// endpoint joins a destination's base URL with a resource path.
func (c *Client) endpoint(destination string, path string, args ...any) (string, error) {
	base, err := c.navigator.Destination(destination)
	if err != nil {
		return "", err
	}
	return base + fmt.Sprintf(path, args...), nil
}

// key renders s as a quoted OData key, safe to place in a path.
func key(s string) string {
	return "'" + url.PathEscape(literal(s)) + "'"
}

// literal doubles single quotes, as OData string literals require.
func literal(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// segment escapes s as a single path segment.
func segment(s string) string {
	return url.PathEscape(s)
}

// withFilter returns a copy of query with clause and-ed onto its $filter.
func withFilter(query url.Values, clause string) url.Values {
	q := maps.Clone(query)
	if q == nil {
		q = url.Values{}
	}

	if existing := q.Get("$filter"); existing != "" {
		q.Set("$filter", existing+" and "+clause)
	} else {
		q.Set("$filter", clause)
	}

	return q
}

// timerange formats an inclusive time range for the time series stores.
func timerange(from, to time.Time) string {
	return formatTime(from) + "-" + formatTime(to)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
