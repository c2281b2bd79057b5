package iot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	// DefaultUserAgent identifies this SDK to the IoT services.
	DefaultUserAgent = "iot-sdk-go/" + Version

	// CorrelationIDHeader carries a unique id per request, for tracing a call
	// through the service logs.
	CorrelationIDHeader = "X-Correlation-ID"

	maxResponseSize = 32 << 20
)

// Version of the SDK, reported in the User-Agent header.
const Version = "1.0.0"

// RequestConfig describes a single call to an IoT service.
type RequestConfig struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header

	// Body is sent as JSON. A []byte body is sent as is.
	Body any

	// ETag is sent as If-Match, as required by deletes of versioned entities.
	ETag string

	// JWT is a token forwarded from an upstream caller. When set it is
	// exchanged for a service token instead of using the client's own
	// identity.
	JWT string

	// Scopes requested for the client's own token.
	Scopes []string
}

// Response is a successful service response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("could not decode response body: %w", err)
	}
	return nil
}

// ETag returns the entity tag of the response, used to delete the entity.
func (r *Response) ETag() string {
	return r.Header.Get("ETag")
}

// Request sends an authenticated request. The bearer token is the exchanged
// caller token when rc.JWT is set, and the client's own token otherwise. A
// token failure fails the request; it is never sent unauthenticated.
func (c *Client) Request(ctx context.Context, rc RequestConfig) (*Response, error) {
	if rc.URL == "" {
		return nil, ErrEmptyURL
	}
	if rc.Method == "" {
		rc.Method = http.MethodGet
	}

	bearer, err := c.bearerToken(ctx, rc)
	if err != nil {
		return nil, err
	}

	target, err := withQuery(rc.URL, rc.Query)
	if err != nil {
		return nil, err
	}

	body, err := encodeBody(rc.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, rc.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range rc.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if rc.ETag != "" {
		req.Header.Set("If-Match", rc.ETag)
	}
	if req.Header.Get(CorrelationIDHeader) == "" {
		req.Header.Set(CorrelationIDHeader, ulid.Make().String())
	}

	(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}).SetAuthHeader(req)

	log.Ctx(ctx).Debug().
		Str("method", rc.Method).
		Str("url", target).
		Str("correlation_id", req.Header.Get(CorrelationIDHeader)).
		Bool("forwarded_token", rc.JWT != "").
		Msg("sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", rc.Method, target, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", rc.Method, target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Ctx(ctx).Info().
			Str("method", rc.Method).
			Str("url", target).
			Int("status", resp.StatusCode).
			Msg("service returned an error status")

		return nil, &APIError{
			Method:     rc.Method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) bearerToken(ctx context.Context, rc RequestConfig) (string, error) {
	if rc.JWT != "" {
		return c.authenticator.ExchangeToken(ctx, rc.JWT)
	}
	return c.AccessToken(ctx, rc.Scopes...)
}

// withQuery merges query into the query string already present in rawURL.
func withQuery(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid request URL: %w", err)
	}

	merged := u.Query()
	for key, values := range query {
		for _, v := range values {
			merged.Add(key, v)
		}
	}
	u.RawQuery = strings.ReplaceAll(merged.Encode(), "+", "%20")

	return u.String(), nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("could not encode request body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}
