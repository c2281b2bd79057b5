package iot

import (
	"net/http"
	"time"

	"github.com/leonardo-iot/iot-sdk-go/internal/config"
	"github.com/leonardo-iot/iot-sdk-go/internal/observe"
)

// NewHTTPClient returns a client tuned for many concurrent calls to a small
// set of hosts, with optional rate limiting and OpenTelemetry spans.
func NewHTTPClient(httpCfg config.HTTPConfig, observeCfg config.ObserveConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = httpCfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = httpCfg.MaxConnsPerHost
	transport.MaxConnsPerHost = httpCfg.MaxConnsPerHost

	var roundTripper http.RoundTripper = transport
	roundTripper = observe.RateLimitedTransport(roundTripper, httpCfg.RateLimit, httpCfg.RateBurst)
	roundTripper = observe.HTTPTransport(roundTripper, observeCfg)

	return &http.Client{
		Transport: roundTripper,
		Timeout:   time.Duration(httpCfg.TimeoutSeconds) * time.Second,
	}
}
