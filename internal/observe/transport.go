package observe

import (
	"context"
	"net/http"
	"net/http/httptrace"

	"github.com/leonardo-iot/iot-sdk-go/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPTransport wraps the transport with OpenTelemetry client spans when
// telemetry is enabled. Connection level events are added to the spans when
// connection tracing is enabled.
func HTTPTransport(wrapped http.RoundTripper, cfg config.ObserveConfig) http.RoundTripper {
	if !cfg.Enabled || !cfg.HTTPTransportEnabled {
		return wrapped
	}

	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(SpanName),
	}

	if cfg.HTTPConnectionTraceEnabled {
		opts = append(opts, otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}))
	}

	return otelhttp.NewTransport(wrapped, opts...)
}

// SpanName names outbound spans by method and host. Paths carry entity ids,
// so they are left out to keep span names low in cardinality.
func SpanName(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Host
}
