package observe

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimitedTransport delays outbound requests so they do not exceed the
// configured rate.
type rateLimitedTransport struct {
	wrapped http.RoundTripper
	limiter *rate.Limiter
}

// RateLimitedTransport limits requests to perSecond with the given burst. A
// rate of zero returns the transport unchanged.
func RateLimitedTransport(wrapped http.RoundTripper, perSecond float64, burst int) http.RoundTripper {
	if perSecond <= 0 {
		return wrapped
	}

	return &rateLimitedTransport{
		wrapped: wrapped,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.wrapped.RoundTrip(req)
}
