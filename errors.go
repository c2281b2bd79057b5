package iot

import (
	"errors"
	"fmt"

	"github.com/leonardo-iot/iot-sdk-go/internal/auth"
	"github.com/leonardo-iot/iot-sdk-go/internal/destination"
)

// Errors returned while obtaining tokens. Use errors.As with the pointer
// types and errors.Is with the sentinels.
type (
	ConfigurationError   = auth.ConfigurationError
	AuthEndpointError    = auth.EndpointError
	DecodeError          = auth.DecodeError
	SecurityContextError = auth.SecurityContextError
	TokenExchangeError   = auth.TokenExchangeError
)

var (
	ErrMissingBrokerConfig       = auth.ErrMissingBrokerConfig
	ErrMissingServiceCredentials = auth.ErrMissingServiceCredentials
	ErrUnknownDestination        = destination.ErrUnknownDestination

	// ErrEmptyURL is returned when a request has no URL.
	ErrEmptyURL = errors.New("request URL is empty")
)

// APIError is returned when a service answers with a non-2xx status.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}
