package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingBrokerConfig is returned by ExchangeToken when no identity
	// broker credentials have been configured.
	ErrMissingBrokerConfig = errors.New("token exchange requires identity broker credentials")

	// ErrMissingServiceCredentials is returned by ExchangeToken when the
	// Authenticator has no service credentials of its own.
	ErrMissingServiceCredentials = errors.New("token exchange requires service credentials")
)

// ConfigurationError reports incomplete credential data supplied to an
// Authenticator.
type ConfigurationError struct {
	Fields []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("incomplete credentials: missing or invalid %s", strings.Join(e.Fields, ", "))
}

// EndpointError is returned when the token endpoint cannot be reached or
// answers with a non-2xx status.
type EndpointError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *EndpointError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token endpoint request failed: %v", e.Err)
	}
	return fmt.Sprintf("token endpoint returned status %d: %s", e.StatusCode, e.Body)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a received access token is not a structurally
// valid JWT.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("access token could not be decoded: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SecurityContextError is returned when the identity broker rejects the
// caller-supplied token.
type SecurityContextError struct {
	Err error
}

func (e *SecurityContextError) Error() string {
	return fmt.Sprintf("security context could not be created: %v", e.Err)
}

func (e *SecurityContextError) Unwrap() error {
	return e.Err
}

// TokenExchangeError is returned when the identity broker rejects the
// exchange request.
type TokenExchangeError struct {
	StatusCode int
	Err        error
}

func (e *TokenExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
