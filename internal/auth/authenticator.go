package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/leonardo-iot/iot-sdk-go/internal/auth"

var (
	tracer = otel.Tracer(instrumentationName)

	metricsOnce   sync.Once
	tokenRequests metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		tokenRequests, err = otel.Meter(instrumentationName).Int64Counter(
			"auth.token.requests",
			metric.WithDescription("Token requests by source and outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// ExchangeGrant selects the flavour of token the broker issues on exchange.
type ExchangeGrant int

const (
	UserTokenGrant ExchangeGrant = iota
	ClientCredentialsTokenGrant
)

func (g ExchangeGrant) String() string {
	if g == ClientCredentialsTokenGrant {
		return "client_credentials"
	}
	return "user_token"
}

// SecurityContext is a caller identity validated by an identity broker.
type SecurityContext interface {
	// GrantType is the grant the caller's token was originally issued with.
	GrantType() string

	// RequestToken exchanges the caller identity for a token of the service
	// identified by creds.
	RequestToken(ctx context.Context, creds Credentials, grant ExchangeGrant) (string, error)
}

// Broker validates caller-supplied tokens against an identity provider.
type Broker interface {
	CreateSecurityContext(ctx context.Context, token string, brokerCreds Credentials) (SecurityContext, error)
}

// Authenticator obtains bearer tokens for a single set of service
// credentials.
//
// It holds at most one token. The slot is read and replaced without a lock,
// so concurrent callers that both miss will both request a token, and the
// last response to arrive is kept.
type Authenticator struct {
	credentials       Credentials
	brokerCredentials *Credentials
	broker            Broker
	client            *http.Client

	cached atomic.Pointer[Token]
}

type Option func(*Authenticator)

// WithHTTPClient sets the client used for token endpoint requests.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Authenticator) {
		a.client = client
	}
}

// WithBroker enables ExchangeToken through the given broker, which validates
// caller tokens using brokerCreds.
func WithBroker(broker Broker, brokerCreds Credentials) Option {
	return func(a *Authenticator) {
		a.broker = broker
		a.brokerCredentials = &brokerCreds
	}
}

// New creates an Authenticator. It fails with a *ConfigurationError if the
// token endpoint URL, client id or client secret is missing.
func New(creds Credentials, opts ...Option) (*Authenticator, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	a := &Authenticator{
		credentials: creds,
		client:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(a)
	}

	initMetrics()

	return a, nil
}

// TokenEndpoint is the URL client credential grants are posted to.
func (a *Authenticator) TokenEndpoint() string {
	return a.credentials.TokenEndpoint()
}

// ObtainToken returns a token of the service's own identity. The cached token
// is returned when it has not expired and either no scopes are requested or
// the requested scopes are exactly the cached token's scopes. Otherwise a new
// token is requested with the client credentials grant and replaces the
// cached one.
//
// Failed requests are not retried and leave the cached token untouched.
func (a *Authenticator) ObtainToken(ctx context.Context, scopes ...string) (*Token, error) {
	ctx, span := tracer.Start(ctx, "auth.obtain_token")
	defer span.End()

	logger := log.Ctx(ctx)
	scopes = requestedScopes(scopes)

	if cached := a.cached.Load(); reusable(cached, scopes) {
		logger.Debug().
			Time("expiry", cached.ExpiresAt()).
			Strs("scopes", cached.scopes).
			Msg("hit: reusing cached token")
		span.SetAttributes(attribute.String("auth.token.cache", "hit"))
		a.recordRequest(ctx, "cache", "hit")

		return cached, nil
	}

	span.SetAttributes(attribute.String("auth.token.cache", "miss"))
	logger.Debug().Strs("scopes", scopes).Msg("miss: requesting token")

	resp, err := RequestGrant(ctx, a.client, a.credentials, ClientCredentialsForm(scopes))
	if err != nil {
		var endpointErr *EndpointError
		if errors.As(err, &endpointErr) && endpointErr.StatusCode != 0 {
			logger.Info().Int("status", endpointErr.StatusCode).Msg("token endpoint rejected client credentials grant")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "token request failed")
		a.recordRequest(ctx, "client_credentials", "error")

		return nil, err
	}

	token, err := NewToken(resp.AccessToken, resp.Lifetime())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token decode failed")
		a.recordRequest(ctx, "client_credentials", "error")

		return nil, err
	}

	a.cached.Store(token)
	a.recordRequest(ctx, "client_credentials", "success")

	logger.Debug().
		Time("expiry", token.ExpiresAt()).
		Strs("scopes", token.scopes).
		Msg("token cached")

	return token, nil
}

// reusable reports whether the cached token may satisfy a request for scopes.
func reusable(cached *Token, scopes []string) bool {
	if cached == nil || cached.IsExpired() {
		return false
	}
	return len(scopes) == 0 || cached.HasScopes(scopes)
}

// ExchangeToken converts a token issued to an upstream caller into a token for
// this service, using the identity broker. The exchanged token is tied to the
// caller's identity and is never cached.
func (a *Authenticator) ExchangeToken(ctx context.Context, callerToken string) (string, error) {
	if a.broker == nil || a.brokerCredentials == nil {
		return "", ErrMissingBrokerConfig
	}
	if a.credentials.IsZero() {
		return "", ErrMissingServiceCredentials
	}

	ctx, span := tracer.Start(ctx, "auth.exchange_token")
	defer span.End()

	token := trimBearerPrefix(callerToken)

	securityContext, err := a.broker.CreateSecurityContext(ctx, token, *a.brokerCredentials)
	if err != nil {
		var contextErr *SecurityContextError
		if !errors.As(err, &contextErr) {
			err = &SecurityContextError{Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "security context rejected")
		a.recordRequest(ctx, "exchange", "error")

		return "", err
	}

	grant := UserTokenGrant
	if securityContext.GrantType() == GrantTypeClientCredentials {
		grant = ClientCredentialsTokenGrant
	}
	span.SetAttributes(attribute.String("auth.exchange.grant", grant.String()))

	exchanged, err := securityContext.RequestToken(ctx, a.credentials, grant)
	if err != nil {
		var exchangeErr *TokenExchangeError
		if !errors.As(err, &exchangeErr) {
			err = &TokenExchangeError{Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "token exchange rejected")
		a.recordRequest(ctx, "exchange", "error")

		return "", err
	}

	a.recordRequest(ctx, "exchange", "success")
	log.Ctx(ctx).Debug().Str("grant", grant.String()).Msg("caller token exchanged")

	return exchanged, nil
}

// trimBearerPrefix strips a leading "Bearer" or "bearer" followed by
// whitespace.
func trimBearerPrefix(token string) string {
	for _, prefix := range []string{"Bearer", "bearer"} {
		rest, found := strings.CutPrefix(token, prefix)
		if found && rest != "" && unicode.IsSpace(rune(rest[0])) {
			return strings.TrimSpace(rest)
		}
	}
	return token
}

func (a *Authenticator) recordRequest(ctx context.Context, source, outcome string) {
	if tokenRequests == nil {
		return
	}
	tokenRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("auth.token.source", source),
			attribute.String("auth.token.outcome", outcome),
		),
	)
}
