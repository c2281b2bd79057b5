// Package xsuaa validates caller tokens issued by an XSUAA identity provider
// and exchanges them for tokens of another service.
package xsuaa

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/leonardo-iot/iot-sdk-go/internal/auth"
	"github.com/leonardo-iot/iot-sdk-go/internal/cache"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	keySetTTL          = 15 * time.Minute
	maxKeySets         = 64
	minRefreshInterval = time.Minute
	defaultSkew        = 30 * time.Second
	keySetPath         = "/token_keys"
	maxKeySetBytes     = 1 << 20
)

// Broker creates security contexts for tokens issued by an XSUAA tenant. Key
// sets are fetched from the tenant's token_keys endpoint and cached. A cached
// set is refreshed early only when a token names a key it does not hold, at
// most once per refresh interval for each endpoint.
type Broker struct {
	client          *http.Client
	keySets         cache.Cache[jwk.Set]
	skew            time.Duration
	refreshInterval time.Duration

	mu        sync.Mutex
	refreshes map[string]*rate.Limiter
}

type Option func(*Broker)

func WithHTTPClient(client *http.Client) Option {
	return func(b *Broker) {
		b.client = client
	}
}

// WithKeySetCache replaces the default in-memory key set cache.
func WithKeySetCache(keySets cache.Cache[jwk.Set]) Option {
	return func(b *Broker) {
		b.keySets = keySets
	}
}

// WithAcceptableSkew sets the clock skew tolerated when checking exp and nbf.
func WithAcceptableSkew(skew time.Duration) Option {
	return func(b *Broker) {
		b.skew = skew
	}
}

// WithMinRefreshInterval sets the minimum time between refreshes of a key
// set caused by tokens signed with an unknown key.
func WithMinRefreshInterval(interval time.Duration) Option {
	return func(b *Broker) {
		b.refreshInterval = interval
	}
}

func New(opts ...Option) (*Broker, error) {
	b := &Broker{
		client:          http.DefaultClient,
		skew:            defaultSkew,
		refreshInterval: minRefreshInterval,
		refreshes:       map[string]*rate.Limiter{},
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.keySets == nil {
		keySets, err := cache.New[jwk.Set]("xsuaa.token_keys", keySetTTL, maxKeySets)
		if err != nil {
			return nil, fmt.Errorf("could not create key set cache: %w", err)
		}
		b.keySets = keySets
	}

	return b, nil
}

// CreateSecurityContext verifies the token's signature and validity period
// against the key set of the XSUAA identified by brokerCreds, and checks that
// the token was issued for that XSUAA application.
func (b *Broker) CreateSecurityContext(ctx context.Context, token string, brokerCreds auth.Credentials) (auth.SecurityContext, error) {
	keysURL := keySetURL(brokerCreds.URL)

	parsed, err := b.verify(ctx, keysURL, token)
	if err != nil {
		return nil, &auth.SecurityContextError{Err: err}
	}

	if err := checkAudience(parsed, brokerCreds); err != nil {
		return nil, &auth.SecurityContextError{Err: err}
	}

	sc := &SecurityContext{
		token:  token,
		client: b.client,
	}
	// absent for tokens from older XSUAA releases; these are user tokens
	_ = parsed.Get("grant_type", &sc.grantType)
	_ = parsed.Get("zid", &sc.zoneID)
	sc.subject, _ = parsed.Subject()

	log.Ctx(ctx).Debug().
		Str("grant_type", sc.grantType).
		Str("zone", sc.zoneID).
		Msg("security context created")

	return sc, nil
}

// verify parses the token with the cached key set. When the token names a key
// the cached set lacks, the set is fetched again so rotated keys are picked
// up. Other failures never cause a fetch.
func (b *Broker) verify(ctx context.Context, keysURL string, token string) (jwt.Token, error) {
	keySet, cached, err := b.keySet(ctx, keysURL)
	if err != nil {
		return nil, err
	}

	if cached {
		if kid, unknown := unknownKeyID(token, keySet); unknown {
			if !b.allowRefresh(keysURL) {
				log.Ctx(ctx).Debug().Str("url", keysURL).Str("kid", kid).Msg("unknown key id, refresh suppressed")
				return b.parse(token, keySet)
			}

			log.Ctx(ctx).Debug().Str("url", keysURL).Str("kid", kid).Msg("unknown key id, refreshing key set")
			_ = b.keySets.Invalidate(ctx, keysURL)

			keySet, _, err = b.keySet(ctx, keysURL)
			if err != nil {
				return nil, err
			}
		}
	}

	return b.parse(token, keySet)
}

// allowRefresh reports whether the key set at keysURL may be fetched again
// ahead of its expiry.
func (b *Broker) allowRefresh(keysURL string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	limiter, ok := b.refreshes[keysURL]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(b.refreshInterval), 1)
		b.refreshes[keysURL] = limiter
	}
	return limiter.Allow()
}

// unknownKeyID returns the key id in the token header and whether keySet is
// missing that key. Tokens without a readable key id are never unknown.
func unknownKeyID(token string, keySet jwk.Set) (string, bool) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return "", false
	}

	for _, sig := range msg.Signatures() {
		kid, ok := sig.ProtectedHeaders().KeyID()
		if !ok || kid == "" {
			continue
		}
		if _, found := keySet.LookupKeyID(kid); !found {
			return kid, true
		}
	}
	return "", false
}

func (b *Broker) parse(token string, keySet jwk.Set) (jwt.Token, error) {
	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(b.skew),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	return parsed, nil
}

// keySet returns the key set published at keysURL, and whether it came from
// the cache.
func (b *Broker) keySet(ctx context.Context, keysURL string) (jwk.Set, bool, error) {
	if keySet, found, err := b.keySets.Get(ctx, keysURL); err == nil && found {
		return keySet, true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keysURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("key set request to %s returned status %d", keysURL, resp.StatusCode)
	}

	keySet, err := jwk.ParseReader(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, false, fmt.Errorf("could not decode key set: %w", err)
	}

	if err := b.keySets.Set(ctx, keysURL, keySet); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("url", keysURL).Msg("key set could not be cached")
	}

	return keySet, false, nil
}

// checkAudience accepts a token when its audience or client id names the
// broker client, or when it carries scopes of the broker's application.
func checkAudience(token jwt.Token, brokerCreds auth.Credentials) error {
	audience, _ := token.Audience()
	if slices.Contains(audience, brokerCreds.ClientID) {
		return nil
	}
	if brokerCreds.XSAppName != "" && slices.Contains(audience, brokerCreds.XSAppName) {
		return nil
	}

	var clientID string
	if err := token.Get("cid", &clientID); err == nil && clientID == brokerCreds.ClientID {
		return nil
	}

	if brokerCreds.XSAppName != "" {
		var scopes []any
		_ = token.Get("scope", &scopes)
		prefix := brokerCreds.XSAppName + "."
		for _, s := range scopes {
			if scope, ok := s.(string); ok && strings.HasPrefix(scope, prefix) {
				return nil
			}
		}
	}

	return fmt.Errorf("token audience %v was not issued for client %s", audience, brokerCreds.ClientID)
}

// keySetURL derives the token_keys endpoint from the XSUAA URL of a binding.
func keySetURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	base = strings.TrimSuffix(base, "/oauth/token")
	return base + keySetPath
}
