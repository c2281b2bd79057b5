package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Token is an immutable bearer credential with the scopes it was granted and
// the instant it stops being usable.
type Token struct {
	value     string
	scopes    []string
	expiresAt time.Time
}

// NewToken decodes the claims of the encoded JWT and returns a Token that
// expires lifetime from now. A negative lifetime yields a token that is
// already expired.
//
// The signature is NOT verified. The token has just been received from the
// token endpoint over an authenticated TLS channel, so the issuer is trusted
// and the claims are only read to learn the granted scopes. Tokens from any
// other source must not be passed here.
func NewToken(value string, lifetime time.Duration) (*Token, error) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(value, claims)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	scopes, err := scopeClaim(claims)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	return &Token{
		value:     value,
		scopes:    normalizeScopes(scopes),
		expiresAt: time.Now().Add(lifetime),
	}, nil
}

// AccessToken returns the encoded token exactly as it was issued.
func (t *Token) AccessToken() string {
	return t.value
}

// Scopes returns a sorted copy of the granted scopes.
func (t *Token) Scopes() []string {
	return slices.Clone(t.scopes)
}

func (t *Token) ExpiresAt() time.Time {
	return t.expiresAt
}

// IsExpired reports whether the current time has reached the expiry instant.
func (t *Token) IsExpired() bool {
	return !time.Now().Before(t.expiresAt)
}

// HasScopes reports whether the granted scopes are exactly the requested
// ones, compared as sets. A subset or superset does not match.
func (t *Token) HasScopes(requested []string) bool {
	return slices.Equal(t.scopes, normalizeScopes(requested))
}

// scopeClaim reads the "scope" claim, which XSUAA issues as a JSON array and
// other servers issue as a space separated string.
func scopeClaim(claims jwt.MapClaims) ([]string, error) {
	raw, ok := claims["scope"]
	if !ok || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case string:
		return strings.Fields(v), nil
	case []any:
		scopes := make([]string, 0, len(v))
		for _, s := range v {
			str, ok := s.(string)
			if !ok {
				return nil, fmt.Errorf("scope claim contains non-string value %v", s)
			}
			scopes = append(scopes, str)
		}
		return scopes, nil
	default:
		return nil, fmt.Errorf("scope claim has unexpected type %T", raw)
	}
}

// normalizeScopes returns the non-blank scopes as a sorted set.
func normalizeScopes(scopes []string) []string {
	set := requestedScopes(scopes)
	if len(set) == 0 {
		return []string{}
	}

	slices.Sort(set)
	return slices.Compact(set)
}

// requestedScopes returns a trimmed copy of scopes without blank entries,
// in the order given.
func requestedScopes(scopes []string) []string {
	requested := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			requested = append(requested, s)
		}
	}
	return requested
}
