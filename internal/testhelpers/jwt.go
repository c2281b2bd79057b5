package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/require"
)

// EncodedToken returns an HS256 JWT carrying the given claims. Suitable where
// only the claims are read and the signature is never checked.
func EncodedToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims(claims)).
		SignedString([]byte("test-signing-secret"))
	require.NoError(t, err, "failed to sign HS256 token")

	return signed
}

// ScopedToken returns an encoded token whose scope claim is the given list,
// in the array form XSUAA issues.
func ScopedToken(t *testing.T, scopes ...string) string {
	t.Helper()

	claims := map[string]any{"sub": "test-client"}
	if len(scopes) > 0 {
		claims["scope"] = scopes
	}
	return EncodedToken(t, claims)
}

// GenerateJWK generates an RSA 2048-bit key pair for JWT signing/verification.
// Returns a jwk.Key suitable for use with lestrrat-go/jwx.
func GenerateJWK(t *testing.T) jwk.Key {
	t.Helper()

	return GenerateJWKWithID(t, "test-kid")
}

// GenerateJWKWithID is GenerateJWK with the given key id.
func GenerateJWKWithID(t *testing.T, kid string) jwk.Key {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate private key")

	key, err := jwk.Import(privateKey)
	require.NoError(t, err, "failed to import private key as JWK")

	err = key.Set(jwk.KeyIDKey, kid)
	require.NoError(t, err, "failed to set KeyID")

	err = key.Set(jwk.AlgorithmKey, jwa.RS256())
	require.NoError(t, err, "failed to set Algorithm")

	err = key.Set(jwk.KeyUsageKey, "sig")
	require.NoError(t, err, "failed to set KeyUsage")

	return key
}

// SignJWT signs a token configured with all desired claims using RS256.
func SignJWT(t *testing.T, key jwk.Key, token jwt.Token) string {
	t.Helper()

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), key))
	require.NoError(t, err, "failed to sign JWT")

	return string(signed)
}

// CallerToken builds a signed caller token as XSUAA issues it: valid timing,
// the given grant type, audience and scopes.
func CallerToken(t *testing.T, key jwk.Key, grantType string, audience string, scopes ...string) string {
	t.Helper()

	token := ValidClaims(jwt.New())
	require.NoError(t, token.Set(jwt.AudienceKey, []string{audience}))
	require.NoError(t, token.Set("grant_type", grantType))
	require.NoError(t, token.Set("cid", audience))
	if len(scopes) > 0 {
		require.NoError(t, token.Set("scope", scopes))
	}

	return SignJWT(t, key, token)
}

// PublicKeySetJSON returns the JWKS document for the public half of key.
func PublicKeySetJSON(t *testing.T, key jwk.Key) []byte {
	t.Helper()

	publicKey, err := jwk.PublicKeyOf(key)
	require.NoError(t, err, "failed to get public key")

	set := jwk.NewSet()
	err = set.AddKey(publicKey)
	require.NoError(t, err, "failed to add public key to set")

	jsonBytes, err := json.Marshal(set)
	require.NoError(t, err, "failed to marshal JWKS")

	return jsonBytes
}

// ValidClaims configures a token with valid timing fields (IssuedAt, NotBefore, Expiration).
// The token is valid from 1 minute ago until 1 minute from now.
// Returns the same token for chaining.
func ValidClaims(token jwt.Token) jwt.Token {
	now := time.Now().UTC()

	_ = token.Set(jwt.IssuedAtKey, now)
	_ = token.Set(jwt.NotBeforeKey, now.Add(-1*time.Minute))
	_ = token.Set(jwt.ExpirationKey, now.Add(1*time.Minute))

	return token
}
