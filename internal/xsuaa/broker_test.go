package xsuaa_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/leonardo-iot/iot-sdk-go/internal/auth"
	"github.com/leonardo-iot/iot-sdk-go/internal/testhelpers"
	"github.com/leonardo-iot/iot-sdk-go/internal/xsuaa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokerClientID = "sb-iot-app!t1"

func setupBroker(t *testing.T, opts ...xsuaa.Option) (*xsuaa.Broker, *testhelpers.MockUAAServer, auth.Credentials) {
	t.Helper()

	uaa := testhelpers.SetupMockUAAServer(t)
	broker, err := xsuaa.New(append([]xsuaa.Option{xsuaa.WithHTTPClient(uaa.Server.Client())}, opts...)...)
	require.NoError(t, err)

	creds := auth.Credentials{
		URL:          uaa.URL(),
		ClientID:     brokerClientID,
		ClientSecret: "xs-secret",
		XSAppName:    "iot-app!t1",
	}

	return broker, uaa, creds
}

func TestCreateSecurityContext_ReadsGrantType(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)

	for _, grantType := range []string{"client_credentials", "authorization_code"} {
		t.Run(grantType, func(t *testing.T) {
			caller := testhelpers.CallerToken(t, key, grantType, brokerClientID)

			sc, err := broker.CreateSecurityContext(context.Background(), caller, creds)
			require.NoError(t, err)

			assert.Equal(t, grantType, sc.GrantType())
		})
	}
}

func TestCreateSecurityContext_CachesKeySet(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)
	ctx := context.Background()

	for range 3 {
		_, err := broker.CreateSecurityContext(ctx, testhelpers.CallerToken(t, key, "password", brokerClientID), creds)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, uaa.KeySetRequestCount())
}

func TestCreateSecurityContext_RefreshesRotatedKeySet(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	ctx := context.Background()

	oldKey := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, oldKey)
	_, err := broker.CreateSecurityContext(ctx, testhelpers.CallerToken(t, oldKey, "password", brokerClientID), creds)
	require.NoError(t, err)

	newKey := testhelpers.GenerateJWKWithID(t, "rotated-kid")
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, newKey)
	_, err = broker.CreateSecurityContext(ctx, testhelpers.CallerToken(t, newKey, "password", brokerClientID), creds)
	require.NoError(t, err)

	assert.Equal(t, 2, uaa.KeySetRequestCount())
}

func TestCreateSecurityContext_RejectedTokensKeepCachedKeySet(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)
	ctx := context.Background()

	_, err := broker.CreateSecurityContext(ctx, testhelpers.CallerToken(t, key, "password", brokerClientID), creds)
	require.NoError(t, err)

	expired := jwt.New()
	_ = expired.Set(jwt.AudienceKey, []string{brokerClientID})
	_ = expired.Set(jwt.ExpirationKey, time.Now().Add(-time.Hour))

	rejected := []string{
		testhelpers.SignJWT(t, key, expired),
		// same key id, different key
		testhelpers.CallerToken(t, testhelpers.GenerateJWK(t), "password", brokerClientID),
		"not-a-jwt",
	}

	for range 10 {
		for _, caller := range rejected {
			_, err := broker.CreateSecurityContext(ctx, caller, creds)
			require.Error(t, err)
		}
	}

	assert.Equal(t, 1, uaa.KeySetRequestCount())
}

func TestCreateSecurityContext_UnknownKeyRefreshIsRateLimited(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)
	ctx := context.Background()

	_, err := broker.CreateSecurityContext(ctx, testhelpers.CallerToken(t, key, "password", brokerClientID), creds)
	require.NoError(t, err)

	foreign := testhelpers.CallerToken(t, testhelpers.GenerateJWKWithID(t, "foreign-kid"), "password", brokerClientID)
	for range 10 {
		_, err := broker.CreateSecurityContext(ctx, foreign, creds)

		var contextErr *auth.SecurityContextError
		require.ErrorAs(t, err, &contextErr)
	}

	assert.Equal(t, 2, uaa.KeySetRequestCount())

	// the refreshed set is still served from the cache
	_, err = broker.CreateSecurityContext(ctx, testhelpers.CallerToken(t, key, "password", brokerClientID), creds)
	require.NoError(t, err)
	assert.Equal(t, 2, uaa.KeySetRequestCount())
}

func TestCreateSecurityContext_UnknownKeyRefreshInterval(t *testing.T) {
	broker, uaa, creds := setupBroker(t, xsuaa.WithMinRefreshInterval(0))
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)
	ctx := context.Background()

	_, err := broker.CreateSecurityContext(ctx, testhelpers.CallerToken(t, key, "password", brokerClientID), creds)
	require.NoError(t, err)

	foreign := testhelpers.CallerToken(t, testhelpers.GenerateJWKWithID(t, "foreign-kid"), "password", brokerClientID)
	for range 3 {
		_, err := broker.CreateSecurityContext(ctx, foreign, creds)
		require.Error(t, err)
	}

	assert.Equal(t, 4, uaa.KeySetRequestCount())
}

func TestCreateSecurityContext_Rejections(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)

	expired := jwt.New()
	_ = expired.Set(jwt.AudienceKey, []string{brokerClientID})
	_ = expired.Set(jwt.ExpirationKey, time.Now().Add(-time.Hour))

	cases := map[string]string{
		"not a jwt":      "not-a-jwt",
		"unknown key":    testhelpers.CallerToken(t, testhelpers.GenerateJWK(t), "password", brokerClientID),
		"other audience": testhelpers.CallerToken(t, key, "password", "sb-other-app"),
		"expired":        testhelpers.SignJWT(t, key, expired),
	}

	for name, caller := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := broker.CreateSecurityContext(context.Background(), caller, creds)

			var contextErr *auth.SecurityContextError
			assert.ErrorAs(t, err, &contextErr)
		})
	}
}

func TestCreateSecurityContext_AcceptsApplicationScopes(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)

	caller := testhelpers.CallerToken(t, key, "password", "sb-other-app", "iot-app!t1.Display")

	_, err := broker.CreateSecurityContext(context.Background(), caller, creds)
	assert.NoError(t, err)
}

func TestCreateSecurityContext_KeySetUnavailable(t *testing.T) {
	broker, _, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)

	_, err := broker.CreateSecurityContext(context.Background(), testhelpers.CallerToken(t, key, "password", brokerClientID), creds)

	var contextErr *auth.SecurityContextError
	require.ErrorAs(t, err, &contextErr)
	assert.ErrorContains(t, err, "status 404")
}

func TestRequestToken_UserTokenUsesJWTBearerGrant(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)
	caller := testhelpers.CallerToken(t, key, "authorization_code", brokerClientID)

	sc, err := broker.CreateSecurityContext(context.Background(), caller, creds)
	require.NoError(t, err)

	service := auth.Credentials{URL: uaa.URL(), ClientID: "iot-client", ClientSecret: "iot-secret"}
	exchanged, err := sc.RequestToken(context.Background(), service, auth.UserTokenGrant)
	require.NoError(t, err)
	assert.NotEmpty(t, exchanged)

	req := uaa.LastRequest()
	assert.Equal(t, auth.GrantTypeJWTBearer, req.Form.Get("grant_type"))
	assert.Equal(t, caller, req.Form.Get("assertion"))
	assert.Equal(t, "Basic aW90LWNsaWVudDppb3Qtc2VjcmV0", req.AuthHeader)
}

func TestRequestToken_ClientCredentialsGrant(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)

	sc, err := broker.CreateSecurityContext(context.Background(), testhelpers.CallerToken(t, key, "client_credentials", brokerClientID), creds)
	require.NoError(t, err)

	service := auth.Credentials{URL: uaa.URL(), ClientID: "iot-client", ClientSecret: "iot-secret"}
	_, err = sc.RequestToken(context.Background(), service, auth.ClientCredentialsTokenGrant)
	require.NoError(t, err)

	req := uaa.LastRequest()
	assert.Equal(t, "grant_type=client_credentials&response_type=token", req.Body)
	assert.Empty(t, req.Form.Get("assertion"))
}

func TestRequestToken_Rejected(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)

	sc, err := broker.CreateSecurityContext(context.Background(), testhelpers.CallerToken(t, key, "password", brokerClientID), creds)
	require.NoError(t, err)

	uaa.StatusCode = http.StatusForbidden
	service := auth.Credentials{URL: uaa.URL(), ClientID: "iot-client", ClientSecret: "iot-secret"}
	_, err = sc.RequestToken(context.Background(), service, auth.UserTokenGrant)

	var exchangeErr *auth.TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusForbidden, exchangeErr.StatusCode)
}

func TestAuthenticator_ExchangeThroughBroker(t *testing.T) {
	broker, uaa, creds := setupBroker(t)
	key := testhelpers.GenerateJWK(t)
	uaa.KeySet = testhelpers.PublicKeySetJSON(t, key)

	a, err := auth.New(
		auth.Credentials{URL: uaa.URL(), ClientID: "iot-client", ClientSecret: "iot-secret"},
		auth.WithHTTPClient(uaa.Server.Client()),
		auth.WithBroker(broker, creds),
	)
	require.NoError(t, err)

	caller := testhelpers.CallerToken(t, key, "authorization_code", brokerClientID)
	exchanged, err := a.ExchangeToken(context.Background(), "Bearer "+caller)
	require.NoError(t, err)

	assert.NotEmpty(t, exchanged)
	assert.Equal(t, caller, uaa.LastRequest().Form.Get("assertion"))
}
