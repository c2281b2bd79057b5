package iot_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	iot "github.com/leonardo-iot/iot-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_AuthenticatesAndIdentifies(t *testing.T) {
	client, uaa, api := newTestClient(t)
	ctx := context.Background()

	token, err := client.AccessToken(ctx)
	require.NoError(t, err)

	resp, err := client.Request(ctx, iot.RequestConfig{URL: api.Server.URL + "/Things"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := api.LastRequest()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "Bearer "+token, req.Header.Get("Authorization"))
	assert.Equal(t, iot.DefaultUserAgent, req.Header.Get("User-Agent"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Len(t, req.Header.Get(iot.CorrelationIDHeader), 26)
	assert.Empty(t, req.Header.Get("If-Match"))

	assert.Equal(t, 1, uaa.RequestCount(), "token reused for the request")
}

func TestRequest_CorrelationIDPerRequest(t *testing.T) {
	client, _, api := newTestClient(t)
	ctx := context.Background()

	for range 2 {
		_, err := client.Request(ctx, iot.RequestConfig{URL: api.Server.URL + "/Things"})
		require.NoError(t, err)
	}

	requests := api.Requests()
	require.Len(t, requests, 2)
	assert.NotEqual(t,
		requests[0].Header.Get(iot.CorrelationIDHeader),
		requests[1].Header.Get(iot.CorrelationIDHeader))
}

func TestRequest_SendsJSONBody(t *testing.T) {
	client, _, api := newTestClient(t)

	_, err := client.Request(context.Background(), iot.RequestConfig{
		Method: http.MethodPost,
		URL:    api.Server.URL + "/Things",
		Body:   map[string]string{"_name": "pump"},
	})
	require.NoError(t, err)

	req := api.LastRequest()
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"_name":"pump"}`, string(req.Body))
}

func TestRequest_SendsRawBody(t *testing.T) {
	client, _, api := newTestClient(t)

	_, err := client.Request(context.Background(), iot.RequestConfig{
		Method: http.MethodPut,
		URL:    api.Server.URL + "/raw",
		Header: http.Header{"Content-Type": {"text/plain"}},
		Body:   []byte("as is"),
	})
	require.NoError(t, err)

	req := api.LastRequest()
	assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))
	assert.Equal(t, "as is", string(req.Body))
}

func TestRequest_MergesQuery(t *testing.T) {
	client, _, api := newTestClient(t)

	_, err := client.Request(context.Background(), iot.RequestConfig{
		URL:   api.Server.URL + "/Things?$top=5",
		Query: url.Values{"$filter": {"_name eq 'a b'"}},
	})
	require.NoError(t, err)

	req := api.LastRequest()
	assert.Equal(t, []string{"5"}, req.Query["$top"])
	assert.Equal(t, []string{"_name eq 'a b'"}, req.Query["$filter"])
}

func TestRequest_SendsIfMatch(t *testing.T) {
	client, _, api := newTestClient(t)

	_, err := client.Request(context.Background(), iot.RequestConfig{
		Method: http.MethodDelete,
		URL:    api.Server.URL + "/Packages('p')",
		ETag:   `W/"3"`,
	})
	require.NoError(t, err)

	assert.Equal(t, `W/"3"`, api.LastRequest().Header.Get("If-Match"))
}

func TestRequest_EmptyURL(t *testing.T) {
	client, uaa, _ := newTestClient(t)

	_, err := client.Request(context.Background(), iot.RequestConfig{})
	assert.ErrorIs(t, err, iot.ErrEmptyURL)
	assert.Equal(t, 0, uaa.RequestCount())
}

func TestRequest_TokenFailureIsNotSent(t *testing.T) {
	client, uaa, api := newTestClient(t)
	uaa.StatusCode = http.StatusUnauthorized

	_, err := client.Request(context.Background(), iot.RequestConfig{URL: api.Server.URL + "/Things"})

	var endpointErr *iot.AuthEndpointError
	require.ErrorAs(t, err, &endpointErr)
	assert.Equal(t, http.StatusUnauthorized, endpointErr.StatusCode)
	assert.Empty(t, api.Requests())
}

func TestRequest_ForwardedTokenWithoutBroker(t *testing.T) {
	client, uaa, api := newTestClient(t)

	_, err := client.Request(context.Background(), iot.RequestConfig{
		URL: api.Server.URL + "/Things",
		JWT: "Bearer caller",
	})

	assert.ErrorIs(t, err, iot.ErrMissingBrokerConfig)
	assert.Equal(t, 0, uaa.RequestCount())
	assert.Empty(t, api.Requests())
}

func TestRequest_ForwardedTokenIsExchanged(t *testing.T) {
	broker := &stubBroker{grantType: "client_credentials"}
	client, uaa, api := newBrokeredClient(t, broker)

	_, err := client.Request(context.Background(), iot.RequestConfig{
		URL: api.Server.URL + "/Things",
		JWT: "caller-token",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer exchanged-client_credentials", api.LastRequest().Header.Get("Authorization"))
	assert.Equal(t, 0, uaa.RequestCount())
}

func TestRequest_ErrorStatus(t *testing.T) {
	client, _, api := newTestClient(t)
	api.StatusCode = http.StatusNotFound
	api.ResponseBody = `{"message":"not found"}`

	_, err := client.Request(context.Background(), iot.RequestConfig{URL: api.Server.URL + "/Things('x')"})

	var apiErr *iot.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, http.MethodGet, apiErr.Method)
	assert.JSONEq(t, `{"message":"not found"}`, string(apiErr.Body))
	assert.Contains(t, apiErr.Error(), "404")
}

func TestResponse_DecodeAndETag(t *testing.T) {
	client, _, api := newTestClient(t)
	api.ResponseBody = `{"Name":"pkg","Scope":"private"}`
	api.ETag = `W/"7"`

	resp, err := client.Request(context.Background(), iot.RequestConfig{URL: api.Server.URL + "/Packages('pkg')"})
	require.NoError(t, err)

	var pkg struct {
		Name  string
		Scope string
	}
	require.NoError(t, resp.Decode(&pkg))
	assert.Equal(t, "pkg", pkg.Name)
	assert.Equal(t, `W/"7"`, resp.ETag())

	var notJSON []int
	assert.Error(t, resp.Decode(&notJSON))
}

func TestRequest_OptionsApplyToServiceCalls(t *testing.T) {
	client, uaa, api := newTestClient(t)

	_, err := client.ListThings(context.Background(), nil,
		iot.WithScopes("thing.r"),
		iot.WithHeader("X-Tenant", "t1"),
		iot.WithQuery(url.Values{"$top": {"1"}}),
	)
	require.NoError(t, err)

	assert.Equal(t, "thing.r", uaa.LastRequest().Form.Get("scope"))

	req := api.LastRequest()
	assert.Equal(t, "t1", req.Header.Get("X-Tenant"))
	assert.Equal(t, []string{"1"}, req.Query["$top"])
}
