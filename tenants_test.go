package iot_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	iot "github.com/leonardo-iot/iot-sdk-go"
	"github.com/leonardo-iot/iot-sdk-go/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenants_ClientPerTenant(t *testing.T) {
	uaaA := testhelpers.SetupMockUAAServer(t)
	uaaB := testhelpers.SetupMockUAAServer(t)
	api := testhelpers.SetupMockAPIServer(t)

	svcA := testService(uaaA, api)
	svcB := testService(uaaB, api)
	svcB.Name = "tenant-b"

	tenants, err := iot.NewTenants([]iot.Service{svcA, svcB})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tenants.Close() })

	assert.Equal(t, []string{"tenant-a", "tenant-b"}, tenants.Names())

	ctx := context.Background()

	clientA, err := tenants.Client(ctx, "tenant-a")
	require.NoError(t, err)
	clientB, err := tenants.Client(ctx, "tenant-b")
	require.NoError(t, err)
	assert.NotSame(t, clientA, clientB)

	again, err := tenants.Client(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Same(t, clientA, again)

	_, err = clientA.AccessToken(ctx)
	require.NoError(t, err)
	_, err = clientB.AccessToken(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, uaaA.RequestCount())
	assert.Equal(t, 1, uaaB.RequestCount())
}

func TestTenants_UnknownTenant(t *testing.T) {
	uaa := testhelpers.SetupMockUAAServer(t)
	api := testhelpers.SetupMockAPIServer(t)

	tenants, err := iot.NewTenants([]iot.Service{testService(uaa, api)})
	require.NoError(t, err)

	_, err = tenants.Client(context.Background(), "tenant-z")
	assert.ErrorIs(t, err, iot.ErrUnknownTenant)
}

func TestTenants_InvalidTenantFailsOnUse(t *testing.T) {
	api := testhelpers.SetupMockAPIServer(t)

	tenants, err := iot.NewTenants([]iot.Service{{
		Name:      "broken",
		Endpoints: api.Endpoints("appiot-mds"),
	}})
	require.NoError(t, err)

	_, err = tenants.Client(context.Background(), "broken")

	var configErr *iot.ConfigurationError
	assert.ErrorAs(t, err, &configErr)
}

func TestNewTenants_Rejects(t *testing.T) {
	cases := map[string][]iot.Service{
		"no tenants":   nil,
		"missing name": {{}},
		"duplicate":    {{Name: "a"}, {Name: "a"}},
	}

	for name, tenants := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := iot.NewTenants(tenants)
			assert.Error(t, err)
		})
	}
}

func TestLoadTenants(t *testing.T) {
	uaa := testhelpers.SetupMockUAAServer(t)
	api := testhelpers.SetupMockAPIServer(t)

	file := filepath.Join(t.TempDir(), "tenants.yaml")
	content := `tenants:
  - name: tenant-a
    uaa:
      url: ` + uaa.URL() + `
      clientid: iot-client
      clientsecret: iot-secret
    endpoints:
      appiot-mds: ` + api.Server.URL + `/appiot-mds
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	tenants, err := iot.LoadTenants(file)
	require.NoError(t, err)

	client, err := tenants.Client(context.Background(), "tenant-a")
	require.NoError(t, err)

	_, err = client.GetThing(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "/appiot-mds/Things('T1')", api.LastRequest().Path)
}
