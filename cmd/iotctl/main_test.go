package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leonardo-iot/iot-sdk-go/internal/testhelpers"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTenantsFile(t *testing.T, uaa *testhelpers.MockUAAServer, api *testhelpers.MockAPIServer, names ...string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("tenants:\n")
	for _, name := range names {
		b.WriteString("  - name: " + name + "\n")
		b.WriteString("    uaa:\n")
		b.WriteString("      url: " + uaa.URL() + "\n")
		b.WriteString("      clientid: iot-client\n")
		b.WriteString("      clientsecret: iot-secret\n")
		b.WriteString("    endpoints:\n")
		b.WriteString("      appiot-mds: " + api.Server.URL + "/appiot-mds\n")
	}

	file := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(file, []byte(b.String()), 0o600))

	return file
}

func TestRun_Token(t *testing.T) {
	uaa := testhelpers.SetupMockUAAServer(t)
	api := testhelpers.SetupMockAPIServer(t)

	env := envconfig.MapLookuper(map[string]string{
		"IOTCTL_TENANTS_FILE": writeTenantsFile(t, uaa, api, "tenant-a"),
		"IOTCTL_SCOPES":       "thing.r,thing.c",
	})

	var out bytes.Buffer
	err := run(context.Background(), []string{"token"}, env, &out)
	require.NoError(t, err)

	assert.NotEmpty(t, strings.TrimSpace(out.String()))
	assert.Equal(t, "thing.r thing.c", uaa.LastRequest().Form.Get("scope"))
}

func TestRun_Get(t *testing.T) {
	uaa := testhelpers.SetupMockUAAServer(t)
	api := testhelpers.SetupMockAPIServer(t)
	api.ResponseBody = `{"value":[{"_id":"T1"}]}`

	env := envconfig.MapLookuper(map[string]string{
		"IOTCTL_TENANTS_FILE": writeTenantsFile(t, uaa, api, "tenant-a", "tenant-b"),
		"IOTCTL_TENANT":       "tenant-b",
	})

	var out bytes.Buffer
	err := run(context.Background(), []string{"get", "appiot-mds", "Things"}, env, &out)
	require.NoError(t, err)

	assert.JSONEq(t, `{"value":[{"_id":"T1"}]}`, out.String())

	req := api.LastRequest()
	assert.Equal(t, "/appiot-mds/Things", req.Path)
	assert.Equal(t, "iotctl/1.0.0", req.Header.Get("User-Agent"))
}

func TestRun_AmbiguousTenant(t *testing.T) {
	uaa := testhelpers.SetupMockUAAServer(t)
	api := testhelpers.SetupMockAPIServer(t)

	env := envconfig.MapLookuper(map[string]string{
		"IOTCTL_TENANTS_FILE": writeTenantsFile(t, uaa, api, "tenant-a", "tenant-b"),
	})

	err := run(context.Background(), []string{"token"}, env, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant-a, tenant-b")
	assert.Equal(t, 0, uaa.RequestCount())
}

func TestRun_Usage(t *testing.T) {
	uaa := testhelpers.SetupMockUAAServer(t)
	api := testhelpers.SetupMockAPIServer(t)

	env := envconfig.MapLookuper(map[string]string{
		"IOTCTL_TENANTS_FILE": writeTenantsFile(t, uaa, api, "tenant-a"),
	})

	cases := map[string][]string{
		"no command":       nil,
		"unknown command":  {"put"},
		"get without path": {"get", "appiot-mds"},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			err := run(context.Background(), args, env, &bytes.Buffer{})
			assert.ErrorIs(t, err, errUsage)
		})
	}
}
