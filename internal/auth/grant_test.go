package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leonardo-iot/iot-sdk-go/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenResponse_Lifetime(t *testing.T) {
	cases := map[string]struct {
		body     string
		expected time.Duration
	}{
		"whole seconds": {`{"expires_in": 3600}`, time.Hour},
		"fractional":    {`{"expires_in": 1.5}`, 1500 * time.Millisecond},
		"string":        {`{"expires_in": "60"}`, time.Minute},
		"missing":       {`{}`, 0},
		"negative":      {`{"expires_in": -5}`, 0},
		"overflow":      {`{"expires_in": 9223372036854775807}`, 365 * 24 * time.Hour},
		"out of range":  {`{"expires_in": 1e400}`, 365 * 24 * time.Hour},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var resp auth.TokenResponse
			require.NoError(t, json.Unmarshal([]byte(tc.body), &resp))

			assert.Equal(t, tc.expected, resp.Lifetime())
		})
	}
}

func TestClientCredentialsForm_OmitsBlankScopes(t *testing.T) {
	assert.False(t, auth.ClientCredentialsForm([]string{"", "  "}).Has("scope"))
	assert.Equal(t, "a.r a.c", auth.ClientCredentialsForm([]string{"a.r", "", " a.c "}).Get("scope"))
}
