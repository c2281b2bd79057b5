package xsuaa

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/leonardo-iot/iot-sdk-go/internal/auth"
)

// SecurityContext is a verified caller token. It can be exchanged for a
// token of another service bound to the same identity zone.
type SecurityContext struct {
	token     string
	grantType string
	zoneID    string
	subject   string
	client    *http.Client
}

func (c *SecurityContext) GrantType() string {
	return c.grantType
}

// ZoneID is the identity zone (tenant) that issued the caller token.
func (c *SecurityContext) ZoneID() string {
	return c.zoneID
}

func (c *SecurityContext) Subject() string {
	return c.subject
}

// RequestToken requests a token for the service identified by creds. A
// client credentials grant issues a token of the service's own identity; a
// user token grant presents the caller token as a JWT bearer assertion so the
// issued token keeps the caller's identity.
func (c *SecurityContext) RequestToken(ctx context.Context, creds auth.Credentials, grant auth.ExchangeGrant) (string, error) {
	var form url.Values
	switch grant {
	case auth.ClientCredentialsTokenGrant:
		form = auth.ClientCredentialsForm(nil)
	default:
		form = url.Values{}
		form.Set("grant_type", auth.GrantTypeJWTBearer)
		form.Set("assertion", c.token)
		form.Set("response_type", "token")
	}

	resp, err := auth.RequestGrant(ctx, c.client, creds, form)
	if err != nil {
		exchangeErr := &auth.TokenExchangeError{Err: err}
		var endpointErr *auth.EndpointError
		if errors.As(err, &endpointErr) {
			exchangeErr.StatusCode = endpointErr.StatusCode
		}
		return "", exchangeErr
	}

	return resp.AccessToken, nil
}
