package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	maxResponseSize = 1 << 20

	// longer lifetimes are cut to this
	maxTokenLifetime = 365 * 24 * time.Hour
)

// TokenResponse is the JSON body returned by a successful grant.
type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   json.Number `json:"expires_in"`
	Scope       string      `json:"scope"`
}

// Lifetime converts expires_in to a duration. Fractional seconds are kept,
// values beyond a year are clamped, and a missing or non-positive value is
// zero.
func (r TokenResponse) Lifetime() time.Duration {
	if r.ExpiresIn == "" {
		return 0
	}

	seconds, err := r.ExpiresIn.Float64()
	switch {
	case math.IsInf(seconds, 1) || seconds >= maxTokenLifetime.Seconds():
		return maxTokenLifetime
	case err != nil || seconds <= 0:
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// ClientCredentialsForm builds the client credentials grant body. The scope
// parameter is only present when non-blank scopes are requested.
func ClientCredentialsForm(scopes []string) url.Values {
	scopes = requestedScopes(scopes)

	form := url.Values{}
	form.Set("grant_type", GrantTypeClientCredentials)
	form.Set("response_type", "token")
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}
	return form
}

// RequestGrant posts the form to the token endpoint of creds, authenticating
// with HTTP Basic auth. Failures are returned as *EndpointError.
func RequestGrant(ctx context.Context, client *http.Client, creds Credentials, form url.Values) (TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.TokenEndpoint(), strings.NewReader(encodeForm(form)))
	if err != nil {
		return TokenResponse{}, &EndpointError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return TokenResponse{}, &EndpointError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return TokenResponse{}, &EndpointError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read token response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TokenResponse{}, &EndpointError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return TokenResponse{}, &EndpointError{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("failed to decode token response: %w", err)}
	}

	if tokenResp.AccessToken == "" {
		return TokenResponse{}, &EndpointError{StatusCode: resp.StatusCode, Body: string(body), Err: errors.New("token response has no access_token")}
	}

	return tokenResp, nil
}

// encodeForm encodes like url.Values.Encode, but with spaces as %20. A literal
// plus is already escaped to %2B, so every remaining plus is a space.
func encodeForm(form url.Values) string {
	return strings.ReplaceAll(form.Encode(), "+", "%20")
}
