package iot

import (
	"net/http"
	"net/url"
)

// RequestOption adjusts the request sent by a service method.
type RequestOption func(*RequestConfig)

// WithJWT forwards a caller token. It is exchanged through the identity
// broker and the call is made with the caller's identity.
func WithJWT(jwt string) RequestOption {
	return func(rc *RequestConfig) {
		rc.JWT = jwt
	}
}

// WithScopes requests a token limited to the given scopes.
func WithScopes(scopes ...string) RequestOption {
	return func(rc *RequestConfig) {
		rc.Scopes = scopes
	}
}

func WithHeader(key, value string) RequestOption {
	return func(rc *RequestConfig) {
		if rc.Header == nil {
			rc.Header = http.Header{}
		}
		rc.Header.Add(key, value)
	}
}

// WithQuery adds query parameters to those the method sets itself.
func WithQuery(query url.Values) RequestOption {
	return func(rc *RequestConfig) {
		if rc.Query == nil {
			rc.Query = url.Values{}
		}
		for key, values := range query {
			for _, v := range values {
				rc.Query.Add(key, v)
			}
		}
	}
}
