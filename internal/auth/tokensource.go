package auth

import (
	"context"

	"golang.org/x/oauth2"
)

// authenticatorTokenSource adapts ObtainToken to oauth2.TokenSource, so an
// Authenticator can drive an oauth2.Transport.
type authenticatorTokenSource struct {
	ctx    context.Context
	auth   *Authenticator
	scopes []string
}

// TokenSource returns an oauth2.TokenSource yielding the service's own token
// for scopes. Caching is left to the Authenticator.
func (a *Authenticator) TokenSource(ctx context.Context, scopes ...string) oauth2.TokenSource {
	return &authenticatorTokenSource{
		ctx:    ctx,
		auth:   a,
		scopes: scopes,
	}
}

func (s *authenticatorTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.auth.ObtainToken(s.ctx, s.scopes...)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: token.AccessToken(),
		TokenType:   "Bearer",
		Expiry:      token.ExpiresAt(),
	}, nil
}
