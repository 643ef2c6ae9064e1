package session

import (
	"context"
	"net/http"

	apperrors "github.com/jrsteele09/go-grc-client/internal/errors"
	"github.com/jrsteele09/go-grc-client/storage"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

// TokenSource exposes the managed access token to libraries that accept an
// oauth2.TokenSource. Each Token call refreshes first when the token is close
// to expiry.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	ts.m.CheckAndRefreshToken(ts.ctx)
	access, err := ts.m.store.Get(ts.ctx, storage.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if expires, err := ts.m.store.Get(ts.ctx, storage.KeyAccessTokenExpires); err == nil {
		if exp, ok := ParseExpiry(expires); ok {
			tok.Expiry = exp
		}
	}
	return tok, nil
}

// OAuth2Client returns a plain *http.Client that authorizes requests with the
// managed token.
func (m *Manager) OAuth2Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, m.TokenSource(ctx))
}
