package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-grc-client/httpclient"
	apperrors "github.com/jrsteele09/go-grc-client/internal/errors"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/pkg/errors"
)

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	LoginType string `json:"login_type"`
}

type tokenResponse struct {
	Status              string `json:"status"`
	Message             string `json:"message"`
	AccessToken         string `json:"access_token"`
	RefreshToken        string `json:"refresh_token"`
	AccessTokenExpires  string `json:"access_token_expires"`
	RefreshTokenExpires string `json:"refresh_token_expires"`
}

type loginResponse struct {
	tokenResponse
	User            json.RawMessage `json:"user"`
	LicenseVerified bool            `json:"license_verified"`
	ConsentRequired bool            `json:"consent_required"`
}

// Tokens is the token pair returned by a login, with RFC 3339 expiry times.
type Tokens struct {
	Access         string
	Refresh        string
	AccessExpires  string
	RefreshExpires string
}

// LoginResult is what a successful login stored.
type LoginResult struct {
	Success         bool
	User            User
	LicenseVerified bool
	ConsentRequired bool
	Tokens          Tokens
}

// backendFailure builds an error that matches sentinel and carries the
// backend's message and, when present, the transport or status error.
func backendFailure(sentinel error, message string, cause error) error {
	if message == "" {
		message = sentinel.Error()
	}
	if cause != nil {
		return fmt.Errorf("%w: %s: %w", sentinel, message, cause)
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}

// Login exchanges credentials for a token pair and persists the session.
// loginType defaults to "username".
func (m *Manager) Login(ctx context.Context, username, password, loginType string) (*LoginResult, error) {
	if loginType == "" {
		loginType = LoginTypeUsername
	}

	m.lock.Lock()
	m.loggingOut = false
	m.failedRefreshes = 0
	m.generation++
	m.state = StateLoggingIn
	m.lock.Unlock()

	result, err := m.login(ctx, username, password, loginType)
	if err != nil {
		m.setState(StateUnauthenticated)
		m.logger.Err(err).Str("username", username).Msg("login failed")
		return nil, err
	}
	m.setState(StateAuthenticated)

	m.startPrefetch(context.WithoutCancel(ctx), &result.User)
	m.StartPeriodicRefresh(context.WithoutCancel(ctx))
	m.emit(Event{Type: EventLogin, User: &result.User})

	m.logger.Info().Int64("user_id", result.User.UserID).Str("username", result.User.UserName).Msg("login successful")
	return result, nil
}

func (m *Manager) login(ctx context.Context, username, password, loginType string) (*LoginResult, error) {
	resp, err := m.client.Post(ctx, loginPath, loginRequest{
		Username:  username,
		Password:  password,
		LoginType: loginType,
	})
	if err != nil {
		if resp != nil {
			return nil, backendFailure(apperrors.ErrLoginFailed, httpclient.MessageFromBody(resp.Body), err)
		}
		return nil, errors.Wrap(err, "Manager.Login")
	}

	var lr loginResponse
	if err := resp.Decode(&lr); err != nil {
		return nil, backendFailure(apperrors.ErrInvalidResponse, "", err)
	}
	if lr.Status != statusSuccess {
		return nil, backendFailure(apperrors.ErrLoginFailed, lr.Message, nil)
	}
	if lr.AccessToken == "" || len(lr.User) == 0 {
		return nil, backendFailure(apperrors.ErrInvalidResponse, "login response missing token or user", nil)
	}

	user, err := decodeUser(lr.User)
	if err != nil {
		return nil, backendFailure(apperrors.ErrInvalidResponse, "", err)
	}

	tokens := Tokens{
		Access:         lr.AccessToken,
		Refresh:        lr.RefreshToken,
		AccessExpires:  expiryOrDerived(lr.AccessTokenExpires, lr.AccessToken),
		RefreshExpires: expiryOrDerived(lr.RefreshTokenExpires, lr.RefreshToken),
	}
	if err := m.setAll(ctx,
		storage.KeyAccessToken, tokens.Access,
		storage.KeyRefreshToken, tokens.Refresh,
		storage.KeyAccessTokenExpires, tokens.AccessExpires,
		storage.KeyRefreshTokenExpires, tokens.RefreshExpires,
	); err != nil {
		return nil, errors.Wrap(err, "Manager.Login persist tokens")
	}
	if err := m.storeProfile(ctx, lr.User, user); err != nil {
		return nil, errors.Wrap(err, "Manager.Login persist profile")
	}
	m.client.SetDefaultHeader(httpclient.HeaderAuthorization, "Bearer "+tokens.Access)

	return &LoginResult{
		Success:         true,
		User:            *user,
		LicenseVerified: lr.LicenseVerified,
		ConsentRequired: lr.ConsentRequired,
		Tokens:          tokens,
	}, nil
}

type sessionLoginResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	User    json.RawMessage `json:"user"`
}

// SessionLogin authenticates against the cookie-session endpoint. Only the
// profile is stored; no tokens are issued.
func (m *Manager) SessionLogin(ctx context.Context, username, password, loginType string) (*LoginResult, error) {
	if loginType == "" {
		loginType = LoginTypeUsername
	}
	m.setState(StateLoggingIn)

	resp, err := m.client.Post(ctx, sessionLoginPath, loginRequest{
		Username:  username,
		Password:  password,
		LoginType: loginType,
	})
	if err != nil {
		m.setState(StateUnauthenticated)
		if resp != nil {
			return nil, backendFailure(apperrors.ErrLoginFailed, httpclient.MessageFromBody(resp.Body), err)
		}
		return nil, errors.Wrap(err, "Manager.SessionLogin")
	}

	var sr sessionLoginResponse
	if err := resp.Decode(&sr); err != nil || len(sr.User) == 0 || string(sr.User) == "null" {
		m.setState(StateUnauthenticated)
		return nil, backendFailure(apperrors.ErrInvalidResponse, "Invalid response from server", err)
	}
	user, err := decodeUser(sr.User)
	if err != nil {
		m.setState(StateUnauthenticated)
		return nil, backendFailure(apperrors.ErrInvalidResponse, "", err)
	}
	if err := m.storeProfile(ctx, sr.User, user); err != nil {
		m.setState(StateUnauthenticated)
		return nil, errors.Wrap(err, "Manager.SessionLogin persist profile")
	}
	m.setState(StateAuthenticated)
	m.logger.Info().Int64("user_id", user.UserID).Msg("session login successful")
	return &LoginResult{Success: true, User: *user}, nil
}

// VerifyToken asks the backend whether the stored access token is valid.
func (m *Manager) VerifyToken(ctx context.Context) bool {
	token, err := m.store.Get(ctx, storage.KeyAccessToken)
	if err != nil || token == "" {
		return false
	}
	resp, err := m.client.Get(ctx, verifyPath, httpclient.WithBearer(token))
	if err != nil {
		m.logger.Debug().Err(err).Msg("token verification failed")
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	return resp.Decode(&body) == nil && body.Status == statusSuccess
}
