package session

import (
	"context"

	"github.com/jrsteele09/go-grc-client/httpclient"
	apperrors "github.com/jrsteele09/go-grc-client/internal/errors"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/pkg/errors"
)

// admitFunc is an extra admission condition for a refresh. It runs with the
// manager lock held.
type admitFunc func() bool

// CheckAndRefreshToken refreshes when the stored access token expires within
// the refresh threshold. It reports whether a refresh happened.
func (m *Manager) CheckAndRefreshToken(ctx context.Context) bool {
	return m.checkAndRefresh(ctx, nil)
}

func (m *Manager) checkAndRefresh(ctx context.Context, admit admitFunc) bool {
	expires, err := m.store.Get(ctx, storage.KeyAccessTokenExpires)
	if err != nil || expires == "" {
		return false
	}
	exp, ok := ParseExpiry(expires)
	if !ok {
		m.logger.Warn().Str("expires", expires).Msg("unparseable access token expiry")
		return false
	}
	if exp.Sub(m.now()) >= m.refreshThreshold {
		return false
	}
	m.logger.Debug().Time("expires", exp).Msg("access token expires soon, refreshing")
	return m.refresh(ctx, admit)
}

// RefreshAccessToken exchanges the refresh token for a new access token. At
// most one refresh runs at a time; overlapping calls and calls made during
// logout return false straight away. After the configured number of
// consecutive failures the stored credentials are cleared.
func (m *Manager) RefreshAccessToken(ctx context.Context) bool {
	return m.refresh(ctx, nil)
}

func (m *Manager) refresh(ctx context.Context, admit admitFunc) bool {
	gen, exhausted, ok := m.beginRefresh(admit)
	if !ok {
		return false
	}
	if exhausted {
		m.logger.Error().Msg("maximum refresh attempts exceeded, clearing credentials")
		m.finishRefresh(gen, StateUnauthenticated)
		m.clear(ctx)
		return false
	}

	tr, err := m.requestRefresh(ctx)
	if !m.current(gen) {
		// The session this refresh belonged to is gone; its outcome is not
		// recorded against the next one.
		m.finishRefresh(gen, StateAuthenticated)
		m.logger.Debug().Msg("session changed during refresh, result discarded")
		return false
	}
	if err == nil {
		err = m.storeRefreshed(ctx, tr)
	}
	if err != nil {
		failures, current := m.recordRefreshFailure(gen)
		if !current {
			return false
		}
		m.logger.Err(err).Int("failures", failures).Msg("token refresh failed")
		if failures >= m.maxRefreshAttempts {
			m.logger.Error().Msg("too many failed refresh attempts, re-login required")
			m.clear(ctx)
		}
		return false
	}

	m.finishRefresh(gen, StateAuthenticated)
	m.logger.Debug().Msg("access token refreshed")
	return true
}

// beginRefresh is the atomic check-and-set that admits a single refresh. It
// returns the session generation the refresh belongs to.
func (m *Manager) beginRefresh(admit admitFunc) (gen uint64, exhausted, ok bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.loggingOut || m.refreshing {
		return 0, false, false
	}
	if admit != nil && !admit() {
		return 0, false, false
	}
	m.refreshing = true
	m.state = StateRefreshing
	return m.generation, m.failedRefreshes >= m.maxRefreshAttempts, true
}

// finishRefresh releases the refresh slot. State and the failure counter are
// only touched while the session that started the refresh is still current.
func (m *Manager) finishRefresh(gen uint64, next State) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.refreshing = false
	if m.generation != gen {
		return
	}
	if next == StateAuthenticated {
		m.failedRefreshes = 0
	}
	if m.state == StateRefreshing {
		m.state = next
	}
}

// recordRefreshFailure releases the refresh slot and counts the failure
// against the session generation gen, if it is still current.
func (m *Manager) recordRefreshFailure(gen uint64) (failures int, current bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.refreshing = false
	if m.generation != gen {
		return m.failedRefreshes, false
	}
	m.failedRefreshes++
	if m.state == StateRefreshing {
		if m.failedRefreshes >= m.maxRefreshAttempts {
			m.state = StateUnauthenticated
		} else {
			m.state = StateAuthenticated
		}
	}
	return m.failedRefreshes, true
}

func (m *Manager) requestRefresh(ctx context.Context) (*tokenResponse, error) {
	refreshToken, err := m.store.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "read refresh token")
	}
	if refreshToken == "" {
		return nil, apperrors.ErrNoRefreshToken
	}

	resp, err := m.client.Post(ctx, refreshPath, map[string]string{"refresh_token": refreshToken})
	if err != nil {
		if resp != nil {
			return nil, backendFailure(apperrors.ErrRefreshFailed, httpclient.MessageFromBody(resp.Body), err)
		}
		return nil, errors.Wrap(err, "refresh request")
	}
	var tr tokenResponse
	if err := resp.Decode(&tr); err != nil {
		return nil, backendFailure(apperrors.ErrInvalidResponse, "", err)
	}
	if tr.Status != statusSuccess {
		return nil, backendFailure(apperrors.ErrRefreshFailed, tr.Message, nil)
	}
	if tr.AccessToken == "" {
		return nil, backendFailure(apperrors.ErrInvalidResponse, "refresh response missing access token", nil)
	}
	return &tr, nil
}

// storeRefreshed persists a refresh response. The refresh token and its expiry
// are only replaced when the backend rotated them.
func (m *Manager) storeRefreshed(ctx context.Context, tr *tokenResponse) error {
	kv := []string{
		storage.KeyAccessToken, tr.AccessToken,
		storage.KeyAccessTokenExpires, expiryOrDerived(tr.AccessTokenExpires, tr.AccessToken),
	}
	if tr.RefreshToken != "" {
		kv = append(kv, storage.KeyRefreshToken, tr.RefreshToken)
	}
	if tr.RefreshTokenExpires != "" {
		kv = append(kv, storage.KeyRefreshTokenExpires, tr.RefreshTokenExpires)
	}
	if err := m.setAll(ctx, kv...); err != nil {
		return err
	}
	m.client.SetDefaultHeader(httpclient.HeaderAuthorization, "Bearer "+tr.AccessToken)
	return nil
}
