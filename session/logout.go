package session

import (
	"context"
	"time"

	"github.com/jrsteele09/go-grc-client/httpclient"
	"github.com/jrsteele09/go-grc-client/storage"
)

// Logout revokes the token pair on the backend when possible and always
// clears the local session.
func (m *Manager) Logout(ctx context.Context) {
	m.logout(ctx, logoutPath, true)
}

// SessionLogout ends a cookie session. Local state is cleared regardless of
// the backend's answer.
func (m *Manager) SessionLogout(ctx context.Context) {
	m.logout(ctx, sessionLogoutPath, false)
}

func (m *Manager) logout(ctx context.Context, path string, bearer bool) {
	m.lock.Lock()
	m.loggingOut = true
	m.state = StateLoggingOut
	m.lock.Unlock()

	m.StopPeriodicRefresh()
	m.emit(Event{Type: EventLogout})

	var opts []httpclient.RequestOption
	call := true
	if bearer {
		token, err := m.store.Get(ctx, storage.KeyAccessToken)
		call = err == nil && token != ""
		opts = append(opts, httpclient.WithBearer(token))
	}
	if call {
		if _, err := m.client.Post(ctx, path, struct{}{}, opts...); err != nil {
			m.logger.Warn().Err(err).Str("path", path).Msg("logout call failed, continuing with local cleanup")
		}
	}

	m.clear(ctx)

	m.lock.Lock()
	m.loggingOut = false
	m.failedRefreshes = 0
	m.state = StateUnauthenticated
	m.lock.Unlock()
	m.logger.Info().Msg("logged out")
}

// clear removes every credential, profile and cached-data key, drops the
// default bearer header and runs the registered cleanups.
func (m *Manager) clear(ctx context.Context) {
	m.lock.Lock()
	m.generation++
	m.lock.Unlock()

	m.StopPeriodicRefresh()
	m.client.DelDefaultHeader(httpclient.HeaderAuthorization)

	keys := append([]string{}, storage.CredentialKeys...)
	keys = append(keys, storage.KeyAllDataFetched, storage.KeyDataFetchTime, storage.KeyDataFetchDuration)

	m.hooksLock.RLock()
	for _, p := range m.prefetchers {
		keys = append(keys, storage.DataFetchedKey(p.name))
	}
	cleanups := append([]namedCleanup(nil), m.cleanups...)
	m.hooksLock.RUnlock()

	if err := m.store.Remove(ctx, keys...); err != nil {
		m.logger.Err(err).Msg("failed to remove session keys")
	}

	for _, c := range cleanups {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := c.fn(cctx); err != nil {
			m.logger.Err(err).Str("cleanup", c.name).Msg("cleanup failed")
		}
		cancel()
	}
}
