package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-grc-client/httpclient"
	apperrors "github.com/jrsteele09/go-grc-client/internal/errors"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/rs/zerolog"
)

type retriedKey struct{}

// Endpoints whose 401s are expected while permissions load.
var nonCriticalEndpoints = []string{
	"/api/frameworks/",
	"/api/policy-categories/",
	"/api/user-role/",
	"/api/entities/",
	"/api/users/",
	"/api/departments/",
	"/api/notifications/",
	"/api/current-user/",
	"/api/policies/",
	"/api/compliance/",
	"/api/incident/",
	"/api/risk/",
	"/api/audit/",
	"/api/rbac/",
}

// IsNonCriticalEndpoint reports whether a 401 from path is expected, in
// which case a failed refresh for it is only logged at debug level.
func IsNonCriticalEndpoint(path string) bool {
	for _, e := range nonCriticalEndpoints {
		if strings.Contains(path, e) {
			return true
		}
	}
	return false
}

// Middleware returns the response and request middleware, outermost first.
func (m *Manager) Middleware() []httpclient.Middleware {
	return []httpclient.Middleware{
		m.RetryUnauthorized(),
		m.AttachToken(),
	}
}

// AttachToken refuses requests during logout, refreshes a token that is
// about to expire and sets the bearer header.
func (m *Manager) AttachToken() httpclient.Middleware {
	return func(next httpclient.Handler) httpclient.Handler {
		return func(req *http.Request) (*http.Response, error) {
			if m.IsLoggingOut() {
				return nil, apperrors.ErrLoggingOut
			}
			ctx := req.Context()
			m.CheckAndRefreshToken(ctx)
			token, err := m.store.Get(ctx, storage.KeyAccessToken)
			if err == nil && token != "" {
				req.Header.Set(httpclient.HeaderAuthorization, "Bearer "+token)
			} else {
				m.logger.Warn().Str("path", req.URL.Path).Msg("no access token for request")
			}
			return next(req)
		}
	}
}

// RetryUnauthorized refreshes once on a 401 and replays the request. If the
// refresh fails the original response is returned; the session is left as is.
func (m *Manager) RetryUnauthorized() httpclient.Middleware {
	return func(next httpclient.Handler) httpclient.Handler {
		return func(req *http.Request) (*http.Response, error) {
			resp, err := next(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			if strings.Contains(req.URL.Path, refreshPath) || req.Context().Value(retriedKey{}) != nil {
				return resp, nil
			}

			if !m.RefreshAccessToken(req.Context()) {
				level := zerolog.WarnLevel
				if IsNonCriticalEndpoint(req.URL.Path) {
					level = zerolog.DebugLevel
				}
				m.logger.WithLevel(level).Str("path", req.URL.Path).Msg("unauthorized and refresh failed")
				return resp, nil
			}

			retry, cerr := cloneForRetry(req)
			if cerr != nil {
				return resp, nil
			}
			if token, _ := m.store.Get(req.Context(), storage.KeyAccessToken); token != "" {
				retry.Header.Set(httpclient.HeaderAuthorization, "Bearer "+token)
			}
			retryResp, rerr := next(retry)
			if rerr != nil {
				return resp, nil
			}
			resp.Body.Close()
			return retryResp, nil
		}
	}
}

func cloneForRetry(req *http.Request) (*http.Request, error) {
	retry := req.Clone(context.WithValue(req.Context(), retriedKey{}, true))
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, http.ErrBodyNotAllowed
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}
