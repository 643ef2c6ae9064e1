package httpclient

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultXSRFCookieName = "csrftoken"
	DefaultXSRFHeaderName = "X-CSRFToken"
	HeaderRequestID       = "X-Request-ID"
)

// Handler sends a request. http.Client.Do is the innermost Handler.
type Handler func(*http.Request) (*http.Response, error)

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// ChainMiddleware wraps h so that mw[0] runs first.
func ChainMiddleware(h Handler, mw ...Middleware) Handler {
	chained := h
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

// RequestID tags requests that have no X-Request-ID with a fresh uuid.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(HeaderRequestID) == "" {
				req.Header.Set(HeaderRequestID, uuid.NewString())
			}
			return next(req)
		}
	}
}

// Logging logs each request at debug level, or at warn when it errors.
func Logging(logger zerolog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(req)
			ev := logger.Debug()
			if err != nil {
				ev = logger.Warn().Err(err)
			}
			ev = ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("request_id", req.Header.Get(HeaderRequestID)).
				Dur("elapsed", time.Since(start))
			if resp != nil {
				ev = ev.Int("status", resp.StatusCode)
			}
			ev.Msg("http request")
			return resp, err
		}
	}
}

// XSRF copies the CSRF cookie held in jar into headerName.
func XSRF(jar http.CookieJar, cookieName, headerName string) Middleware {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			if jar != nil && req.Header.Get(headerName) == "" {
				for _, ck := range jar.Cookies(req.URL) {
					if ck.Name == cookieName {
						req.Header.Set(headerName, ck.Value)
						break
					}
				}
			}
			return next(req)
		}
	}
}

// RateLimit blocks each request until limiter admits it or the request
// context is done.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
			return next(req)
		}
	}
}

// UserIDParam adds the stored user id as a user_id query parameter when the
// request does not already carry one. The backend uses it for RBAC when no
// session cookie is present.
func UserIDParam(store storage.Store) Middleware {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			if q.Get("user_id") == "" {
				if id, err := store.Get(req.Context(), storage.KeyUserID); err == nil && id != "" {
					q.Set("user_id", id)
					req.URL.RawQuery = q.Encode()
				}
			}
			return next(req)
		}
	}
}
