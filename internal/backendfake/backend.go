// Package backendfake serves an in-process GRC backend for tests. It issues
// HS256 JWT pairs, enforces bearer auth on data routes and records every call.
package backendfake

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	Username     = "jdoe"
	Password     = "password123"
	UserID       = 42
	CSRFToken    = "csrf-fake-token"
	ExpiryLayout = "2006-01-02T15:04:05.000000"
)

// Call is a recorded request.
type Call struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

type Backend struct {
	server *httptest.Server
	secret []byte

	lock          sync.Mutex
	calls         []Call
	validAccess   map[string]bool
	validRefresh  map[string]bool
	accessTTL     time.Duration
	omitExpiry    bool
	rotateRefresh bool
	failRefresh   bool
	refreshDelay  time.Duration
	failLogout    bool
	consent       map[string]bool
	failConsent   bool
	accepted      []map[string]any
}

func New() *Backend {
	b := &Backend{
		secret:        []byte(uuid.NewString()),
		validAccess:   make(map[string]bool),
		validRefresh:  make(map[string]bool),
		accessTTL:     time.Hour,
		rotateRefresh: true,
		consent:       make(map[string]bool),
	}
	b.server = httptest.NewServer(b.routes())
	return b
}

func (b *Backend) URL() string {
	return b.server.URL
}

func (b *Backend) Close() {
	b.server.Close()
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Post("/api/jwt/login/", b.handleLogin)
	r.Post("/api/jwt/refresh/", b.handleRefresh)
	r.Post("/api/jwt/logout/", b.handleLogout)
	r.Get("/api/jwt/verify/", b.requireBearer(b.handleVerify))
	r.Post("/api/login/", b.handleSessionLogin)
	r.Post("/api/logout/", b.handleSessionLogout)

	r.Post("/api/consent/check/", b.requireBearer(b.handleConsentCheck))
	r.Post("/api/consent/accept/", b.requireBearer(b.handleConsentAccept))

	for _, p := range []string{"/api/risk/", "/api/incident/", "/api/frameworks/", "/api/compliance/", "/api/integrations/", "/api/protected/"} {
		r.Get(p, b.requireBearer(b.handleData))
	}
	r.HandleFunc("/api/bcpdrp/*", b.requireBearer(b.handleEcho))
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		b.lock.Lock()
		b.calls = append(b.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		b.lock.Unlock()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.lock.Lock()
		valid := b.validAccess[raw]
		b.lock.Unlock()
		if raw == "" || !valid || b.parse(raw) != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "error", "message": "Invalid or expired token"})
			return
		}
		next(w, r)
	}
}

func (b *Backend) handleData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"path":   r.URL.Path,
		"data":   []map[string]any{{"id": 1}, {"id": 2}},
	})
}

func (b *Backend) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var decoded any
	if len(body) > 0 {
		_ = json.Unmarshal(body, &decoded)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"query":  r.URL.RawQuery,
		"body":   decoded,
	})
}
