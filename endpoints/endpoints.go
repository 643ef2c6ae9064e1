// Package endpoints resolves the base URLs of the GRC backend and its TPRM
// sub-service from environment values, falling back to the same origin.
package endpoints

import (
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
)

const (
	defaultOrigin  = "http://localhost:8000"
	backendPort    = "8000"
	originVar      = "GRC_ORIGIN"
	tprmBaseVar    = "VITE_TPRM_API_BASE_URL"
	tprmPrefixVar  = "VITE_TPRM_API_PREFIX"
	apiPathSegment = "/api"
)

// baseURLVars are consulted in order; the first non-empty value wins.
var baseURLVars = []string{
	"GRC_API_BASE_URL",
	"VITE_API_BASE_URL",
	"VITE_API_URL",
	"VITE_BACKEND_URL",
	"VUE_APP_API_BASE_URL",
	"VUE_APP_API_URL",
}

// Front-end dev server ports. An origin on one of these talks to the backend on 8000.
var devPorts = map[string]struct{}{
	"3000": {}, "4173": {}, "4174": {}, "5173": {}, "5174": {},
}

// LookupFunc returns the value of a configuration variable or "" when unset.
type LookupFunc func(key string) string

// Resolver holds the URLs computed once from a LookupFunc. It is immutable.
type Resolver struct {
	apiBase  string
	origin   string
	apiV1    string
	tprmBase string
	tprmV1   string
	// tprmSet is true when the TPRM base came from the environment.
	tprmSet bool
}

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// Default returns the process-wide resolver built from the environment on
// first use.
func Default() *Resolver {
	defaultOnce.Do(func() {
		defaultResolver = New(os.Getenv)
	})
	return defaultResolver
}

func New(lookup LookupFunc) *Resolver {
	if lookup == nil {
		lookup = func(string) string { return "" }
	}
	r := &Resolver{}
	r.apiBase = resolveAPIBase(lookup)
	r.origin = originOf(r.apiBase, lookup)
	r.apiV1 = JoinURL(r.apiBase, "v1")
	r.tprmBase = r.resolveTPRMBase(lookup)
	r.tprmV1 = JoinURL(r.tprmBase, "v1")
	return r
}

func resolveAPIBase(lookup LookupFunc) string {
	for _, key := range baseURLVars {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return stripTrailingSlash(v)
		}
	}
	return sameOrigin(lookup) + apiPathSegment
}

// sameOrigin maps the configured origin onto the backend port the way a
// browser on a dev server would.
func sameOrigin(lookup LookupFunc) string {
	raw := strings.TrimSpace(lookup(originVar))
	if raw == "" {
		return defaultOrigin
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return defaultOrigin
	}
	port := u.Port()
	if _, dev := devPorts[port]; dev || port == "" {
		port = backendPort
	}
	return u.Scheme + "://" + net.JoinHostPort(u.Hostname(), port)
}

func originOf(base string, lookup LookupFunc) string {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return sameOrigin(lookup)
	}
	return u.Scheme + "://" + u.Host
}

func (r *Resolver) resolveTPRMBase(lookup LookupFunc) string {
	if v := strings.TrimSpace(lookup(tprmBaseVar)); v != "" {
		r.tprmSet = true
		return stripTrailingSlash(v)
	}
	if prefix := strings.TrimSpace(lookup(tprmPrefixVar)); prefix != "" {
		r.tprmSet = true
		if strings.HasPrefix(prefix, "http://") || strings.HasPrefix(prefix, "https://") {
			return stripTrailingSlash(prefix)
		}
		return r.origin + ensureLeadingSlash(stripTrailingSlash(prefix))
	}
	return JoinURL(r.apiBase, "tprm")
}

func (r *Resolver) Origin() string        { return r.origin }
func (r *Resolver) APIBaseURL() string    { return r.apiBase }
func (r *Resolver) APIV1BaseURL() string  { return r.apiV1 }
func (r *Resolver) TPRMBaseURL() string   { return r.tprmBase }
func (r *Resolver) TPRMV1BaseURL() string { return r.tprmV1 }

func (r *Resolver) APIURL(path string) string    { return JoinURL(r.apiBase, path) }
func (r *Resolver) APIV1URL(path string) string  { return JoinURL(r.apiV1, path) }
func (r *Resolver) TPRMURL(path string) string   { return JoinURL(r.tprmBase, path) }
func (r *Resolver) TPRMV1URL(path string) string { return JoinURL(r.tprmV1, path) }

// ServerURL is the API base without its trailing "/api" segment. Client
// paths are written as "/api/..." and are joined onto this.
func (r *Resolver) ServerURL() string {
	return strings.TrimSuffix(r.apiBase, apiPathSegment)
}

// TPRMServerURL is the explicitly configured TPRM base without its trailing
// "/api" segment. Without TPRM configuration the TPRM routes are served by
// the main backend and ServerURL is returned.
func (r *Resolver) TPRMServerURL() string {
	if !r.tprmSet {
		return r.ServerURL()
	}
	return strings.TrimSuffix(r.tprmBase, apiPathSegment)
}

// JoinURL joins base and path with exactly one slash. Joining an already
// joined path again yields the same result.
func JoinURL(base, path string) string {
	cleanBase := stripTrailingSlash(base)
	cleanPath := strings.TrimLeft(path, "/")
	if cleanPath == "" {
		return cleanBase
	}
	return cleanBase + "/" + cleanPath
}

func stripTrailingSlash(v string) string {
	return strings.TrimRight(v, "/")
}

func ensureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
