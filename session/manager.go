// Package session manages the JWT access/refresh token lifecycle against the
// GRC backend. Credentials live in a storage.Store so that several processes
// can share one login.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-grc-client/httpclient"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	loginPath         = "/api/jwt/login/"
	refreshPath       = "/api/jwt/refresh/"
	logoutPath        = "/api/jwt/logout/"
	verifyPath        = "/api/jwt/verify/"
	sessionLoginPath  = "/api/login/"
	sessionLogoutPath = "/api/logout/"

	LoginTypeUsername = "username"
	LoginTypeEmail    = "email"

	statusSuccess = "success"
)

// State is the Manager's lifecycle phase. It is informational; the stored
// credentials decide IsAuthenticated.
type State int

const (
	StateIdle State = iota
	StateLoggingIn
	StateAuthenticated
	StateRefreshing
	StateLoggingOut
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoggingIn:
		return "logging_in"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateLoggingOut:
		return "logging_out"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Manager owns the persisted credentials. The client it is given must not
// carry the Manager's own middleware; use AuthenticatedClient for that.
type Manager struct {
	client *httpclient.Client
	store  storage.Store
	logger zerolog.Logger
	now    func() time.Time

	refreshThreshold   time.Duration
	refreshInterval    time.Duration
	maxRefreshAttempts int

	lock            sync.Mutex
	state           State
	loggingOut      bool
	refreshing      bool
	failedRefreshes int
	generation      uint64
	timerGen        uint64
	timerStop       chan struct{}

	hooksLock   sync.RWMutex
	listeners   map[string]Listener
	cleanups    []namedCleanup
	prefetchers []namedPrefetcher
	prefetchWG  sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithNowFunc replaces the clock used for expiry checks.
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithRefreshThreshold sets how close to expiry the access token may get
// before it is refreshed.
func WithRefreshThreshold(d time.Duration) Option {
	return func(m *Manager) {
		m.refreshThreshold = d
	}
}

// WithRefreshInterval sets the period of the background refresh check.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.refreshInterval = d
	}
}

// WithMaxRefreshAttempts sets how many consecutive refresh failures clear
// the session. Values below one are treated as one.
func WithMaxRefreshAttempts(n int) Option {
	return func(m *Manager) {
		m.maxRefreshAttempts = n
	}
}

// New creates a Manager that logs in through client and persists the
// session in store. Nothing is read from store until Resume or a login.
func New(client *httpclient.Client, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		client:             client,
		store:              store,
		logger:             log.Logger,
		now:                time.Now,
		refreshThreshold:   10 * time.Minute,
		refreshInterval:    5 * time.Minute,
		maxRefreshAttempts: 3,
		listeners:          make(map[string]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxRefreshAttempts < 1 {
		m.maxRefreshAttempts = 1
	}
	return m
}

// Resume restores an existing login from the store: the default bearer
// header is set and the periodic refresher started.
func (m *Manager) Resume(ctx context.Context) bool {
	if !m.IsAuthenticated(ctx) {
		return false
	}
	if token, err := m.store.Get(ctx, storage.KeyAccessToken); err == nil && token != "" {
		m.client.SetDefaultHeader(httpclient.HeaderAuthorization, "Bearer "+token)
	}
	m.setState(StateAuthenticated)
	m.StartPeriodicRefresh(ctx)
	return true
}

func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.state = s
}

func (m *Manager) IsLoggingOut() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.loggingOut
}

// FailedRefreshes is the number of consecutive refresh failures in the
// current session.
func (m *Manager) FailedRefreshes() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.failedRefreshes
}

// current reports whether no clear has happened since gen was taken.
func (m *Manager) current(gen uint64) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.generation == gen
}

func (m *Manager) currentGeneration() uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.generation
}

// IsAuthenticated is true when an access token, a user profile and the
// logged-in flag are all stored.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	token, err := m.store.Get(ctx, storage.KeyAccessToken)
	if err != nil || token == "" {
		return false
	}
	user, err := m.store.Get(ctx, storage.KeyUser)
	if err != nil || user == "" {
		return false
	}
	loggedIn, err := m.store.Get(ctx, storage.KeyIsLoggedIn)
	return err == nil && loggedIn == "true"
}

// AccessToken returns the stored access token, empty when logged out.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	return m.store.Get(ctx, storage.KeyAccessToken)
}

func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	return m.store.Get(ctx, storage.KeyRefreshToken)
}

// AuthenticatedClient derives a client from the raw one that attaches and
// refreshes the bearer token.
func (m *Manager) AuthenticatedClient() *httpclient.Client {
	return m.Authenticate(m.client)
}

// Authenticate derives a client from c, which may point at another server,
// that carries this session's bearer token. Refreshes still go through the
// Manager's own client.
func (m *Manager) Authenticate(c *httpclient.Client) *httpclient.Client {
	return c.With(m.Middleware()...)
}
