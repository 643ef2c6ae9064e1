package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-grc-client/httpclient"
	"github.com/jrsteele09/go-grc-client/internal/backendfake"
	apperrors "github.com/jrsteele09/go-grc-client/internal/errors"
	"github.com/jrsteele09/go-grc-client/session"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	lock   sync.Mutex
	offset time.Duration
}

func (c *testClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return time.Now().Add(c.offset)
}

func (c *testClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.offset += d
}

// testFixture holds all test dependencies
type testFixture struct {
	backend *backendfake.Backend
	store   *storage.MemoryStore
	raw     *httpclient.Client
	client  *httpclient.Client
	manager *session.Manager
	clock   *testClock
}

// setupTestFixture creates a manager wired to a fresh fake backend
func setupTestFixture(t *testing.T, opts ...session.Option) *testFixture {
	t.Helper()

	backend := backendfake.New()
	t.Cleanup(backend.Close)

	clock := &testClock{}
	store := storage.NewMemoryStore()
	raw := httpclient.New(backend.URL())

	opts = append([]session.Option{
		session.WithLogger(zerolog.Nop()),
		session.WithNowFunc(clock.Now),
	}, opts...)
	manager := session.New(raw, store, opts...)
	t.Cleanup(manager.StopPeriodicRefresh)

	return &testFixture{
		backend: backend,
		store:   store,
		raw:     raw,
		client:  manager.AuthenticatedClient(),
		manager: manager,
		clock:   clock,
	}
}

func (f *testFixture) login(t *testing.T) *session.LoginResult {
	t.Helper()
	result, err := f.manager.Login(context.Background(), backendfake.Username, backendfake.Password, "")
	require.NoError(t, err)
	return result
}

func (f *testFixture) get(t *testing.T, key string) string {
	t.Helper()
	v, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	return v
}

func TestLoginPersistsSession(t *testing.T) {
	f := setupTestFixture(t)

	var events []session.Event
	unsubscribe := f.manager.Subscribe(func(e session.Event) { events = append(events, e) })
	defer unsubscribe()

	result := f.login(t)
	require.True(t, result.Success)
	require.True(t, result.LicenseVerified)
	require.EqualValues(t, backendfake.UserID, result.User.UserID)
	require.Equal(t, "Jane Doe", result.User.FullName())

	require.Equal(t, result.Tokens.Access, f.get(t, storage.KeyAccessToken))
	require.Equal(t, result.Tokens.Refresh, f.get(t, storage.KeyRefreshToken))
	require.NotEmpty(t, f.get(t, storage.KeyAccessTokenExpires))
	require.NotEmpty(t, f.get(t, storage.KeyRefreshTokenExpires))
	require.Equal(t, "42", f.get(t, storage.KeyUserID))
	require.Equal(t, "jdoe@example.com", f.get(t, storage.KeyUserEmail))
	require.Equal(t, backendfake.Username, f.get(t, storage.KeyUserName))
	require.Equal(t, "Jane Doe", f.get(t, storage.KeyUserFullName))
	require.Equal(t, "true", f.get(t, storage.KeyIsAuthenticated))
	require.Equal(t, "true", f.get(t, storage.KeyIsLoggedIn))
	require.Contains(t, f.get(t, storage.KeyUser), "license_key")

	require.True(t, f.manager.IsAuthenticated(context.Background()))
	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.Equal(t, "Bearer "+result.Tokens.Access, f.raw.DefaultHeader(httpclient.HeaderAuthorization))
	require.True(t, f.manager.RefreshTimerRunning())

	require.Len(t, events, 1)
	require.Equal(t, session.EventLogin, events[0].Type)
	require.EqualValues(t, backendfake.UserID, events[0].User.UserID)

	call, ok := f.backend.LastCall("/api/jwt/login/")
	require.True(t, ok)
	require.Contains(t, string(call.Body), `"login_type":"username"`)

	user, err := f.manager.CurrentUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "jdoe@example.com", user.Email)
}

func TestLoginFailure(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Login(context.Background(), backendfake.Username, "wrong", session.LoginTypeUsername)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperrors.ErrLoginFailed))
	require.Contains(t, err.Error(), "Invalid credentials")

	require.Empty(t, f.get(t, storage.KeyAccessToken))
	require.False(t, f.manager.IsAuthenticated(context.Background()))
	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.False(t, f.manager.RefreshTimerRunning())
}

func TestLoginNetworkFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Close()

	_, err := f.manager.Login(context.Background(), backendfake.Username, backendfake.Password, "")
	require.Error(t, err)
	require.False(t, errors.Is(err, apperrors.ErrLoginFailed))
	require.False(t, f.manager.IsAuthenticated(context.Background()))
}

func TestLoginDerivesExpiryFromToken(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetOmitExpiry(true)

	f.login(t)
	exp, ok := session.ParseExpiry(f.get(t, storage.KeyAccessTokenExpires))
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)
}

func TestLogoutClearsEverything(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	var cleaned []string
	f.manager.RegisterCleanup("risk", func(context.Context) error {
		cleaned = append(cleaned, "risk")
		return nil
	})
	f.manager.RegisterCleanup("broken", func(context.Context) error {
		cleaned = append(cleaned, "broken")
		return errors.New("boom")
	})
	f.manager.RegisterPrefetcher("risk", func(context.Context, *session.User) error { return nil })

	var loggedOut bool
	f.manager.Subscribe(func(e session.Event) {
		if e.Type == session.EventLogout {
			loggedOut = true
		}
	})

	result := f.login(t)
	f.manager.WaitPrefetch()
	require.NoError(t, f.store.Set(ctx, storage.KeyRememberMe, "true"))
	require.Equal(t, "true", f.get(t, storage.DataFetchedKey("risk")))

	f.manager.Logout(ctx)

	require.True(t, loggedOut)
	require.Equal(t, []string{"risk", "broken"}, cleaned)
	require.Empty(t, f.store.Keys())
	require.Empty(t, f.raw.DefaultHeader(httpclient.HeaderAuthorization))
	require.False(t, f.manager.IsAuthenticated(ctx))
	require.False(t, f.manager.RefreshTimerRunning())
	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.False(t, f.manager.IsLoggingOut())

	call, ok := f.backend.LastCall("/api/jwt/logout/")
	require.True(t, ok)
	require.Equal(t, "Bearer "+result.Tokens.Access, call.Header.Get("Authorization"))
}

func TestLogoutSurvivesBackendFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.SetFailLogout(true)

	f.manager.Logout(context.Background())
	require.Empty(t, f.store.Keys())
	require.Equal(t, 1, f.backend.Count("/api/jwt/logout/"))
}

func TestLogoutBlocksRequestsAndRefreshes(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	var requestErr error
	var refreshed bool
	f.manager.Subscribe(func(e session.Event) {
		if e.Type != session.EventLogout {
			return
		}
		_, requestErr = f.client.Get(context.Background(), "/api/protected/")
		refreshed = f.manager.RefreshAccessToken(context.Background())
	})

	f.manager.Logout(context.Background())
	require.ErrorIs(t, requestErr, apperrors.ErrLoggingOut)
	require.False(t, refreshed)
	require.Zero(t, f.backend.Count("/api/jwt/refresh/"))
}

func TestPrefetchRecordsCompletion(t *testing.T) {
	f := setupTestFixture(t)

	var seen sync.Map
	f.manager.RegisterPrefetcher("incident", func(_ context.Context, u *session.User) error {
		seen.Store("incident", u.UserID)
		return nil
	})
	f.manager.RegisterPrefetcher("tree", func(context.Context, *session.User) error {
		return errors.New("tree unavailable")
	})

	f.login(t)
	f.manager.WaitPrefetch()

	id, ok := seen.Load("incident")
	require.True(t, ok)
	require.EqualValues(t, backendfake.UserID, id)

	require.Equal(t, "true", f.get(t, storage.DataFetchedKey("incident")))
	require.Empty(t, f.get(t, storage.DataFetchedKey("tree")))
	require.Equal(t, "true", f.get(t, storage.KeyAllDataFetched))
	require.NotEmpty(t, f.get(t, storage.KeyDataFetchDuration))
	_, err := time.Parse(time.RFC3339, f.get(t, storage.KeyDataFetchTime))
	require.NoError(t, err)
}

func TestSessionLoginAndLogout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	result, err := f.manager.SessionLogin(ctx, backendfake.Username, backendfake.Password, "")
	require.NoError(t, err)
	require.EqualValues(t, backendfake.UserID, result.User.UserID)
	require.Equal(t, "42", f.get(t, storage.KeyUserID))
	require.Equal(t, "Jane Doe", f.get(t, storage.KeyUserFullName))
	require.Equal(t, "true", f.get(t, storage.KeyIsLoggedIn))
	require.False(t, f.manager.IsAuthenticated(ctx))

	user, err := f.manager.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, backendfake.Username, user.UserName)

	f.manager.SessionLogout(ctx)
	require.Empty(t, f.store.Keys())
	require.Equal(t, 1, f.backend.Count("/api/logout/"))

	_, err = f.manager.CurrentUser(ctx)
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestSessionLoginRejected(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.SessionLogin(context.Background(), "nobody", "nothing", "")
	require.ErrorIs(t, err, apperrors.ErrLoginFailed)
	require.True(t, httpclient.IsStatus(err, 401))
}

func TestVerifyToken(t *testing.T) {
	f := setupTestFixture(t)
	require.False(t, f.manager.VerifyToken(context.Background()))

	f.login(t)
	require.True(t, f.manager.VerifyToken(context.Background()))

	f.backend.InvalidateAccessTokens()
	require.False(t, f.manager.VerifyToken(context.Background()))
}

func TestResumeRestoresSession(t *testing.T) {
	f := setupTestFixture(t)
	result := f.login(t)

	raw := httpclient.New(f.backend.URL())
	resumed := session.New(raw, f.store, session.WithLogger(zerolog.Nop()))
	t.Cleanup(resumed.StopPeriodicRefresh)

	require.True(t, resumed.Resume(context.Background()))
	require.Equal(t, "Bearer "+result.Tokens.Access, raw.DefaultHeader(httpclient.HeaderAuthorization))
	require.Equal(t, session.StateAuthenticated, resumed.State())

	resp, err := resumed.AuthenticatedClient().Get(context.Background(), "/api/protected/")
	require.NoError(t, err)
	require.True(t, strings.Contains(string(resp.Body), "success"))
}

func TestIsAuthenticatedNeedsTokenUserAndFlag(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ctx context.Context, s *storage.MemoryStore) error
	}{
		{"access token removed", func(ctx context.Context, s *storage.MemoryStore) error {
			return s.Remove(ctx, storage.KeyAccessToken)
		}},
		{"user removed", func(ctx context.Context, s *storage.MemoryStore) error {
			return s.Remove(ctx, storage.KeyUser)
		}},
		{"logged-in flag removed", func(ctx context.Context, s *storage.MemoryStore) error {
			return s.Remove(ctx, storage.KeyIsLoggedIn)
		}},
		{"logged-in flag false", func(ctx context.Context, s *storage.MemoryStore) error {
			return s.Set(ctx, storage.KeyIsLoggedIn, "false")
		}},
		{"logged-in flag not literal true", func(ctx context.Context, s *storage.MemoryStore) error {
			return s.Set(ctx, storage.KeyIsLoggedIn, "1")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			ctx := context.Background()
			f.login(t)
			require.True(t, f.manager.IsAuthenticated(ctx))

			require.NoError(t, tt.mutate(ctx, f.store))
			require.False(t, f.manager.IsAuthenticated(ctx))
		})
	}
}
