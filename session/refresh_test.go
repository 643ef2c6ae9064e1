package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-grc-client/httpclient"
	"github.com/jrsteele09/go-grc-client/session"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/stretchr/testify/require"
)

func TestCheckAndRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.False(t, f.manager.CheckAndRefreshToken(ctx), "no expiry stored")

	first := f.login(t)
	require.False(t, f.manager.CheckAndRefreshToken(ctx))
	require.Zero(t, f.backend.Count("/api/jwt/refresh/"))

	f.clock.Advance(55 * time.Minute)
	require.True(t, f.manager.CheckAndRefreshToken(ctx))
	require.Equal(t, 1, f.backend.Count("/api/jwt/refresh/"))

	access := f.get(t, storage.KeyAccessToken)
	require.NotEqual(t, first.Tokens.Access, access)
	require.NotEqual(t, first.Tokens.Refresh, f.get(t, storage.KeyRefreshToken))
	require.Equal(t, "Bearer "+access, f.raw.DefaultHeader(httpclient.HeaderAuthorization))
	require.Equal(t, session.StateAuthenticated, f.manager.State())
}

func TestCheckAndRefreshIgnoresBadExpiry(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	require.NoError(t, f.store.Set(context.Background(), storage.KeyAccessTokenExpires, "not a date"))

	f.clock.Advance(24 * time.Hour)
	require.False(t, f.manager.CheckAndRefreshToken(context.Background()))
	require.Zero(t, f.backend.Count("/api/jwt/refresh/"))
}

func TestRefreshKeepsRefreshTokenWithoutRotation(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	f.backend.SetRotateRefresh(false)

	require.True(t, f.manager.RefreshAccessToken(context.Background()))
	require.Equal(t, first.Tokens.Refresh, f.get(t, storage.KeyRefreshToken))
	require.Equal(t, first.Tokens.RefreshExpires, f.get(t, storage.KeyRefreshTokenExpires))
	require.NotEqual(t, first.Tokens.Access, f.get(t, storage.KeyAccessToken))
}

func TestRefreshFailuresClearCredentials(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.login(t)
	f.backend.SetFailRefresh(true)

	require.False(t, f.manager.RefreshAccessToken(ctx))
	require.Equal(t, 1, f.manager.FailedRefreshes())
	require.True(t, f.manager.IsAuthenticated(ctx))
	require.Equal(t, session.StateAuthenticated, f.manager.State())

	require.False(t, f.manager.RefreshAccessToken(ctx))
	require.Equal(t, 2, f.manager.FailedRefreshes())
	require.True(t, f.manager.IsAuthenticated(ctx))

	require.False(t, f.manager.RefreshAccessToken(ctx))
	require.Equal(t, 3, f.manager.FailedRefreshes())
	require.False(t, f.manager.IsAuthenticated(ctx))
	require.Empty(t, f.get(t, storage.KeyRefreshToken))
	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.False(t, f.manager.RefreshTimerRunning())

	// Exhausted: no further backend calls until the next login.
	require.False(t, f.manager.RefreshAccessToken(ctx))
	require.Equal(t, 3, f.backend.Count("/api/jwt/refresh/"))

	f.backend.SetFailRefresh(false)
	f.login(t)
	require.Zero(t, f.manager.FailedRefreshes())
	require.True(t, f.manager.RefreshAccessToken(ctx))
}

func TestRefreshWithoutRefreshTokenCountsAsFailure(t *testing.T) {
	f := setupTestFixture(t)
	require.False(t, f.manager.RefreshAccessToken(context.Background()))
	require.Equal(t, 1, f.manager.FailedRefreshes())
	require.Zero(t, f.backend.Count("/api/jwt/refresh/"))
}

func TestConcurrentRefreshIsSingleFlight(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.SetRefreshDelay(200 * time.Millisecond)

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if f.manager.RefreshAccessToken(context.Background()) {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
	require.Equal(t, 1, f.backend.Count("/api/jwt/refresh/"))
	require.Zero(t, f.manager.FailedRefreshes())
}

func TestPeriodicRefresh(t *testing.T) {
	f := setupTestFixture(t,
		session.WithRefreshInterval(20*time.Millisecond),
		session.WithRefreshThreshold(2*time.Hour),
	)
	f.login(t)

	require.Eventually(t, func() bool {
		return f.backend.Count("/api/jwt/refresh/") >= 1
	}, 2*time.Second, 10*time.Millisecond)

	f.manager.StopPeriodicRefresh()
	require.False(t, f.manager.RefreshTimerRunning())
	time.Sleep(50 * time.Millisecond)
	settled := f.backend.Count("/api/jwt/refresh/")
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, settled, f.backend.Count("/api/jwt/refresh/"))
}

func TestPeriodicRefreshNeedsAuthentication(t *testing.T) {
	f := setupTestFixture(t, session.WithRefreshInterval(10*time.Millisecond))
	f.manager.StartPeriodicRefresh(context.Background())
	require.False(t, f.manager.RefreshTimerRunning())
}

func TestRefreshFromPreviousSessionKeepsSlotAndIsDiscarded(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.login(t)
	f.backend.SetRefreshDelay(400 * time.Millisecond)

	done := make(chan bool, 1)
	go func() {
		done <- f.manager.RefreshAccessToken(ctx)
	}()
	require.Eventually(t, func() bool {
		return f.backend.Count("/api/jwt/refresh/") == 1
	}, time.Second, 5*time.Millisecond)

	f.manager.Logout(ctx)
	second := f.login(t)

	require.False(t, f.manager.RefreshAccessToken(ctx), "previous refresh still in flight")
	require.False(t, <-done)
	require.Equal(t, 1, f.backend.Count("/api/jwt/refresh/"))
	require.Zero(t, f.manager.FailedRefreshes())
	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.Equal(t, second.Tokens.Access, f.get(t, storage.KeyAccessToken))

	f.backend.SetRefreshDelay(0)
	require.True(t, f.manager.RefreshAccessToken(ctx))
	require.Equal(t, 2, f.backend.Count("/api/jwt/refresh/"))
}

func TestRefreshFailureFromPreviousSessionIsNotCounted(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.login(t)
	f.backend.SetFailRefresh(true)
	f.backend.SetRefreshDelay(300 * time.Millisecond)

	done := make(chan bool, 1)
	go func() {
		done <- f.manager.RefreshAccessToken(ctx)
	}()
	require.Eventually(t, func() bool {
		return f.backend.Count("/api/jwt/refresh/") == 1
	}, time.Second, 5*time.Millisecond)

	f.manager.Logout(ctx)
	f.login(t)
	require.False(t, <-done)

	require.Zero(t, f.manager.FailedRefreshes())
	require.True(t, f.manager.IsAuthenticated(ctx))
}

func TestNoRefreshAdmittedAfterStop(t *testing.T) {
	f := setupTestFixture(t,
		session.WithRefreshInterval(2*time.Millisecond),
		session.WithRefreshThreshold(2*time.Hour),
	)
	f.login(t)

	for i := 0; i < 5; i++ {
		before := f.backend.Count("/api/jwt/refresh/")
		require.Eventually(t, func() bool {
			return f.backend.Count("/api/jwt/refresh/") > before
		}, 2*time.Second, time.Millisecond)

		f.manager.StopPeriodicRefresh()
		require.Eventually(t, func() bool {
			return f.manager.State() != session.StateRefreshing
		}, time.Second, time.Millisecond)

		settled := f.backend.Count("/api/jwt/refresh/")
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, settled, f.backend.Count("/api/jwt/refresh/"))

		f.manager.StartPeriodicRefresh(context.Background())
	}
}
