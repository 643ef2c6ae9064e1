// Package storage provides the key/value stores that hold session
// credentials, the user profile and cached-data flags.
package storage

import "context"

// Store is a flat string key/value store. Get returns "" with a nil error
// for a missing key. Writes are last-write-wins.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

// Keys persisted by the session and consent layers.
const (
	KeyAccessToken         = "access_token"
	KeyRefreshToken        = "refresh_token"
	KeyAccessTokenExpires  = "access_token_expires"
	KeyRefreshTokenExpires = "refresh_token_expires"
	KeyUser                = "user"
	KeyUserID              = "user_id"
	KeyUserEmail           = "user_email"
	KeyUserName            = "user_name"
	KeyUserFullName        = "user_full_name"
	KeyIsAuthenticated     = "isAuthenticated"
	KeyIsLoggedIn          = "is_logged_in"
	KeyRememberMe          = "remember_me"

	KeyAllDataFetched    = "all_data_fetched"
	KeyDataFetchTime     = "data_fetch_time"
	KeyDataFetchDuration = "data_fetch_duration"

	KeyFrameworkID         = "framework_id"
	KeySelectedFrameworkID = "selectedFrameworkId"
	KeyFrameworkIDLegacy   = "frameworkId"
)

// DataFetchedKey is the flag set once the named data set has been prefetched.
func DataFetchedKey(name string) string {
	return name + "_data_fetched"
}

// CredentialKeys are removed together whenever the session is cleared.
var CredentialKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyAccessTokenExpires,
	KeyRefreshTokenExpires,
	KeyUser,
	KeyUserID,
	KeyUserEmail,
	KeyUserName,
	KeyUserFullName,
	KeyIsAuthenticated,
	KeyIsLoggedIn,
	KeyRememberMe,
}
