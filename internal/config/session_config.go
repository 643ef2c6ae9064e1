package config

import "time"

type SessionConfig interface {
	GetRefreshThreshold() time.Duration
	GetRefreshInterval() time.Duration
	GetMaxRefreshAttempts() int
}

type Session struct{}

var _ SessionConfig = Session{}

// GetRefreshThreshold is the remaining access token lifetime below which a
// refresh is attempted.
func (Session) GetRefreshThreshold() time.Duration {
	return GetDuration("GRC_REFRESH_THRESHOLD", 10*time.Minute)
}

func (Session) GetRefreshInterval() time.Duration {
	return GetDuration("GRC_REFRESH_INTERVAL", 5*time.Minute)
}

func (Session) GetMaxRefreshAttempts() int {
	return GetInt("GRC_MAX_REFRESH_ATTEMPTS", 3)
}
