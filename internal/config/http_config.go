package config

import "time"

type HTTPConfig interface {
	GetRequestTimeout() time.Duration
	GetMaxRequestsPerSecond() int
	GetUserAgent() string
}

type HTTP struct{}

var _ HTTPConfig = HTTP{}

// GetRequestTimeout defaults to zero, which leaves requests unbounded.
// Long running operations such as OCR extraction rely on this.
func (HTTP) GetRequestTimeout() time.Duration {
	return GetDuration("GRC_REQUEST_TIMEOUT", 0)
}

func (HTTP) GetMaxRequestsPerSecond() int {
	return GetInt("GRC_MAX_RPS", 0)
}

func (HTTP) GetUserAgent() string {
	return GetEnv("GRC_USER_AGENT", "grcctl/1.0")
}
