package config

import (
	"os"
	"strconv"
	"time"
)

const (
	appNameVar  = "GRC_APP_NAME"
	envVar      = "GRC_ENV"
	logLevelVar = "GRC_LOG_LEVEL"
	originVar   = "GRC_ORIGIN"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "GRC Client")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "warn")
}

// GetOrigin is the origin the client treats as "same origin" when no API
// base URL is configured.
func (EnvVars) GetOrigin() string {
	return GetEnv(originVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses envVar with time.ParseDuration, falling back to
// defaultValue when unset or malformed.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func GetInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
