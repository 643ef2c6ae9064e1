package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-grc-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("GRC_REFRESH_THRESHOLD", "")
	t.Setenv("GRC_MAX_REFRESH_ATTEMPTS", "")
	t.Setenv("GRC_STORE", "")
	t.Setenv("GRC_REQUEST_TIMEOUT", "")

	c := config.New()
	require.Equal(t, 10*time.Minute, c.GetRefreshThreshold())
	require.Equal(t, 5*time.Minute, c.GetRefreshInterval())
	require.Equal(t, 3, c.GetMaxRefreshAttempts())
	require.Equal(t, config.StoreFile, c.GetStoreKind())
	require.Zero(t, c.GetRequestTimeout())
}

func TestOverrides(t *testing.T) {
	t.Setenv("GRC_REFRESH_THRESHOLD", "2m")
	t.Setenv("GRC_MAX_REFRESH_ATTEMPTS", "5")
	t.Setenv("GRC_STORE", "redis")
	t.Setenv("GRC_REQUEST_TIMEOUT", "not-a-duration")

	c := config.New()
	require.Equal(t, 2*time.Minute, c.GetRefreshThreshold())
	require.Equal(t, 5, c.GetMaxRefreshAttempts())
	require.Equal(t, config.StoreRedis, c.GetStoreKind())
	require.Zero(t, c.GetRequestTimeout())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GRC_TEST_LOADED_VALUE=from-file\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("GRC_TEST_LOADED_VALUE") })

	_, err := config.Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	require.Equal(t, "from-file", config.GetEnv("GRC_TEST_LOADED_VALUE", ""))
}
