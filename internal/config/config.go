package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config is every setting grcctl reads from the environment.
type Config interface {
	EnvConfig
	SessionConfig
	StoreConfig
	HTTPConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetOrigin() string
}

type mainConfig struct {
	EnvVars
	Session
	Store
	HTTP
}

func New() Config {
	return mainConfig{}
}

// Load reads the given .env files into the process environment and returns
// the config. Missing files are skipped. With no arguments ".env" is tried.
// Variables already set in the environment are never overridden.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "config.Load %s", f)
		}
	}
	return New(), nil
}
