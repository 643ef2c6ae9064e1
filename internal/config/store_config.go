package config

import (
	"os"
	"path/filepath"
)

type StoreKind string

const (
	StoreFile   StoreKind = "file"
	StoreMemory StoreKind = "memory"
	StoreRedis  StoreKind = "redis"
)

type StoreConfig interface {
	GetStoreKind() StoreKind
	GetStorePath() string
	GetStorePassphrase() string
	GetRedisURL() string
	GetRedisPrefix() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreKind() StoreKind {
	switch k := StoreKind(GetEnv("GRC_STORE", string(StoreFile))); k {
	case StoreMemory, StoreRedis:
		return k
	default:
		return StoreFile
	}
}

func (Store) GetStorePath() string {
	if p := GetEnv("GRC_STORE_PATH", ""); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".grc", "session.json")
	}
	return filepath.Join(home, ".grc", "session.json")
}

// GetStorePassphrase enables at-rest encryption of the file store when set.
func (Store) GetStorePassphrase() string {
	return GetEnv("GRC_STORE_PASSPHRASE", "")
}

func (Store) GetRedisURL() string {
	return GetEnv("GRC_REDIS_URL", "redis://localhost:6379/0")
}

func (Store) GetRedisPrefix() string {
	return GetEnv("GRC_REDIS_PREFIX", "grc:")
}
