// Package settings persists the singleton settings document. Settings are
// kept apart from the transaction ledger and carry no inventory invariants.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"pharmacore/pkg/domain"
)

// Store loads and saves settings. Load reports false when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (domain.Settings, bool, error)
	Save(ctx context.Context, s domain.Settings) error
}

// Driver names a settings backend.
type Driver string

// Supported drivers.
const (
	DriverFile   Driver = "file"
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
	DriverStore  Driver = "store"
)

// Environment variables read by Open.
const (
	EnvDriver   = "PHARMACORE_SETTINGS_DRIVER"
	EnvPath     = "PHARMACORE_SETTINGS_PATH"
	EnvRedisURL = "PHARMACORE_REDIS_URL"
	EnvRedisKey = "PHARMACORE_SETTINGS_KEY"
)

const (
	defaultPath = "pharmacore-settings.json"
	defaultKey  = "pharmacore:settings"
)

// Open selects a backend from the environment (default file). records backs
// the "store" driver.
func Open(records domain.RecordStore) (Store, error) {
	return OpenWith(
		Driver(strings.ToLower(strings.TrimSpace(os.Getenv(EnvDriver)))),
		os.Getenv(EnvPath), os.Getenv(EnvRedisURL), os.Getenv(EnvRedisKey),
		records,
	)
}

// OpenWith selects a backend from explicit values. Empty path and key fall
// back to their defaults.
func OpenWith(driver Driver, path, redisURL, key string, records domain.RecordStore) (Store, error) {
	if driver == "" {
		driver = DriverFile
	}
	switch driver {
	case DriverFile:
		if path == "" {
			path = defaultPath
		}
		return NewFileStore(path), nil
	case DriverRedis:
		if key == "" {
			key = defaultKey
		}
		return NewRedisStoreFromURL(redisURL, key)
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverStore:
		if records == nil {
			return nil, fmt.Errorf("settings driver %s requires a record store", driver)
		}
		return NewRecordStore(records), nil
	default:
		return nil, fmt.Errorf("unknown settings driver %s", driver)
	}
}

// Valid reports whether d names a supported backend.
func (d Driver) Valid() bool {
	switch d {
	case DriverFile, DriverRedis, DriverMemory, DriverStore:
		return true
	}
	return false
}

func decode(raw []byte) (domain.Settings, error) {
	var s domain.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}
