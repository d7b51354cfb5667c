package core

import (
	"fmt"
	"os"

	"pharmacore/internal/infra/persistence/memory"
	"pharmacore/internal/infra/persistence/postgres"
	"pharmacore/internal/infra/persistence/sqlite"
	"pharmacore/pkg/domain"
)

// StorageDriver identifies a concrete record store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Storage environment variables.
const (
	EnvStorageDriver = "PHARMACORE_STORAGE_DRIVER"
	EnvSQLitePath    = "PHARMACORE_SQLITE_PATH"
	EnvPostgresDSN   = "PHARMACORE_POSTGRES_DSN"
)

// OpenRecordStore selects a backend using environment variables. The store
// is returned unopened; Service.Hydrate initializes it.
//
//	PHARMACORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	PHARMACORE_SQLITE_PATH: path to sqlite file (default ./pharmacore.db)
//	PHARMACORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenRecordStore() (domain.RecordStore, error) {
	return OpenRecordStoreWith(StorageDriver(os.Getenv(EnvStorageDriver)), os.Getenv(EnvSQLitePath), os.Getenv(EnvPostgresDSN))
}

// OpenRecordStoreWith selects a backend from explicit values.
func OpenRecordStoreWith(driver StorageDriver, sqlitePath, postgresDSN string) (domain.RecordStore, error) {
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(sqlitePath), nil
	case StoragePostgres:
		return postgres.NewStore(postgresDSN), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
