package core

import (
	"fmt"
	"os"

	"reqcore/internal/infra/persistence/memory"
	"reqcore/internal/infra/persistence/postgres"
	"reqcore/internal/infra/persistence/sqlite"
	"reqcore/pkg/domain"
)

// StorageDriver identifies a concrete persistence implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenBackend selects a persistence backend using environment variables.
// Defaults to sqlite when unset.
//
//	REQCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	REQCORE_SQLITE_PATH: path to sqlite file (default ./reqcore.db)
//	REQCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenBackend() (domain.Backend, error) {
	driver := os.Getenv("REQCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.New(), nil
	case StorageSQLite:
		return sqlite.New(os.Getenv("REQCORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.New(os.Getenv("REQCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
