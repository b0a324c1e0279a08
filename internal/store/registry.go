package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: sqlite or postgres.
	Driver string

	// DataDir holds the sqlite database file.
	DataDir string

	// DSN is the postgres connection string.
	DSN string

	// MaxOpenConns caps the connection pool; zero keeps the driver default.
	MaxOpenConns int
}

// DriverFactory opens a store and migrates its schema.
type DriverFactory func(ctx context.Context, cfg *DriverConfig, logger *slog.Logger) (Store, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// Open creates the configured driver.
func Open(ctx context.Context, cfg *DriverConfig, logger *slog.Logger) (Store, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (available: %v)", cfg.Driver, AvailableDrivers())
	}
	return factory(ctx, cfg, logger)
}

// AvailableDrivers returns the sorted names of registered drivers.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
