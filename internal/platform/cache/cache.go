// Package cache provides TTL key-value storage, counters, and monotonic
// sequences behind pluggable drivers. Sessions, rate limits, and the
// registry nonce all live here.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrExpired  = errors.New("key expired")
)

// Cache provides TTL-based key-value storage.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. If TTL is 0, use default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists and is not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close() error
}

// Counter provides atomic increments for rate limiting.
type Counter interface {
	// Increment adds delta to the counter and returns the new value.
	// If the key doesn't exist, it's created with the given TTL.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// GetCount returns the current counter value. Returns 0 if not found.
	GetCount(ctx context.Context, key string) (int64, error)

	// Reset sets the counter to 0.
	Reset(ctx context.Context, key string) error
}

// Sequence hands out strictly increasing values.
type Sequence interface {
	// Advance stores and returns max(candidate, current+1). Values never
	// expire and never decrease for a key.
	Advance(ctx context.Context, key string, candidate int64) (int64, error)
}

// Store is what every driver provides.
type Store interface {
	Cache
	Counter
	Sequence
}

// Factory creates a driver from its [cache.drivers.<name>] table.
type Factory func(config map[string]any, logger *slog.Logger) (Store, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// RegisterDriver registers a driver factory by name.
// This is typically called from init() in driver packages.
func RegisterDriver(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// NewFromConfig creates the named driver, passing it its own section of the
// drivers map. An empty name selects "memory".
func NewFromConfig(name string, driverConfigs map[string]any, logger *slog.Logger) (Store, error) {
	if name == "" {
		name = "memory"
	}

	driversMu.RLock()
	factory, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown cache driver %q (available: %v)", name, AvailableDrivers())
	}

	var section map[string]any
	if raw, ok := driverConfigs[name].(map[string]any); ok {
		section = raw
	}
	return factory(section, logger)
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
