// Package cache provides the durable local hint store. Values kept here
// (last-known theme, language, entitlement snapshot) are cold-start hints
// only and are superseded by the first successful remote read.
package cache

import (
	"errors"
	"time"
)

var (
	// ErrMiss is returned when a key is not present in the cache.
	ErrMiss = errors.New("cache miss")
	// ErrUnsupportedValue is returned by Set for value types a backend
	// cannot store.
	ErrUnsupportedValue = errors.New("unsupported cache value type")
)

// Cache defines the interface for hint storage backends.
type Cache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
	Delete(key string) error
}
